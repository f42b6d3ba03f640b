package ocr

import (
	"context"
	"errors"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
)

// ImageAnnotator is the subset of the Cloud Vision client used here.
type ImageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// VisionRecognizer reads pages with Google Cloud Vision document text detection.
type VisionRecognizer struct {
	client ImageAnnotator
}

// NewVisionRecognizer creates a Cloud Vision client from creds.
func NewVisionRecognizer(ctx context.Context, creds GoogleCredentials) (*VisionRecognizer, error) {
	const op = "NewVisionRecognizer"

	client, err := vision.NewImageAnnotatorClient(ctx, creds.clientOptions()...)
	if err != nil {
		if !creds.configured() {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}
	return &VisionRecognizer{client: client}, nil
}

// NewVisionRecognizerWithClient wraps an existing annotator client.
func NewVisionRecognizerWithClient(client ImageAnnotator) *VisionRecognizer {
	return &VisionRecognizer{client: client}
}

// Recognize runs DOCUMENT_TEXT_DETECTION on the page image.
func (v *VisionRecognizer) Recognize(ctx context.Context, image PageImage) (string, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Content: image.Data},
			Features: []*visionpb.Feature{{
				Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION,
			}},
		}},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req, noRetry)
	if err != nil {
		return "", classifyGRPC(err)
	}
	if len(resp.GetResponses()) == 0 {
		return "", withKind(ErrMalformedResponse, errors.New("no response from Vision API"))
	}

	page := resp.GetResponses()[0]
	if e := page.GetError(); e != nil && e.GetCode() != 0 {
		return "", statusError(e.GetCode(), e.GetMessage())
	}
	// A page without any detected text has no annotation at all.
	return page.GetFullTextAnnotation().GetText(), nil
}

// Close closes the underlying Vision client.
func (v *VisionRecognizer) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
