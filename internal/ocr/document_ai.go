package ocr

import (
	"context"
	"errors"
	"fmt"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

// DocumentProcessor is the subset of the Document AI client used here.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// DocumentAIConfig names the OCR processor to call.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string
	ProcessorID string
	Credentials GoogleCredentials
}

// ProcessorName returns the fully qualified processor resource name.
func (c DocumentAIConfig) ProcessorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

// DocumentAIRecognizer reads pages with a Document AI OCR processor.
type DocumentAIRecognizer struct {
	client DocumentProcessor
	name   string
}

// NewDocumentAIRecognizer creates a Document AI client for the processor's region.
func NewDocumentAIRecognizer(ctx context.Context, cfg DocumentAIConfig) (*DocumentAIRecognizer, error) {
	const op = "NewDocumentAIRecognizer"

	if cfg.Location == "" {
		cfg.Location = "us"
	}
	opts := cfg.Credentials.clientOptions()
	if cfg.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		if !cfg.Credentials.configured() {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", cfg.Location))
	}
	return NewDocumentAIRecognizerWithClient(client, cfg), nil
}

// NewDocumentAIRecognizerWithClient wraps an existing processor client.
func NewDocumentAIRecognizerWithClient(client DocumentProcessor, cfg DocumentAIConfig) *DocumentAIRecognizer {
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	return &DocumentAIRecognizer{client: client, name: cfg.ProcessorName()}
}

// Recognize sends the page image as a raw document.
func (d *DocumentAIRecognizer) Recognize(ctx context.Context, image PageImage) (string, error) {
	req := &documentaipb.ProcessRequest{
		Name: d.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  image.Data,
				MimeType: image.MIMEType,
			},
		},
	}

	resp, err := d.client.ProcessDocument(ctx, req, noRetry)
	if err != nil {
		return "", classifyGRPC(err)
	}
	doc := resp.GetDocument()
	if doc == nil {
		return "", withKind(ErrMalformedResponse, errors.New("no document in response"))
	}
	if e := doc.GetError(); e != nil && e.GetCode() != 0 {
		return "", statusError(e.GetCode(), e.GetMessage())
	}
	return doc.GetText(), nil
}

// Close closes the underlying Document AI client.
func (d *DocumentAIRecognizer) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}
