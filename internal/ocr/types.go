// Package ocr sends rendered page images to a remote OCR or vision-language
// model and turns each request into a PageResult.
//
// A Recognizer performs exactly one attempt against a backend. Client wraps a
// Recognizer with the per-request timeout, retry with exponential backoff and
// error classification, and never fails outward: a page that cannot be read
// comes back as a PageResult with StatusFailed.
//
// Backends:
//   - OpenAIRecognizer: OpenAI-compatible chat-completions endpoint (vLLM, LM Studio, ...)
//   - GeminiRecognizer: Google Gemini with the page as an inline image part
//   - VisionRecognizer: Google Cloud Vision DOCUMENT_TEXT_DETECTION
//   - DocumentAIRecognizer: Google Document AI OCR processor
package ocr

import (
	"context"
	"encoding/base64"
	"time"
)

// PageImage is one rendered page. Index is 0-based and defines ordering.
type PageImage struct {
	Index    int
	Data     []byte
	MIMEType string
}

// DataURL returns the image encoded as a base64 data URL.
func (p PageImage) DataURL() string {
	return "data:" + p.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Status is the outcome of OCR for one page.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PageResult is the outcome of OCR for one page. Text is set iff Status is
// StatusSuccess; Err holds the last failure iff Status is StatusFailed.
type PageResult struct {
	Index    int
	Status   Status
	Text     string
	Err      error
	Attempts int
	Duration time.Duration
}

// Succeeded reports whether the page was read.
func (r PageResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Failed builds a failed result for a page.
func Failed(index int, err error) PageResult {
	return PageResult{Index: index, Status: StatusFailed, Err: err}
}

// Recognizer performs a single OCR attempt for one page image. Errors should
// wrap one of the package sentinels so that Client can tell transient
// failures from permanent ones.
type Recognizer interface {
	Recognize(ctx context.Context, image PageImage) (string, error)
}

// Pinger is implemented by backends that can check the endpoint is reachable
// before a document is dispatched.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Submitter is the contract the dispatcher needs from Client.
type Submitter interface {
	Submit(ctx context.Context, image PageImage) PageResult
}
