package ocr

import (
	"errors"
	"fmt"
	"net/http"
)

// Transient failures. Client retries these until the retry budget runs out.
var (
	// ErrTimeout is returned when a single request exceeds the request timeout.
	ErrTimeout = errors.New("OCR request timed out")

	// ErrUnavailable is returned when the endpoint cannot be reached at all.
	ErrUnavailable = errors.New("OCR endpoint unavailable")

	// ErrServerError is returned for 5xx responses and equivalent gRPC codes.
	ErrServerError = errors.New("OCR endpoint server error")

	// ErrRateLimited is returned for HTTP 429 and gRPC RESOURCE_EXHAUSTED.
	ErrRateLimited = errors.New("OCR endpoint rate limited")
)

// Permanent failures. Client fails the page immediately.
var (
	// ErrClientError is returned for 4xx responses other than 429.
	ErrClientError = errors.New("OCR request rejected")

	// ErrMalformedResponse is returned when the response body cannot be decoded
	// or lacks the extracted text.
	ErrMalformedResponse = errors.New("malformed OCR response")
)

var (
	// ErrRenderFailed marks a page that could not be rendered; OCR is never attempted.
	ErrRenderFailed = errors.New("page render failed")

	// ErrMissingCredentials is returned when a Google backend has no usable credentials.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrServerError) ||
		errors.Is(err, ErrRateLimited)
}

// classifyStatus maps a non-2xx HTTP status code onto a sentinel.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusRequestTimeout:
		return ErrTimeout
	case code >= 500:
		return ErrServerError
	default:
		return ErrClientError
	}
}

// OCRError wraps errors with additional context about the OCR failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "Submit", "Recognize").
	Op string

	// Page is the 0-based page index, or -1 when not tied to a page.
	Page int

	// Attempts is the number of requests made before giving up.
	Attempts int

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	msg := "ocr: " + e.Op + " failed"
	if e.Page >= 0 {
		msg += fmt.Sprintf(" on page %d", e.Page+1)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// NewOCRError creates a new OCRError not tied to a page.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Page:    -1,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err
	}

	return NewOCRError(op, err, details)
}

// kindError attaches a classification sentinel to a backend error while
// keeping the original error in the chain.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string {
	return fmt.Sprintf("%v: %v", e.kind, e.err)
}

func (e *kindError) Unwrap() []error {
	return []error{e.kind, e.err}
}

func withKind(kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}
