package ocr_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pdf2md/internal/ocr"
)

// flakyRecognizer fails with a server error a fixed number of times.
type flakyRecognizer struct {
	failures int
}

func (f *flakyRecognizer) Recognize(_ context.Context, image ocr.PageImage) (string, error) {
	if f.failures > 0 {
		f.failures--
		return "", fmt.Errorf("%w: status 503", ocr.ErrServerError)
	}
	return fmt.Sprintf("text of page %d", image.Index+1), nil
}

// Example shows a page that succeeds after two transient failures.
func Example() {
	client := ocr.NewClient(&flakyRecognizer{failures: 2}, ocr.ClientConfig{
		RequestTimeout: 10 * time.Second,
		MaxRetries:     3,
		BackoffBase:    time.Millisecond,
		BackoffMax:     10 * time.Millisecond,
	})

	res := client.Submit(context.Background(), ocr.PageImage{Index: 0, MIMEType: "image/png"})
	fmt.Println(res.Status, res.Attempts, res.Text)

	// Output:
	// success 3 text of page 1
}

// ExampleNewOpenAIRecognizer wires the default backend against a local
// OpenAI-compatible server such as vLLM.
func ExampleNewOpenAIRecognizer() {
	recognizer := ocr.NewOpenAIRecognizer(ocr.OpenAIConfig{
		Endpoint:    "http://localhost:9090/v1",
		Model:       "LightOnOCR-2-1B",
		MaxTokens:   4096,
		Temperature: 0.2,
		TopP:        0.9,
	}, ocr.NewHTTPClient(8))

	client := ocr.NewClient(recognizer, ocr.ClientConfig{
		RequestTimeout: 120 * time.Second,
		MaxRetries:     3,
	})

	ctx := context.Background()
	if err := client.Ping(ctx); err != nil {
		fmt.Println("endpoint not reachable:", errors.Is(err, ocr.ErrUnavailable))
		return
	}
	res := client.Submit(ctx, ocr.PageImage{Index: 0, Data: []byte{}, MIMEType: "image/png"})
	fmt.Println(res.Status)
}

func ExampleIsTransient() {
	fmt.Println(ocr.IsTransient(fmt.Errorf("%w: status 502", ocr.ErrServerError)))
	fmt.Println(ocr.IsTransient(fmt.Errorf("%w: status 400", ocr.ErrClientError)))

	// Output:
	// true
	// false
}
