package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// NewHTTPClient returns an HTTP client whose transport keeps enough idle
// connections for maxConns concurrent requests to one host. The client is
// shared by all workers. Timeouts are applied per request through the
// context, so the client itself has none.
func NewHTTPClient(maxConns int) *http.Client {
	if maxConns <= 0 {
		maxConns = 2
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxConnsPerHost:       max(maxConns, 4),
		MaxIdleConnsPerHost:   max(maxConns, 4),
		MaxIdleConns:          max(maxConns*2, 32),
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport}
}

// classifyTransportError classifies failures that happen below the API layer:
// deadlines, connection errors and undecodable bodies.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return withKind(ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		if netErr != nil && netErr.Timeout() {
			return withKind(ErrTimeout, err)
		}
		return withKind(ErrUnavailable, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return withKind(ErrMalformedResponse, fmt.Errorf("decode response: %w", err))
	}
	return err
}
