package ocr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"pdf2md/internal/logger"
)

// ClientConfig is the retry and timeout policy of a Client.
type ClientConfig struct {
	// RequestTimeout bounds every single attempt.
	RequestTimeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BackoffBase is the delay ceiling before the first retry; it doubles
	// per retry up to BackoffMax.
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// RequestsPerSecond caps the request rate across all workers. Zero
	// disables the limiter.
	RequestsPerSecond float64
}

// Client submits page images to a Recognizer with retry and timeout policy.
// It is safe for concurrent use; per-request retry state lives on the stack of
// each Submit call.
type Client struct {
	recognizer Recognizer
	cfg        ClientConfig
	limiter    *rate.Limiter
	sleep      func(ctx context.Context, d time.Duration) error
	log        zerolog.Logger
}

// NewClient creates a Client around recognizer.
func NewClient(recognizer Recognizer, cfg ClientConfig) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	c := &Client{
		recognizer: recognizer,
		cfg:        cfg,
		sleep:      sleepContext,
		log:        logger.WithComponent("ocr-client"),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// Ping checks the backend is reachable when it supports it.
func (c *Client) Ping(ctx context.Context) error {
	p, ok := c.recognizer.(Pinger)
	if !ok {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		return WrapOCRError("Ping", err, "endpoint preflight failed")
	}
	return nil
}

// Submit runs OCR for one page. It blocks until the page is read or the retry
// budget is spent and never returns an error: failures are reported through
// the returned PageResult.
func (c *Client) Submit(ctx context.Context, image PageImage) PageResult {
	const op = "Submit"
	start := time.Now()
	log := logger.WithPage(c.log, image.Index)
	bo := newBackoff(c.cfg.BackoffBase, c.cfg.BackoffMax)
	maxAttempts := c.cfg.MaxRetries + 1

	var lastErr error
	attempt := 0
	for attempt < maxAttempts {
		attempt++

		text, err := c.attempt(ctx, image)
		if err == nil {
			log.Debug().
				Int("attempt", attempt).
				Int("text_length", len(text)).
				Msg("Page recognized")
			return PageResult{
				Index:    image.Index,
				Status:   StatusSuccess,
				Text:     text,
				Attempts: attempt,
				Duration: time.Since(start),
			}
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if !IsTransient(err) {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Permanent OCR failure, not retrying")
			break
		}
		if attempt == maxAttempts {
			break
		}

		delay := bo.Next()
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("backoff", delay).
			Msg("Transient OCR failure, retrying")
		if err := c.sleep(ctx, delay); err != nil {
			break
		}
	}

	if ctx.Err() != nil && !errors.Is(lastErr, ctx.Err()) {
		lastErr = fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
	}
	return PageResult{
		Index:  image.Index,
		Status: StatusFailed,
		Err: &OCRError{
			Op:       op,
			Page:     image.Index,
			Attempts: attempt,
			Err:      lastErr,
		},
		Attempts: attempt,
		Duration: time.Since(start),
	}
}

// attempt makes one bounded request and normalizes deadline errors.
func (c *Client) attempt(ctx context.Context, image PageImage) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	text, err := c.recognizer.Recognize(reqCtx, image)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return "", withKind(ErrTimeout, fmt.Errorf("no response within %s: %w", c.cfg.RequestTimeout, err))
	}
	return "", err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
