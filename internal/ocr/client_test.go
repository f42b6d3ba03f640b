package ocr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRecognizer returns the scripted errors in order, then text.
type scriptedRecognizer struct {
	mu     sync.Mutex
	errs   []error
	text   string
	calls  int
	block  bool
	seenCt []context.Context
}

func (s *scriptedRecognizer) Recognize(ctx context.Context, _ PageImage) (string, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.seenCt = append(s.seenCt, ctx)
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if call <= len(s.errs) {
		return "", s.errs[call-1]
	}
	return s.text, nil
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newScriptedClient(rec Recognizer, cfg ClientConfig) (*Client, *sleepRecorder) {
	c := NewClient(rec, cfg)
	sr := &sleepRecorder{}
	c.sleep = sr.sleep
	return c, sr
}

func serverErr(code int) error {
	return withKind(classifyStatus(code), fmt.Errorf("status %d", code))
}

func TestSubmitSucceedsFirstTry(t *testing.T) {
	rec := &scriptedRecognizer{text: "hello"}
	c, sr := newScriptedClient(rec, ClientConfig{MaxRetries: 3})

	res := c.Submit(context.Background(), PageImage{Index: 4})

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, 4, res.Index)
	assert.Equal(t, 1, res.Attempts)
	assert.NoError(t, res.Err)
	assert.Empty(t, sr.delays)
}

func TestSubmitRetriesTransientFailures(t *testing.T) {
	for k := 1; k <= 3; k++ {
		t.Run(fmt.Sprintf("%d failures", k), func(t *testing.T) {
			errs := make([]error, k)
			for i := range errs {
				errs[i] = serverErr(503)
			}
			rec := &scriptedRecognizer{errs: errs, text: "ok"}
			c, sr := newScriptedClient(rec, ClientConfig{MaxRetries: 3})

			res := c.Submit(context.Background(), PageImage{Index: 0})

			assert.Equal(t, StatusSuccess, res.Status)
			assert.Equal(t, "ok", res.Text)
			assert.Equal(t, k+1, res.Attempts)
			assert.Len(t, sr.delays, k)
		})
	}
}

func TestSubmitExhaustsRetryBudget(t *testing.T) {
	rec := &scriptedRecognizer{errs: []error{serverErr(500), serverErr(502), serverErr(500), serverErr(504)}}
	c, _ := newScriptedClient(rec, ClientConfig{MaxRetries: 2})

	res := c.Submit(context.Background(), PageImage{Index: 1})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Empty(t, res.Text)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, rec.calls)
	assert.ErrorIs(t, res.Err, ErrServerError)

	var ocrErr *OCRError
	require.ErrorAs(t, res.Err, &ocrErr)
	assert.Equal(t, 1, ocrErr.Page)
	assert.Equal(t, 3, ocrErr.Attempts)
	assert.Contains(t, ocrErr.Error(), "on page 2 after 3 attempts")
}

func TestSubmitZeroRetries(t *testing.T) {
	rec := &scriptedRecognizer{errs: []error{serverErr(500)}}
	c, _ := newScriptedClient(rec, ClientConfig{MaxRetries: 0})

	res := c.Submit(context.Background(), PageImage{})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, rec.calls)
}

func TestSubmitPermanentFailuresAreNotRetried(t *testing.T) {
	cases := map[string]error{
		"bad request":  serverErr(400),
		"unauthorized": serverErr(401),
		"malformed":    withKind(ErrMalformedResponse, errors.New("no choices")),
		"unclassified": errors.New("something odd"),
	}
	for name, err := range cases {
		t.Run(name, func(t *testing.T) {
			rec := &scriptedRecognizer{errs: []error{err}, text: "never"}
			c, sr := newScriptedClient(rec, ClientConfig{MaxRetries: 5})

			res := c.Submit(context.Background(), PageImage{})

			assert.Equal(t, StatusFailed, res.Status)
			assert.Equal(t, 1, res.Attempts)
			assert.Equal(t, 1, rec.calls)
			assert.Empty(t, sr.delays)
		})
	}
}

func TestSubmitRetriesRateLimit(t *testing.T) {
	rec := &scriptedRecognizer{errs: []error{serverErr(429)}, text: "ok"}
	c, _ := newScriptedClient(rec, ClientConfig{MaxRetries: 1})

	res := c.Submit(context.Background(), PageImage{})

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, rec.calls)
}

func TestSubmitAttemptTimeout(t *testing.T) {
	rec := &scriptedRecognizer{block: true}
	c, _ := newScriptedClient(rec, ClientConfig{RequestTimeout: 20 * time.Millisecond, MaxRetries: 1})

	res := c.Submit(context.Background(), PageImage{})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 2, res.Attempts)
	assert.ErrorIs(t, res.Err, ErrTimeout)
	for _, ctx := range rec.seenCt {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
	}
}

func TestSubmitStopsWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &scriptedRecognizer{errs: []error{serverErr(500), serverErr(500), serverErr(500)}}
	c := NewClient(rec, ClientConfig{MaxRetries: 5})
	c.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	res := c.Submit(ctx, PageImage{})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, rec.calls)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestSubmitBackoffNeverDecreases(t *testing.T) {
	errs := make([]error, 8)
	for i := range errs {
		errs[i] = serverErr(503)
	}
	rec := &scriptedRecognizer{errs: errs}
	c, sr := newScriptedClient(rec, ClientConfig{
		MaxRetries:  8,
		BackoffBase: 10 * time.Millisecond,
		BackoffMax:  200 * time.Millisecond,
	})

	c.Submit(context.Background(), PageImage{})

	require.Len(t, sr.delays, 8)
	for i := 1; i < len(sr.delays); i++ {
		assert.GreaterOrEqual(t, sr.delays[i], sr.delays[i-1])
	}
	assert.LessOrEqual(t, sr.delays[len(sr.delays)-1], 200*time.Millisecond)
}

type pingRecognizer struct {
	scriptedRecognizer
	err error
}

func (p *pingRecognizer) Ping(context.Context) error { return p.err }

func TestClientPing(t *testing.T) {
	c := NewClient(&scriptedRecognizer{}, ClientConfig{})
	assert.NoError(t, c.Ping(context.Background()), "backends without Ping are assumed reachable")

	c = NewClient(&pingRecognizer{err: withKind(ErrUnavailable, errors.New("refused"))}, ClientConfig{})
	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)

	var ocrErr *OCRError
	assert.ErrorAs(t, err, &ocrErr)
}

func TestNewClientRateLimiter(t *testing.T) {
	c := NewClient(&scriptedRecognizer{}, ClientConfig{RequestsPerSecond: 0.5})
	require.NotNil(t, c.limiter)
	assert.Equal(t, 1, c.limiter.Burst())

	c = NewClient(&scriptedRecognizer{}, ClientConfig{})
	assert.Nil(t, c.limiter)
	assert.Equal(t, 120*time.Second, c.cfg.RequestTimeout)
}
