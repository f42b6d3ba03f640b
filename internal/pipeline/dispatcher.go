// Package pipeline fans rendered pages out to the OCR client and folds the
// per-page results back into one ordered document.
package pipeline

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pdf2md/internal/logger"
	"pdf2md/internal/ocr"
)

// DefaultWorkers is the number of concurrent OCR requests when none is configured.
const DefaultWorkers = 8

// Dispatcher submits pages to an OCR client with at most Workers requests in
// flight and collects one result per page.
type Dispatcher struct {
	client  ocr.Submitter
	workers int
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher. workers <= 0 selects DefaultWorkers.
func NewDispatcher(client ocr.Submitter, workers int, log zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{client: client, workers: workers, log: log}
}

// Workers returns the concurrency limit.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// Run draws pages lazily and returns exactly one result per yielded page,
// sorted by index. total is only used for progress reporting. Run does not
// fail: render and OCR failures become StatusFailed results, and a cancelled
// ctx makes the remaining pages fail with the context error.
func (d *Dispatcher) Run(ctx context.Context, pages iter.Seq2[ocr.PageImage, error], total int) []ocr.PageResult {
	start := time.Now()

	var (
		mu        sync.Mutex
		results   = make([]ocr.PageResult, 0, max(total, 0))
		completed int
	)
	record := func(res ocr.PageResult) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
		completed++

		pageLog := logger.WithPage(d.log, res.Index)
		ev := pageLog.Info()
		if !res.Succeeded() {
			ev = pageLog.Warn().Err(res.Err)
		}
		ev.Str("status", res.Status.String()).
			Int("attempts", res.Attempts).
			Dur("duration", res.Duration).
			Str("progress", fmt.Sprintf("%d/%d", completed, total)).
			Msg("Page processed")
	}

	var g errgroup.Group
	g.SetLimit(d.workers)

	for image, err := range pages {
		if err != nil {
			record(ocr.Failed(image.Index, fmt.Errorf("%w: %w", ocr.ErrRenderFailed, err)))
			continue
		}
		// Go blocks while all workers are busy, so rendering never runs more
		// than one page ahead of the pool.
		g.Go(func() error {
			record(d.client.Submit(ctx, image))
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(results, func(a, b ocr.PageResult) int {
		return a.Index - b.Index
	})

	var failed []int
	for _, r := range results {
		if !r.Succeeded() {
			failed = append(failed, r.Index+1)
		}
	}
	summary := d.log.Info()
	if len(failed) > 0 {
		summary = d.log.Warn().Ints("failed_pages", failed)
	}
	summary.
		Int("pages", len(results)).
		Int("failed", len(failed)).
		Dur("elapsed", time.Since(start)).
		Msg("Dispatch finished")

	return results
}
