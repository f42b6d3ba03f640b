package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pdf2md/internal/logger"
	"pdf2md/internal/ocr"
	"pdf2md/internal/render"
)

// ErrEndpointUnreachable is returned by Convert when the preflight check fails.
var ErrEndpointUnreachable = errors.New("OCR endpoint unreachable")

// Options tunes a Converter.
type Options struct {
	// Workers caps concurrent OCR requests; <= 0 selects DefaultWorkers.
	Workers int

	// Preflight pings the backend once before any page is dispatched.
	Preflight bool
}

// Converter turns a PDF into a DocumentResult: render, dispatch, assemble.
type Converter struct {
	renderer render.Renderer
	client   ocr.Submitter
	opts     Options
}

// NewConverter creates a Converter. If client also implements ocr.Pinger it
// is used for the preflight check.
func NewConverter(renderer render.Renderer, client ocr.Submitter, opts Options) *Converter {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Converter{renderer: renderer, client: client, opts: opts}
}

// Convert reads every page of pdfPath. Individual page failures are reported
// in the result; only setup failures (unreadable document, unreachable
// endpoint on preflight) and broken results are returned as errors.
func (c *Converter) Convert(ctx context.Context, pdfPath string) (*DocumentResult, error) {
	log, runID := logger.WithRunID("pipeline")
	start := time.Now()

	total, err := c.renderer.PageCount(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", pdfPath, err)
	}
	log.Info().
		Str("file", pdfPath).
		Int("pages", total).
		Int("workers", c.opts.Workers).
		Msg("Starting conversion")

	if total == 0 {
		log.Warn().Str("file", pdfPath).Msg("Document has no pages")
		return &DocumentResult{Pages: []ocr.PageResult{}}, nil
	}

	if c.opts.Preflight {
		if p, ok := c.client.(ocr.Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrEndpointUnreachable, err)
			}
			log.Debug().Msg("Preflight check passed")
		}
	}

	dispatcher := NewDispatcher(c.client, c.opts.Workers, log)
	results := dispatcher.Run(ctx, render.Pages(ctx, c.renderer, pdfPath, total), total)

	doc, err := Assemble(results)
	if err != nil {
		return nil, fmt.Errorf("assemble run %s: %w", runID, err)
	}

	log.Info().
		Int("pages", doc.PageCount()).
		Int("failed", len(doc.FailedPages())).
		Dur("elapsed", time.Since(start)).
		Msg("Conversion finished")
	return doc, nil
}
