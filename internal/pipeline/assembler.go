package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"pdf2md/internal/ocr"
)

// PageSeparator joins page blocks in both output representations.
const PageSeparator = "\n\n"

// ErrIncompleteResults is returned by Assemble when the results do not cover
// every page index exactly once.
var ErrIncompleteResults = errors.New("results do not cover every page exactly once")

// DocumentResult is the assembled output for one document.
type DocumentResult struct {
	// Pages holds one result per page; Pages[i].Index == i.
	Pages []ocr.PageResult

	// ConcatenatedText is the text of the successful pages only.
	ConcatenatedText string

	// SeparatedText has a "## Page N" heading before every page, with a
	// failure marker in place of the text of failed pages.
	SeparatedText string
}

// PageCount returns the number of pages in the document.
func (d *DocumentResult) PageCount() int {
	return len(d.Pages)
}

// FailedPages returns the 1-based numbers of the pages that could not be read.
func (d *DocumentResult) FailedPages() []int {
	var failed []int
	for _, p := range d.Pages {
		if !p.Succeeded() {
			failed = append(failed, p.Index+1)
		}
	}
	return failed
}

// Assemble orders results by page index and builds both text representations.
// It does not modify results.
func Assemble(results []ocr.PageResult) (*DocumentResult, error) {
	pages := slices.Clone(results)
	slices.SortStableFunc(pages, func(a, b ocr.PageResult) int {
		return a.Index - b.Index
	})
	for i, p := range pages {
		if p.Index != i {
			return nil, fmt.Errorf("%w: expected page index %d, got %d", ErrIncompleteResults, i, p.Index)
		}
	}

	texts := make([]string, 0, len(pages))
	blocks := make([]string, 0, len(pages))
	for _, p := range pages {
		body := p.Text
		if p.Succeeded() {
			texts = append(texts, p.Text)
		} else {
			body = failureMarker(p.Err)
		}
		blocks = append(blocks, PageHeading(p.Index+1)+body)
	}

	return &DocumentResult{
		Pages:            pages,
		ConcatenatedText: strings.Join(texts, PageSeparator),
		SeparatedText:    strings.Join(blocks, PageSeparator),
	}, nil
}

// PageHeading returns the marker placed before page number n (1-based).
func PageHeading(n int) string {
	return fmt.Sprintf("## Page %d\n\n", n)
}

func failureMarker(err error) string {
	if err == nil {
		return "[OCR failed]"
	}
	reason, _, _ := strings.Cut(err.Error(), "\n")
	return "[OCR failed: " + strings.TrimSpace(reason) + "]"
}
