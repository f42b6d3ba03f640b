// Package render turns a PDF into an ordered sequence of page images.
package render

import (
	"context"
	"iter"

	"pdf2md/internal/ocr"
)

// Renderer rasterizes PDF pages.
type Renderer interface {
	// PageCount returns the number of pages in the document.
	PageCount(ctx context.Context, pdfPath string) (int, error)

	// RenderPage rasterizes one page; index is 0-based.
	RenderPage(ctx context.Context, pdfPath string, index int) (ocr.PageImage, error)
}

// Pages yields the pages of a document in order, rendering each one only
// when the consumer asks for it. A page that fails to render is yielded with
// its index set and a non-nil error; iteration continues with the next page.
func Pages(ctx context.Context, r Renderer, pdfPath string, count int) iter.Seq2[ocr.PageImage, error] {
	return func(yield func(ocr.PageImage, error) bool) {
		for i := 0; i < count; i++ {
			if ctx.Err() != nil {
				if !yield(ocr.PageImage{Index: i}, ctx.Err()) {
					return
				}
				continue
			}
			img, err := r.RenderPage(ctx, pdfPath, i)
			img.Index = i
			if !yield(img, err) {
				return
			}
		}
	}
}
