package mupdf

import (
	"errors"
	"fmt"
	"image"
)

// Package-level sentinel errors. Callers decide the blast radius: a document
// error aborts the run, an extraction or resource error fails a single page.
var (
	// ErrDocument means the source file cannot be opened or parsed at all.
	ErrDocument = errors.New("document unreadable")
	// ErrExtraction means a single page cannot be read.
	ErrExtraction = errors.New("page extraction failed")
	// ErrResource means a raster or handle allocation failed.
	ErrResource = errors.New("resource allocation failed")
)

// ExtractionError wraps a page-level read failure with its page number.
type ExtractionError struct {
	Page int
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *ExtractionError) Unwrap() error { return ErrExtraction }

// Rect is an axis-aligned rectangle in page coordinates (points).
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Area returns the absolute area of the rectangle.
func (r Rect) Area() float64 {
	w := r.X1 - r.X0
	h := r.Y1 - r.Y0
	if w < 0 {
		w = -w
	}
	if h < 0 {
		h = -h
	}
	return w * h
}

// ImageInfo describes one embedded image. Pixel dimensions only - the raster
// itself is measured and released by the source, never retained.
type ImageInfo struct {
	Width  int
	Height int
}

// AreaPx returns the raster area in pixels.
func (i ImageInfo) AreaPx() int { return i.Width * i.Height }

// DrawingStats counts vector drawing primitives on a page.
type DrawingStats struct {
	Rects    int
	Lines    int
	Curves   int
	Compound int // multi-segment paths (connector/arrow shapes)
}

// TableInfo describes one detected table.
type TableInfo struct {
	CellCount int
	Bounds    Rect
}

// PageSource is the PDF-parsing capability consumed by feature extraction.
// Page numbers are 1-based. Implementations are not safe for concurrent use;
// each worker opens its own source.
type PageSource interface {
	NumPages() int
	// PageText returns the plain text of a page.
	PageText(page int) (string, error)
	// PageSize returns the page dimensions in points.
	PageSize(page int) (w, h float64, err error)
	// TextBlocks returns the bounding boxes of text blocks on a page.
	TextBlocks(page int) ([]Rect, error)
	// Images enumerates embedded images with their measured dimensions.
	Images(page int) ([]ImageInfo, error)
	// Drawings returns vector primitive counts for a page.
	Drawings(page int) (DrawingStats, error)
	// Tables returns detected tables with per-table cell counts.
	Tables(page int) ([]TableInfo, error)
	// RenderDPI renders the full page to a raster at the given DPI.
	RenderDPI(page int, dpi float64) (image.Image, error)
	Close() error
}

// Opener opens an independent PageSource for a document path. Parallel
// workers call it once each so handles are never shared.
type Opener func(path string) (PageSource, error)
