package mupdf

import (
	"fmt"
	"image"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

// FitzSource implements PageSource on top of go-fitz (MuPDF). Text, page
// geometry and rendering come straight from MuPDF; block/vector/table
// signals are derived from a per-page raster scan (see raster.go) because
// go-fitz does not expose the structured drawing enumeration.
//
// Not safe for concurrent use; open one source per worker.
type FitzSource struct {
	path string
	doc  *fitz.Document

	scanPage int
	scan     *pageScan
}

// Open validates the document with pdfcpu and opens a MuPDF handle.
// A file that cannot be opened at all returns ErrDocument.
func Open(path string) (*FitzSource, error) {
	if _, err := api.PageCountFile(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDocument, path, err)
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDocument, path, err)
	}
	return &FitzSource{path: path, doc: doc, scanPage: -1}, nil
}

// OpenSource is an Opener returning FitzSource handles.
func OpenSource(path string) (PageSource, error) { return Open(path) }

func (s *FitzSource) Close() error {
	s.scan = nil
	return s.doc.Close()
}

func (s *FitzSource) NumPages() int { return s.doc.NumPage() }

func (s *FitzSource) checkPage(page int) error {
	if page < 1 || page > s.doc.NumPage() {
		return &ExtractionError{Page: page, Err: fmt.Errorf("out of range (document has %d pages)", s.doc.NumPage())}
	}
	return nil
}

func (s *FitzSource) PageText(page int) (string, error) {
	if err := s.checkPage(page); err != nil {
		return "", err
	}
	text, err := s.doc.Text(page - 1)
	if err != nil {
		return "", &ExtractionError{Page: page, Err: err}
	}
	return text, nil
}

func (s *FitzSource) PageSize(page int) (float64, float64, error) {
	if err := s.checkPage(page); err != nil {
		return 0, 0, err
	}
	bound, err := s.doc.Bound(page - 1)
	if err != nil {
		return 0, 0, &ExtractionError{Page: page, Err: err}
	}
	return float64(bound.Dx()), float64(bound.Dy()), nil
}

func (s *FitzSource) TextBlocks(page int) ([]Rect, error) {
	scan, err := s.scanFor(page)
	if err != nil {
		return nil, err
	}
	return scan.textBlocks, nil
}

func (s *FitzSource) Images(page int) ([]ImageInfo, error) {
	scan, err := s.scanFor(page)
	if err != nil {
		return nil, err
	}
	return scan.images, nil
}

func (s *FitzSource) Drawings(page int) (DrawingStats, error) {
	scan, err := s.scanFor(page)
	if err != nil {
		return DrawingStats{}, err
	}
	return scan.drawings, nil
}

func (s *FitzSource) Tables(page int) ([]TableInfo, error) {
	scan, err := s.scanFor(page)
	if err != nil {
		return nil, err
	}
	return scan.tables, nil
}

func (s *FitzSource) RenderDPI(page int, dpi float64) (image.Image, error) {
	if err := s.checkPage(page); err != nil {
		return nil, err
	}
	img, err := s.doc.ImageDPI(page-1, dpi)
	if err != nil {
		return nil, fmt.Errorf("%w: render page %d: %v", ErrResource, page, err)
	}
	return img, nil
}

// scanFor renders the page once and caches the derived signals so the quick
// and detail extraction phases share a single raster. The raster itself is
// released as soon as the scan is built.
func (s *FitzSource) scanFor(page int) (*pageScan, error) {
	if s.scan != nil && s.scanPage == page {
		return s.scan, nil
	}
	if err := s.checkPage(page); err != nil {
		return nil, err
	}
	img, err := s.doc.ImageDPI(page-1, analysisDPI)
	if err != nil {
		return nil, fmt.Errorf("%w: analyze page %d: %v", ErrResource, page, err)
	}
	w, h, err := s.PageSize(page)
	if err != nil {
		return nil, err
	}
	scan := analyzeRaster(img, w, h)
	log.Debug().
		Int("page", page).
		Int("text_blocks", len(scan.textBlocks)).
		Int("rects", scan.drawings.Rects).
		Int("lines", scan.drawings.Lines).
		Int("tables", len(scan.tables)).
		Msg("page raster scan")
	s.scanPage = page
	s.scan = scan
	return scan, nil
}
