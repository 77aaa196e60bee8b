package features

import (
	"regexp"

	"github.com/rs/zerolog/log"

	"github.com/uchi736/rag-preprocessing-optimizer/internal/mupdf"
)

// Config holds the extraction thresholds and pattern tables. Build it once
// and pass it in; there is no process-wide mutable configuration.
type Config struct {
	// Number of leading characters scanned for skip patterns.
	SkipScanChars int
	// Embedded images above this raster area (px^2) count as large.
	LargeImageAreaPx int

	FigureNumbers    *PatternSet
	FigureReferences *PatternSet
	SkipPages        *PatternSet
	ForceImage       *PatternSet
	Steps            *PatternSet
	NumberedLists    *PatternSet
}

// DefaultConfig returns the built-in thresholds and pattern tables.
func DefaultConfig() Config {
	return Config{
		SkipScanChars:    200,
		LargeImageAreaPx: 50000,
		FigureNumbers:    DefaultFigureNumberPatterns(),
		FigureReferences: DefaultFigureReferencePatterns(),
		SkipPages:        DefaultSkipPatterns(),
		ForceImage:       DefaultForceImageKeywords(),
		Steps:            DefaultStepPattern(),
		NumberedLists:    DefaultNumberedListPattern(),
	}
}

// PageFeatures is the per-page measurement set feeding classification.
// Quick-phase fields are always populated; detail-phase fields are zero
// until Detail runs (DetailDone reports which).
type PageFeatures struct {
	Page int `json:"page"`

	// quick phase
	TextDensity        float64 `json:"text_density"`
	LargeImageCount    int     `json:"large_image_count"`
	HasForceKeyword    bool    `json:"has_force_keyword"`
	HasFigureNumber    bool    `json:"has_figure_number"`
	HasFigureReference bool    `json:"has_figure_reference"`
	ActualFigure       bool    `json:"actual_figure"`
	SkipReason         string  `json:"skip_reason,omitempty"`

	// detail phase
	DetailDone      bool    `json:"detail_done"`
	TableCount      int     `json:"table_count"`
	TotalCells      int     `json:"total_cells"`
	RectCount       int     `json:"rect_count"`
	LineCount       int     `json:"line_count"`
	CurveCount      int     `json:"curve_count"`
	CompoundShapes  int     `json:"compound_shapes"`
	HasStepPattern  bool    `json:"has_step_pattern"`
	HasNumberedList bool    `json:"has_numbered_list"`
	BlockCount      int     `json:"block_count"`
	BlockSpreadX    float64 `json:"block_spread_x"`
	BlockSpreadY    float64 `json:"block_spread_y"`
}

// Extractor turns a page handle into a PageFeatures vector.
type Extractor struct {
	cfg Config
	// caption-context expressions per figure pattern, compiled once
	captions [][]*regexp.Regexp
}

// New builds an Extractor, precompiling the layout-context expressions for
// every figure-number pattern.
func New(cfg Config) *Extractor {
	if cfg.SkipScanChars <= 0 {
		cfg.SkipScanChars = 200
	}
	if cfg.LargeImageAreaPx <= 0 {
		cfg.LargeImageAreaPx = 50000
	}
	e := &Extractor{cfg: cfg}
	cfg.FigureNumbers.Each(func(p Pattern) bool {
		e.captions = append(e.captions, captionContexts(p.Expr()))
		return true
	})
	return e
}

// Quick performs the cheap first-phase extraction: skip check, text density,
// embedded-image sizes and figure-token analysis. When a skip pattern hits,
// all further work on the page is omitted.
func (e *Extractor) Quick(src mupdf.PageSource, page int) (PageFeatures, error) {
	f := PageFeatures{Page: page}

	text, err := src.PageText(page)
	if err != nil {
		return f, err
	}

	head := []rune(text)
	if len(head) > e.cfg.SkipScanChars {
		head = head[:e.cfg.SkipScanChars]
	}
	if p, ok := e.cfg.SkipPages.FirstMatch(string(head)); ok {
		f.SkipReason = p.Name
		log.Debug().Int("page", page).Str("pattern", p.Name).Msg("page matched skip pattern")
		return f, nil
	}

	pageW, pageH, err := src.PageSize(page)
	if err != nil {
		return f, err
	}
	blocks, err := src.TextBlocks(page)
	if err != nil {
		return f, err
	}
	pageArea := pageW * pageH
	if pageArea > 0 {
		var textArea float64
		for _, b := range blocks {
			textArea += b.Area()
		}
		f.TextDensity = textArea / pageArea
		if f.TextDensity > 1 {
			f.TextDensity = 1
		}
	}

	// Rasters are materialized only long enough to measure; the source
	// releases them once dimensions are known.
	images, err := src.Images(page)
	if err != nil {
		return f, err
	}
	for _, img := range images {
		if img.AreaPx() > e.cfg.LargeImageAreaPx {
			f.LargeImageCount++
		}
	}

	f.HasForceKeyword = e.cfg.ForceImage.Matches(text)
	f.HasFigureReference = e.cfg.FigureReferences.Matches(text)
	f.HasFigureNumber = e.cfg.FigureNumbers.Matches(text)
	if f.HasFigureNumber && !f.HasFigureReference {
		f.ActualFigure = e.matchesCaptionContext(text)
	}
	return f, nil
}

// matchesCaptionContext checks whether any figure-number token appears in a
// caption-like layout position rather than in running prose.
func (e *Extractor) matchesCaptionContext(text string) bool {
	for _, contexts := range e.captions {
		for _, re := range contexts {
			if re.MatchString(text) {
				return true
			}
		}
	}
	return false
}

// Detail fills the second-phase signals: vector primitives, tables, text
// patterns and block spread. Invoked only when the quick screen did not
// already resolve the page.
func (e *Extractor) Detail(src mupdf.PageSource, page int, f *PageFeatures) error {
	stats, err := src.Drawings(page)
	if err != nil {
		return err
	}
	f.RectCount = stats.Rects
	f.LineCount = stats.Lines
	f.CurveCount = stats.Curves
	f.CompoundShapes = stats.Compound

	tables, err := src.Tables(page)
	if err != nil {
		return err
	}
	f.TableCount = len(tables)
	for _, t := range tables {
		f.TotalCells += t.CellCount
	}

	text, err := src.PageText(page)
	if err != nil {
		return err
	}
	f.HasStepPattern = e.cfg.Steps.Matches(text)
	f.HasNumberedList = e.cfg.NumberedLists.Matches(text)

	blocks, err := src.TextBlocks(page)
	if err != nil {
		return err
	}
	f.BlockCount = len(blocks)
	if len(blocks) > 0 {
		minX, maxX := blocks[0].X0, blocks[0].X0
		minY, maxY := blocks[0].Y0, blocks[0].Y0
		for _, b := range blocks {
			if b.X0 < minX {
				minX = b.X0
			}
			if b.X0 > maxX {
				maxX = b.X0
			}
			if b.Y0 < minY {
				minY = b.Y0
			}
			if b.Y0 > maxY {
				maxY = b.Y0
			}
		}
		f.BlockSpreadX = maxX - minX
		f.BlockSpreadY = maxY - minY
	}

	f.DetailDone = true
	return nil
}
