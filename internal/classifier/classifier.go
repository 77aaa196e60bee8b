package classifier

import (
	"github.com/uchi736/rag-preprocessing-optimizer/internal/features"
)

// PageType is the structural category assigned to a page.
type PageType string

const (
	PureText     PageType = "pure_text"
	SimpleTable  PageType = "simple_table"
	ComplexTable PageType = "complex_table"
	Flowchart    PageType = "flowchart"
	Diagram      PageType = "diagram"
	Mixed        PageType = "mixed"
	Skip         PageType = "skip"
)

// Method is the downstream handling strategy assigned to a page.
type Method string

const (
	TextOnly          Method = "text_only"
	Structured        Method = "structured"
	ImageWithAnalysis Method = "image_analysis"
	Hybrid            Method = "hybrid"
)

// Classification is the resolved decision for one page. Confidence is the
// certainty of the type/method pair; Score is the independent 0-100
// visual-strength diagnostic.
type Classification struct {
	Type       PageType `json:"page_type"`
	Method     Method   `json:"processing_method"`
	Confidence float64  `json:"confidence"`
	Score      int      `json:"score"`
}

// Config holds the decision thresholds and cost model. One immutable value
// is passed in explicitly; there are no ambient settings.
type Config struct {
	// stage 1
	QuickTextDensityThreshold float64

	// stage 3
	ComplexTableCellThreshold int
	MinFlowRects              int

	// diagnostic score
	MinCombinedShapes       int
	MinCompoundShapes       int
	MinArrowsForFlowchart   int
	FlowchartScoreBoost     int
	BlockSpreadXThreshold   float64
	BlockSpreadYThreshold   float64
	MinBlocksForSpreadCheck int

	// cost model
	TextCost                float64
	StructuredCost          float64
	ImageCost               float64
	ImageAnalysisMultiplier float64
	HybridCost              float64
}

// DefaultConfig returns the tuned defaults for Japanese technical manuals.
func DefaultConfig() Config {
	return Config{
		QuickTextDensityThreshold: 0.8,
		ComplexTableCellThreshold: 20,
		MinFlowRects:              3,
		MinCombinedShapes:         8,
		MinCompoundShapes:         2,
		MinArrowsForFlowchart:     2,
		FlowchartScoreBoost:       20,
		BlockSpreadXThreshold:     200,
		BlockSpreadYThreshold:     300,
		MinBlocksForSpreadCheck:   5,
		TextCost:                  0.1,
		StructuredCost:            0.3,
		ImageCost:                 1.0,
		ImageAnalysisMultiplier:   1.5,
		HybridCost:                0.7,
	}
}

// withDefaults fills zero-valued fields so a partially built Config still
// behaves sanely.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.QuickTextDensityThreshold <= 0 {
		c.QuickTextDensityThreshold = d.QuickTextDensityThreshold
	}
	if c.ComplexTableCellThreshold <= 0 {
		c.ComplexTableCellThreshold = d.ComplexTableCellThreshold
	}
	if c.MinFlowRects <= 0 {
		c.MinFlowRects = d.MinFlowRects
	}
	if c.MinCombinedShapes <= 0 {
		c.MinCombinedShapes = d.MinCombinedShapes
	}
	if c.MinCompoundShapes <= 0 {
		c.MinCompoundShapes = d.MinCompoundShapes
	}
	if c.MinArrowsForFlowchart <= 0 {
		c.MinArrowsForFlowchart = d.MinArrowsForFlowchart
	}
	if c.FlowchartScoreBoost <= 0 {
		c.FlowchartScoreBoost = d.FlowchartScoreBoost
	}
	if c.BlockSpreadXThreshold <= 0 {
		c.BlockSpreadXThreshold = d.BlockSpreadXThreshold
	}
	if c.BlockSpreadYThreshold <= 0 {
		c.BlockSpreadYThreshold = d.BlockSpreadYThreshold
	}
	if c.MinBlocksForSpreadCheck <= 0 {
		c.MinBlocksForSpreadCheck = d.MinBlocksForSpreadCheck
	}
	if c.TextCost <= 0 {
		c.TextCost = d.TextCost
	}
	if c.StructuredCost <= 0 {
		c.StructuredCost = d.StructuredCost
	}
	if c.ImageCost <= 0 {
		c.ImageCost = d.ImageCost
	}
	if c.ImageAnalysisMultiplier <= 0 {
		c.ImageAnalysisMultiplier = d.ImageAnalysisMultiplier
	}
	if c.HybridCost <= 0 {
		c.HybridCost = d.HybridCost
	}
	return c
}

// ScreenQuick is the stage-1 quick screen. It terminates the pipeline for
// skip pages and for obviously pure-text pages; when it resolves, the
// detail extraction phase must not run - that early exit is the main
// performance optimization of the whole pipeline.
func ScreenQuick(f features.PageFeatures, cfg Config) (Classification, bool) {
	cfg = cfg.withDefaults()

	if f.SkipReason != "" {
		return Classification{Type: Skip, Method: TextOnly, Confidence: 1.0}, true
	}

	isPureText := f.TextDensity > cfg.QuickTextDensityThreshold &&
		f.LargeImageCount == 0 &&
		!f.HasForceKeyword &&
		!f.ActualFigure

	if isPureText {
		return Classification{
			Type:       PureText,
			Method:     TextOnly,
			Confidence: 0.9,
			Score:      DiagnosticScore(f, cfg),
		}, true
	}
	return Classification{}, false
}

// Decide runs stages 2 and 3 over a fully extracted feature vector. Rules
// are evaluated strictly in priority order: explicit visual evidence, then
// density, table, flow-structure, generic image, structural fallback.
func Decide(f features.PageFeatures, cfg Config) Classification {
	cfg = cfg.withDefaults()

	// Stage 2: false-positive guard. A page that merely mentions a figure
	// but carries no visual element is prose, whatever the tokens said.
	hasVisualElement := f.RectCount > 0 || f.LineCount > 0 || f.TableCount > 0 || f.LargeImageCount > 0
	if !hasVisualElement && f.HasFigureNumber {
		return finish(PureText, TextOnly, 0.9, f, cfg)
	}

	// Stage 3, rule 1: confirmed figure caption plus visual evidence.
	if f.ActualFigure && hasVisualElement {
		switch {
		case f.TableCount > 0:
			return finish(ComplexTable, ImageWithAnalysis, 0.85, f, cfg)
		case f.RectCount > 0 || f.LargeImageCount > 0:
			return finish(Flowchart, ImageWithAnalysis, 0.8, f, cfg)
		default:
			return finish(Diagram, ImageWithAnalysis, 0.75, f, cfg)
		}
	}

	// rule 2: dense text with at most stray vector noise
	if f.TextDensity > 0.7 && f.TableCount == 0 && f.RectCount < 2 {
		return finish(PureText, TextOnly, 0.9, f, cfg)
	}

	// rule 3: tables, split on structural complexity
	if f.TableCount > 0 {
		if f.TotalCells > cfg.ComplexTableCellThreshold {
			return finish(ComplexTable, ImageWithAnalysis, 0.85, f, cfg)
		}
		return finish(SimpleTable, Structured, 0.8, f, cfg)
	}

	// rule 4: flow structure
	if f.RectCount >= cfg.MinFlowRects && (f.HasStepPattern || f.LineCount > 5) {
		return finish(Flowchart, ImageWithAnalysis, 0.75, f, cfg)
	}

	// rule 5: embedded images without other structure
	if f.LargeImageCount > 0 {
		return finish(Diagram, ImageWithAnalysis, 0.8, f, cfg)
	}

	// rule 6: leftover vector structure
	if f.RectCount > 0 || f.LineCount > 10 {
		return finish(Mixed, Hybrid, 0.6, f, cfg)
	}

	// rule 7: default
	return finish(PureText, TextOnly, 0.5, f, cfg)
}

// Classify is the full pure decision function over a complete feature
// vector. Orchestration code uses ScreenQuick/Decide separately to avoid
// detail extraction on early exits; the result is identical.
func Classify(f features.PageFeatures, cfg Config) Classification {
	if cls, done := ScreenQuick(f, cfg); done {
		return cls
	}
	return Decide(f, cfg)
}

func finish(t PageType, m Method, conf float64, f features.PageFeatures, cfg Config) Classification {
	return Classification{Type: t, Method: m, Confidence: conf, Score: DiagnosticScore(f, cfg)}
}

// EstimateCost returns the unit processing cost for a method. Image pages
// cost more when the multimodal analysis service actually runs. Skip pages
// cost nothing.
func (c Config) EstimateCost(cls Classification, analyzed bool) float64 {
	c = c.withDefaults()
	if cls.Type == Skip {
		return 0
	}
	switch cls.Method {
	case TextOnly:
		return c.TextCost
	case Structured:
		return c.StructuredCost
	case ImageWithAnalysis:
		if analyzed {
			return c.ImageCost * c.ImageAnalysisMultiplier
		}
		return c.ImageCost
	case Hybrid:
		return c.HybridCost
	default:
		return c.ImageCost
	}
}
