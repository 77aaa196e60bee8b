package classifier

import "github.com/uchi736/rag-preprocessing-optimizer/internal/features"

// DiagnosticScore estimates visual strength of a page on a 0-100 scale.
// It is additive over independent signals and is purely informational; the
// classification decision never reads it back.
func DiagnosticScore(f features.PageFeatures, cfg Config) int {
	cfg = cfg.withDefaults()
	score := 0

	if f.TableCount > 0 {
		score += 30
	}

	if f.RectCount >= cfg.MinFlowRects && f.LineCount > 5 {
		score += 60
		// connector-rich flows get a boost; roughly one arrow per three
		// line segments in typical manual flowcharts
		if f.LineCount/3 >= cfg.MinArrowsForFlowchart {
			score += cfg.FlowchartScoreBoost
		}
	}

	if f.RectCount+f.LineCount+f.CurveCount >= cfg.MinCombinedShapes {
		score += 40
	}

	if f.CompoundShapes >= cfg.MinCompoundShapes {
		score += 35
	}

	hasVisual := f.RectCount > 0 || f.LineCount > 0 || f.TableCount > 0 || f.LargeImageCount > 0
	if f.HasFigureNumber && hasVisual {
		score += 20
	}

	if f.LargeImageCount > 0 {
		score += 50
	}

	if f.BlockCount > cfg.MinBlocksForSpreadCheck &&
		(f.BlockSpreadX > cfg.BlockSpreadXThreshold || f.BlockSpreadY > cfg.BlockSpreadYThreshold) {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}
