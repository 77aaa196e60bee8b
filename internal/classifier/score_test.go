package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/uchi736/rag-preprocessing-optimizer/internal/features"
)

func TestDiagnosticScore_EmptyPage(t *testing.T) {
	assert.Equal(t, 0, DiagnosticScore(features.PageFeatures{}, DefaultConfig()))
}

func TestDiagnosticScore_Signals(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		f    features.PageFeatures
		want int
	}{
		{
			name: "table only",
			f:    features.PageFeatures{TableCount: 1},
			want: 30,
		},
		{
			name: "flow needs more than five lines",
			f:    features.PageFeatures{RectCount: 3, LineCount: 4},
			want: 0,
		},
		{
			name: "flow plus boost plus combined clips",
			f:    features.PageFeatures{RectCount: 3, LineCount: 6},
			want: 100, // 60 + 20 + 40 clipped
		},
		{
			name: "combined shapes",
			f:    features.PageFeatures{CurveCount: 8},
			want: 40,
		},
		{
			name: "compound shapes",
			f:    features.PageFeatures{CompoundShapes: 2},
			want: 35,
		},
		{
			name: "figure number needs a visual element",
			f:    features.PageFeatures{HasFigureNumber: true},
			want: 0,
		},
		{
			name: "figure number with visual element",
			f:    features.PageFeatures{HasFigureNumber: true, LineCount: 1},
			want: 20,
		},
		{
			name: "embedded images",
			f:    features.PageFeatures{LargeImageCount: 1},
			want: 50,
		},
		{
			name: "positional spread",
			f:    features.PageFeatures{BlockCount: 6, BlockSpreadX: 250},
			want: 10,
		},
		{
			name: "vertical spread",
			f:    features.PageFeatures{BlockCount: 6, BlockSpreadY: 350},
			want: 10,
		},
		{
			name: "spread needs enough blocks",
			f:    features.PageFeatures{BlockCount: 5, BlockSpreadX: 250},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DiagnosticScore(tt.f, cfg))
		})
	}
}

func TestDiagnosticScore_ArrowBoostThreshold(t *testing.T) {
	// raise the combined-shape bar so only the flow components score
	cfg := DefaultConfig()
	cfg.MinCombinedShapes = 50

	// 6 lines / 3 = 2 arrows: boost fires
	f := features.PageFeatures{RectCount: 3, LineCount: 6}
	assert.Equal(t, 80, DiagnosticScore(f, cfg))

	// raise the arrow requirement so the same page loses only the boost
	strict := cfg
	strict.MinArrowsForFlowchart = 3
	assert.Equal(t, 60, DiagnosticScore(f, strict))
}

func TestDiagnosticScore_ClippedAt100(t *testing.T) {
	f := features.PageFeatures{
		TableCount:      2,
		RectCount:       10,
		LineCount:       30,
		CurveCount:      5,
		CompoundShapes:  4,
		HasFigureNumber: true,
		LargeImageCount: 2,
		BlockCount:      12,
		BlockSpreadX:    400,
	}
	assert.Equal(t, 100, DiagnosticScore(f, DefaultConfig()))
}
