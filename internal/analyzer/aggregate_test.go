package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/uchi736/rag-preprocessing-optimizer/internal/classifier"
)

func page(t classifier.PageType, m classifier.Method, cost float64) PageResult {
	return PageResult{
		Classification: classifier.Classification{Type: t, Method: m},
		Cost:           cost,
	}
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil, classifier.DefaultConfig())
	assert.Zero(t, s.TotalPages)
	assert.Zero(t, s.TotalCost)
	assert.Zero(t, s.TotalValue)
	assert.Zero(t, s.ROI)
}

func TestAggregate_MixedDocument(t *testing.T) {
	pages := []PageResult{
		page(classifier.PureText, classifier.TextOnly, 0.1),
		page(classifier.PureText, classifier.TextOnly, 0.1),
		page(classifier.SimpleTable, classifier.Structured, 0.3),
		page(classifier.Flowchart, classifier.ImageWithAnalysis, 1.0),
		page(classifier.Skip, classifier.TextOnly, 0),
		{Error: "page 6: extraction failed"},
	}

	s := Aggregate(pages, classifier.DefaultConfig())

	assert.Equal(t, 6, s.TotalPages)
	assert.Equal(t, 1, s.SkippedPages)
	assert.Equal(t, 1, s.FailedPages)

	assert.Equal(t, 2, s.ByType["pure_text"])
	assert.Equal(t, 1, s.ByType["simple_table"])
	assert.Equal(t, 1, s.ByType["flowchart"])
	assert.Equal(t, 1, s.ByType["skip"])

	assert.Equal(t, 2, s.ByMethod["text_only"])
	assert.Equal(t, 1, s.ByMethod["structured"])
	assert.Equal(t, 1, s.ByMethod["image_analysis"])

	assert.InDelta(t, 1.5, s.TotalCost, 1e-9)
	assert.InDelta(t, 0.8+0.8+0.9+0.95, s.TotalValue, 1e-9)
	assert.InDelta(t, (s.TotalValue-s.TotalCost)/s.TotalCost, s.ROI, 1e-9)
}

func TestAggregate_SkipPagesCarryNoCostOrValue(t *testing.T) {
	pages := []PageResult{
		page(classifier.Skip, classifier.TextOnly, 0),
		page(classifier.Skip, classifier.TextOnly, 0),
	}

	s := Aggregate(pages, classifier.DefaultConfig())

	assert.Equal(t, 2, s.SkippedPages)
	assert.Empty(t, s.ByMethod)
	assert.Zero(t, s.TotalCost)
	assert.Zero(t, s.TotalValue)
	assert.Zero(t, s.ROI)
}

func TestAggregate_ZeroCostROIIsExactlyZero(t *testing.T) {
	// all pages failed: no division, no NaN
	pages := []PageResult{
		{Error: "boom"},
		{Error: "boom"},
	}

	s := Aggregate(pages, classifier.DefaultConfig())
	assert.Equal(t, 2, s.FailedPages)
	assert.Equal(t, 0.0, s.ROI)
}

func TestAggregate_FailedPagesExcludedFromTypeCounts(t *testing.T) {
	pages := []PageResult{
		{
			Classification: classifier.Classification{Type: classifier.PureText, Method: classifier.TextOnly},
			Cost:           0.1,
			Error:          "fell over during materialization",
		},
		page(classifier.PureText, classifier.TextOnly, 0.1),
	}

	s := Aggregate(pages, classifier.DefaultConfig())

	assert.Equal(t, 1, s.FailedPages)
	assert.Equal(t, 1, s.ByType["pure_text"])
	assert.InDelta(t, 0.1, s.TotalCost, 1e-9)
}
