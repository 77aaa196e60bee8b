package analyzer

import (
	"github.com/uchi736/rag-preprocessing-optimizer/internal/classifier"
)

// methodValue is the expected retrieval quality contributed by one page
// processed with the given method.
var methodValue = map[classifier.Method]float64{
	classifier.TextOnly:          0.8,
	classifier.Structured:        0.9,
	classifier.ImageWithAnalysis: 0.95,
	classifier.Hybrid:            0.9,
}

// Summary is the document-level rollup of page outcomes.
type Summary struct {
	TotalPages   int            `json:"total_pages"`
	SkippedPages int            `json:"skipped_pages"`
	FailedPages  int            `json:"failed_pages"`
	ByType       map[string]int `json:"by_type"`
	ByMethod     map[string]int `json:"by_method"`
	TotalCost    float64        `json:"total_cost"`
	TotalValue   float64        `json:"total_value"`
	ROI          float64        `json:"roi"`
}

// Aggregate folds page results into a Summary. Skip pages and failed pages
// carry no cost and no value; ROI is exactly zero when nothing cost
// anything, never a division blowup.
func Aggregate(pages []PageResult, cfg classifier.Config) Summary {
	s := Summary{
		TotalPages: len(pages),
		ByType:     make(map[string]int),
		ByMethod:   make(map[string]int),
	}

	for _, pr := range pages {
		if pr.Error != "" {
			s.FailedPages++
			continue
		}
		s.ByType[string(pr.Classification.Type)]++
		if pr.Classification.Type == classifier.Skip {
			s.SkippedPages++
			continue
		}
		s.ByMethod[string(pr.Classification.Method)]++
		s.TotalCost += pr.Cost
		s.TotalValue += methodValue[pr.Classification.Method]
	}

	if s.TotalCost > 0 {
		s.ROI = (s.TotalValue - s.TotalCost) / s.TotalCost
	}
	return s
}
