package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelFor(t *testing.T) {
	boolPtr := func(b bool) *bool { return &b }

	tests := []struct {
		name       string
		def        bool
		jobFlag    *bool
		wantResult bool
	}{
		{"job flag absent uses default true", true, nil, true},
		{"job flag absent uses default false", false, nil, false},
		{"explicit true overrides default false", false, boolPtr(true), true},
		{"explicit false overrides default true", true, boolPtr(false), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(Config{DefaultParallel: tt.def}, Dependencies{})
			got := w.parallelFor(Job{JobID: "job-1", Parallel: tt.jobFlag})
			assert.Equal(t, tt.wantResult, got)
		})
	}
}
