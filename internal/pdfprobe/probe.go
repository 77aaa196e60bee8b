package pdfprobe

import (
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"time"

	"github.com/uchi736/rag-preprocessing-optimizer/internal/mupdf"
)

// PageProbe captures the result of probing a single page.
type PageProbe struct {
	Page      int    `json:"page"`
	CharCount int    `json:"char_count"`
	Err       string `json:"err,omitempty"`
}

// Diagnostics provides detailed information about the extractability check.
type Diagnostics struct {
	FilePath           string      `json:"file_path"`
	TotalPages         int         `json:"total_pages"`
	SampledPages       []int       `json:"sampled_pages"`
	TotalCharsInSample int         `json:"total_chars_in_sample"`
	Threshold          int         `json:"threshold"`
	Probes             []PageProbe `json:"probes"`
	HasExtractableText bool        `json:"has_extractable_text"`
	DurationMs         int64       `json:"duration_ms"`
}

// DefaultThreshold is used when a non-positive threshold is passed in.
const DefaultThreshold = 300

var whitespaceRegex = regexp.MustCompile(`\s+`)

func stripWhitespace(s string) string {
	return whitespaceRegex.ReplaceAllString(s, "")
}

// HasExtractableText samples a few pages and reports whether the document
// carries a usable text layer. A scanned document fails the probe, which
// tells the pipeline every page will need image handling.
func HasExtractableText(opener mupdf.Opener, pdfPath string, threshold int) (bool, *Diagnostics, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if opener == nil {
		opener = mupdf.OpenSource
	}

	start := time.Now()
	src, err := opener(pdfPath)
	if err != nil {
		return false, nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer src.Close()

	total := src.NumPages()
	diag := &Diagnostics{
		FilePath:     pdfPath,
		TotalPages:   total,
		SampledPages: []int{},
		Threshold:    threshold,
	}
	if total <= 0 {
		diag.DurationMs = time.Since(start).Milliseconds()
		return false, diag, nil
	}

	diag.SampledPages = samplePages(total)

	for _, page := range diag.SampledPages {
		probe := PageProbe{Page: page}
		text, terr := src.PageText(page)
		if terr != nil {
			probe.Err = terr.Error()
			diag.Probes = append(diag.Probes, probe)
			continue
		}
		// Unicode-aware: count runes after removing whitespace
		probe.CharCount = len([]rune(stripWhitespace(text)))
		diag.TotalCharsInSample += probe.CharCount
		diag.Probes = append(diag.Probes, probe)

		if diag.TotalCharsInSample >= threshold {
			break
		}
	}

	diag.HasExtractableText = diag.TotalCharsInSample >= threshold
	diag.DurationMs = time.Since(start).Milliseconds()
	return diag.HasExtractableText, diag, nil
}

// samplePages picks up to 5 pages (1-based): all of them for short
// documents, otherwise first, middle, last plus random fill.
func samplePages(total int) []int {
	if total <= 5 {
		out := make([]int, total)
		for i := range out {
			out[i] = i + 1
		}
		return out
	}

	picked := map[int]struct{}{1: {}, total/2 + 1: {}, total: {}}
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for len(picked) < 5 {
		picked[rnd.Intn(total)+1] = struct{}{}
	}

	out := make([]int, 0, len(picked))
	for p := range picked {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
