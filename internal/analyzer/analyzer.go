package analyzer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/uchi736/rag-preprocessing-optimizer/internal/ai"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/classifier"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/features"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/metrics"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/mupdf"
)

const maxWorkers = 8

// OrchestrationError is the analyzer's boundary error: a whole-document
// failure with the document it belongs to.
type OrchestrationError struct {
	DocID string
	Err   error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("document %s: %v", e.DocID, e.Err)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }

// Options configures one Analyzer. Zero values get sensible defaults in New.
type Options struct {
	Parallel      bool
	Workers       int               // parallel pool size, capped at maxWorkers
	OutputDir     string            // destination for rendered page images
	DPIMultiplier float64           // render DPI = 72 * multiplier
	JPEGQuality   int
	Features      features.Config
	Classifier    classifier.Config
	Opener        mupdf.Opener      // defaults to mupdf.OpenSource
	Describer     *ai.Describer     // nil disables multimodal analysis
}

// PageResult is one slot of a DocumentResult. Either Classification is set
// or Error is non-empty, never both meaningfully.
type PageResult struct {
	Page           int                       `json:"page"`
	Features       features.PageFeatures     `json:"features"`
	Classification classifier.Classification `json:"classification"`
	Text           string                    `json:"text,omitempty"`
	ImagePath      string                    `json:"image_path,omitempty"`
	Description    string                    `json:"description,omitempty"`
	DescribedBy    string                    `json:"described_by,omitempty"`
	Cost           float64                   `json:"cost"`
	Error          string                    `json:"error,omitempty"`

	cause error // unwrapped failure, drives the resource-retry decision
}

// DocumentResult is the index-ordered outcome of one document run.
type DocumentResult struct {
	DocID     string        `json:"doc_id"`
	FilePath  string        `json:"file_path"`
	PageCount int           `json:"page_count"`
	Mode      string        `json:"mode"`
	Pages     []PageResult  `json:"pages"`
	Summary   Summary       `json:"summary"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// Analyzer runs the full per-page pipeline over a document: quick feature
// extraction, staged classification, detail extraction when needed, and
// content materialization per assigned method.
type Analyzer struct {
	opts Options
	ext  *features.Extractor
}

func New(opts Options) *Analyzer {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Workers > maxWorkers {
		opts.Workers = maxWorkers
	}
	if opts.DPIMultiplier <= 0 {
		opts.DPIMultiplier = 2.0
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 85
	}
	if opts.Opener == nil {
		opts.Opener = mupdf.OpenSource
	}
	if opts.Features.SkipPages == nil {
		opts.Features = features.DefaultConfig()
	}
	return &Analyzer{opts: opts, ext: features.New(opts.Features)}
}

// Run processes every page of the document at path. Page-level failures are
// recorded in their slot and never abort the run. A document-level abort
// (cancellation, reopen failure) returns the partial result alongside the
// error; only an unopenable document returns a nil result.
func (a *Analyzer) Run(ctx context.Context, docID, path string) (*DocumentResult, error) {
	start := time.Now()
	mode := "sequential"
	if a.opts.Parallel {
		mode = "parallel"
	}

	src, err := a.opts.Opener(path)
	if err != nil {
		metrics.IncDocument("failed", mode)
		return nil, &OrchestrationError{DocID: docID, Err: err}
	}
	numPages := src.NumPages()

	log.Info().
		Str("doc_id", docID).
		Str("file", path).
		Int("pages", numPages).
		Str("mode", mode).
		Msg("starting document analysis")

	res := &DocumentResult{
		DocID:     docID,
		FilePath:  path,
		PageCount: numPages,
		Mode:      mode,
		Pages:     make([]PageResult, numPages),
	}

	if a.opts.Parallel && numPages > 1 {
		src.Close()
		err = a.runParallel(ctx, path, numPages, res)
	} else {
		err = a.runSequential(ctx, src, path, numPages, res)
	}
	if err != nil {
		// an aborted run still returns whatever completed: unreached
		// slots become error entries and the summary covers the rest
		for i := range res.Pages {
			if res.Pages[i].Page == 0 {
				res.Pages[i] = PageResult{
					Page:  i + 1,
					Error: "aborted before processing",
				}
			}
		}
		res.Summary = Aggregate(res.Pages, a.opts.Classifier)
		res.Elapsed = time.Since(start)
		metrics.IncDocument("cancelled", mode)
		return res, err
	}

	res.Summary = Aggregate(res.Pages, a.opts.Classifier)
	res.Elapsed = time.Since(start)

	metrics.IncDocument("success", mode)
	metrics.ObserveDocument(mode, res.Elapsed)
	metrics.AddEstimatedCost(res.Summary.TotalCost)

	log.Info().
		Str("doc_id", docID).
		Int("pages", numPages).
		Int("failed", res.Summary.FailedPages).
		Float64("cost", res.Summary.TotalCost).
		Float64("roi", res.Summary.ROI).
		Dur("elapsed", res.Elapsed).
		Msg("document analysis complete")

	return res, nil
}

func (a *Analyzer) runSequential(ctx context.Context, src mupdf.PageSource, path string, numPages int, res *DocumentResult) error {
	defer func() {
		if src != nil {
			src.Close()
		}
	}()

	for page := 1; page <= numPages; page++ {
		if err := ctx.Err(); err != nil {
			return &OrchestrationError{DocID: res.DocID, Err: err}
		}
		pr := a.processPage(ctx, src, page)
		if pr.Error != "" && errors.Is(pr.cause, mupdf.ErrResource) {
			// one reopen after forced release, then the page stays failed
			src.Close()
			src = nil
			fresh, err := a.opts.Opener(path)
			if err != nil {
				return &OrchestrationError{DocID: res.DocID, Err: err}
			}
			src = fresh
			pr = a.processPage(ctx, src, page)
		}
		res.Pages[page-1] = pr
	}
	return nil
}

func (a *Analyzer) runParallel(ctx context.Context, path string, numPages int, res *DocumentResult) error {
	workers := a.opts.Workers
	if workers > numPages {
		workers = numPages
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			src, err := a.opts.Opener(path)
			if err != nil {
				// every page this worker drains becomes an error entry
				for page := range jobs {
					res.Pages[page-1] = PageResult{
						Page:  page,
						Error: fmt.Sprintf("worker %d open failed: %v", workerID, err),
					}
					metrics.IncProcessed("failed")
				}
				return
			}
			defer func() {
				if src != nil {
					src.Close()
				}
			}()

			for page := range jobs {
				if src == nil {
					res.Pages[page-1] = PageResult{
						Page:  page,
						Error: fmt.Sprintf("worker %d lost its document handle", workerID),
					}
					metrics.IncProcessed("failed")
					continue
				}
				pr := a.processPage(ctx, src, page)
				if pr.Error != "" && errors.Is(pr.cause, mupdf.ErrResource) {
					// one reopen after forced release, then the page stays failed
					src.Close()
					src = nil
					if fresh, oerr := a.opts.Opener(path); oerr == nil {
						src = fresh
						pr = a.processPage(ctx, src, page)
					}
				}
				// each slot is written exactly once, by page index
				res.Pages[page-1] = pr
			}
		}(w)
	}

	cancelled := false
submit:
	for page := 1; page <= numPages; page++ {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		select {
		case <-ctx.Done():
			cancelled = true
			break submit
		case jobs <- page:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		return &OrchestrationError{DocID: res.DocID, Err: ctx.Err()}
	}
	return nil
}

// processPage runs the full pipeline for one page. Failures are folded into
// the result entry; the unwrapped cause is kept for the retry decision.
func (a *Analyzer) processPage(ctx context.Context, src mupdf.PageSource, page int) PageResult {
	pr := PageResult{Page: page}

	extractStart := time.Now()
	f, err := a.ext.Quick(src, page)
	if err != nil {
		return pr.failed(err)
	}

	cls, done := classifier.ScreenQuick(f, a.opts.Classifier)
	if !done {
		if err := a.ext.Detail(src, page, &f); err != nil {
			return pr.failed(err)
		}
		cls = classifier.Decide(f, a.opts.Classifier)
	}
	metrics.ObserveStage("classify", time.Since(extractStart))

	pr.Features = f
	pr.Classification = cls
	metrics.IncClassified(string(cls.Type), string(cls.Method))

	if cls.Type == classifier.Skip {
		log.Debug().Int("page", page).Str("reason", f.SkipReason).Msg("page skipped")
		metrics.IncProcessed("skipped")
		return pr
	}

	if err := a.materialize(ctx, src, &pr); err != nil {
		return pr.failed(err)
	}

	metrics.IncProcessed("success")
	return pr
}

func (pr PageResult) failed(err error) PageResult {
	log.Warn().Int("page", pr.Page).Err(err).Msg("page processing failed")
	metrics.IncProcessed("failed")
	pr.Error = err.Error()
	pr.cause = err
	return pr
}
