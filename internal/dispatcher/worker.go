package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/uchi736/rag-preprocessing-optimizer/internal/analyzer"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/filetype"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/metrics"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/pdfprobe"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/storage"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/store"
)

// Job is one queued document-analysis request.
type Job struct {
	JobID    string `json:"job_id"`
	Ref      string `json:"ref"` // local path, http(s) URL or s3:// ref
	Parallel *bool  `json:"parallel,omitempty"`
	Attempt  int    `json:"attempt"`
}

// Queue is the subset of queue operations the worker needs.
type Queue interface {
	Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, []byte, error)
	Ack(ctx context.Context, msgID string) error
	IsCancelled(ctx context.Context, jobID string) (bool, error)
	EnqueueDelayed(ctx context.Context, payload []byte, executeAt time.Time) error
	AddDLQ(ctx context.Context, payload []byte, reason string) error
	Depths(ctx context.Context) (int64, int64, int64, error)
}

// Config tunes worker behavior.
type Config struct {
	Concurrency    int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	// DefaultParallel applies when a job payload carries no parallel flag.
	DefaultParallel bool
}

// Dependencies carries the collaborators a worker drives per job.
type Dependencies struct {
	Queue    Queue
	Status   *store.RedisStatus
	Results  *store.ResultStore
	Fetcher  *storage.Fetcher
	Detector *filetype.Detector
	// NewAnalyzer builds an analyzer for one job; parallel comes from the
	// job payload, falling back to Config.DefaultParallel.
	NewAnalyzer func(parallel bool) *analyzer.Analyzer
}

// Worker consumes document jobs from the queue and runs the analysis
// pipeline for each.
type Worker struct {
	cfg  Config
	deps Dependencies
	stop chan struct{}
	wg   sync.WaitGroup
}

func New(cfg Config, deps Dependencies) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 5 * time.Second
	}
	return &Worker{cfg: cfg, deps: deps, stop: make(chan struct{})}
}

func (w *Worker) Start() {
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.loop(i)
	}
}

// Stop signals the loops and waits for in-flight jobs to finish.
func (w *Worker) Stop(ctx context.Context) error {
	close(w.stop)
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(id int) {
	defer w.wg.Done()
	consumer := fmt.Sprintf("worker-%d-%d", os.Getpid(), id)
	log.Info().Int("worker", id).Str("consumer", consumer).Msg("dispatcher worker started")

	for {
		select {
		case <-w.stop:
			log.Info().Int("worker", id).Msg("dispatcher worker stopped")
			return
		default:
		}

		msgID, data, err := w.deps.Queue.Dequeue(context.Background(), consumer, 2*time.Second)
		if err != nil {
			log.Error().Err(err).Msg("queue dequeue error")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if data == nil {
			w.reportDepths()
			continue
		}

		var job Job
		if err := json.Unmarshal(data, &job); err != nil || job.JobID == "" {
			log.Error().Err(err).Str("msg_id", msgID).Msg("malformed job payload - sending to DLQ")
			_ = w.deps.Queue.AddDLQ(context.Background(), data, "malformed payload")
			_ = w.deps.Queue.Ack(context.Background(), msgID)
			continue
		}

		if cancelled, _ := w.deps.Queue.IsCancelled(context.Background(), job.JobID); cancelled {
			log.Warn().Int("worker", id).Str("job_id", job.JobID).Msg("job cancelled before processing; skipping")
			w.setStatus(job.JobID, "cancelled", 0, "cancelled before processing")
			_ = w.deps.Queue.Ack(context.Background(), msgID)
			continue
		}

		w.runJob(job, data)
		_ = w.deps.Queue.Ack(context.Background(), msgID)
	}
}

func (w *Worker) runJob(job Job, raw []byte) {
	ctx := context.Background()
	w.setStatus(job.JobID, "processing", 5, "fetching document")

	local, cleanup, err := w.deps.Fetcher.Fetch(ctx, job.Ref)
	if err != nil {
		w.failOrRetry(job, raw, fmt.Errorf("fetch: %w", err))
		return
	}
	if cleanup {
		defer os.Remove(local)
	}

	info, err := w.deps.Detector.Detect(local)
	if err != nil {
		w.failOrRetry(job, raw, fmt.Errorf("detect type: %w", err))
		return
	}
	if !info.IsPDF {
		// not retryable, the bytes will not change
		w.setStatus(job.JobID, "failed", 0, info.Description)
		_ = w.deps.Queue.AddDLQ(ctx, raw, info.Description)
		return
	}

	parallel := w.parallelFor(job)

	// scanned documents have no text layer; every page will go the image
	// route, worth knowing up front
	if hasText, diag, perr := pdfprobe.HasExtractableText(nil, local, 0); perr == nil && !hasText {
		log.Warn().
			Str("job_id", job.JobID).
			Int("sampled_chars", diag.TotalCharsInSample).
			Msg("document appears to be scanned (no text layer)")
	}

	w.setStatus(job.JobID, "processing", 20, "analyzing pages")

	res, err := w.deps.NewAnalyzer(parallel).Run(ctx, job.JobID, local)
	if err != nil {
		w.failOrRetry(job, raw, err)
		return
	}

	w.setStatus(job.JobID, "processing", 90, "persisting results")
	if err := w.deps.Results.SaveResult(ctx, job.JobID, res); err != nil {
		w.failOrRetry(job, raw, fmt.Errorf("persist: %w", err))
		return
	}

	w.setStatus(job.JobID, "done", 100,
		fmt.Sprintf("%d pages, %d failed, roi %.2f", res.PageCount, res.Summary.FailedPages, res.Summary.ROI))
}

// parallelFor resolves the processing mode for a job: an explicit flag in
// the payload wins, otherwise the configured default applies.
func (w *Worker) parallelFor(job Job) bool {
	if job.Parallel != nil {
		return *job.Parallel
	}
	return w.cfg.DefaultParallel
}

// failOrRetry reschedules the job with linear backoff until MaxAttempts,
// then parks it in the DLQ.
func (w *Worker) failOrRetry(job Job, raw []byte, cause error) {
	ctx := context.Background()
	job.Attempt++
	log.Error().
		Err(cause).
		Str("job_id", job.JobID).
		Int("attempt", job.Attempt).
		Msg("document job failed")

	if job.Attempt >= w.cfg.MaxAttempts {
		w.setStatus(job.JobID, "failed", 0, cause.Error())
		_ = w.deps.Queue.AddDLQ(ctx, raw, cause.Error())
		return
	}

	delay := time.Duration(job.Attempt) * w.cfg.RetryBaseDelay
	w.setStatus(job.JobID, "retrying", 0, fmt.Sprintf("attempt %d: %v", job.Attempt, cause))
	payload, _ := json.Marshal(job)
	if err := w.deps.Queue.EnqueueDelayed(ctx, payload, time.Now().Add(delay)); err != nil {
		log.Error().Err(err).Str("job_id", job.JobID).Msg("failed to reschedule job")
		_ = w.deps.Queue.AddDLQ(ctx, raw, "reschedule failed: "+cause.Error())
	}
}

func (w *Worker) setStatus(jobID, status string, progress int, msg string) {
	if w.deps.Status == nil {
		return
	}
	st := store.Status{Status: status, Progress: progress, Message: msg}
	now := time.Now()
	switch status {
	case "processing":
		if progress <= 5 {
			st.Start = &now
		}
	case "done", "failed", "cancelled":
		st.End = &now
	}
	if err := w.deps.Status.Set(context.Background(), jobID, st); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("status update failed")
	}
}

func (w *Worker) reportDepths() {
	stream, delayed, dlq, err := w.deps.Queue.Depths(context.Background())
	if err != nil {
		return
	}
	metrics.SetQueueDepth("stream", stream)
	metrics.SetQueueDepth("delayed", delayed)
	metrics.SetQueueDepth("dlq", dlq)
}
