package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/uchi736/rag-preprocessing-optimizer/internal/dispatcher"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/statuscheck"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/store"
)

// Queue is the enqueue side of the job queue.
type Queue interface {
	Enqueue(ctx context.Context, payload []byte) error
	CancelJob(ctx context.Context, jobID string) error
}

// StatusStore reads and writes job status.
type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
	Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

// HealthChecker reports the readiness of external dependencies.
type HealthChecker interface {
	Summary(ctx context.Context) statuscheck.Summary
}

// Dependencies wires the HTTP surface to the queue and stores.
type Dependencies struct {
	Queue   Queue
	Status  StatusStore
	Results *store.ResultStore
	Health  HealthChecker // optional; /health degrades to a bare ok without it
}

// Options tunes the HTTP surface.
type Options struct {
	MaxUploadMB int
	UploadDir   string
}

// Service is the HTTP API: submit documents, poll progress, fetch results.
type Service struct {
	deps Dependencies
	opts Options
}

func New(deps Dependencies, opts Options) *Service {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 200
	}
	if opts.UploadDir == "" {
		opts.UploadDir = filepath.Join(os.TempDir(), "ragprep_uploads")
	}
	return &Service{deps: deps, opts: opts}
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/process_document", s.handleProcess)
	mux.HandleFunc("/process_upload", s.handleProcessUpload)
	mux.HandleFunc("/progress/", s.handleProgress)
	mux.HandleFunc("/result/", s.handleResult)
	mux.HandleFunc("/webhook/cancel_job", s.handleCancel)
}

type healthResp struct {
	Status string              `json:"status"`
	Checks statuscheck.Summary `json:"checks"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	sum := s.deps.Health.Summary(r.Context())
	resp := healthResp{Status: "ok", Checks: sum}
	// the queue and status store ride on redis; without it the service
	// cannot accept work
	code := http.StatusOK
	if !sum.Redis.OK {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

type processReq struct {
	FilePath string `json:"file_path"`
	FileURL  string `json:"file_url"`
	Parallel *bool  `json:"parallel,omitempty"`
}

type processResp struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

func (s *Service) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req processReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	ref := req.FilePath
	if ref == "" {
		ref = req.FileURL
	}
	if ref == "" {
		http.Error(w, "missing file_path or file_url", http.StatusBadRequest)
		return
	}

	s.enqueue(w, r, ref, req.Parallel)
}

// handleProcessUpload accepts a multipart upload and enqueues it like a
// local-path job.
func (s *Service) handleProcessUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(int64(s.opts.MaxUploadMB) << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		http.Error(w, "cannot create upload dir", http.StatusInternalServerError)
		return
	}
	local := filepath.Join(s.opts.UploadDir, fmt.Sprintf("%s_%s", uuid.NewString(), filepath.Base(hdr.Filename)))
	out, err := os.Create(local)
	if err != nil {
		http.Error(w, "cannot save upload", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}
	out.Close()

	var parallel *bool
	if v := r.FormValue("parallel"); v != "" {
		b := v == "1" || strings.EqualFold(v, "true")
		parallel = &b
	}
	s.enqueue(w, r, local, parallel)
}

func (s *Service) enqueue(w http.ResponseWriter, r *http.Request, ref string, parallel *bool) {
	jobID := uuid.NewString()
	log.Info().Str("job_id", jobID).Str("ref", ref).Msg("document job created")

	start := time.Now()
	_ = s.deps.Status.Set(r.Context(), jobID, store.Status{
		Status: "queued", Progress: 0, Message: "queued", Start: &start,
		Metadata: map[string]interface{}{"ref": ref},
	})

	payload, _ := json.Marshal(dispatcher.Job{JobID: jobID, Ref: ref, Parallel: parallel})
	if err := s.deps.Queue.Enqueue(r.Context(), payload); err != nil {
		log.Error().Err(err).Msg("enqueue failed")
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(processResp{Status: "ok", JobID: jobID, Message: "document job created"})
}

func (s *Service) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/progress/")
	if jobID == "" {
		http.Error(w, "missing job_id", http.StatusBadRequest)
		return
	}
	st, ok, err := s.deps.Status.Get(r.Context(), jobID)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// handleResult serves /result/{job_id} and /result/{job_id}/page/{n}.
func (s *Service) handleResult(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/result/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "missing job_id", http.StatusBadRequest)
		return
	}
	jobID := parts[0]

	if len(parts) == 3 && parts[1] == "page" {
		page, err := strconv.Atoi(parts[2])
		if err != nil || page < 1 {
			http.Error(w, "bad page number", http.StatusBadRequest)
			return
		}
		pr, ok, err := s.deps.Results.GetPage(r.Context(), jobID, page)
		if err != nil {
			http.Error(w, "error", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pr)
		return
	}

	res, ok, err := s.deps.Results.GetResult(r.Context(), jobID)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok {
		// distinguish "still running" from "unknown job"
		if st, found, _ := s.deps.Status.Get(r.Context(), jobID); found && st.Status != "done" {
			http.Error(w, "not ready", http.StatusAccepted)
			return
		}
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

type cancelReq struct {
	JobID string `json:"job_id"`
}

func (s *Service) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req cancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.JobID == "" {
		http.Error(w, "missing job_id", http.StatusBadRequest)
		return
	}
	if err := s.deps.Queue.CancelJob(r.Context(), req.JobID); err != nil {
		http.Error(w, "cancel failed", http.StatusInternalServerError)
		return
	}
	log.Warn().Str("job_id", req.JobID).Msg("job cancelled via webhook")
	w.WriteHeader(http.StatusNoContent)
}
