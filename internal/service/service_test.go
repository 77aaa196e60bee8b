package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uchi736/rag-preprocessing-optimizer/internal/dispatcher"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/statuscheck"
	"github.com/uchi736/rag-preprocessing-optimizer/internal/store"
)

type fakeQueue struct {
	payloads   [][]byte
	cancelled  []string
	enqueueErr error
}

func (q *fakeQueue) Enqueue(ctx context.Context, payload []byte) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.payloads = append(q.payloads, payload)
	return nil
}

func (q *fakeQueue) CancelJob(ctx context.Context, jobID string) error {
	q.cancelled = append(q.cancelled, jobID)
	return nil
}

type fakeStatus struct {
	statuses map[string]store.Status
}

func newFakeStatus() *fakeStatus {
	return &fakeStatus{statuses: make(map[string]store.Status)}
}

func (s *fakeStatus) Set(ctx context.Context, jobID string, st store.Status) error {
	s.statuses[jobID] = st
	return nil
}

func (s *fakeStatus) Get(ctx context.Context, jobID string) (store.Status, bool, error) {
	st, ok := s.statuses[jobID]
	return st, ok, nil
}

func newTestService(t *testing.T) (*Service, *fakeQueue, *fakeStatus, *http.ServeMux) {
	t.Helper()
	q := &fakeQueue{}
	st := newFakeStatus()
	svc := New(Dependencies{Queue: q, Status: st}, Options{UploadDir: t.TempDir()})
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	return svc, q, st, mux
}

func TestHealth(t *testing.T) {
	_, _, _, mux := newTestService(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

type fakeChecker struct {
	summary statuscheck.Summary
}

func (c *fakeChecker) Summary(ctx context.Context) statuscheck.Summary { return c.summary }

func TestHealth_WithChecker(t *testing.T) {
	newMux := func(sum statuscheck.Summary) *http.ServeMux {
		svc := New(Dependencies{
			Queue:  &fakeQueue{},
			Status: newFakeStatus(),
			Health: &fakeChecker{summary: sum},
		}, Options{UploadDir: t.TempDir()})
		mux := http.NewServeMux()
		svc.RegisterRoutes(mux)
		return mux
	}

	t.Run("all dependencies up", func(t *testing.T) {
		mux := newMux(statuscheck.Summary{
			Redis:     statuscheck.Status{OK: true, Message: "Connected"},
			S3:        statuscheck.Status{OK: true, Message: "Connected"},
			OpenAI:    statuscheck.Status{OK: true, Message: "Available"},
			Anthropic: statuscheck.Status{OK: false, Message: "API key missing"},
		})
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp healthResp
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.True(t, resp.Checks.Redis.OK)
		assert.Equal(t, "API key missing", resp.Checks.Anthropic.Message)
	})

	t.Run("redis down degrades the service", func(t *testing.T) {
		mux := newMux(statuscheck.Summary{
			Redis: statuscheck.Status{OK: false, Message: "connection refused"},
		})
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var resp healthResp
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "degraded", resp.Status)
	})
}

func TestProcessDocument(t *testing.T) {
	_, q, st, mux := newTestService(t)

	body := `{"file_path": "/data/manual.pdf", "parallel": false}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process_document", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp processResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.JobID)

	// the job landed on the queue with the submitted reference
	require.Len(t, q.payloads, 1)
	var job dispatcher.Job
	require.NoError(t, json.Unmarshal(q.payloads[0], &job))
	assert.Equal(t, resp.JobID, job.JobID)
	assert.Equal(t, "/data/manual.pdf", job.Ref)
	require.NotNil(t, job.Parallel)
	assert.False(t, *job.Parallel)

	// and status was initialized
	status, ok, _ := st.Get(context.Background(), resp.JobID)
	require.True(t, ok)
	assert.Equal(t, "queued", status.Status)
}

func TestProcessDocument_FileURL(t *testing.T) {
	_, q, _, mux := newTestService(t)

	body := `{"file_url": "https://example.com/manual.pdf"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process_document", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var job dispatcher.Job
	require.NoError(t, json.Unmarshal(q.payloads[0], &job))
	assert.Equal(t, "https://example.com/manual.pdf", job.Ref)
	assert.Nil(t, job.Parallel)
}

func TestProcessDocument_Validation(t *testing.T) {
	_, _, _, mux := newTestService(t)

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process_document", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process_document", strings.NewReader("{")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing reference", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process_document", strings.NewReader("{}")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProcessDocument_QueueUnavailable(t *testing.T) {
	q := &fakeQueue{enqueueErr: errors.New("redis down")}
	svc := New(Dependencies{Queue: q, Status: newFakeStatus()}, Options{})
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)

	body := `{"file_path": "/data/manual.pdf"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process_document", strings.NewReader(body)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProcessUpload(t *testing.T) {
	_, q, _, mux := newTestService(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "manual.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.7\nfake content"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("parallel", "true"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process_upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var job dispatcher.Job
	require.NoError(t, json.Unmarshal(q.payloads[0], &job))
	assert.Contains(t, job.Ref, "manual.pdf")
	require.NotNil(t, job.Parallel)
	assert.True(t, *job.Parallel)
	assert.FileExists(t, job.Ref)
}

func TestProgress(t *testing.T) {
	_, _, st, mux := newTestService(t)
	require.NoError(t, st.Set(context.Background(), "job-1", store.Status{Status: "processing", Progress: 40}))

	t.Run("known job", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress/job-1", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var got store.Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "processing", got.Status)
		assert.Equal(t, 40, got.Progress)
	})

	t.Run("unknown job", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress/", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCancelJob(t *testing.T) {
	_, q, _, mux := newTestService(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/cancel_job",
		strings.NewReader(`{"job_id": "job-9"}`)))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"job-9"}, q.cancelled)
}

func TestCancelJob_MissingID(t *testing.T) {
	_, _, _, mux := newTestService(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/cancel_job", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
