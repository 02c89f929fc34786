package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oidanice/tscribe/internal/api/dto"
	"github.com/oidanice/tscribe/internal/api/handler"
	"github.com/oidanice/tscribe/internal/domain"
	"github.com/oidanice/tscribe/internal/store"
)

const testJobID = "11111111-2222-3333-4444-555555555555"

type fakeJobStore struct {
	jobs      map[string]*domain.Job
	createErr error
	listJobs  []domain.Job

	deleted []string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*domain.Job)}
}

func (f *fakeJobStore) Create(_ context.Context, job *domain.Job) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.jobs[job.JobID] = job
	return nil
}

func (f *fakeJobStore) Get(_ context.Context, jobID string) (*domain.Job, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobStore) List(_ context.Context, pageSize int, cursor *store.Cursor) ([]domain.Job, error) {
	jobs := f.listJobs
	if len(jobs) > pageSize+1 {
		jobs = jobs[:pageSize+1]
	}
	return jobs, nil
}

func (f *fakeJobStore) Delete(_ context.Context, jobID string) error {
	if _, ok := f.jobs[jobID]; !ok {
		return domain.ErrJobNotFound
	}
	delete(f.jobs, jobID)
	f.deleted = append(f.deleted, jobID)
	return nil
}

type fakePublisher struct {
	published [][]byte
	err       error
}

func (f *fakePublisher) PublishWithRetry(_ context.Context, body []byte, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, body)
	return nil
}

type fakeGate struct {
	err error
}

func (f *fakeGate) Validate(_ context.Context, _ string) error {
	return f.err
}

type fixture struct {
	store     *fakeJobStore
	publisher *fakePublisher
	gate      *fakeGate
	dataDir   string
	router    *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fx := &fixture{
		store:     newFakeJobStore(),
		publisher: &fakePublisher{},
		gate:      &fakeGate{},
		dataDir:   t.TempDir(),
	}

	h := handler.NewJobHandler(&handler.Dependencies{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:     fx.store,
		Publisher: fx.publisher,
		Gate:      fx.gate,
		DataDir:   fx.dataDir,
	})

	r := gin.New()
	r.POST("/api/v1/jobs", h.CreateJob)
	r.GET("/api/v1/jobs", h.ListJobs)
	r.GET("/api/v1/jobs/:job_id", h.GetJob)
	r.DELETE("/api/v1/jobs/:job_id", h.DeleteJob)
	r.GET("/api/v1/jobs/:job_id/download/:format", h.DownloadTranscript)
	fx.router = r

	return fx
}

func (fx *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func doneJob() *domain.Job {
	segs := `[{"start":0,"end":2.5,"text":"Hello world"},{"start":2.5,"end":5,"text":"Second line"}]`
	return &domain.Job{
		JobID:            testJobID,
		URL:              "https://videos.example.com/watch?v=abc",
		Status:           domain.StatusDone,
		Title:            "Test Video",
		DetectedLanguage: "en",
		Progress:         100,
		ResultText:       "Hello world\nSecond line",
		ResultSegments:   segs,
		Source:           domain.SourceSubtitles,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestCreateJob(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(http.MethodPost, "/api/v1/jobs",
		`{"url":"https://videos.example.com/watch?v=abc","language":"de"}`)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp dto.JobDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, domain.StatusQueued, resp.Status)
	assert.Equal(t, "de", resp.RequestedLanguage)

	// Record created and message enqueued
	assert.Len(t, fx.store.jobs, 1)
	require.Len(t, fx.publisher.published, 1)

	var msg domain.JobMessage
	require.NoError(t, json.Unmarshal(fx.publisher.published[0], &msg))
	assert.Equal(t, resp.JobID, msg.JobID)
}

func TestCreateJob_InvalidBody(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(http.MethodPost, "/api/v1/jobs", `{"language":"de"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fx.store.jobs)
}

func TestCreateJob_GateRejection(t *testing.T) {
	fx := newFixture(t)
	fx.gate.err = errors.New("URL resolves to a private address")

	rec := fx.do(http.MethodPost, "/api/v1/jobs",
		`{"url":"https://internal.example.com/video"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "URL rejected")

	// Rejected URLs never produce a record or a message
	assert.Empty(t, fx.store.jobs)
	assert.Empty(t, fx.publisher.published)
}

func TestCreateJob_EnqueueFailureRollsBack(t *testing.T) {
	fx := newFixture(t)
	fx.publisher.err = errors.New("broker unavailable")

	rec := fx.do(http.MethodPost, "/api/v1/jobs",
		`{"url":"https://videos.example.com/watch?v=abc"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, fx.store.jobs, "record must not survive a failed enqueue")
}

func TestGetJob(t *testing.T) {
	fx := newFixture(t)
	fx.store.jobs[testJobID] = doneJob()

	rec := fx.do(http.MethodGet, "/api/v1/jobs/"+testJobID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.JobDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusDone, resp.Status)
	assert.Equal(t, 100, resp.Progress)
	assert.Equal(t, domain.SourceSubtitles, resp.Source)
	require.Len(t, resp.ResultSegments, 2)
	assert.Equal(t, "Hello world", resp.ResultSegments[0].Text)
}

func TestGetJob_NotFound(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(http.MethodGet, "/api/v1/jobs/"+testJobID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJob_InvalidID(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(http.MethodGet, "/api/v1/jobs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListJobs_Pagination(t *testing.T) {
	fx := newFixture(t)

	// Three jobs with page size two: expect two returned plus a cursor.
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		job := *doneJob()
		job.JobID = testJobID[:len(testJobID)-1] + string(rune('0'+i))
		job.CreatedAt = base.Add(-time.Duration(i) * time.Minute)
		fx.store.listJobs = append(fx.store.listJobs, job)
	}

	rec := fx.do(http.MethodGet, "/api/v1/jobs?page_size=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 2)
	assert.NotEmpty(t, resp.NextCursor)
}

func TestListJobs_InvalidCursor(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(http.MethodGet, "/api/v1/jobs?cursor=%25%25not-base64", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteJob(t *testing.T) {
	fx := newFixture(t)
	fx.store.jobs[testJobID] = doneJob()

	jobDir := filepath.Join(fx.dataDir, testJobID)
	require.NoError(t, os.MkdirAll(jobDir, 0o755))

	rec := fx.do(http.MethodDelete, "/api/v1/jobs/"+testJobID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Both the record and the artifacts are gone
	assert.Empty(t, fx.store.jobs)
	assert.NoDirExists(t, jobDir)
}

func TestDeleteJob_NotFound(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(http.MethodDelete, "/api/v1/jobs/"+testJobID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadTranscript(t *testing.T) {
	tests := []struct {
		name        string
		format      string
		wantStatus  int
		wantContain string
		wantType    string
	}{
		{
			name:        "srt",
			format:      "srt",
			wantStatus:  http.StatusOK,
			wantContain: "00:00:00,000 --> 00:00:02,500",
			wantType:    "application/x-subrip",
		},
		{
			name:        "vtt",
			format:      "vtt",
			wantStatus:  http.StatusOK,
			wantContain: "WEBVTT",
			wantType:    "text/vtt",
		},
		{
			name:        "txt",
			format:      "txt",
			wantStatus:  http.StatusOK,
			wantContain: "Hello world\nSecond line",
			wantType:    "text/plain",
		},
		{
			name:        "json",
			format:      "json",
			wantStatus:  http.StatusOK,
			wantContain: `"text": "Hello world"`,
			wantType:    "application/json",
		},
		{
			name:       "unknown format",
			format:     "pdf",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.store.jobs[testJobID] = doneJob()

			rec := fx.do(http.MethodGet, "/api/v1/jobs/"+testJobID+"/download/"+tt.format, "")
			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus == http.StatusOK {
				assert.Contains(t, rec.Body.String(), tt.wantContain)
				assert.Contains(t, rec.Header().Get("Content-Type"), tt.wantType)
				assert.Contains(t, rec.Header().Get("Content-Disposition"), tt.format)
			}
		})
	}
}

func TestDownloadTranscript_NotDone(t *testing.T) {
	fx := newFixture(t)
	job := doneJob()
	job.Status = domain.StatusTranscribing
	fx.store.jobs[testJobID] = job

	rec := fx.do(http.MethodGet, "/api/v1/jobs/"+testJobID+"/download/srt", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}
