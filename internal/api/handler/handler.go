package handler

import (
	"context"
	"log/slog"

	"github.com/oidanice/tscribe/internal/domain"
	"github.com/oidanice/tscribe/internal/store"
	"github.com/oidanice/tscribe/internal/urlcheck"
)

// JobStore is the record-store surface the handlers need. The concrete
// implementation is internal/store; tests substitute fakes.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, jobID string) (*domain.Job, error)
	List(ctx context.Context, pageSize int, cursor *store.Cursor) ([]domain.Job, error)
	Delete(ctx context.Context, jobID string) error
}

// Publisher pushes job references onto the work queue.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Store     JobStore
	Publisher Publisher
	Gate      urlcheck.Gate
	DataDir   string
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	store     JobStore
	publisher Publisher
	gate      urlcheck.Gate
	dataDir   string
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		store:     deps.Store,
		publisher: deps.Publisher,
		gate:      deps.Gate,
		dataDir:   deps.DataDir,
	}
}
