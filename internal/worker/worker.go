// Package worker implements the job executor: it pulls job references
// from the queue, drives each job through the subtitle fast path and the
// download/transcription slow path, writes every transition into the
// record store, and enforces the per-job deadline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oidanice/tscribe/internal/domain"
	"github.com/oidanice/tscribe/internal/download"
	"github.com/oidanice/tscribe/internal/store"
	"github.com/oidanice/tscribe/internal/subtitles"
	"github.com/oidanice/tscribe/internal/transcribe"
	"github.com/oidanice/tscribe/shared/rabbitmq"
)

// ErrConsumerClosed is returned by Start when the broker delivery
// channel closes outside of a requested shutdown, so main can treat a
// lost connection as a fatal error instead of idling without work.
var ErrConsumerClosed = errors.New("queue delivery channel closed")

// task pairs a decoded job message with the delivery it arrived on, so
// the processing slot can acknowledge exactly that delivery once the
// job has reached a terminal state.
type task struct {
	msg      *domain.JobMessage
	delivery amqp.Delivery
}

// Store is the record-store surface the executor needs. The concrete
// implementation is internal/store; tests substitute fakes.
type Store interface {
	GetQueued(ctx context.Context, jobID string) (*domain.Job, error)
	MarkDownloading(ctx context.Context, jobID string) error
	MarkTranscribing(ctx context.Context, jobID, title string, durationSeconds float64) error
	MarkDone(ctx context.Context, jobID string, result store.DoneResult) error
	MarkFailed(ctx context.Context, jobID, errorMsg string) error
	SetProgress(ctx context.Context, jobID string, progress int) error
}

// SubtitleFetcher is the fast path: captions without transcription
type SubtitleFetcher interface {
	Fetch(ctx context.Context, rawURL, language string) subtitles.Outcome
}

// Downloader is the slow path's audio acquisition step
type Downloader interface {
	Download(ctx context.Context, jobID, rawURL string) (*download.Result, error)
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Store         Store
	RabbitClient  *rabbitmq.Client
	Fetcher       SubtitleFetcher
	Downloader    Downloader
	Engine        transcribe.Engine
	DataDir       string
	Concurrency   int
	JobTimeout    time.Duration
	ShutdownGrace time.Duration
}

// Worker owns the queue consumer and the processing slots. It is
// constructed once at process start and holds explicit references to the
// queue, store, and pipeline components instead of globals.
type Worker struct {
	logger        *slog.Logger
	store         Store
	rabbitClient  *rabbitmq.Client
	fetcher       SubtitleFetcher
	downloader    Downloader
	engine        transcribe.Engine
	dataDir       string
	concurrency   int
	jobTimeout    time.Duration
	shutdownGrace time.Duration
	workerID      string

	jobsChan  chan task
	stopChan  chan struct{}
	forceStop chan struct{}
	wg        sync.WaitGroup
}

// New creates a worker instance
func New(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Worker{
		logger:        cfg.Logger,
		store:         cfg.Store,
		rabbitClient:  cfg.RabbitClient,
		fetcher:       cfg.Fetcher,
		downloader:    cfg.Downloader,
		engine:        cfg.Engine,
		dataDir:       cfg.DataDir,
		concurrency:   concurrency,
		jobTimeout:    cfg.JobTimeout,
		shutdownGrace: cfg.ShutdownGrace,
		workerID:      fmt.Sprintf("tscribe-worker-%s", uuid.New().String()[:8]),
		jobsChan:      make(chan task),
		stopChan:      make(chan struct{}),
		forceStop:     make(chan struct{}),
	}
}

// Start begins consuming and processing jobs. It blocks until ctx is
// cancelled or the consumer setup fails.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processLoop(i)
	}

	err = w.dispatch(ctx, deliveries)

	// Dispatcher returned: no more dequeues. Closing jobsChan lets the
	// processing goroutines finish their current job and exit.
	close(w.jobsChan)
	return err
}

// Stop drains in-flight work. The currently owned job may run until the
// grace period expires; after that its context is cancelled and the
// executor force-fails it exactly as the timeout path does, so the next
// startup's reconciliation sweep finds nothing inconsistent.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker",
		slog.String("worker_id", w.workerID),
		slog.Duration("grace", w.shutdownGrace),
	)
	close(w.stopChan)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped gracefully")
		return
	case <-time.After(w.shutdownGrace):
		w.logger.Warn("Shutdown grace period expired, force-failing in-flight work")
		close(w.forceStop)
	}

	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// processLoop is one processing slot: it takes job messages until the
// channel closes or stop is requested, acknowledging each message after
// the executor has recorded a terminal state for it.
func (w *Worker) processLoop(slot int) {
	defer w.wg.Done()

	slotName := fmt.Sprintf("%s-%d", w.workerID, slot)
	w.logger.Info("Processing slot started",
		slog.String("slot", slotName),
	)

	for tk := range w.jobsChan {
		w.processJob(tk.msg)

		// Every outcome is terminal and already recorded, so the message
		// is always acked; requeueing would mean an automatic retry the
		// pipeline deliberately does not do.
		if err := tk.delivery.Ack(false); err != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("slot", slotName),
				slog.String("job_id", tk.msg.JobID),
				slog.Any("error", err),
			)
		}
	}

	w.logger.Info("Processing slot stopped",
		slog.String("slot", slotName),
	)
}
