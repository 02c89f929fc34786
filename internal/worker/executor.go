package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oidanice/tscribe/internal/cleanup"
	"github.com/oidanice/tscribe/internal/domain"
	"github.com/oidanice/tscribe/internal/formats"
	"github.com/oidanice/tscribe/internal/store"
	"github.com/oidanice/tscribe/internal/subtitles"
)

// errAbandoned signals that the job record disappeared mid-flight: the
// user deleted the job while it was processing. The executor stops
// writing and walks away instead of erroring.
var errAbandoned = errors.New("job record deleted mid-flight")

// errBookkeeping signals that record-store writes failed past the retry
// budget. Distinct from engine errors so the recorded cause names the
// infrastructure, not the media.
var errBookkeeping = errors.New("record store unavailable")

const (
	storeWriteTimeout  = 5 * time.Second
	storeWriteAttempts = 3
	storeRetryBaseWait = 200 * time.Millisecond
)

// processJob drives one job from dequeue to a terminal state. By the
// time it returns, the job is DONE, FAILED, or its record is gone.
func (w *Worker) processJob(msg *domain.JobMessage) {
	logger := w.logger.With(slog.String("job_id", msg.JobID))
	logger.Info("Processing job")

	job, err := w.lookupQueued(msg.JobID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			logger.Info("Job deleted before processing, skipping")
		case errors.Is(err, domain.ErrJobAlreadyClaimed):
			logger.Warn("Job not in QUEUED status, skipping duplicate delivery")
		default:
			logger.Error("Cannot load job record", slog.Any("error", err))
			w.failJob(logger, msg.JobID, domain.ErrMsgBookkeepingFailed)
		}
		return
	}

	// The deadline starts at dequeue and covers every phase. The watcher
	// converts a force-stop during shutdown into a context cancellation,
	// which the failure classifier maps onto the shutdown cause.
	jobCtx, cancel := context.WithTimeout(context.Background(), w.jobTimeout)
	defer cancel()

	watchDone := make(chan struct{})
	go func() {
		select {
		case <-w.forceStop:
			cancel()
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	started := time.Now()
	err = w.runPipeline(jobCtx, logger, job)

	switch {
	case err == nil:
		logger.Info("Job completed",
			slog.Duration("elapsed", time.Since(started)),
		)
		w.cleanupArtifacts(logger, job.JobID)

	case errors.Is(err, errAbandoned):
		// The delete endpoint already removed the record and artifacts;
		// anything the pipeline wrote afterwards is orphaned and the
		// periodic sweep will reclaim it.
		logger.Info("Job record gone, abandoning")

	case errors.Is(err, domain.ErrJobAlreadyClaimed):
		// Another owner moved the record on, most likely a duplicate
		// delivery racing a second worker. Its state and artifacts are
		// not ours to touch anymore.
		logger.Warn("Lost record claim mid-flight, leaving job to its owner")

	default:
		cause := failureCause(err)
		logger.Warn("Job failed",
			slog.String("cause", cause),
			slog.Duration("elapsed", time.Since(started)),
		)
		w.failJob(logger, job.JobID, cause)
		w.cleanupArtifacts(logger, job.JobID)
	}
}

// runPipeline executes the phases in strict order: subtitle fast path,
// then download, then transcription. Any error is terminal for the job.
func (w *Worker) runPipeline(ctx context.Context, logger *slog.Logger, job *domain.Job) error {
	outcome := w.fetcher.Fetch(ctx, job.URL, job.RequestedLanguage)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if outcome.Status == subtitles.StatusFound {
		logger.Info("Subtitles found, taking fast path",
			slog.String("language", outcome.Transcript.Language),
			slog.Int("segments", len(outcome.Transcript.Segments)),
		)
		return w.completeFromSubtitles(job.JobID, outcome.Transcript)
	}

	logger.Info("Falling back to download and transcription",
		slog.String("subtitle_outcome", outcome.Status.String()),
	)

	if err := w.writeState(func(c context.Context) error {
		return w.store.MarkDownloading(c, job.JobID)
	}); err != nil {
		return err
	}

	dres, err := w.downloader.Download(ctx, job.JobID, job.URL)
	if err != nil {
		return err
	}

	if err := w.writeState(func(c context.Context) error {
		return w.store.MarkTranscribing(c, job.JobID, dres.Title, dres.DurationSeconds)
	}); err != nil {
		return err
	}

	pw := w.startProgressWriter(job.JobID)
	result, err := w.engine.Transcribe(ctx, dres.AudioPath, job.RequestedLanguage, pw.publish)
	pw.stop()
	if err != nil {
		return err
	}

	segmentsJSON, err := formats.EncodeSegments(result.Segments)
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}

	return w.writeState(func(c context.Context) error {
		return w.store.MarkDone(c, job.JobID, store.DoneResult{
			Text:             result.Text(),
			SegmentsJSON:     segmentsJSON,
			DetectedLanguage: result.Language,
			Source:           domain.SourceWhisper,
			Title:            dres.Title,
			DurationSeconds:  dres.DurationSeconds,
		})
	})
}

// completeFromSubtitles finishes the QUEUED -> DONE fast path
func (w *Worker) completeFromSubtitles(jobID string, transcript *subtitles.Transcript) error {
	segmentsJSON, err := formats.EncodeSegments(transcript.Segments)
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}

	return w.writeState(func(c context.Context) error {
		return w.store.MarkDone(c, jobID, store.DoneResult{
			Text:             formats.ToTXT(transcript.Segments),
			SegmentsJSON:     segmentsJSON,
			DetectedLanguage: transcript.Language,
			Source:           domain.SourceSubtitles,
			Title:            transcript.Title,
			DurationSeconds:  transcript.DurationSeconds,
		})
	})
}

// failJob records a terminal failure. Best-effort: if even this write is
// impossible the startup recovery sweep is the backstop.
func (w *Worker) failJob(logger *slog.Logger, jobID, cause string) {
	err := w.writeState(func(c context.Context) error {
		return w.store.MarkFailed(c, jobID, cause)
	})
	if err != nil && !errors.Is(err, errAbandoned) && !errors.Is(err, domain.ErrJobAlreadyClaimed) {
		logger.Error("Could not record job failure",
			slog.String("cause", cause),
			slog.Any("error", err),
		)
	}
}

// cleanupArtifacts is the immediate-cleanup half of the cleanup design:
// temp artifacts are removed before the job slot is released
func (w *Worker) cleanupArtifacts(logger *slog.Logger, jobID string) {
	if err := cleanup.RemoveJobDir(w.dataDir, jobID); err != nil {
		logger.Warn("Failed to remove job artifacts",
			slog.Any("error", err),
		)
	}
}

// lookupQueued loads the job with a bounded retry on transient store
// errors
func (w *Worker) lookupQueued(jobID string) (*domain.Job, error) {
	var job *domain.Job
	err := w.withRetry(func(c context.Context) error {
		var getErr error
		job, getErr = w.store.GetQueued(c, jobID)
		return getErr
	})
	return job, err
}

// writeState performs a record-store write with bounded retry. A missing
// record maps onto errAbandoned; exhausting the retry budget maps onto
// errBookkeeping. Writes use a background context so a cancelled job can
// still record its terminal state.
func (w *Worker) writeState(write func(ctx context.Context) error) error {
	err := w.withRetry(write)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrJobNotFound) {
		return errAbandoned
	}
	if errors.Is(err, domain.ErrJobAlreadyClaimed) {
		return err
	}
	return fmt.Errorf("%w: %v", errBookkeeping, err)
}

// withRetry runs op up to storeWriteAttempts times with exponential
// backoff. Not-found and claim conflicts are returned immediately: they
// are outcomes, not transient faults.
func (w *Worker) withRetry(op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < storeWriteAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(storeRetryBaseWait * time.Duration(1<<uint(attempt-1)))
		}

		ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
		err := op(ctx)
		cancel()

		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrJobNotFound) || errors.Is(err, domain.ErrJobAlreadyClaimed) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// failureCause maps a pipeline error onto the user-visible cause string.
// Deadline and shutdown interruptions get fixed messages so operators
// can tell them from genuine engine failures.
func failureCause(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrMsgDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return domain.ErrMsgInterruptedShutdown
	case errors.Is(err, errBookkeeping):
		return domain.ErrMsgBookkeepingFailed
	default:
		return err.Error()
	}
}
