package worker

import (
	"context"
	"log/slog"
	"time"
)

const (
	progressBuffer       = 8
	progressWriteTimeout = 2 * time.Second
)

// progressWriter decouples engine progress callbacks from record-store
// latency. The engine publishes into a small buffer and never blocks;
// a dedicated goroutine drains the buffer into SetProgress. Dropped
// updates are fine since a newer value supersedes them anyway.
type progressWriter struct {
	jobID   string
	updates chan int
	done    chan struct{}
}

func (w *Worker) startProgressWriter(jobID string) *progressWriter {
	pw := &progressWriter{
		jobID:   jobID,
		updates: make(chan int, progressBuffer),
		done:    make(chan struct{}),
	}
	go w.drainProgress(pw)
	return pw
}

// publish hands a progress value to the writer goroutine. Never blocks:
// if the buffer is full the update is dropped.
func (pw *progressWriter) publish(percent int) {
	select {
	case pw.updates <- percent:
	default:
	}
}

// stop closes the update stream and waits for pending writes to flush.
func (pw *progressWriter) stop() {
	close(pw.updates)
	<-pw.done
}

// drainProgress persists progress updates best-effort. Write failures
// are logged and skipped: progress is advisory and must never fail a
// job.
func (w *Worker) drainProgress(pw *progressWriter) {
	defer close(pw.done)

	for percent := range pw.updates {
		ctx, cancel := context.WithTimeout(context.Background(), progressWriteTimeout)
		err := w.store.SetProgress(ctx, pw.jobID, percent)
		cancel()
		if err != nil {
			w.logger.Debug("Progress update not persisted",
				slog.String("job_id", pw.jobID),
				slog.Int("percent", percent),
				slog.Any("error", err),
			)
		}
	}
}
