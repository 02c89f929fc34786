package worker

import (
	"context"
	"fmt"
	"log/slog"
)

// InterruptedFailer marks jobs that were mid-flight when their worker
// died. Implemented by the record store.
type InterruptedFailer interface {
	FailInterrupted(ctx context.Context) (int64, error)
}

// RecoverInterrupted is the startup reconciliation sweep. A crashed
// worker leaves jobs stuck in DOWNLOADING or TRANSCRIBING with no
// process attached; this fails them so clients see a terminal state
// instead of a job that never moves. QUEUED jobs are left alone since
// the queue still holds their messages and a live worker will pick
// them up.
func RecoverInterrupted(ctx context.Context, logger *slog.Logger, st InterruptedFailer) error {
	count, err := st.FailInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("failed to reconcile interrupted jobs: %w", err)
	}
	if count > 0 {
		logger.Warn("Failed interrupted jobs from previous run",
			slog.Int64("count", count),
		)
	}
	return nil
}
