package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job record does not exist. The
	// executor also uses it to detect that a job was deleted mid-flight.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyClaimed is returned when a worker tries to claim a job
	// that is not in QUEUED status anymore.
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in QUEUED status")
)

// Fixed failure messages. Deadline and interruption causes are fixed
// strings (not engine output) so operators can tell them apart from
// genuine download/transcription failures.
const (
	ErrMsgDeadlineExceeded    = "job exceeded time limit"
	ErrMsgInterruptedRestart  = "interrupted by worker restart"
	ErrMsgInterruptedShutdown = "interrupted by worker shutdown"
	ErrMsgBookkeepingFailed   = "internal error: job state could not be persisted"
)

// DownloadError is a terminal failure of the media download phase. The
// cause string is preserved verbatim for user display.
type DownloadError struct {
	Cause string
	Err   error
}

func (e *DownloadError) Error() string {
	return "download failed: " + e.Cause
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// TranscriptionError is a terminal failure of the transcription phase.
type TranscriptionError struct {
	Cause string
	Err   error
}

func (e *TranscriptionError) Error() string {
	return "transcription failed: " + e.Cause
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}
