package domain

import "time"

// Job status constants. Transitions follow:
//
//	QUEUED -> DONE                      (subtitle fast path)
//	QUEUED -> DOWNLOADING -> TRANSCRIBING -> DONE
//	any non-terminal -> FAILED
//
// DONE and FAILED are terminal; no transition is ever reversed.
const (
	StatusQueued       = "QUEUED"
	StatusDownloading  = "DOWNLOADING"
	StatusTranscribing = "TRANSCRIBING"
	StatusDone         = "DONE"
	StatusFailed       = "FAILED"
)

// Transcript source constants, recorded on DONE.
const (
	SourceSubtitles = "subtitles"
	SourceWhisper   = "whisper"
)

// Job is the durable record of one transcription request.
type Job struct {
	JobID             string     `db:"job_id"`
	URL               string     `db:"url"`
	Status            string     `db:"status"`
	Title             string     `db:"title"`
	RequestedLanguage string     `db:"requested_language"`
	DetectedLanguage  string     `db:"detected_language"`
	DurationSeconds   float64    `db:"duration_seconds"`
	Progress          int        `db:"progress"`
	ResultText        string     `db:"result_text"`
	ResultSegments    string     `db:"result_segments"` // JSON-encoded []Segment
	Source            string     `db:"source"`
	Error             string     `db:"error_message"`
	CreatedAt         time.Time  `db:"created_at"`
	CompletedAt       *time.Time `db:"completed_at"`
}

// Terminal reports whether the job has reached DONE or FAILED.
func (j *Job) Terminal() bool {
	return j.Status == StatusDone || j.Status == StatusFailed
}

// Segment is one timed span of transcript text, produced by either the
// subtitle parser or the transcription engine.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// JobMessage is the queue payload carrying a job reference to a worker.
// It holds only the id; the worker reads everything else from the
// record store so the queue never carries stale job data.
type JobMessage struct {
	JobID string `json:"job_id"`
}
