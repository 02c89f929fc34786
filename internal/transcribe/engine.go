// Package transcribe adapts speech-to-text engines to the pipeline. Two
// providers exist: a local whisper.cpp binary and the OpenAI audio API.
// Both report incremental progress through a callback and fail with
// *domain.TranscriptionError; neither is retried.
package transcribe

import (
	"context"
	"strings"

	"github.com/oidanice/tscribe/internal/domain"
)

// ProgressFunc receives percent values in [0,100]. Implementations call
// it with monotonically increasing values as work proceeds.
type ProgressFunc func(percent int)

// Result is the engine output
type Result struct {
	Segments []domain.Segment
	Language string
}

// Engine turns a local audio artifact into timed transcript segments
type Engine interface {
	Transcribe(ctx context.Context, audioPath, language string, onProgress ProgressFunc) (*Result, error)
}

// Text joins all segment texts into the plain transcript, one segment
// per line
func (r *Result) Text() string {
	if r == nil || len(r.Segments) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Segments))
	for _, seg := range r.Segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, "\n")
}
