package subtitles

import "github.com/oidanice/tscribe/internal/domain"

// Status tags the result of a subtitle fetch attempt. The distinction
// matters for the pipeline: Found short-circuits to DONE, while both
// NotAvailable and TransportError silently trigger the slow path. Only a
// programming error (a panic) escapes the fetcher as a hard failure.
type Status int

const (
	// StatusFound means a caption track was retrieved and parsed
	StatusFound Status = iota
	// StatusNotAvailable means the platform has no captions for this URL
	StatusNotAvailable
	// StatusTransportError means the fetch itself failed (network,
	// malformed response, tool error)
	StatusTransportError
)

// String returns a readable status name for logs
func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotAvailable:
		return "not_available"
	case StatusTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of Fetch
type Outcome struct {
	Status     Status
	Transcript *Transcript // set only when Status is StatusFound
	Err        error       // set only when Status is StatusTransportError
}

// Transcript bundles the parsed captions with the media metadata the
// probe returns alongside them, so the fast path can fill the same job
// fields the download phase would
type Transcript struct {
	Segments        []domain.Segment
	Language        string
	Title           string
	DurationSeconds float64
}

func found(t *Transcript) Outcome {
	return Outcome{Status: StatusFound, Transcript: t}
}

func notAvailable() Outcome {
	return Outcome{Status: StatusNotAvailable}
}

func transportError(err error) Outcome {
	return Outcome{Status: StatusTransportError, Err: err}
}
