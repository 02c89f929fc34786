// Package formats converts stored transcript segments into downloadable
// output formats. Segments are persisted once as JSON; every other format
// is derived on demand.
package formats

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oidanice/tscribe/internal/domain"
)

// TimestampSRT renders seconds as an SRT timestamp (HH:MM:SS,mmm).
// SRT uses a comma before the milliseconds, VTT a dot; keeping two
// explicit helpers prevents mixing them up.
func TimestampSRT(seconds float64) string {
	return timestamp(seconds, ",")
}

// TimestampVTT renders seconds as a WebVTT timestamp (HH:MM:SS.mmm)
func TimestampVTT(seconds float64) string {
	return timestamp(seconds, ".")
}

func timestamp(seconds float64, sep string) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds*1000 + 0.5)
	hours := totalMillis / 3600000
	minutes := (totalMillis % 3600000) / 60000
	secs := (totalMillis % 60000) / 1000
	millis := totalMillis % 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, secs, sep, millis)
}

// ToSRT renders segments as SubRip, the most widely supported subtitle
// format: numbered entries with comma-separated millisecond timestamps
func ToSRT(segments []domain.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", TimestampSRT(seg.Start), TimestampSRT(seg.End))
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// ToVTT renders segments as WebVTT for HTML5 <track> consumption
func ToVTT(segments []domain.Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range segments {
		fmt.Fprintf(&b, "%s --> %s\n", TimestampVTT(seg.Start), TimestampVTT(seg.End))
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// ToTXT renders the plain transcript, one segment per line
func ToTXT(segments []domain.Segment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, seg.Text)
	}
	return strings.Join(lines, "\n")
}

// ToJSON renders segments as an indented JSON array with timing data
func ToJSON(segments []domain.Segment) (string, error) {
	if segments == nil {
		segments = []domain.Segment{}
	}
	data, err := json.MarshalIndent(segments, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode segments: %w", err)
	}
	return string(data), nil
}

// EncodeSegments serializes segments for storage in the job record
func EncodeSegments(segments []domain.Segment) (string, error) {
	if segments == nil {
		segments = []domain.Segment{}
	}
	data, err := json.Marshal(segments)
	if err != nil {
		return "", fmt.Errorf("failed to encode segments: %w", err)
	}
	return string(data), nil
}

// DecodeSegments deserializes segments stored in the job record
func DecodeSegments(encoded string) ([]domain.Segment, error) {
	if strings.TrimSpace(encoded) == "" {
		return nil, nil
	}
	var segments []domain.Segment
	if err := json.Unmarshal([]byte(encoded), &segments); err != nil {
		return nil, fmt.Errorf("failed to decode segments: %w", err)
	}
	return segments, nil
}
