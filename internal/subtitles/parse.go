package subtitles

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/oidanice/tscribe/internal/domain"
)

// json3Payload is YouTube's structured caption format: timed events that
// each carry one or more text fragments
type json3Payload struct {
	Events []json3Event `json:"events"`
}

type json3Event struct {
	StartMs    int64      `json:"tStartMs"`
	DurationMs int64      `json:"dDurationMs"`
	Segs       []json3Seg `json:"segs"`
}

type json3Seg struct {
	UTF8 string `json:"utf8"`
}

// parseJSON3 converts a json3 payload into segments. Events without text
// (format metadata, window positioning) are skipped; fragments within one
// event are joined into a single segment.
func parseJSON3(data []byte) ([]domain.Segment, error) {
	var payload json3Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse json3 subtitles: %w", err)
	}

	var segments []domain.Segment
	for _, event := range payload.Events {
		if len(event.Segs) == 0 {
			continue
		}

		var parts []string
		for _, seg := range event.Segs {
			text := strings.TrimSpace(seg.UTF8)
			if text != "" && text != "\n" {
				parts = append(parts, text)
			}
		}

		text := strings.TrimSpace(strings.Join(parts, " "))
		if text == "" {
			continue
		}

		start := float64(event.StartMs) / 1000.0
		end := float64(event.StartMs+event.DurationMs) / 1000.0
		segments = append(segments, domain.Segment{Start: start, End: end, Text: text})
	}

	return segments, nil
}

// vttTimestampRe matches cue lines like "00:00:01.500 --> 00:00:04.200".
// The hours part is optional in WebVTT, and SRT-style comma separators
// are accepted too.
var vttTimestampRe = regexp.MustCompile(
	`^(\d{1,2}:)?(\d{2}):(\d{2})[.,](\d{3})\s*-->\s*(\d{1,2}:)?(\d{2}):(\d{2})[.,](\d{3})`,
)

var vttTagRe = regexp.MustCompile(`<[^>]+>`)

// parseVTT converts WebVTT (or SRT) content into segments. Cue text may
// span multiple lines; inline styling tags are stripped.
func parseVTT(content string) []domain.Segment {
	var segments []domain.Segment

	lines := strings.Split(strings.TrimSpace(content), "\n")
	i := 0
	for i < len(lines) {
		match := vttTimestampRe.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if match == nil {
			i++
			continue
		}

		start := vttSeconds(match[1], match[2], match[3], match[4])
		end := vttSeconds(match[5], match[6], match[7], match[8])

		i++
		var textLines []string
		for i < len(lines) {
			line := strings.TrimSpace(lines[i])
			if line == "" || vttTimestampRe.MatchString(line) {
				break
			}
			if clean := vttTagRe.ReplaceAllString(line, ""); clean != "" {
				textLines = append(textLines, clean)
			}
			i++
		}

		text := strings.TrimSpace(strings.Join(textLines, " "))
		if text != "" {
			segments = append(segments, domain.Segment{Start: start, End: end, Text: text})
		}
	}

	return segments
}

func vttSeconds(hours, minutes, seconds, millis string) float64 {
	h := 0
	if hours != "" {
		h, _ = strconv.Atoi(strings.TrimSuffix(hours, ":"))
	}
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)
	ms, _ := strconv.Atoi(millis)
	return float64(h)*3600 + float64(m)*60 + float64(s) + float64(ms)/1000.0
}
