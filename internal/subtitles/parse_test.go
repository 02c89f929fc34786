package subtitles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON3(t *testing.T) {
	payload := `{
		"events": [
			{"tStartMs": 0, "dDurationMs": 1000},
			{"tStartMs": 1000, "dDurationMs": 2500, "segs": [{"utf8": "Hello "}, {"utf8": "world"}]},
			{"tStartMs": 3500, "dDurationMs": 1000, "segs": [{"utf8": "\n"}]},
			{"tStartMs": 5000, "dDurationMs": 2000, "segs": [{"utf8": "Second line"}]}
		]
	}`

	segments, err := parseJSON3([]byte(payload))
	require.NoError(t, err)
	require.Len(t, segments, 2)

	assert.Equal(t, 1.0, segments[0].Start)
	assert.Equal(t, 3.5, segments[0].End)
	assert.Equal(t, "Hello world", segments[0].Text)

	assert.Equal(t, 5.0, segments[1].Start)
	assert.Equal(t, 7.0, segments[1].End)
	assert.Equal(t, "Second line", segments[1].Text)
}

func TestParseJSON3_Invalid(t *testing.T) {
	_, err := parseJSON3([]byte("{not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse json3 subtitles")
}

func TestParseVTT(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{
			name: "plain webvtt",
			content: `WEBVTT

00:00:01.500 --> 00:00:04.200
Hello world

00:00:04.200 --> 00:00:06.000
Second line`,
			want: 2,
		},
		{
			name: "srt with comma millis and cue numbers",
			content: `1
00:00:01,500 --> 00:00:04,200
Hello world

2
00:00:04,200 --> 00:00:06,000
Second line`,
			want: 2,
		},
		{
			name: "styling tags stripped",
			content: `WEBVTT

00:01.000 --> 00:03.000
<v Speaker><i>Hello</i> world</v>`,
			want: 1,
		},
		{
			name:    "no cues",
			content: "WEBVTT\n\nNOTE just a comment",
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := parseVTT(tt.content)
			assert.Len(t, segments, tt.want)
		})
	}
}

func TestParseVTT_Timing(t *testing.T) {
	content := `WEBVTT

01:02:03.250 --> 01:02:05.750
With hours

02:03.250 --> 02:05.750
Without hours`

	segments := parseVTT(content)
	require.Len(t, segments, 2)

	assert.InDelta(t, 3723.25, segments[0].Start, 0.001)
	assert.InDelta(t, 3725.75, segments[0].End, 0.001)
	assert.Equal(t, "With hours", segments[0].Text)

	assert.InDelta(t, 123.25, segments[1].Start, 0.001)
	assert.InDelta(t, 125.75, segments[1].End, 0.001)
}

func TestParseVTT_MultiLineCue(t *testing.T) {
	content := `WEBVTT

00:00:01.000 --> 00:00:04.000
First part
second part`

	segments := parseVTT(content)
	require.Len(t, segments, 1)
	assert.Equal(t, "First part second part", segments[0].Text)
}
