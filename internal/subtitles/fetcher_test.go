package subtitles

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeYtDlp writes a shell script that prints the given JSON, standing
// in for the real probe binary.
func fakeYtDlp(t *testing.T, stdout string, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake probe script requires a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "yt-dlp")
	script := fmt.Sprintf("#!/bin/sh\ncat <<'EOF'\n%s\nEOF\nexit %d\n", stdout, exitCode)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func subtitleServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_Found(t *testing.T) {
	srv := subtitleServer(t, `WEBVTT

00:00:01.000 --> 00:00:03.000
Hello world`)

	metadata := fmt.Sprintf(`{
		"title": "Test Video",
		"duration": 120,
		"subtitles": {"en": [{"ext": "vtt", "url": "%s/en.vtt"}]}
	}`, srv.URL)

	fetcher := NewFetcher(fakeYtDlp(t, metadata, 0), []string{"de", "en"}, discardLogger())
	outcome := fetcher.Fetch(context.Background(), "https://videos.example.com/v/1", "")

	require.Equal(t, StatusFound, outcome.Status)
	require.NotNil(t, outcome.Transcript)
	assert.Equal(t, "en", outcome.Transcript.Language)
	assert.Equal(t, "Test Video", outcome.Transcript.Title)
	assert.Equal(t, 120.0, outcome.Transcript.DurationSeconds)
	require.Len(t, outcome.Transcript.Segments, 1)
	assert.Equal(t, "Hello world", outcome.Transcript.Segments[0].Text)
}

func TestFetch_NoSubtitles(t *testing.T) {
	metadata := `{"title": "Silent Video", "duration": 60}`

	fetcher := NewFetcher(fakeYtDlp(t, metadata, 0), []string{"en"}, discardLogger())
	outcome := fetcher.Fetch(context.Background(), "https://videos.example.com/v/2", "")

	assert.Equal(t, StatusNotAvailable, outcome.Status)
	assert.Nil(t, outcome.Transcript)
}

func TestFetch_ProbeFailure(t *testing.T) {
	fetcher := NewFetcher(fakeYtDlp(t, "", 1), []string{"en"}, discardLogger())
	outcome := fetcher.Fetch(context.Background(), "https://videos.example.com/v/3", "")

	assert.Equal(t, StatusTransportError, outcome.Status)
	assert.Error(t, outcome.Err)
}

func TestFetch_MissingProbeBinary(t *testing.T) {
	fetcher := NewFetcher(filepath.Join(t.TempDir(), "missing-yt-dlp"), []string{"en"}, discardLogger())
	outcome := fetcher.Fetch(context.Background(), "https://videos.example.com/v/4", "")

	assert.Equal(t, StatusTransportError, outcome.Status)
}

func TestFetch_TrackDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	metadata := fmt.Sprintf(`{
		"title": "Gone",
		"subtitles": {"en": [{"ext": "vtt", "url": "%s/en.vtt"}]}
	}`, srv.URL)

	fetcher := NewFetcher(fakeYtDlp(t, metadata, 0), []string{"en"}, discardLogger())
	outcome := fetcher.Fetch(context.Background(), "https://videos.example.com/v/5", "")

	assert.Equal(t, StatusTransportError, outcome.Status)
}

func TestFetch_EmptyTrackTreatedAsNotAvailable(t *testing.T) {
	srv := subtitleServer(t, "WEBVTT\n\nNOTE nothing here")

	metadata := fmt.Sprintf(`{
		"title": "Empty Captions",
		"subtitles": {"en": [{"ext": "vtt", "url": "%s/en.vtt"}]}
	}`, srv.URL)

	fetcher := NewFetcher(fakeYtDlp(t, metadata, 0), []string{"en"}, discardLogger())
	outcome := fetcher.Fetch(context.Background(), "https://videos.example.com/v/6", "")

	assert.Equal(t, StatusNotAvailable, outcome.Status)
}

func TestDownload_PrefersJSON3(t *testing.T) {
	json3 := `{"events": [{"tStartMs": 0, "dDurationMs": 1000, "segs": [{"utf8": "structured"}]}]}`
	srv := subtitleServer(t, json3)

	fetcher := NewFetcher("yt-dlp", nil, discardLogger())
	segments, err := fetcher.download(context.Background(), []subtitleFormat{
		{Ext: "vtt", URL: srv.URL + "/en.vtt"},
		{Ext: "json3", URL: srv.URL + "/en.json3"},
	})
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "structured", segments[0].Text)
}

func TestDownload_NoFormats(t *testing.T) {
	fetcher := NewFetcher("yt-dlp", nil, discardLogger())
	_, err := fetcher.download(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no downloadable format")
}
