// Package download acquires audio for the slow path: yt-dlp extracts the
// best audio-only stream and converts it to WAV under the job's own
// artifact directory.
package download

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/oidanice/tscribe/internal/domain"
)

// Result is what the executor needs from a completed download
type Result struct {
	AudioPath       string
	Title           string
	DurationSeconds float64
}

// Downloader runs yt-dlp audio extraction
type Downloader struct {
	ytdlpPath string
	dataDir   string
	logger    *slog.Logger
}

// New creates a Downloader writing under dataDir
func New(ytdlpPath, dataDir string, logger *slog.Logger) *Downloader {
	return &Downloader{
		ytdlpPath: ytdlpPath,
		dataDir:   dataDir,
		logger:    logger,
	}
}

// Download extracts audio from a URL into <dataDir>/<jobID>/audio.wav.
// Per-job directories keep concurrent jobs from colliding on filenames.
// Every failure is a *domain.DownloadError carrying the yt-dlp cause
// verbatim; downloads are never retried.
func (d *Downloader) Download(ctx context.Context, jobID, rawURL string) (*Result, error) {
	jobDir := filepath.Join(d.dataDir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return nil, &domain.DownloadError{
			Cause: fmt.Sprintf("cannot create working directory: %v", err),
			Err:   err,
		}
	}

	audioPath := filepath.Join(jobDir, "audio.wav")

	// --print-json emits the metadata on stdout after download, which is
	// where title and duration come from. bestaudio avoids transferring
	// video data; WAV gives the engine uncompressed input.
	cmd := exec.CommandContext(ctx, d.ytdlpPath,
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "wav",
		"--output", filepath.Join(jobDir, "audio.%(ext)s"),
		"--print-json",
		"--no-warnings",
		"--quiet",
		rawURL,
	)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	d.logger.Info("Downloading audio",
		slog.String("job_id", jobID),
		slog.String("url", rawURL),
	)

	if err := cmd.Run(); err != nil {
		cause := extractCause(stderr.String())
		if cause == "" {
			cause = err.Error()
		}
		if ctx.Err() != nil {
			// The deadline or shutdown path cancelled the subprocess;
			// surface the context error so the executor classifies it
			// as a timeout, not a download failure.
			return nil, ctx.Err()
		}
		return nil, &domain.DownloadError{Cause: cause, Err: err}
	}

	var info struct {
		Title    string  `json:"title"`
		Duration float64 `json:"duration"`
	}
	if err := json.Unmarshal([]byte(stdout.String()), &info); err != nil {
		return nil, &domain.DownloadError{
			Cause: "could not parse media metadata",
			Err:   err,
		}
	}

	if _, err := os.Stat(audioPath); err != nil {
		return nil, &domain.DownloadError{
			Cause: "audio file was not produced",
			Err:   err,
		}
	}

	d.logger.Info("Audio download complete",
		slog.String("job_id", jobID),
		slog.String("title", info.Title),
		slog.Float64("duration_seconds", info.Duration),
	)

	return &Result{
		AudioPath:       audioPath,
		Title:           info.Title,
		DurationSeconds: info.Duration,
	}, nil
}

// extractCause pulls the most useful line out of yt-dlp's stderr. yt-dlp
// prefixes fatal messages with "ERROR:", which is the line users need to
// see (removed content, geo restriction, unsupported site).
func extractCause(stderr string) string {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	return strings.TrimSpace(firstNonEmptyLine(stderr))
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
