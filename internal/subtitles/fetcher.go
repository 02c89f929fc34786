// Package subtitles implements the subtitle-first fast path: retrieving
// an existing caption track from the source platform instead of running
// the transcription engine. A successful fetch finishes a job in seconds
// where the slow path takes minutes to hours.
package subtitles

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/oidanice/tscribe/internal/domain"
)

// Fetcher probes a URL for existing caption tracks via yt-dlp metadata
// extraction and downloads the best track over HTTP
type Fetcher struct {
	ytdlpPath    string
	defaultLangs []string
	client       *resty.Client
	logger       *slog.Logger
}

// NewFetcher creates a Fetcher. defaultLangs is the preference order used
// when the job carries no language hint.
func NewFetcher(ytdlpPath string, defaultLangs []string, logger *slog.Logger) *Fetcher {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Fetcher{
		ytdlpPath:    ytdlpPath,
		defaultLangs: defaultLangs,
		client:       client,
		logger:       logger,
	}
}

// mediaInfo is the slice of yt-dlp's metadata JSON the fetcher needs
type mediaInfo struct {
	Title             string                      `json:"title"`
	Duration          float64                     `json:"duration"`
	Subtitles         map[string][]subtitleFormat `json:"subtitles"`
	AutomaticCaptions map[string][]subtitleFormat `json:"automatic_captions"`
}

// subtitleFormat is one downloadable rendition of a caption track
type subtitleFormat struct {
	Ext string `json:"ext"`
	URL string `json:"url"`
}

// Fetch attempts to retrieve captions for a URL. It never returns a Go
// error: every outcome is tagged so the executor can tell "no captions
// exist" and "the fetch broke" apart from "captions retrieved" without
// inspecting error types.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, language string) Outcome {
	info, err := f.probe(ctx, rawURL)
	if err != nil {
		f.logger.Warn("Subtitle probe failed, falling back to download",
			slog.String("url", rawURL),
			slog.Any("error", err),
		)
		return transportError(err)
	}

	selection := selectTrack(info.Subtitles, info.AutomaticCaptions, language, f.defaultLangs)
	if selection == nil {
		f.logger.Info("No subtitles available",
			slog.String("url", rawURL),
		)
		return notAvailable()
	}

	f.logger.Info("Subtitle track selected",
		slog.String("url", rawURL),
		slog.String("language", selection.Language),
		slog.Bool("auto_generated", selection.Auto),
	)

	segments, err := f.download(ctx, selection.Formats)
	if err != nil {
		f.logger.Warn("Subtitle download failed, falling back",
			slog.String("url", rawURL),
			slog.Any("error", err),
		)
		return transportError(err)
	}

	if len(segments) == 0 {
		// A track that parses to nothing is as good as no track
		f.logger.Info("Subtitle track parsed to no segments",
			slog.String("url", rawURL),
		)
		return notAvailable()
	}

	return found(&Transcript{
		Segments:        segments,
		Language:        selection.Language,
		Title:           info.Title,
		DurationSeconds: info.Duration,
	})
}

// probe runs yt-dlp metadata extraction without downloading any media
func (f *Fetcher) probe(ctx context.Context, rawURL string) (*mediaInfo, error) {
	cmd := exec.CommandContext(ctx, f.ytdlpPath,
		"--dump-single-json",
		"--skip-download",
		"--no-warnings",
		"--quiet",
		rawURL,
	)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp probe failed: %w (%s)", err, firstLine(stderr.String()))
	}

	var info mediaInfo
	if err := json.Unmarshal([]byte(stdout.String()), &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp metadata: %w", err)
	}

	return &info, nil
}

// download fetches the best-parseable rendition of the selected track:
// json3 when the platform offers it, otherwise VTT/SRT
func (f *Fetcher) download(ctx context.Context, formats []subtitleFormat) ([]domain.Segment, error) {
	if url := formatURL(formats, "json3"); url != "" {
		body, err := f.get(ctx, url)
		if err != nil {
			return nil, err
		}
		return parseJSON3(body)
	}

	url := formatURL(formats, "vtt")
	if url == "" {
		url = formatURL(formats, "srt")
	}
	if url == "" && len(formats) > 0 {
		url = formats[0].URL
	}
	if url == "" {
		return nil, fmt.Errorf("subtitle track has no downloadable format")
	}

	body, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}

	return parseVTT(string(body)), nil
}

// get performs one HTTP fetch of a subtitle payload
func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("subtitle fetch failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("subtitle fetch returned status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

func formatURL(formats []subtitleFormat, ext string) string {
	for _, f := range formats {
		if f.Ext == ext && f.URL != "" {
			return f.URL
		}
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
