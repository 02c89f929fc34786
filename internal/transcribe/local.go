package transcribe

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/oidanice/tscribe/internal/domain"
)

// LocalEngine runs a whisper.cpp CLI binary against the audio file and
// parses its JSON output
type LocalEngine struct {
	whisperPath string
	modelPath   string
	logger      *slog.Logger
}

// NewLocal creates a LocalEngine
func NewLocal(whisperPath, modelPath string, logger *slog.Logger) *LocalEngine {
	return &LocalEngine{
		whisperPath: whisperPath,
		modelPath:   modelPath,
		logger:      logger,
	}
}

// progressRe matches whisper.cpp progress lines like
// "whisper_print_progress_callback: progress =  45%"
var progressRe = regexp.MustCompile(`progress\s*=\s*(\d+)%`)

// Transcribe implements Engine. Progress is scraped from the process
// stderr stream; the subprocess is killed when ctx is cancelled.
func (e *LocalEngine) Transcribe(ctx context.Context, audioPath, language string, onProgress ProgressFunc) (*Result, error) {
	outBase := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))

	lang := language
	if lang == "" {
		lang = "auto"
	}

	cmd := exec.CommandContext(ctx, e.whisperPath,
		"--model", e.modelPath,
		"--file", audioPath,
		"--language", lang,
		"--output-json",
		"--output-file", outBase,
		"--print-progress",
	)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &domain.TranscriptionError{Cause: "cannot attach to engine output", Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &domain.TranscriptionError{
			Cause: fmt.Sprintf("cannot start transcription engine: %v", err),
			Err:   err,
		}
	}

	var (
		wg         sync.WaitGroup
		stderrTail string
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		stderrTail = e.scanProgress(stderr, onProgress)
	}()

	wg.Wait()
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cause := stderrTail
		if cause == "" {
			cause = err.Error()
		}
		return nil, &domain.TranscriptionError{Cause: cause, Err: err}
	}

	result, err := parseWhisperOutput(outBase + ".json")
	if err != nil {
		return nil, &domain.TranscriptionError{
			Cause: "engine produced unreadable output",
			Err:   err,
		}
	}

	if result.Language == "" {
		result.Language = language
	}

	return result, nil
}

// scanProgress forwards progress percentages to the callback and keeps
// the last non-progress line as the failure cause candidate. Percentages
// are filtered to be strictly increasing so the callback contract holds
// even if the engine repeats a value.
func (e *LocalEngine) scanProgress(r io.Reader, onProgress ProgressFunc) string {
	scanner := bufio.NewScanner(r)
	last := -1
	lastLine := ""

	for scanner.Scan() {
		line := scanner.Text()

		match := progressRe.FindStringSubmatch(line)
		if match == nil {
			if strings.TrimSpace(line) != "" {
				lastLine = strings.TrimSpace(line)
			}
			continue
		}

		percent, err := strconv.Atoi(match[1])
		if err != nil || percent <= last || percent > 100 {
			continue
		}
		last = percent
		if onProgress != nil {
			onProgress(percent)
		}
	}

	return lastLine
}

// whisperOutput mirrors whisper.cpp's JSON output file layout
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperOutput(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine output: %w", err)
	}

	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse engine output: %w", err)
	}

	result := &Result{Language: out.Result.Language}
	for _, entry := range out.Transcription {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		result.Segments = append(result.Segments, domain.Segment{
			Start: float64(entry.Offsets.From) / 1000.0,
			End:   float64(entry.Offsets.To) / 1000.0,
			Text:  text,
		})
	}

	return result, nil
}
