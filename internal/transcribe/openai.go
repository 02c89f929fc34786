package transcribe

import (
	"context"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oidanice/tscribe/internal/domain"
)

// OpenAIEngine sends the audio artifact to the OpenAI transcription API.
// The API gives no mid-flight feedback, so progress is reported as coarse
// milestones around the single blocking call.
type OpenAIEngine struct {
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAI creates an OpenAIEngine
func NewOpenAI(apiKey string, logger *slog.Logger) *OpenAIEngine {
	return &OpenAIEngine{
		client: openai.NewClient(apiKey),
		logger: logger,
	}
}

// Transcribe implements Engine
func (e *OpenAIEngine) Transcribe(ctx context.Context, audioPath, language string, onProgress ProgressFunc) (*Result, error) {
	if onProgress != nil {
		onProgress(5)
	}

	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.TranscriptionError{Cause: err.Error(), Err: err}
	}

	if onProgress != nil {
		onProgress(95)
	}

	result := &Result{Language: resp.Language}
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		result.Segments = append(result.Segments, domain.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		})
	}

	// verbose_json should always carry segments, but fall back to the
	// flat text so a successful API call never looks like a failure
	if len(result.Segments) == 0 && strings.TrimSpace(resp.Text) != "" {
		result.Segments = append(result.Segments, domain.Segment{
			Start: 0,
			End:   resp.Duration,
			Text:  strings.TrimSpace(resp.Text),
		})
	}

	return result, nil
}
