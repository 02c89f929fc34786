package transcribe

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oidanice/tscribe/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResult_Text(t *testing.T) {
	result := &Result{
		Segments: []domain.Segment{
			{Start: 0, End: 2, Text: "hello"},
			{Start: 2, End: 4, Text: "world"},
		},
	}
	assert.Equal(t, "hello\nworld", result.Text())

	empty := &Result{}
	assert.Equal(t, "", empty.Text())
}
