package dto

import "github.com/oidanice/tscribe/internal/domain"

type CreateJobRequest struct {
	URL      string `json:"url" binding:"required"`
	Language string `json:"language"`
}

type ListJobsRequest struct {
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID             string           `json:"job_id"`
	URL               string           `json:"url"`
	Status            string           `json:"status"`
	Title             string           `json:"title,omitempty"`
	RequestedLanguage string           `json:"requested_language,omitempty"`
	DetectedLanguage  string           `json:"detected_language,omitempty"`
	DurationSeconds   float64          `json:"duration_seconds,omitempty"`
	Progress          int              `json:"progress"`
	ResultText        string           `json:"result_text,omitempty"`
	ResultSegments    []domain.Segment `json:"result_segments,omitempty"`
	Source            string           `json:"source,omitempty"`
	Error             string           `json:"error,omitempty"`
	CreatedAt         string           `json:"created_at"`
	CompletedAt       string           `json:"completed_at,omitempty"`
}
