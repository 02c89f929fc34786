package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oidanice/tscribe/internal/api/dto"
	"github.com/oidanice/tscribe/internal/cleanup"
	"github.com/oidanice/tscribe/internal/domain"
	"github.com/oidanice/tscribe/internal/formats"
	"github.com/oidanice/tscribe/internal/store"
)

// CreateJob handles POST /api/v1/jobs
// Validates the URL, creates the job record, and enqueues it
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	// The safety gate runs before any record exists: a rejected URL is
	// reported synchronously and never enters the pipeline.
	if err := h.gate.Validate(c.Request.Context(), req.URL); err != nil {
		h.logger.Warn("URL rejected by safety gate",
			slog.String("url", req.URL),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("URL rejected: %s", err.Error()),
		})
		return
	}

	job := domain.Job{
		JobID:             uuid.New().String(),
		URL:               req.URL,
		Status:            domain.StatusQueued,
		RequestedLanguage: req.Language,
		CreatedAt:         time.Now().UTC(),
	}

	if err := h.store.Create(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	// Record first, enqueue second: a worker must never dequeue a job
	// whose record does not exist yet. If the enqueue cannot be made to
	// stick, the record is rolled back so no job lingers in QUEUED with
	// no message behind it.
	body, err := json.Marshal(domain.JobMessage{JobID: job.JobID})
	if err != nil {
		h.logger.Error("Failed to encode job message", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	if err := h.publisher.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to enqueue job, rolling back record",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		if delErr := h.store.Delete(c.Request.Context(), job.JobID); delErr != nil && !errors.Is(delErr, domain.ErrJobNotFound) {
			h.logger.Error("Failed to roll back job record",
				slog.String("job_id", job.JobID),
				slog.String("error", delErr.Error()),
			)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Failed to enqueue job",
		})
		return
	}

	h.logger.Info("Job created",
		slog.String("job_id", job.JobID),
		slog.String("url", job.URL),
	)

	c.JSON(http.StatusCreated, toJobDTO(&job))
}

// GetJob handles GET /api/v1/jobs/:job_id
// Returns the current job snapshot including progress
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.store.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest-first with cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs, err := h.store.List(c.Request.Context(), req.PageSize, cursor)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = *toJobDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&store.Cursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.JobID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
// Synchronous: does not return success until both the record and the
// job's temp artifacts are gone. A delete racing a running job is
// resolved by the executor, which abandons the job on its next guarded
// write.
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	if err := h.store.Delete(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to delete job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete job",
		})
		return
	}

	if err := cleanup.RemoveJobDir(h.dataDir, jobID); err != nil {
		h.logger.Error("Failed to remove job artifacts",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Job record deleted but artifact cleanup failed",
		})
		return
	}

	h.logger.Info("Job deleted", slog.String("job_id", jobID))
	c.Status(http.StatusNoContent)
}

// DownloadTranscript handles GET /api/v1/jobs/:job_id/download/:format
// Exports the finished transcript as srt, vtt, txt, or json
func (h *JobHandler) DownloadTranscript(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	format := c.Param("format")

	job, err := h.store.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	if job.Status != domain.StatusDone {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Transcript not available",
			"status": job.Status,
		})
		return
	}

	segments, err := formats.DecodeSegments(job.ResultSegments)
	if err != nil {
		h.logger.Error("Failed to decode stored transcript",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to decode transcript",
		})
		return
	}

	var body, contentType string
	switch format {
	case "srt":
		body = formats.ToSRT(segments)
		contentType = "application/x-subrip"
	case "vtt":
		body = formats.ToVTT(segments)
		contentType = "text/vtt; charset=utf-8"
	case "txt":
		body = job.ResultText
		contentType = "text/plain; charset=utf-8"
	case "json":
		body, err = formats.ToJSON(segments)
		if err != nil {
			h.logger.Error("Failed to encode transcript", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode transcript",
			})
			return
		}
		contentType = "application/json"
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "format must be one of srt, vtt, txt, json",
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.%s", jobID, format))
	c.Data(http.StatusOK, contentType, []byte(body))
}

func toJobDTO(job *domain.Job) *dto.JobDTO {
	out := &dto.JobDTO{
		JobID:             job.JobID,
		URL:               job.URL,
		Status:            job.Status,
		Title:             job.Title,
		RequestedLanguage: job.RequestedLanguage,
		DetectedLanguage:  job.DetectedLanguage,
		DurationSeconds:   job.DurationSeconds,
		Progress:          job.Progress,
		ResultText:        job.ResultText,
		Source:            job.Source,
		Error:             job.Error,
		CreatedAt:         job.CreatedAt.Format(time.RFC3339),
	}

	if job.CompletedAt != nil {
		out.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}

	// Best-effort: a record written by this service always decodes, so
	// a failure here means hand back the raw text fields without timing.
	if segments, err := formats.DecodeSegments(job.ResultSegments); err == nil {
		out.ResultSegments = segments
	}

	return out
}
