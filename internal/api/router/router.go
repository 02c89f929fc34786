package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oidanice/tscribe/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "tscribe-api",
		})
	})

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Submit a URL for transcription
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs with cursor pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job snapshot
			jobs.GET("/:job_id", jobHandler.GetJob)

			// DELETE /api/v1/jobs/:job_id - Delete job and artifacts
			jobs.DELETE("/:job_id", jobHandler.DeleteJob)

			// GET /api/v1/jobs/:job_id/download/:format - Export transcript
			jobs.GET("/:job_id/download/:format", jobHandler.DownloadTranscript)
		}
	}

	return r
}
