package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/listing-flyer/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(deps.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": deps.ServiceName,
		})
	})

	jobHandler := handler.NewJobHandler(deps)
	profileHandler := handler.NewProfileHandler(deps)

	v1 := r.Group("/api/v1", IdentityMiddleware())
	{
		jobs := v1.Group("/jobs")
		{
			submit := []gin.HandlerFunc{jobHandler.CreateJob}
			if deps.SubmitRatePerMinute > 0 {
				submit = append([]gin.HandlerFunc{RateLimitMiddleware(deps.SubmitRatePerMinute, deps.SubmitBurst)}, submit...)
			}

			// POST /api/v1/jobs - Start a flyer job
			jobs.POST("", submit...)

			// GET /api/v1/jobs - List the caller's jobs
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Job status snapshot
			jobs.GET("/:job_id", jobHandler.GetJob)

			// GET /api/v1/jobs/:job_id/stream - Progress as server-sent events
			jobs.GET("/:job_id/stream", jobHandler.StreamJob)

			// GET /api/v1/jobs/:job_id/flyer - Rendered flyer document
			jobs.GET("/:job_id/flyer", jobHandler.GetFlyer)
		}

		v1.GET("/profile", profileHandler.GetProfile)
		v1.PUT("/profile", profileHandler.UpdateProfile)
	}

	return r
}
