package handler

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/listing-flyer/internal/profile"
	"github.com/cuongbtq/listing-flyer/internal/worker/domain"
)

// UserIDKey is the gin context key holding the caller identity
const UserIDKey = "user_id"

// JobManager is the subset of worker.Manager the handlers use
type JobManager interface {
	Submit(ctx context.Context, req domain.SubmitRequest) (string, error)
	Subscribe(ctx context.Context, jobID, caller string) (iter.Seq[domain.Event], error)
	Get(jobID, caller string) (domain.Job, error)
	Flyer(jobID, caller string) ([]byte, error)
	List(caller string) []domain.Job
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	ServiceName string
	Jobs        JobManager
	Profiles    profile.Store

	AllowedOrigins []string
	// SubmitRatePerMinute limits job submissions per user. Zero disables the limit.
	SubmitRatePerMinute float64
	SubmitBurst         int
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	jobs   JobManager
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
	}
}

// ProfileHandler handles agent profile requests
type ProfileHandler struct {
	logger   *slog.Logger
	profiles profile.Store
}

// NewProfileHandler creates a new ProfileHandler instance
func NewProfileHandler(deps *Dependencies) *ProfileHandler {
	return &ProfileHandler{
		logger:   deps.Logger,
		profiles: deps.Profiles,
	}
}

// callerID returns the identity set by the router's identity middleware
func callerID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// respondError maps job manager errors to HTTP statuses
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, domain.ErrFlyerNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": "Flyer not ready"})
	case errors.Is(err, domain.ErrManagerClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service shutting down"})
	default:
		logger.Error("Request failed", slog.String("path", c.Request.URL.Path), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
