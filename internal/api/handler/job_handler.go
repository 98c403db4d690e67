package handler

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/listing-flyer/internal/api/dto"
	"github.com/cuongbtq/listing-flyer/internal/profile"
	"github.com/cuongbtq/listing-flyer/internal/worker/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateJob handles POST /api/v1/jobs
// Starts a flyer job and returns its id without waiting for it
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Falta el link",
		})
		return
	}

	jobID, err := h.jobs.Submit(c.Request.Context(), domain.SubmitRequest{
		URL:   req.URL,
		Owner: callerID(c),
		Overrides: profile.AgentProfile{
			Name:         req.Name,
			Contact:      req.WhatsApp,
			LogoURL:      req.Logo,
			FormURL:      req.FormURL,
			HostingToken: req.NetlifyToken,
		},
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.CreateJobResponse{JobID: jobID})
}

// StreamJob handles GET /api/v1/jobs/:job_id/stream
// Streams progress as server-sent events until the job's terminal event
func (h *JobHandler) StreamJob(c *gin.Context) {
	jobID := c.Param("job_id")

	events, err := h.jobs.Subscribe(c.Request.Context(), jobID, callerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for ev := range events {
		if _, err := io.WriteString(c.Writer, EventFrame(ev)); err != nil {
			h.logger.Debug("Stream subscriber gone",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			return
		}
		c.Writer.Flush()
	}
}

// EventFrame encodes one event in text/event-stream framing. Heartbeats and
// progress lines carry no event name.
func EventFrame(ev domain.Event) string {
	switch ev.Kind {
	case domain.EventDone:
		return "event: done\ndata: " + ev.Data + "\n\n"
	case domain.EventError:
		return "event: error\ndata: Error\n\n"
	default:
		return "data: " + ev.Data + "\n\n"
	}
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Param("job_id"), callerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// GetFlyer handles GET /api/v1/jobs/:job_id/flyer
// Serves the rendered document, also when publishing failed
func (h *JobHandler) GetFlyer(c *gin.Context) {
	html, err := h.jobs.Flyer(c.Param("job_id"), callerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

// ListJobs handles GET /api/v1/jobs
// Lists the caller's jobs newest first with cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	all := h.jobs.List(callerID(c))
	page := make([]domain.Job, 0, req.PageSize+1)
	for _, job := range all {
		if cursor != nil && !cursor.after(job.CreatedAt, job.ID) {
			continue
		}
		page = append(page, job)
		if len(page) > req.PageSize {
			break
		}
	}

	hasMore := len(page) > req.PageSize
	if hasMore {
		page = page[:req.PageSize]
	}

	resp := dto.ListJobsResponse{Jobs: make([]dto.JobDTO, len(page))}
	for i, job := range page {
		resp.Jobs[i] = toJobDTO(job)
	}
	if hasMore {
		last := page[len(page)-1]
		resp.NextCursor = EncodeJobCursor(&JobCursor{CreatedAt: last.CreatedAt, JobID: last.ID})
	}

	c.JSON(http.StatusOK, resp)
}

func toJobDTO(job domain.Job) dto.JobDTO {
	out := dto.JobDTO{
		JobID:     job.ID,
		Status:    job.Status,
		SourceURL: job.SourceURL,
		ResultURL: job.ResultURL,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	}
	if !job.FinishedAt.IsZero() {
		out.FinishedAt = job.FinishedAt.Format(time.RFC3339)
	}
	return out
}
