package dto

// CreateJobRequest submits a listing URL. Empty overrides fall back to the stored profile.
type CreateJobRequest struct {
	URL          string `json:"url" binding:"required"`
	Name         string `json:"name"`
	WhatsApp     string `json:"whatsapp"`
	Logo         string `json:"logo"`
	FormURL      string `json:"form_url"`
	NetlifyToken string `json:"netlify_token"`
}

type CreateJobResponse struct {
	JobID string `json:"job_id"`
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
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	SourceURL  string `json:"source_url"`
	ResultURL  string `json:"result_url"`
	CreatedAt  string `json:"created_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}
