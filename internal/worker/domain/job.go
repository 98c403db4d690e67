package domain

import (
	"time"

	"github.com/cuongbtq/listing-flyer/internal/profile"
)

// Job is a point-in-time copy of one flyer job
type Job struct {
	ID         string
	Owner      string
	Status     string
	SourceURL  string
	ResultURL  string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// Finished reports whether the job reached a terminal status
func (j Job) Finished() bool {
	return j.Status == JobStatusDone || j.Status == JobStatusError
}

// Event is one unit of a job's progress stream
type Event struct {
	Kind string
	// Data is the status line for progress events and the result URL for done events
	Data string
}

// Terminal reports whether no event follows e
func (e Event) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}

// SubmitRequest asks for a flyer of URL on behalf of Owner.
// Non-empty Overrides fields replace the owner's stored profile.
type SubmitRequest struct {
	URL       string
	Owner     string
	Overrides profile.AgentProfile
}

// CompletionEvent is published once per finished job
type CompletionEvent struct {
	JobID       string    `json:"job_id"`
	UserID      string    `json:"user_id"`
	Status      string    `json:"status"`
	ResultURL   string    `json:"result_url"`
	CompletedAt time.Time `json:"completed_at"`
}
