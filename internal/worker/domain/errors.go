package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job is not in the job table
	ErrJobNotFound = errors.New("job not found")

	// ErrForbidden is returned when the caller does not own the job or the job does not exist
	ErrForbidden = errors.New("job not accessible by caller")

	// ErrInvalidURL is returned when a submitted listing URL is empty or not http(s)
	ErrInvalidURL = errors.New("invalid listing url")

	// ErrFlyerNotReady is returned when a job has not rendered its flyer yet
	ErrFlyerNotReady = errors.New("flyer not rendered yet")

	// ErrManagerClosed is returned by Submit after Shutdown
	ErrManagerClosed = errors.New("job manager is shut down")
)

// ValidationError rejects a submission before any job is created
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error for field
func NewValidationError(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// PipelineError terminates a job with an error event
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a new pipeline error for stage
func NewPipelineError(stage string, err error) error {
	return &PipelineError{Stage: stage, Err: err}
}
