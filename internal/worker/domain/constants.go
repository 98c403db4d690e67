package domain

// Job status constants
const (
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusError   = "error"
)

// Event kinds delivered to subscribers
const (
	EventProgress  = "progress"
	EventDone      = "done"
	EventError     = "error"
	EventHeartbeat = "heartbeat"
)

// HeartbeatLine is the payload of a heartbeat event
const HeartbeatLine = "⏳"
