package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// JobCursor marks the last job of a page in newest-first order
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// DecodeJobCursor parses a cursor produced by EncodeJobCursor. An empty string yields nil.
func DecodeJobCursor(cursorStr string) (*JobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	createdAt, jobID, ok := strings.Cut(string(decoded), "|")
	if !ok || jobID == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var nanos int64
	if _, err := fmt.Sscanf(createdAt, "%d", &nanos); err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &JobCursor{
		CreatedAt: time.Unix(0, nanos),
		JobID:     jobID,
	}, nil
}

func EncodeJobCursor(cursor *JobCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.JobID)
	return base64.URLEncoding.EncodeToString([]byte(cs))
}

// after reports whether a job sorts after the cursor in newest-first order
func (c *JobCursor) after(createdAt time.Time, jobID string) bool {
	if !createdAt.Equal(c.CreatedAt) {
		return createdAt.Before(c.CreatedAt)
	}
	return jobID < c.JobID
}
