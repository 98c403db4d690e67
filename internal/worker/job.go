package worker

import (
	"context"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/listing-flyer/internal/worker/domain"
)

// job is one entry of the job table. Its pipeline is the only producer of events.
type job struct {
	mu     sync.RWMutex
	info   domain.Job
	flyer  []byte
	events *progressQueue
}

func newJob(id, owner, sourceURL string, now time.Time) *job {
	return &job{
		info: domain.Job{
			ID:        id,
			Owner:     owner,
			Status:    domain.JobStatusRunning,
			SourceURL: sourceURL,
			CreatedAt: now,
		},
		events: newProgressQueue(),
	}
}

func (j *job) owner() string {
	return j.info.Owner
}

func (j *job) snapshot() domain.Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.info
}

func (j *job) flyerHTML() []byte {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.flyer
}

func (j *job) setFlyer(html []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.flyer = html
}

// progress queues a status line; newlines are flattened so one line is one frame
func (j *job) progress(line string) {
	j.events.push(domain.Event{
		Kind: domain.EventProgress,
		Data: strings.ReplaceAll(line, "\n", " "),
	})
}

// finish records the terminal status and queues the matching terminal event
func (j *job) finish(status, resultURL string, at time.Time) {
	j.mu.Lock()
	j.info.Status = status
	j.info.ResultURL = resultURL
	j.info.FinishedAt = at
	j.mu.Unlock()

	j.events.push(terminalEvent(status, resultURL))
}

func terminalEvent(status, resultURL string) domain.Event {
	if status == domain.JobStatusDone {
		return domain.Event{Kind: domain.EventDone, Data: resultURL}
	}
	return domain.Event{Kind: domain.EventError}
}

// Subscribe streams the job's events until its terminal event. While the job
// is silent for the heartbeat interval a heartbeat event is yielded instead.
// Events are consumed as they are read; a later subscription of a finished
// job whose events were already drained yields only the terminal event.
func (m *Manager) Subscribe(ctx context.Context, jobID, caller string) (iter.Seq[domain.Event], error) {
	j, err := m.lookup(jobID, caller)
	if err != nil {
		return nil, err
	}

	return func(yield func(domain.Event) bool) {
		if info := j.snapshot(); info.Finished() && j.events.len() == 0 {
			yield(terminalEvent(info.Status, info.ResultURL))
			return
		}

		for {
			ev, ok := j.events.receive(ctx, m.heartbeatInterval)
			if !ok {
				if ctx.Err() != nil {
					return
				}
				ev = domain.Event{Kind: domain.EventHeartbeat, Data: domain.HeartbeatLine}
			}

			if !yield(ev) || ev.Terminal() {
				return
			}
		}
	}, nil
}
