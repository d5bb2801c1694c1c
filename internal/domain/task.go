package domain

import (
	"time"
)

// Task is one unit of asynchronous work tracked through its lifecycle.
//
// Status moves along exactly one of these paths:
//
//	waiting -> processing -> completed
//	waiting -> processing -> error
//	waiting -> error                  (admission denied)
//
// A task never returns to waiting after leaving it, and once terminal it is
// only ever mutated by the reaper (deletion) or annotated with webhook
// delivery state.
type Task struct {
	ID       string     `json:"id"`
	Type     TaskType   `json:"task_type"`
	Status   TaskStatus `json:"status"`
	OwnerKey string     `json:"owner_key"`
	Payload  Payload    `json:"payload"`

	WebhookURL    string        `json:"webhook_url,omitempty"`
	WebhookStatus WebhookStatus `json:"webhook_status,omitempty"`
	WebhookError  string        `json:"webhook_error,omitempty"`

	CreatedAt   time.Time  `json:"created_time"`
	StartedAt   *time.Time `json:"started_time,omitempty"`
	CompletedAt *time.Time `json:"completed_time,omitempty"`

	// Result is the stored artifact reference, set only on completion.
	Result string `json:"file,omitempty"`
	// ErrorDetail is the human-readable cause, set only on error.
	ErrorDetail string `json:"error,omitempty"`
}

// Clone returns a deep copy of the task. The store hands out clones so that
// callers can never mutate registry state outside of Mutate.
func (t *Task) Clone() *Task {
	c := *t
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	return &c
}
