package domain

import (
	"time"
)

// CreateTaskRequest represents the request body for creating a new Task.
type CreateTaskRequest struct {
	TaskType    TaskType  `json:"task_type" validate:"required,oneof=fetch_media fetch_metadata fetch_live"`
	URL         string    `json:"url" validate:"required,url"`
	Kind        MediaKind `json:"kind,omitempty" validate:"omitempty,oneof=video audio"`
	VideoFormat string    `json:"video_format,omitempty"`
	AudioFormat string    `json:"audio_format,omitempty"`
	Quality     string    `json:"quality,omitempty"`
	StartOffset int       `json:"start_offset,omitempty" validate:"omitempty,min=0"`
	Duration    int       `json:"duration,omitempty" validate:"omitempty,min=0"`
	WebhookURL  string    `json:"webhook_url,omitempty" validate:"omitempty,url"`
}

// Payload builds the immutable handler payload captured at creation time.
func (r *CreateTaskRequest) ToPayload() Payload {
	kind := r.Kind
	if kind == "" {
		kind = MediaKindVideo
	}
	return Payload{
		URL:         r.URL,
		Kind:        kind,
		VideoFormat: r.VideoFormat,
		AudioFormat: r.AudioFormat,
		Quality:     r.Quality,
		StartOffset: r.StartOffset,
		Duration:    r.Duration,
	}
}

// CreateTaskResponse is returned after a task has been accepted.
type CreateTaskResponse struct {
	Status TaskStatus `json:"status"`
	TaskID string     `json:"task_id"`
}

// TaskResponse represents the full task state returned by status queries.
type TaskResponse struct {
	ID            string        `json:"id"`
	TaskType      TaskType      `json:"task_type"`
	Status        TaskStatus    `json:"status"`
	Payload       Payload       `json:"payload"`
	WebhookStatus WebhookStatus `json:"webhook_status,omitempty"`
	WebhookError  string        `json:"webhook_error,omitempty"`
	CreatedAt     time.Time     `json:"created_time"`
	StartedAt     *time.Time    `json:"started_time,omitempty"`
	CompletedAt   *time.Time    `json:"completed_time,omitempty"`
	File          string        `json:"file,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// NewTaskResponse maps a Task to its API representation.
func NewTaskResponse(t *Task) TaskResponse {
	return TaskResponse{
		ID:            t.ID,
		TaskType:      t.Type,
		Status:        t.Status,
		Payload:       t.Payload,
		WebhookStatus: t.WebhookStatus,
		WebhookError:  t.WebhookError,
		CreatedAt:     t.CreatedAt,
		StartedAt:     t.StartedAt,
		CompletedAt:   t.CompletedAt,
		File:          t.Result,
		Error:         t.ErrorDetail,
	}
}
