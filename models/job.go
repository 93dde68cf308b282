package models

import (
	"time"

	"github.com/google/uuid"
)

// Pool names for the durable job queue
type Pool string

const (
	PoolSubmitted  Pool = "submitted"
	PoolInProgress Pool = "in_progress"
	PoolCompleted  Pool = "completed"
)

// Job is one query+location scraping request. Immutable once created;
// only its queue pool changes.
type Job struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Query       string     `json:"query" db:"query"`
	Location    string     `json:"location" db:"location"`
	Platform    string     `json:"platform" db:"platform"` // google, bing
	Options     JobOptions `json:"options" db:"options"`
	SubmittedAt time.Time  `json:"submitted_at" db:"submitted_at"`
}

// JobOptions carries device/locale/pagination/rendering flags passed
// through to the scraping service.
type JobOptions struct {
	Device      string `json:"device,omitempty" yaml:"device"`
	Locale      string `json:"locale,omitempty" yaml:"locale"`
	Pages       int    `json:"pages,omitempty" yaml:"pages"`
	CaptureHTML bool   `json:"capture_html,omitempty" yaml:"capture_html"`
	CapturePNG  bool   `json:"capture_png,omitempty" yaml:"capture_png"`
}

// QueueRecord wraps a Job with its queue metadata. A job id exists in
// exactly one pool at any observable instant.
type QueueRecord struct {
	Job                Job        `json:"job"`
	Pool               Pool       `json:"pool"`
	EnqueuedAt         time.Time  `json:"enqueued_at"`
	MovedToProgressAt  *time.Time `json:"moved_to_progress_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}
