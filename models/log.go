package models

import (
	"time"

	"github.com/google/uuid"
)

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

type PipelineLog struct {
	ID        int64      `json:"id" db:"id"`
	JobID     *uuid.UUID `json:"job_id" db:"job_id"`
	Timestamp time.Time  `json:"timestamp" db:"timestamp"`
	Level     LogLevel   `json:"level" db:"level"`
	Message   string     `json:"message" db:"message"`
	Platform  string     `json:"platform" db:"platform"`
}
