package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdRunNow        CommandType = "run_now"
	CmdRunPlatform   CommandType = "run_platform"
	CmdPause         CommandType = "pause"
	CmdResume        CommandType = "resume"
	CmdCancelBatch   CommandType = "cancel_batch"
	CmdRunRenderings CommandType = "run_renderings"
)

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Platform string `json:"platform,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
