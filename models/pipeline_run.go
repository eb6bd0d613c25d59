package models

import (
	"time"
)

// PipelineRun records one end-to-end execution: ingest through validation
// and, when enabled, the profile push. Counters mirror the run report so the
// audit trail survives process restarts.
type PipelineRun struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	RunID string `gorm:"size:100;not null;uniqueIndex:uk_pipeline_runs_run_id" json:"run_id"`

	SourceFile       string `gorm:"size:500;not null" json:"source_file"`
	OriginalFilename string `gorm:"size:255" json:"original_filename"`

	Status string `gorm:"size:20;not null;index:idx_pipeline_runs_status" json:"status"`

	InputRows     int `json:"input_rows"`
	FinalRows     int `json:"final_rows"`
	DroppedImages int `json:"dropped_images"`
	DroppedCoords int `json:"dropped_coords"`

	PushedRecords int `json:"pushed_records"`
	PushSuccess   int `json:"push_success"`
	PushErrors    int `json:"push_errors"`

	RejectReason *string `gorm:"size:255" json:"reject_reason,omitempty"`

	StartedAt  time.Time  `gorm:"not null;index:idx_pipeline_runs_started_at" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// Pipeline run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusRejected  = "rejected"
	RunStatusFailed    = "failed"
)
