package models

import "time"

// RunStatus is the outcome of an import run
type RunStatus string

const (
	RunInProgress RunStatus = "in_progress"
	RunSucceeded  RunStatus = "success"
	RunFailed     RunStatus = "failed"
)

// ImportRun records one pipeline execution and its summary counters
type ImportRun struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	RunID        string         `gorm:"type:varchar(36);not null;uniqueIndex" json:"run_id"`
	Source       string         `gorm:"type:text;not null" json:"source"`
	Status       RunStatus      `gorm:"type:varchar(50);not null" json:"status"`
	DryRun       bool           `gorm:"not null;default:false" json:"dry_run"`
	Channels     int            `gorm:"not null;default:0" json:"channels"`
	Programmes   int            `gorm:"not null;default:0" json:"programmes"`
	Summary      map[string]int `gorm:"type:text;serializer:json" json:"summary,omitempty"`
	StartedAt    time.Time      `gorm:"not null" json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage *string        `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for ImportRun
func (ImportRun) TableName() string {
	return "import_runs"
}

// All returns every model in migration order
func All() []interface{} {
	return []interface{}{
		&Channel{},
		&ScheduleEntry{},
		&ChannelOverride{},
		&CategoryRecord{},
		&UndefinedCategory{},
		&CategoryOverride{},
		&ImportRun{},
	}
}
