package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// IsTerminal reports whether no further transition may leave the status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type Job struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Status        JobStatus      `json:"status" gorm:"not null;index;default:PENDING"`
	InputFilePath string         `json:"input_file_path" gorm:"type:text"`
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime"`
	Result        datatypes.JSON `json:"result" gorm:"type:jsonb"`
}

func (Job) TableName() string {
	return "jobs"
}

type JobErrorKind string

const (
	JobErrorKindInput    JobErrorKind = "input"
	JobErrorKindProvider JobErrorKind = "provider"
)

// JobError is the structured error shape stored in Job.Result for FAILED
// jobs. Upstream error text is carried in Detail, never exposed raw.
type JobError struct {
	Kind    JobErrorKind `json:"kind"`
	Message string       `json:"message"`
	Detail  string       `json:"detail,omitempty"`
}

// JobResult is the payload stored in Job.Result for COMPLETED jobs.
type JobResult struct {
	Message         string       `json:"message"`
	ParsedRowsCount int          `json:"parsed_rows_count"`
	SkippedStops    int          `json:"skipped_stops,omitempty"`
	Route           *RouteResult `json:"route,omitempty"`
}
