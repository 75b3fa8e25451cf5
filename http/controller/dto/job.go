package dto

import (
	"github.com/google/uuid"
	"github.com/wwada/optiroute/entity"
	"gorm.io/datatypes"
)

type SubmitJobResponseDTO struct {
	JobID uuid.UUID `json:"job_id"`
}

type JobStatusResponseDTO struct {
	JobID  uuid.UUID        `json:"job_id"`
	Status entity.JobStatus `json:"status"`
	Result datatypes.JSON   `json:"result,omitempty"`
}
