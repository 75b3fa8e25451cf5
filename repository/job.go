package repository

import (
	"github.com/google/uuid"
	"github.com/wwada/optiroute/entity"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *entity.Job) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) FindByID(id uuid.UUID) (*entity.Job, error) {
	var job entity.Job
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) UpdateStatus(id uuid.UUID, status entity.JobStatus) error {
	return r.db.Model(&entity.Job{}).Where("id = ?", id).Update("status", status).Error
}

// UpdateResult sets the terminal status and result payload in a single
// update so a concurrent status read never sees one without the other.
func (r *JobRepository) UpdateResult(id uuid.UUID, status entity.JobStatus, result datatypes.JSON) error {
	return r.db.Model(&entity.Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status": status,
		"result": result,
	}).Error
}
