package controller

import (
	"context"

	"github.com/google/uuid"
	"github.com/wwada/optiroute/config"
	"github.com/wwada/optiroute/entity"
	"github.com/wwada/optiroute/infra"
	"github.com/wwada/optiroute/repository"
	"gorm.io/datatypes"
)

// JobStore is the slice of the job repository the HTTP layer needs.
type JobStore interface {
	Create(job *entity.Job) error
	FindByID(id uuid.UUID) (*entity.Job, error)
	UpdateResult(id uuid.UUID, status entity.JobStatus, result datatypes.JSON) error
}

// UploadStorage holds submitted stop files. Satisfied by infra.MinioClient.
type UploadStorage interface {
	PutUpload(ctx context.Context, objectKey string, data []byte, contentType string) error
	RemoveUpload(ctx context.Context, objectKey string) error
}

// JobPublisher enqueues job identifiers. Satisfied by produce.JobService.
type JobPublisher interface {
	PublishJobCreated(ctx context.Context, jobID uuid.UUID) error
}

type Controller struct {
	Config    *config.Config
	Logger    *infra.LoggerClient
	Jobs      JobStore
	Storage   UploadStorage
	Publisher JobPublisher
}

func NewController(cfg *config.Config, infra *infra.Infra, repo *repository.Repository) *Controller {
	if repo == nil {
		panic("Failed to initialize Repository")
	}
	return &Controller{
		Config:    cfg,
		Logger:    infra.Logger,
		Jobs:      repo.JobRepo,
		Storage:   infra.Minio,
		Publisher: infra.Produce.JobService,
	}
}
