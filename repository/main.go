package repository

import (
	"github.com/wwada/optiroute/infra"
)

type Repository struct {
	JobRepo *JobRepository
}

func InitRepository(infra *infra.Infra) *Repository {
	return &Repository{
		JobRepo: NewJobRepository(infra.Postgres.DB),
	}
}
