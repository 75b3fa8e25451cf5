package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wwada/optiroute/entity"
	"github.com/wwada/optiroute/http/controller/dto"
	"github.com/wwada/optiroute/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubmitJob accepts a CSV of stops, stores it, creates a PENDING job and
// enqueues its id. If the queue publish fails the just-created row is
// marked FAILED and the upload removed, so no orphaned PENDING job is
// left behind without a message.
func (ctrl *Controller) SubmitJob(c *gin.Context) {
	ctx := c.Request.Context()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.JSON400(c, "Missing file upload")
		return
	}

	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		utils.JSON400(c, "Invalid file type. Only CSV accepted.")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctrl.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to open uploaded file: %v", err)
		utils.JSON500(c, "Failed to read uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		ctrl.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to read uploaded file: %v", err)
		utils.JSON500(c, "Failed to read uploaded file")
		return
	}

	jobID := uuid.New()
	objectKey := fmt.Sprintf("%s_%s", jobID, fileHeader.Filename)

	if err := ctrl.Storage.PutUpload(ctx, objectKey, data, "text/csv"); err != nil {
		ctrl.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to store upload: %v", err)
		utils.JSON500(c, "Failed to store uploaded file")
		return
	}

	job := &entity.Job{
		ID:            jobID,
		Status:        entity.JobStatusPending,
		InputFilePath: objectKey,
	}

	if err := ctrl.Jobs.Create(job); err != nil {
		ctrl.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to create job row: %v", err)
		if rollbackErr := ctrl.Storage.RemoveUpload(ctx, objectKey); rollbackErr != nil {
			ctrl.Logger.ErrorWithContextf(ctx, rollbackErr, "[Job] Failed to remove upload after database error: %v", rollbackErr)
		}
		utils.JSON500(c, "Failed to create job")
		return
	}

	if err := ctrl.Publisher.PublishJobCreated(ctx, jobID); err != nil {
		ctrl.Logger.ErrorWithContextf(ctx, err, "[Job] [%s] Failed to publish job message: %v", jobID, err)

		jobErr, _ := json.Marshal(entity.JobError{
			Kind:    entity.JobErrorKindProvider,
			Message: "job could not be queued",
		})
		if markErr := ctrl.Jobs.UpdateResult(jobID, entity.JobStatusFailed, datatypes.JSON(jobErr)); markErr != nil {
			ctrl.Logger.ErrorWithContextf(ctx, markErr, "[Job] [%s] Failed to mark job FAILED after publish error: %v", jobID, markErr)
		}
		if rollbackErr := ctrl.Storage.RemoveUpload(ctx, objectKey); rollbackErr != nil {
			ctrl.Logger.ErrorWithContextf(ctx, rollbackErr, "[Job] [%s] Failed to remove upload after publish error: %v", jobID, rollbackErr)
		}

		utils.JSON500(c, "Could not queue job")
		return
	}

	ctrl.Logger.InfoWithContextf(ctx, "[Job] [%s] Submitted with %d bytes of input", jobID, len(data))
	utils.JSON201(c, dto.SubmitJobResponseDTO{JobID: jobID})
}

// GetJobResult returns the job row verbatim: id, status and the stored
// result payload.
func (ctrl *Controller) GetJobResult(c *gin.Context) {
	ctx := c.Request.Context()

	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		utils.JSON400(c, "Invalid job id")
		return
	}

	job, err := ctrl.Jobs.FindByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.JSON404(c, "Job not found")
			return
		}
		ctrl.Logger.ErrorWithContextf(ctx, err, "[Job] [%s] Failed to load job: %v", jobID, err)
		utils.JSON500(c, "Failed to load job")
		return
	}

	utils.JSON200(c, dto.JobStatusResponseDTO{
		JobID:  job.ID,
		Status: job.Status,
		Result: job.Result,
	})
}

func (ctrl *Controller) Health(c *gin.Context) {
	utils.JSON200(c, gin.H{"status": "ok"})
}
