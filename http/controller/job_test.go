package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wwada/optiroute/config"
	"github.com/wwada/optiroute/entity"
	"github.com/wwada/optiroute/http/controller/dto"
	"github.com/wwada/optiroute/infra"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fakeJobStore struct {
	jobs      map[uuid.UUID]*entity.Job
	createErr error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[uuid.UUID]*entity.Job{}}
}

func (s *fakeJobStore) Create(job *entity.Job) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *fakeJobStore) FindByID(id uuid.UUID) (*entity.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return job, nil
}

func (s *fakeJobStore) UpdateResult(id uuid.UUID, status entity.JobStatus, result datatypes.JSON) error {
	s.jobs[id].Status = status
	s.jobs[id].Result = result
	return nil
}

type fakeStorage struct {
	objects map[string][]byte
	putErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (s *fakeStorage) PutUpload(_ context.Context, objectKey string, data []byte, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[objectKey] = data
	return nil
}

func (s *fakeStorage) RemoveUpload(_ context.Context, objectKey string) error {
	delete(s.objects, objectKey)
	return nil
}

type fakePublisher struct {
	published []uuid.UUID
	err       error
}

func (p *fakePublisher) PublishJobCreated(_ context.Context, jobID uuid.UUID) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, jobID)
	return nil
}

func newTestController(store *fakeJobStore, storage *fakeStorage, publisher *fakePublisher) *Controller {
	return &Controller{
		Config:    &config.Config{EnvConfig: &config.EnvConfig{}},
		Logger:    infra.NewLoggerClient(slog.New(slog.DiscardHandler)),
		Jobs:      store,
		Storage:   storage,
		Publisher: publisher,
	}
}

func newTestRouter(ctrl *Controller) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/upload", ctrl.SubmitJob)
	r.GET("/api/v1/results/:job_id", ctrl.GetJobResult)
	return r
}

func multipartCSV(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestSubmitJobCreatesPendingJobAndPublishesOnce(t *testing.T) {
	store := newFakeJobStore()
	storage := newFakeStorage()
	publisher := &fakePublisher{}
	router := newTestRouter(newTestController(store, storage, publisher))

	body, contentType := multipartCSV(t, "stops.csv", "Krakowska 1, Wrocław\nRynek 9, Wrocław\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp dto.SubmitJobResponseDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	job, ok := store.jobs[resp.JobID]
	require.True(t, ok, "a job row must exist for the returned id")
	assert.Equal(t, entity.JobStatusPending, job.Status)
	assert.Contains(t, storage.objects, job.InputFilePath)

	require.Len(t, publisher.published, 1, "exactly one queue message per submission")
	assert.Equal(t, resp.JobID, publisher.published[0])
}

func TestSubmitJobRejectsNonCSV(t *testing.T) {
	store := newFakeJobStore()
	storage := newFakeStorage()
	router := newTestRouter(newTestController(store, storage, &fakePublisher{}))

	body, contentType := multipartCSV(t, "stops.txt", "whatever")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.jobs)
	assert.Empty(t, storage.objects)
}

func TestSubmitJobRollsBackWhenPublishFails(t *testing.T) {
	store := newFakeJobStore()
	storage := newFakeStorage()
	publisher := &fakePublisher{err: errors.New("broker unreachable")}
	router := newTestRouter(newTestController(store, storage, publisher))

	body, contentType := multipartCSV(t, "stops.csv", "a\nb\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)

	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		assert.Equal(t, entity.JobStatusFailed, job.Status, "no orphaned PENDING row without a queue message")
		assert.NotEmpty(t, job.Result)
	}
	assert.Empty(t, storage.objects, "the stored upload is removed on rollback")
}

func TestGetJobResultReturnsRowVerbatim(t *testing.T) {
	store := newFakeJobStore()
	job := &entity.Job{
		ID:     uuid.New(),
		Status: entity.JobStatusCompleted,
		Result: datatypes.JSON(`{"message":"route optimized successfully"}`),
	}
	store.jobs[job.ID] = job
	router := newTestRouter(newTestController(store, newFakeStorage(), &fakePublisher{}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/results/"+job.ID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.JobStatusResponseDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, job.ID, resp.JobID)
	assert.Equal(t, entity.JobStatusCompleted, resp.Status)
	assert.JSONEq(t, string(job.Result), string(resp.Result))
}

func TestGetJobResultUnknownID(t *testing.T) {
	router := newTestRouter(newTestController(newFakeJobStore(), newFakeStorage(), &fakePublisher{}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/results/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetJobResultInvalidID(t *testing.T) {
	router := newTestRouter(newTestController(newFakeJobStore(), newFakeStorage(), &fakePublisher{}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/results/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
