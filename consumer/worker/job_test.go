package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wwada/optiroute/entity"
	"github.com/wwada/optiroute/geocoder"
	"github.com/wwada/optiroute/infra"
	"github.com/wwada/optiroute/optimizer"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fakeStore struct {
	jobs            map[uuid.UUID]*entity.Job
	statusUpdates   []entity.JobStatus
	updateResultErr error
}

func newFakeStore(jobs ...*entity.Job) *fakeStore {
	s := &fakeStore{jobs: map[uuid.UUID]*entity.Job{}}
	for _, job := range jobs {
		s.jobs[job.ID] = job
	}
	return s
}

func (s *fakeStore) FindByID(id uuid.UUID) (*entity.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *fakeStore) UpdateStatus(id uuid.UUID, status entity.JobStatus) error {
	s.statusUpdates = append(s.statusUpdates, status)
	s.jobs[id].Status = status
	return nil
}

func (s *fakeStore) UpdateResult(id uuid.UUID, status entity.JobStatus, result datatypes.JSON) error {
	if s.updateResultErr != nil {
		return s.updateResultErr
	}
	s.statusUpdates = append(s.statusUpdates, status)
	s.jobs[id].Status = status
	s.jobs[id].Result = result
	return nil
}

type fakeInputs struct {
	stops []entity.Stop
	err   error
}

func (f *fakeInputs) Resolve(_ context.Context, _ string) ([]entity.Stop, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stops, nil
}

type fakeAddresses struct {
	known map[string]entity.Coordinates
}

func (f *fakeAddresses) Resolve(_ context.Context, address string) (*entity.Coordinates, error) {
	coords, ok := f.known[address]
	if !ok {
		return nil, geocoder.ErrNotFound
	}
	return &coords, nil
}

type fakeOptimizer struct {
	calls  int
	result *entity.RouteResult
	err    error
}

func (f *fakeOptimizer) Optimize(_ context.Context, _ uuid.UUID, stops []entity.Stop) (*entity.RouteResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestConsumer(store JobStore, inputs InputResolver, addresses AddressResolver, opt Optimizer) *JobConsumer {
	c := NewJobConsumer(nil, store, inputs, addresses, opt, infra.NewLoggerClient(slog.New(slog.DiscardHandler)))
	c.retryWait = func(int) time.Duration { return 0 }
	return c
}

func pendingJob() *entity.Job {
	return &entity.Job{
		ID:            uuid.New(),
		Status:        entity.JobStatusPending,
		InputFilePath: "uploads/stops.csv",
	}
}

func twoResolvableStops() (*fakeInputs, *fakeAddresses) {
	inputs := &fakeInputs{stops: []entity.Stop{{Address: "a"}, {Address: "b"}}}
	addresses := &fakeAddresses{known: map[string]entity.Coordinates{
		"a": {Latitude: 0, Longitude: 0},
		"b": {Latitude: 1, Longitude: 1},
	}}
	return inputs, addresses
}

func TestProcessJobCompletes(t *testing.T) {
	job := pendingJob()
	store := newFakeStore(job)
	inputs, addresses := twoResolvableStops()
	opt := &fakeOptimizer{result: &entity.RouteResult{
		OptimizedOrder: []int{1, 0},
		Geometry:       []entity.GeometryPoint{{Latitude: 1, Longitude: 1}},
	}}

	c := newTestConsumer(store, inputs, addresses, opt)
	require.NoError(t, c.ProcessJob(context.Background(), job.ID))

	// PROCESSING is committed before the terminal state, never skipped.
	assert.Equal(t, []entity.JobStatus{entity.JobStatusProcessing, entity.JobStatusCompleted}, store.statusUpdates)

	var result entity.JobResult
	require.NoError(t, json.Unmarshal(store.jobs[job.ID].Result, &result))
	assert.Equal(t, 2, result.ParsedRowsCount)
	assert.Equal(t, 0, result.SkippedStops)
	require.NotNil(t, result.Route)
	assert.Equal(t, []int{1, 0}, result.Route.OptimizedOrder)
}

func TestProcessJobSkipsTerminalRedelivery(t *testing.T) {
	job := pendingJob()
	job.Status = entity.JobStatusCompleted
	job.Result = datatypes.JSON(`{"message":"done"}`)
	store := newFakeStore(job)
	opt := &fakeOptimizer{}

	c := newTestConsumer(store, &fakeInputs{}, &fakeAddresses{}, opt)
	require.NoError(t, c.ProcessJob(context.Background(), job.ID))

	assert.Empty(t, store.statusUpdates, "terminal state must never be left")
	assert.Equal(t, 0, opt.calls)
	assert.Equal(t, datatypes.JSON(`{"message":"done"}`), store.jobs[job.ID].Result)
}

func TestProcessJobIdempotentAcrossRedelivery(t *testing.T) {
	job := pendingJob()
	store := newFakeStore(job)
	inputs, addresses := twoResolvableStops()
	opt := &fakeOptimizer{result: &entity.RouteResult{OptimizedOrder: []int{0, 1}, Geometry: []entity.GeometryPoint{}}}

	c := newTestConsumer(store, inputs, addresses, opt)
	require.NoError(t, c.ProcessJob(context.Background(), job.ID))
	require.NoError(t, c.ProcessJob(context.Background(), job.ID))

	assert.Equal(t, 1, opt.calls, "redelivery of a finished job must not re-run the optimizer")
	assert.Equal(t, []entity.JobStatus{entity.JobStatusProcessing, entity.JobStatusCompleted}, store.statusUpdates)
}

func TestProcessJobDropsUnknownJob(t *testing.T) {
	store := newFakeStore()
	c := newTestConsumer(store, &fakeInputs{}, &fakeAddresses{}, &fakeOptimizer{})

	require.NoError(t, c.ProcessJob(context.Background(), uuid.New()))
	assert.Empty(t, store.statusUpdates)
}

func TestProcessJobFailsOnUnreadableInput(t *testing.T) {
	job := pendingJob()
	store := newFakeStore(job)
	opt := &fakeOptimizer{}

	c := newTestConsumer(store, &fakeInputs{err: errors.New("object missing")}, &fakeAddresses{}, opt)
	require.NoError(t, c.ProcessJob(context.Background(), job.ID))

	assert.Equal(t, entity.JobStatusFailed, store.jobs[job.ID].Status)
	var jobErr entity.JobError
	require.NoError(t, json.Unmarshal(store.jobs[job.ID].Result, &jobErr))
	assert.Equal(t, entity.JobErrorKindInput, jobErr.Kind)
	assert.Equal(t, 0, opt.calls)
}

func TestProcessJobFailsWhenTooFewStopsGeocode(t *testing.T) {
	job := pendingJob()
	store := newFakeStore(job)
	inputs := &fakeInputs{stops: []entity.Stop{{Address: "a"}, {Address: "b"}, {Address: "c"}}}
	addresses := &fakeAddresses{known: map[string]entity.Coordinates{
		"a": {Latitude: 1, Longitude: 1},
	}}
	opt := &fakeOptimizer{}

	c := newTestConsumer(store, inputs, addresses, opt)
	require.NoError(t, c.ProcessJob(context.Background(), job.ID))

	assert.Equal(t, entity.JobStatusFailed, store.jobs[job.ID].Status)
	var jobErr entity.JobError
	require.NoError(t, json.Unmarshal(store.jobs[job.ID].Result, &jobErr))
	assert.Equal(t, entity.JobErrorKindInput, jobErr.Kind)
	assert.Equal(t, 0, opt.calls, "optimizer must not be called for an input error")
}

func TestProcessJobRetriesThenFailsOnProviderError(t *testing.T) {
	job := pendingJob()
	store := newFakeStore(job)
	inputs, addresses := twoResolvableStops()
	opt := &fakeOptimizer{err: &optimizer.OptimizationError{Detail: "provider returned 500"}}

	c := newTestConsumer(store, inputs, addresses, opt)
	require.NoError(t, c.ProcessJob(context.Background(), job.ID))

	assert.Equal(t, maxOptimizeAttempts, opt.calls)
	assert.Equal(t, entity.JobStatusFailed, store.jobs[job.ID].Status)

	var jobErr entity.JobError
	require.NoError(t, json.Unmarshal(store.jobs[job.ID].Result, &jobErr))
	assert.Equal(t, entity.JobErrorKindProvider, jobErr.Kind)
	assert.Contains(t, jobErr.Detail, "500")
}

func TestProcessJobDoesNotRetryInputErrors(t *testing.T) {
	job := pendingJob()
	store := newFakeStore(job)
	inputs, addresses := twoResolvableStops()
	opt := &fakeOptimizer{err: optimizer.ErrTooFewStops}

	c := newTestConsumer(store, inputs, addresses, opt)
	require.NoError(t, c.ProcessJob(context.Background(), job.ID))

	assert.Equal(t, 1, opt.calls)
	var jobErr entity.JobError
	require.NoError(t, json.Unmarshal(store.jobs[job.ID].Result, &jobErr))
	assert.Equal(t, entity.JobErrorKindInput, jobErr.Kind)
}

func TestProcessJobReportsPersistFailure(t *testing.T) {
	job := pendingJob()
	store := newFakeStore(job)
	store.updateResultErr = errors.New("db down")
	inputs, addresses := twoResolvableStops()
	opt := &fakeOptimizer{result: &entity.RouteResult{OptimizedOrder: []int{0, 1}, Geometry: []entity.GeometryPoint{}}}

	c := newTestConsumer(store, inputs, addresses, opt)
	err := c.ProcessJob(context.Background(), job.ID)
	require.Error(t, err, "unpersisted outcome must surface so the delivery is retried")
}
