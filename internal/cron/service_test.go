package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/srms-platform/srms-backend/pkg/lock"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/metrics"
)

type testJob struct {
	name  string
	err   error
	panic bool
	runs  int
	seen  context.Context
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	t.seen = ctx
	if t.panic {
		panic("nil map write")
	}
	return t.err
}

func newTestService(t *testing.T, locker *lock.MemoryLocker, reg prometheus.Registerer, jobs ...Job) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry:   NewRegistry(jobs...),
		Lock:       locker.For("cron-worker"),
		Metrics:    metrics.NewCronMetrics(reg),
		JobTimeout: time.Minute,
	})
	require.NoError(t, err)
	return service
}

func TestCycleRunsEveryJobAndCollectsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	crash := &testJob{name: "crash", panic: true}
	locker := lock.NewMemoryLocker()
	service := newTestService(t, locker, reg, failure, crash, success)

	res, err := service.runCycle(context.Background())
	require.NoError(t, err)

	assert.True(t, res.ran)
	assert.Equal(t, []string{"fail", "crash"}, res.failed)
	assert.Len(t, multierr.Errors(res.err), 2)
	assert.ErrorIs(t, res.err, failure.err)
	assert.Contains(t, res.err.Error(), "crash: panic: nil map write")
	for _, job := range []*testJob{success, failure, crash} {
		assert.Equal(t, 1, job.runs, job.name)
	}
	assert.False(t, locker.Held("cron-worker"), "cycle releases the lock")

	n, err := testutil.GatherAndCount(reg, "srms_cron_job_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "one series per job and outcome")
	n, err = testutil.GatherAndCount(reg, "srms_cron_cycles_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJobsRunUnderDeadline(t *testing.T) {
	job := &testJob{name: "digest"}
	service := newTestService(t, lock.NewMemoryLocker(), nil, job)

	_, err := service.runCycle(context.Background())
	require.NoError(t, err)
	deadline, ok := job.seen.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestCycleSkippedWhileAnotherReplicaHoldsLock(t *testing.T) {
	job := &testJob{name: "digest"}
	locker := lock.NewMemoryLocker()
	service := newTestService(t, locker, nil, job)

	ok, err := locker.For("cron-worker").Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	res, err := service.runCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, res.ran)
	assert.Zero(t, job.runs)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "once"}
	service := newTestService(t, lock.NewMemoryLocker(), nil, job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := service.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, job.runs, "a canceled context stops before the first job")
}

func TestNewServiceDefaults(t *testing.T) {
	s, err := NewService(ServiceParams{Logger: logger.Nop(), Lock: lock.NewMemoryLocker().For("x")})
	require.NoError(t, err)
	assert.Equal(t, defaultInterval, s.interval)
	assert.Equal(t, defaultInterval, s.jobTimeout)
	assert.Empty(t, s.registry.Names())

	_, err = NewService(ServiceParams{Logger: logger.Nop()})
	assert.EqualError(t, err, "lock required")
}
