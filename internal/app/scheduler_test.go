package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetutor/internal/service"
)

type purgerFunc func(ctx context.Context, now time.Time) (service.PurgeResult, error)

func (f purgerFunc) PurgeExpired(ctx context.Context, now time.Time) (service.PurgeResult, error) {
	return f(ctx, now)
}

func TestRunPurge_AppliesTimeout(t *testing.T) {
	var deadline time.Time
	purger := purgerFunc(func(ctx context.Context, _ time.Time) (service.PurgeResult, error) {
		var ok bool
		deadline, ok = ctx.Deadline()
		require.True(t, ok)
		return service.PurgeResult{Deleted: 3, Batches: 1}, nil
	})

	res, err := RunPurge(context.Background(), purger, time.Minute, "manual", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Deleted)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestRunPurge_ReturnsPartialResultOnError(t *testing.T) {
	purger := purgerFunc(func(ctx context.Context, _ time.Time) (service.PurgeResult, error) {
		<-ctx.Done()
		return service.PurgeResult{Deleted: 400, Batches: 1}, service.PersistenceError("purge expired notifications", ctx.Err())
	})

	res, err := RunPurge(context.Background(), purger, 10*time.Millisecond, "scheduler", zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, 400, res.Deleted)
}

func TestNewScheduler(t *testing.T) {
	purger := purgerFunc(func(context.Context, time.Time) (service.PurgeResult, error) {
		return service.PurgeResult{}, nil
	})

	_, err := NewScheduler(purger, "not a cron line", time.Minute, zap.NewNop())
	assert.Error(t, err)

	s, err := NewScheduler(purger, "", time.Minute, zap.NewNop())
	require.NoError(t, err)
	s.Start()
	s.Stop(context.Background())

	s, err = NewScheduler(purger, "0 3 * * *", time.Minute, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 1)
}
