package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/timetutor/internal/metrics"
)

const (
	DefaultPurgeBatchSize  = 400
	DefaultPurgeMaxBatches = 50
)

// ExpiredNotifications источник просроченных уведомлений для очистки
type ExpiredNotifications interface {
	ExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error)
	DeleteBatch(ctx context.Context, ids []string) error
}

// PurgeResult итог одного запуска очистки
type PurgeResult struct {
	Deleted      int           `json:"deleted"`
	Batches      int           `json:"batches"`
	Duration     time.Duration `json:"-"`
	LimitReached bool          `json:"limitReached"`
}

type PurgeService struct {
	store      ExpiredNotifications
	batchSize  int
	maxBatches int
	logger     *zap.Logger
}

func NewPurgeService(store ExpiredNotifications, batchSize, maxBatches int, logger *zap.Logger) *PurgeService {
	if batchSize <= 0 {
		batchSize = DefaultPurgeBatchSize
	}
	if maxBatches <= 0 {
		maxBatches = DefaultPurgeMaxBatches
	}
	return &PurgeService{
		store:      store,
		batchSize:  batchSize,
		maxBatches: maxBatches,
		logger:     logger,
	}
}

// PurgeExpired удаляет уведомления с expiresAt <= now пачками по batchSize,
// не более maxBatches пачек за запуск. Каждая пачка удаляется атомарно;
// при ошибке уже удалённые пачки остаются удалёнными и возвращается
// частичный результат вместе с ошибкой.
func (s *PurgeService) PurgeExpired(ctx context.Context, now time.Time) (PurgeResult, error) {
	started := time.Now()
	var result PurgeResult
	lastFull := false

	for result.Batches < s.maxBatches {
		if err := ctx.Err(); err != nil {
			return s.fail(result, started, err)
		}

		ids, err := s.store.ExpiredIDs(ctx, now, s.batchSize)
		if err != nil {
			return s.fail(result, started, err)
		}
		if len(ids) == 0 {
			lastFull = false
			break
		}

		if err := s.store.DeleteBatch(ctx, ids); err != nil {
			return s.fail(result, started, err)
		}

		result.Batches++
		result.Deleted += len(ids)
		lastFull = len(ids) == s.batchSize
		metrics.PurgeBatches.Inc()
		metrics.PurgeDeleted.Add(float64(len(ids)))

		s.logger.Info("Purge batch committed",
			zap.Int("batch", result.Batches),
			zap.Int("size", len(ids)),
			zap.Int("deleted_total", result.Deleted),
		)

		if !lastFull {
			break
		}
	}

	result.LimitReached = result.Batches >= s.maxBatches && lastFull
	if result.LimitReached {
		metrics.PurgeLimitReached.Inc()
	}
	result.Duration = time.Since(started)

	s.logger.Info("Purge finished",
		zap.Int("deleted", result.Deleted),
		zap.Int("batches", result.Batches),
		zap.Bool("limit_reached", result.LimitReached),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

func (s *PurgeService) fail(result PurgeResult, started time.Time, err error) (PurgeResult, error) {
	result.Duration = time.Since(started)
	s.logger.Error("Purge failed",
		zap.Int("deleted", result.Deleted),
		zap.Int("batches", result.Batches),
		zap.Error(err),
	)
	return result, wrapStore("purge expired notifications", err)
}
