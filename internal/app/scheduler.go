package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetutor/internal/metrics"
	"github.com/Freeeeeet/timetutor/internal/service"
)

// Purger выполняет один проход очистки уведомлений
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (service.PurgeResult, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	cron     *cron.Cron
	purger   Purger
	schedule string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewScheduler создаёт планировщик; пустое расписание отключает задачу
func NewScheduler(purger Purger, schedule string, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))

	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		purger:   purger,
		schedule: schedule,
		timeout:  timeout,
		logger:   logger,
	}

	if schedule == "" {
		return s, nil
	}
	if _, err := s.cron.AddFunc(schedule, s.runPurge); err != nil {
		return nil, fmt.Errorf("add purge job %q: %w", schedule, err)
	}
	return s, nil
}

// Start запускает фоновые задачи
func (s *Scheduler) Start() {
	if s.schedule == "" {
		s.logger.Info("Purge schedule is empty, background purge disabled")
		return
	}
	s.logger.Info("Starting background scheduler", zap.String("purge_schedule", s.schedule))
	s.cron.Start()
}

// Stop останавливает планировщик и ждёт текущую задачу
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("Stopping background scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
	}
}

// runPurge очищает просроченные уведомления по расписанию
func (s *Scheduler) runPurge() {
	if _, err := RunPurge(context.Background(), s.purger, s.timeout, "scheduler", s.logger); err != nil {
		s.logger.Error("Scheduled purge failed", zap.Error(err))
	}
}

// RunPurge выполняет очистку с ограничением по времени и учитывает её в метриках
func RunPurge(ctx context.Context, purger Purger, timeout time.Duration, trigger string, logger *zap.Logger) (service.PurgeResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger.Info("Purge started", zap.String("trigger", trigger))

	res, err := purger.PurgeExpired(ctx, time.Now())
	if err != nil {
		metrics.PurgeRuns.WithLabelValues(trigger, string(service.Classify(err))).Inc()
		return res, err
	}

	metrics.PurgeRuns.WithLabelValues(trigger, "ok").Inc()
	return res, nil
}
