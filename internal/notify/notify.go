// Package notify отправляет уведомления без ожидания результата: каждое сообщение
// сохраняется (его потом удалит очистка по сроку) и уходит в каналы доставки.
package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/timetutor/internal/metrics"
	"github.com/Freeeeeet/timetutor/internal/model"
)

// Notifier отправляет уведомление без ожидания результата
type Notifier interface {
	Notify(ctx context.Context, targetUserID, title, message string)
}

// Channel внешний канал доставки (Telegram и т.п.)
type Channel interface {
	Name() string
	Send(ctx context.Context, n *model.Notification) error
}

// Store сохраняет уведомления
type Store interface {
	Create(ctx context.Context, n *model.Notification) error
}

const defaultSendTimeout = 10 * time.Second

type Dispatcher struct {
	store       Store
	channels    []Channel
	ttl         time.Duration
	sendTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
	wg          sync.WaitGroup
}

func NewDispatcher(store Store, ttl time.Duration, logger *zap.Logger, channels ...Channel) *Dispatcher {
	if ttl <= 0 {
		ttl = model.DefaultNotificationTTL
	}
	return &Dispatcher{
		store:       store,
		channels:    channels,
		ttl:         ttl,
		sendTimeout: defaultSendTimeout,
		now:         time.Now,
		logger:      logger,
	}
}

// Notify проверяет аргументы и отправляет в фоне; ошибки только логируются
func (d *Dispatcher) Notify(ctx context.Context, targetUserID, title, message string) {
	if strings.TrimSpace(targetUserID) == "" || strings.TrimSpace(title) == "" || strings.TrimSpace(message) == "" {
		d.logger.Warn("Notification skipped: empty target, title or message",
			zap.String("target_user_id", targetUserID),
			zap.String("title", title),
		)
		return
	}

	now := d.now()
	n := &model.Notification{
		TargetUserID: targetUserID,
		Title:        title,
		Message:      message,
		Timestamp:    now.UnixMilli(),
		ExpiresAt:    now.Add(d.ttl).UnixMilli(),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
		defer cancel()

		d.deliver(sendCtx, n)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, n *model.Notification) {
	if err := d.store.Create(ctx, n); err != nil {
		metrics.NotificationsFailed.WithLabelValues("store").Inc()
		d.logger.Error("Failed to store notification",
			zap.String("target_user_id", n.TargetUserID),
			zap.Error(err),
		)
	} else {
		metrics.NotificationsSent.WithLabelValues("store").Inc()
	}

	for _, ch := range d.channels {
		if err := ch.Send(ctx, n); err != nil {
			metrics.NotificationsFailed.WithLabelValues(ch.Name()).Inc()
			d.logger.Warn("Failed to push notification",
				zap.String("channel", ch.Name()),
				zap.String("target_user_id", n.TargetUserID),
				zap.Error(err),
			)
			continue
		}
		metrics.NotificationsSent.WithLabelValues(ch.Name()).Inc()
	}

	d.logger.Debug("Notification dispatched",
		zap.String("notification_id", n.ID),
		zap.String("target_user_id", n.TargetUserID),
		zap.String("title", n.Title),
	)
}

// Wait ждёт завершения фоновых отправок
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Nop не отправляет ничего
type Nop struct{}

func (Nop) Notify(context.Context, string, string, string) {}
