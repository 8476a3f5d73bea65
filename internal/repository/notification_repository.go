package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/timetutor/internal/docstore"
	"github.com/Freeeeeet/timetutor/internal/model"
	"github.com/Freeeeeet/timetutor/internal/repository/base"
)

const NotificationsCollection = "notifications"

type NotificationRepository struct {
	*base.Repository
}

func NewNotificationRepository(store docstore.Store) *NotificationRepository {
	return &NotificationRepository{Repository: base.NewRepository(store, NotificationsCollection)}
}

// Create сохраняет уведомление
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	id, err := r.Repository.Create(ctx, n)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	n.ID = id
	return nil
}

// GetByID получает уведомление по ID
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	found, err := r.Get(ctx, id, &n)
	if err != nil {
		return nil, fmt.Errorf("get notification by id: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &n, nil
}

// GetByUser получает уведомления пользователя, новые первыми
func (r *NotificationRepository) GetByUser(ctx context.Context, userID string) ([]*model.Notification, error) {
	docs, err := r.Query(ctx, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("targetUserId", docstore.OpEq, userID)},
		OrderBy: "timestamp",
		Desc:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("get notifications by user: %w", err)
	}

	notifications, err := base.DecodeAll[model.Notification](docs)
	if err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead отмечает уведомление прочитанным
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	if err := r.Update(ctx, id, docstore.Document{"read": true}); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// ExpiredIDs возвращает до limit ID уведомлений с expiresAt <= now, старые первыми
func (r *NotificationRepository) ExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	docs, err := r.Query(ctx, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("expiresAt", docstore.OpLte, now.UnixMilli())},
		OrderBy: "expiresAt",
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get expired notifications: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID())
	}
	return ids, nil
}

// DeleteBatch удаляет уведомления одной атомарной пакетной записью
func (r *NotificationRepository) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ops := make([]docstore.Op, 0, len(ids))
	for _, id := range ids {
		ops = append(ops, docstore.DeleteOp(NotificationsCollection, id))
	}
	if err := r.Store().Batch(ctx, ops); err != nil {
		return fmt.Errorf("delete notifications batch: %w", err)
	}
	return nil
}
