package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Freeeeeet/timetutor/internal/model"
	"github.com/Freeeeeet/timetutor/internal/repository"
)

type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	logger           *zap.Logger
}

func NewNotificationService(notificationRepo *repository.NotificationRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

// List получает уведомления пользователя
func (s *NotificationService) List(ctx context.Context, userID string) ([]*model.Notification, error) {
	list, err := s.notificationRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, wrapStore("failed to list notifications", err)
	}
	return list, nil
}

// MarkRead отмечает уведомление прочитанным; чужие уведомления недоступны
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	n, err := s.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return wrapStore("failed to load notification", err)
	}
	if n == nil {
		return ValidationError("notification not found")
	}
	if n.TargetUserID != userID {
		return AuthError("not permitted")
	}
	if n.Read {
		return nil
	}

	if err := s.notificationRepo.MarkRead(ctx, notificationID); err != nil {
		return wrapStore("failed to mark notification read", err)
	}

	s.logger.Debug("Notification read",
		zap.String("notification_id", notificationID),
		zap.String("user_id", userID),
	)
	return nil
}
