package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Freeeeeet/timetutor/internal/docstore"
	"github.com/Freeeeeet/timetutor/internal/model"
	"github.com/Freeeeeet/timetutor/internal/repository"
)

type UserService struct {
	userRepo *repository.UserRepository
	logger   *zap.Logger
}

func NewUserService(userRepo *repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// EnsureUser создаёт профиль при первом обращении или обновляет имя и роль
func (s *UserService) EnsureUser(ctx context.Context, id, name, role string) (*model.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, AuthError("missing user id")
	}
	if role != model.RoleTeacher && role != model.RoleStudent {
		return nil, AuthError("unknown role")
	}

	// Проверяем существует ли пользователь
	existing, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapStore("failed to load user", err)
	}

	if existing != nil {
		if (name == "" || existing.Name == name) && existing.Role == role {
			return existing, nil
		}
		if name != "" {
			existing.Name = name
		}
		existing.Role = role
		if err := s.userRepo.Replace(ctx, id, existing); err != nil {
			return nil, wrapStore("failed to update user", err)
		}

		s.logger.Info("User updated",
			zap.String("user_id", id),
			zap.String("role", role),
		)
		return existing, nil
	}

	// Создаём нового пользователя
	user := &model.User{ID: id, Name: name, Role: role}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Параллельный запрос мог успеть создать профиль
		if errors.Is(err, docstore.ErrConflict) {
			if existing, getErr := s.userRepo.GetByID(ctx, id); getErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, wrapStore("failed to create user", err)
	}

	s.logger.Info("New user registered",
		zap.String("user_id", id),
		zap.String("role", role),
	)
	return user, nil
}

// GetByID получает пользователя по ID
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapStore("failed to load user", err)
	}
	if user == nil {
		return nil, ValidationError("user not found")
	}
	return user, nil
}
