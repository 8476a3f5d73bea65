package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetutor/internal/model"
	"github.com/Freeeeeet/timetutor/internal/repository"
)

// RateInvalidator сбрасывает закешированные ставки
type RateInvalidator interface {
	Invalidate(ctx context.Context, categoryIDs ...string) error
}

type CategoryService struct {
	categoryRepo *repository.CategoryRepository
	rates        repository.RateLookup
	invalidator  RateInvalidator
	logger       *zap.Logger
}

// NewCategoryService создаёт сервис; rates может быть кешем поверх categoryRepo
func NewCategoryService(
	categoryRepo *repository.CategoryRepository,
	rates repository.RateLookup,
	logger *zap.Logger,
) *CategoryService {
	s := &CategoryService{
		categoryRepo: categoryRepo,
		rates:        rates,
		logger:       logger,
	}
	if inv, ok := rates.(RateInvalidator); ok {
		s.invalidator = inv
	}
	return s
}

// CreateCategory создаёт ценовую категорию учителя
func (s *CategoryService) CreateCategory(ctx context.Context, teacherID, name string, hourlyRate decimal.Decimal) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ValidationError("category name is required")
	}
	if hourlyRate.IsNegative() {
		return nil, ValidationError("hourly rate must not be negative")
	}

	category := &model.Category{
		TeacherID:  teacherID,
		Name:       name,
		HourlyRate: hourlyRate,
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, wrapStore("failed to create category", err)
	}

	s.logger.Info("Category created",
		zap.String("category_id", category.ID),
		zap.String("teacher_id", teacherID),
		zap.String("name", name),
		zap.String("hourly_rate", hourlyRate.String()),
	)

	return category, nil
}

// UpdateRate меняет ставку; уже выставленные счета не пересчитываются
func (s *CategoryService) UpdateRate(ctx context.Context, teacherID, categoryID string, hourlyRate decimal.Decimal) (*model.Category, error) {
	if hourlyRate.IsNegative() {
		return nil, ValidationError("hourly rate must not be negative")
	}

	category, err := s.categoryRepo.GetByID(ctx, categoryID)
	if err != nil {
		return nil, wrapStore("failed to load category", err)
	}
	if category == nil {
		return nil, ValidationError("category not found")
	}
	if category.TeacherID != teacherID {
		return nil, AuthError("not permitted")
	}

	if err := s.categoryRepo.UpdateRate(ctx, categoryID, hourlyRate); err != nil {
		return nil, wrapStore("failed to update rate", err)
	}
	category.HourlyRate = hourlyRate

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, categoryID); err != nil {
			s.logger.Warn("Failed to invalidate cached rate",
				zap.String("category_id", categoryID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Category rate updated",
		zap.String("category_id", categoryID),
		zap.String("teacher_id", teacherID),
		zap.String("hourly_rate", hourlyRate.String()),
	)

	return category, nil
}

// ListCategories получает категории учителя
func (s *CategoryService) ListCategories(ctx context.Context, teacherID string) ([]*model.Category, error) {
	categories, err := s.categoryRepo.GetByTeacherID(ctx, teacherID)
	if err != nil {
		return nil, wrapStore("failed to list categories", err)
	}
	return categories, nil
}

// Rates возвращает ставки по ID категорий
func (s *CategoryService) Rates(ctx context.Context, categoryIDs []string) (map[string]decimal.Decimal, error) {
	rates, err := s.rates.Rates(ctx, categoryIDs)
	if err != nil {
		return nil, wrapStore("failed to load rates", err)
	}
	return rates, nil
}
