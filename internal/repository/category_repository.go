package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Freeeeeet/timetutor/internal/docstore"
	"github.com/Freeeeeet/timetutor/internal/model"
	"github.com/Freeeeeet/timetutor/internal/repository/base"
)

const CategoriesCollection = "categories"

// RateLookup возвращает почасовые ставки по ID категорий.
// Категории без ставки в результат не попадают.
type RateLookup interface {
	Rates(ctx context.Context, categoryIDs []string) (map[string]decimal.Decimal, error)
}

type CategoryRepository struct {
	*base.Repository
}

func NewCategoryRepository(store docstore.Store) *CategoryRepository {
	return &CategoryRepository{Repository: base.NewRepository(store, CategoriesCollection)}
}

// Create создаёт новую категорию
func (r *CategoryRepository) Create(ctx context.Context, category *model.Category) error {
	id, err := r.Repository.Create(ctx, category)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	category.ID = id
	return nil
}

// GetByID получает категорию по ID
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*model.Category, error) {
	var category model.Category
	found, err := r.Get(ctx, id, &category)
	if err != nil {
		return nil, fmt.Errorf("get category by id: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &category, nil
}

// GetByTeacherID получает все категории учителя
func (r *CategoryRepository) GetByTeacherID(ctx context.Context, teacherID string) ([]*model.Category, error) {
	docs, err := r.Query(ctx, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("teacherId", docstore.OpEq, teacherID)},
		OrderBy: "name",
	})
	if err != nil {
		return nil, fmt.Errorf("get categories by teacher: %w", err)
	}

	categories, err := base.DecodeAll[model.Category](docs)
	if err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return categories, nil
}

// UpdateRate обновляет почасовую ставку
func (r *CategoryRepository) UpdateRate(ctx context.Context, id string, rate decimal.Decimal) error {
	if err := r.Update(ctx, id, docstore.Document{"hourlyRate": rate}); err != nil {
		return fmt.Errorf("update category rate: %w", err)
	}
	return nil
}

// Rates реализует RateLookup чтением самих категорий
func (r *CategoryRepository) Rates(ctx context.Context, categoryIDs []string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal, len(categoryIDs))
	for _, id := range categoryIDs {
		category, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if category == nil {
			continue
		}
		rates[id] = category.HourlyRate
	}
	return rates, nil
}
