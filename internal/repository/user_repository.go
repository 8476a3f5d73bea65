package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/timetutor/internal/docstore"
	"github.com/Freeeeeet/timetutor/internal/model"
	"github.com/Freeeeeet/timetutor/internal/repository/base"
)

const UsersCollection = "users"

type UserRepository struct {
	*base.Repository
}

func NewUserRepository(store docstore.Store) *UserRepository {
	return &UserRepository{Repository: base.NewRepository(store, UsersCollection)}
}

// Create создаёт нового пользователя; пустой ID генерируется хранилищем
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.ID != "" {
		doc, err := docstore.Encode(user)
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		err = r.Store().Batch(ctx, []docstore.Op{docstore.CreateOp(UsersCollection, user.ID, doc)})
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	}

	id, err := r.Repository.Create(ctx, user)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	found, err := r.Get(ctx, id, &user)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if !found {
		return nil, nil // Пользователь не найден
	}
	return &user, nil
}

// GetByIDs получает пользователей по списку ID, отсутствующие пропускаются
func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	users := make(map[string]*model.User, len(ids))
	for _, id := range ids {
		if _, ok := users[id]; ok {
			continue
		}
		user, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if user != nil {
			users[id] = user
		}
	}
	return users, nil
}
