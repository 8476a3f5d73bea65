package base

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/timetutor/internal/docstore"
)

// Repository базовый репозиторий одной коллекции документов
type Repository struct {
	store      docstore.Store
	collection string
}

// NewRepository создаёт новый базовый репозиторий
func NewRepository(store docstore.Store, collection string) *Repository {
	return &Repository{store: store, collection: collection}
}

// Store возвращает хранилище
func (r *Repository) Store() docstore.Store {
	return r.store
}

// Collection возвращает имя коллекции
func (r *Repository) Collection() string {
	return r.collection
}

// Get читает документ в v; false если документа нет
func (r *Repository) Get(ctx context.Context, id string, v any) (bool, error) {
	doc, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("get %s: %w", r.collection, err)
	}
	if err := docstore.Decode(doc, v); err != nil {
		return false, err
	}
	return true, nil
}

// Query выполняет запрос по коллекции репозитория
func (r *Repository) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	q.Collection = r.collection
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.collection, err)
	}
	return docs, nil
}

// Create сохраняет v как новый документ и возвращает его id
func (r *Repository) Create(ctx context.Context, v any) (string, error) {
	doc, err := docstore.Encode(v)
	if err != nil {
		return "", err
	}
	id, err := r.store.Create(ctx, r.collection, doc)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", r.collection, err)
	}
	return id, nil
}

// Update частично обновляет документ
func (r *Repository) Update(ctx context.Context, id string, fields docstore.Document) error {
	if err := r.store.Update(ctx, r.collection, id, fields); err != nil {
		return fmt.Errorf("update %s: %w", r.collection, err)
	}
	return nil
}

// UpdateIf частично обновляет документ, только если он удовлетворяет where;
// иначе docstore.ErrConflict
func (r *Repository) UpdateIf(ctx context.Context, id string, fields docstore.Document, where ...docstore.Filter) error {
	op := docstore.UpdateOp(r.collection, id, fields, where...)
	if err := r.store.Batch(ctx, []docstore.Op{op}); err != nil {
		return fmt.Errorf("update %s: %w", r.collection, err)
	}
	return nil
}

// Replace перезаписывает все поля документа значениями v;
// поля, которых нет в v, обнуляются
func (r *Repository) Replace(ctx context.Context, id string, v any, where ...docstore.Filter) error {
	return r.ReplaceExcept(ctx, id, v, nil, where...)
}

// ReplaceExcept как Replace, но поля из keep не записываются и не обнуляются
func (r *Repository) ReplaceExcept(ctx context.Context, id string, v any, keep []string, where ...docstore.Filter) error {
	doc, err := docstore.Encode(v)
	if err != nil {
		return err
	}

	cur, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		return fmt.Errorf("replace %s: %w", r.collection, err)
	}
	for k := range cur {
		if _, ok := doc[k]; !ok && k != docstore.IDField {
			doc[k] = nil
		}
	}
	for _, k := range keep {
		delete(doc, k)
	}

	return r.UpdateIf(ctx, id, doc, where...)
}

// Delete удаляет документ
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.collection, id); err != nil {
		return fmt.Errorf("delete %s: %w", r.collection, err)
	}
	return nil
}

// DeleteIf удаляет документ, только если он удовлетворяет where
func (r *Repository) DeleteIf(ctx context.Context, id string, where ...docstore.Filter) error {
	op := docstore.DeleteOp(r.collection, id, where...)
	if err := r.store.Batch(ctx, []docstore.Op{op}); err != nil {
		return fmt.Errorf("delete %s: %w", r.collection, err)
	}
	return nil
}

// IsNotFound проверяет является ли ошибка "документ не найден"
func IsNotFound(err error) bool {
	return errors.Is(err, docstore.ErrNotFound)
}

// IsConflict проверяет что не выполнилось условие записи
func IsConflict(err error) bool {
	return errors.Is(err, docstore.ErrConflict)
}

// DecodeAll раскладывает документы в срез моделей
func DecodeAll[T any](docs []docstore.Document) ([]*T, error) {
	out := make([]*T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := docstore.Decode(doc, &v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, nil
}
