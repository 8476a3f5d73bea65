package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore держит документы в памяти процесса: для тестов и
// локального запуска с STORE_DRIVER=memory
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]Document)}
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	filters, err := normalizeFilters(q.Filters)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Document
	for id, doc := range s.collections[q.Collection] {
		if !matchAll(doc, filters) {
			continue
		}
		out = append(out, withID(doc, id))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compare(out[i][q.OrderBy], out[j][q.OrderBy])
			if c != 0 {
				if q.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return out[i].ID() < out[j].ID()
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return withID(doc, id), nil
}

func (s *MemoryStore) Create(ctx context.Context, collection string, doc Document) (string, error) {
	id := uuid.NewString()
	if err := s.Batch(ctx, []Op{CreateOp(collection, id, doc)}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Document) error {
	return s.Batch(ctx, []Op{UpdateOp(collection, id, fields)})
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	return s.Batch(ctx, []Op{DeleteOp(collection, id)})
}

// Batch применяет операции к копиям затронутых коллекций и подменяет их
// только если все операции прошли
func (s *MemoryStore) Batch(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, op := range ops {
		if err := validateOp(op); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]map[string]Document)
	stage := func(name string) map[string]Document {
		if c, ok := staged[name]; ok {
			return c
		}
		c := make(map[string]Document, len(s.collections[name]))
		for id, doc := range s.collections[name] {
			c[id] = doc
		}
		staged[name] = c
		return c
	}

	for i, op := range ops {
		coll := stage(op.Collection)
		switch op.Kind {
		case OpCreate:
			if _, exists := coll[op.ID]; exists {
				return fmt.Errorf("op %d: create %s/%s: %w", i, op.Collection, op.ID, ErrConflict)
			}
			doc, err := normalizeDoc(op.Fields)
			if err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
			coll[op.ID] = doc
		case OpUpdate:
			cur, exists := coll[op.ID]
			if !exists {
				return fmt.Errorf("op %d: update %s/%s: %w", i, op.Collection, op.ID, ErrNotFound)
			}
			where, err := normalizeFilters(op.Where)
			if err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
			if !matchAll(cur, where) {
				return fmt.Errorf("op %d: update %s/%s: %w", i, op.Collection, op.ID, ErrConflict)
			}
			patch, err := normalizeDoc(op.Fields)
			if err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
			next := make(Document, len(cur)+len(patch))
			for k, v := range cur {
				next[k] = v
			}
			for k, v := range patch {
				next[k] = v
			}
			coll[op.ID] = next
		case OpDelete:
			cur, exists := coll[op.ID]
			if !exists {
				continue
			}
			where, err := normalizeFilters(op.Where)
			if err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
			if !matchAll(cur, where) {
				return fmt.Errorf("op %d: delete %s/%s: %w", i, op.Collection, op.ID, ErrConflict)
			}
			delete(coll, op.ID)
		}
	}

	for name, coll := range staged {
		s.collections[name] = coll
	}
	return nil
}

// Len возвращает число документов в коллекции
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func withID(doc Document, id string) Document {
	out := make(Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out[IDField] = id
	return out
}

func normalizeDoc(doc Document) (Document, error) {
	out := make(Document, len(doc))
	for k, v := range doc {
		if k == IDField {
			continue
		}
		n, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalid, k, err)
		}
		out[k] = n
	}
	return out, nil
}

func normalizeFilters(filters []Filter) ([]Filter, error) {
	out := make([]Filter, len(filters))
	for i, f := range filters {
		v, err := normalize(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: filter %q: %v", ErrInvalid, f.Field, err)
		}
		out[i] = Filter{Field: f.Field, Op: f.Op, Value: v}
	}
	return out, nil
}

func matchAll(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !match(doc, f) {
			return false
		}
	}
	return true
}

func match(doc Document, f Filter) bool {
	v, ok := doc[f.Field]
	if !ok {
		return false
	}
	switch f.Op {
	case OpEq:
		return equal(v, f.Value)
	case OpIn:
		list, ok := f.Value.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if equal(v, item) {
				return true
			}
		}
		return false
	}

	if !orderable(v, f.Value) {
		return false
	}
	c := compare(v, f.Value)
	switch f.Op {
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	}
	return false
}

func orderable(a, b any) bool {
	switch a.(type) {
	case float64:
		_, ok := b.(float64)
		return ok
	case string:
		_, ok := b.(string)
		return ok
	}
	return false
}

func equal(a, b any) bool {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return false
}

// compare упорядочивает значения одного JSON-типа; разные типы
// сортируются по рангу типа
func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case bool:
		bv := b.(bool)
		switch {
		case !av && bv:
			return -1
		case av && !bv:
			return 1
		}
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	}
	return 4
}
