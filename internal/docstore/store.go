// Package docstore хранилище JSON-документов: коллекции документов по id,
// фильтры по полям и атомарная запись пачкой.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// IDField зарезервированный ключ с id документа
const IDField = "id"

var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("document precondition failed")
	ErrQuota    = errors.New("store quota exceeded")
	ErrInvalid  = errors.New("invalid store request")
)

// Document JSON-объект; ключ "id" заполняется при чтении и игнорируется при записи
type Document map[string]any

// ID возвращает id документа или ""
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

type Operator string

const (
	OpEq  Operator = "=="
	OpLt  Operator = "<"
	OpLte Operator = "<="
	OpGt  Operator = ">"
	OpGte Operator = ">="
	OpIn  Operator = "in"
)

func (o Operator) valid() bool {
	switch o {
	case OpEq, OpLt, OpLte, OpGt, OpGte, OpIn:
		return true
	}
	return false
}

// Filter сравнивает поле верхнего уровня со значением.
// Числа сравниваются как числа, строки лексически, bool только на равенство
type Filter struct {
	Field string
	Op    Operator
	Value any
}

func Where(field string, op Operator, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Desc       bool
	Limit      int // 0 = unlimited
}

type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Op одна запись внутри Batch. Для Create id задаёт вызывающий.
// Where проверяется на текущей версии документа при update и delete;
// несовпадение отменяет всю пачку с ErrConflict
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Fields     Document
	Where      []Filter
}

func CreateOp(collection, id string, fields Document) Op {
	return Op{Kind: OpCreate, Collection: collection, ID: id, Fields: fields}
}

func UpdateOp(collection, id string, fields Document, where ...Filter) Op {
	return Op{Kind: OpUpdate, Collection: collection, ID: id, Fields: fields, Where: where}
}

// DeleteOp удаляет документ; отсутствующий документ не ошибка
func DeleteOp(collection, id string, where ...Filter) Op {
	return Op{Kind: OpDelete, Collection: collection, ID: id, Where: where}
}

// Store порт хранения для репозиториев
type Store interface {
	Query(ctx context.Context, q Query) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Create(ctx context.Context, collection string, doc Document) (string, error)
	Update(ctx context.Context, collection, id string, fields Document) error
	// Удаление отсутствующего документа успешно
	Delete(ctx context.Context, collection, id string) error
	// Batch применяет все операции или ни одной
	Batch(ctx context.Context, ops []Op) error
}

func validateQuery(q Query) error {
	if q.Collection == "" {
		return fmt.Errorf("%w: empty collection", ErrInvalid)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalid)
	}
	return validateFilters(q.Filters)
}

func validateFilters(filters []Filter) error {
	for _, f := range filters {
		if f.Field == "" || f.Field == IDField {
			return fmt.Errorf("%w: filter field %q", ErrInvalid, f.Field)
		}
		if !f.Op.valid() {
			return fmt.Errorf("%w: operator %q", ErrInvalid, f.Op)
		}
	}
	return nil
}

func validateOp(op Op) error {
	if op.Collection == "" || op.ID == "" {
		return fmt.Errorf("%w: %s op needs collection and id", ErrInvalid, op.Kind)
	}
	switch op.Kind {
	case OpCreate:
	case OpUpdate, OpDelete:
		return validateFilters(op.Where)
	default:
		return fmt.Errorf("%w: op kind %q", ErrInvalid, op.Kind)
	}
	return nil
}

// Encode переводит структуру в Document через JSON
func Encode(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	delete(doc, IDField)
	return doc, nil
}

// Decode заполняет v из Document через JSON
func Decode(doc Document, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// normalize приводит значение к JSON-типам (float64, string, bool, nil,
// []any, map[string]any), чтобы оба хранилища сравнивали одинаково
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
