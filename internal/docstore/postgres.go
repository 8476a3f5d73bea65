package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier общий интерфейс пула и транзакции
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore хранит документы в таблице documents (jsonb)
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	sql, args, err := querySQL(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, mapError(err))
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Collection, err)
		}
		doc, err := unmarshalDoc(raw, id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.Collection, mapError(err))
	}
	return docs, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, mapError(err))
	}
	return unmarshalDoc(raw, id)
}

func (s *PostgresStore) Create(ctx context.Context, collection string, doc Document) (string, error) {
	id := uuid.NewString()
	if err := applyOp(ctx, s.pool, CreateOp(collection, id, doc)); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields Document) error {
	return applyOp(ctx, s.pool, UpdateOp(collection, id, fields))
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	return applyOp(ctx, s.pool, DeleteOp(collection, id))
}

func (s *PostgresStore) Batch(ctx context.Context, ops []Op) error {
	for _, op := range ops {
		if err := validateOp(op); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", mapError(err))
	}
	defer tx.Rollback(ctx)

	for i, op := range ops {
		if err := applyOp(ctx, tx, op); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", mapError(err))
	}
	return nil
}

func applyOp(ctx context.Context, q querier, op Op) error {
	if err := validateOp(op); err != nil {
		return err
	}

	switch op.Kind {
	case OpCreate:
		data, err := marshalDoc(op.Fields)
		if err != nil {
			return err
		}
		tag, err := q.Exec(ctx,
			`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
			 ON CONFLICT (collection, id) DO NOTHING`,
			op.Collection, op.ID, data,
		)
		if err != nil {
			return fmt.Errorf("create %s/%s: %w", op.Collection, op.ID, mapError(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("create %s/%s: %w", op.Collection, op.ID, ErrConflict)
		}

	case OpUpdate:
		data, err := marshalDoc(op.Fields)
		if err != nil {
			return err
		}
		sql, args, err := updateSQL(op, data)
		if err != nil {
			return err
		}
		tag, err := q.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, mapError(err))
		}
		if tag.RowsAffected() == 0 {
			exists, err := documentExists(ctx, q, op.Collection, op.ID)
			if err != nil {
				return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, err)
			}
			if !exists {
				return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, ErrNotFound)
			}
			return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, ErrConflict)
		}

	case OpDelete:
		sql, args, err := deleteSQL(op)
		if err != nil {
			return err
		}
		tag, err := q.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("delete %s/%s: %w", op.Collection, op.ID, mapError(err))
		}
		// строка осталась, значит не выполнилось условие
		if tag.RowsAffected() == 0 && len(op.Where) > 0 {
			exists, err := documentExists(ctx, q, op.Collection, op.ID)
			if err != nil {
				return fmt.Errorf("delete %s/%s: %w", op.Collection, op.ID, err)
			}
			if exists {
				return fmt.Errorf("delete %s/%s: %w", op.Collection, op.ID, ErrConflict)
			}
		}
	}
	return nil
}

func documentExists(ctx context.Context, q querier, collection, id string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		collection, id,
	).Scan(&exists)
	if err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

// querySQL строит SELECT по запросу; сортировка по полю добивается id для
// стабильных страниц
func querySQL(q Query) (string, []any, error) {
	b := &sqlBuilder{args: []any{q.Collection}}
	sb := strings.Builder{}
	sb.WriteString("SELECT id, data FROM documents WHERE collection = $1")

	for _, f := range q.Filters {
		cond, err := b.condition(f)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" AND ")
		sb.WriteString(cond)
	}

	if q.OrderBy != "" {
		fmt.Fprintf(&sb, " ORDER BY data -> %s::text", b.arg(q.OrderBy))
		if q.Desc {
			sb.WriteString(" DESC")
		}
		sb.WriteString(", id")
	} else {
		sb.WriteString(" ORDER BY id")
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %s", b.arg(q.Limit))
	}
	return sb.String(), b.args, nil
}

// updateSQL строит UPDATE со слиянием jsonb и условиями op.Where
func updateSQL(op Op, data []byte) (string, []any, error) {
	b := &sqlBuilder{args: []any{op.Collection, op.ID, data}}
	sb := strings.Builder{}
	sb.WriteString(`UPDATE documents SET data = data || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`)
	for _, f := range op.Where {
		cond, err := b.condition(f)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" AND ")
		sb.WriteString(cond)
	}
	return sb.String(), b.args, nil
}

// deleteSQL строит DELETE с условиями op.Where
func deleteSQL(op Op) (string, []any, error) {
	b := &sqlBuilder{args: []any{op.Collection, op.ID}}
	sb := strings.Builder{}
	sb.WriteString(`DELETE FROM documents WHERE collection = $1 AND id = $2`)
	for _, f := range op.Where {
		cond, err := b.condition(f)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" AND ")
		sb.WriteString(cond)
	}
	return sb.String(), b.args, nil
}

type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// condition строит условие по полю jsonb; типы значений должны совпадать,
// как и в MemoryStore
func (b *sqlBuilder) condition(f Filter) (string, error) {
	value, err := json.Marshal(f.Value)
	if err != nil {
		return "", fmt.Errorf("%w: filter %q: %v", ErrInvalid, f.Field, err)
	}
	field := b.arg(f.Field)

	if f.Op == OpIn {
		return fmt.Sprintf("%s::jsonb @> jsonb_build_array(data -> %s::text)", b.arg(value), field), nil
	}

	v := b.arg(value)
	op := string(f.Op)
	if f.Op == OpEq {
		op = "="
	}
	return fmt.Sprintf(
		"(jsonb_typeof(data -> %[1]s::text) = jsonb_typeof(%[2]s::jsonb) AND data -> %[1]s::text %[3]s %[2]s::jsonb)",
		field, v, op,
	), nil
}

func marshalDoc(doc Document) ([]byte, error) {
	clean := make(Document, len(doc))
	for k, v := range doc {
		if k != IDField {
			clean[k] = v
		}
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return data, nil
}

func unmarshalDoc(raw []byte, id string) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document %s: %w", id, err)
	}
	if doc == nil {
		doc = Document{}
	}
	doc[IDField] = id
	return doc, nil
}

// mapError приводит ошибки Postgres к ошибкам пакета
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "57014":
			return fmt.Errorf("%w: %s", context.DeadlineExceeded, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "53"):
			return fmt.Errorf("%w: %s", ErrQuota, pgErr.Message)
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		}
	}
	return err
}
