package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/timetutor/internal/docstore"
	"github.com/Freeeeeet/timetutor/internal/model"
	"github.com/Freeeeeet/timetutor/internal/repository/base"
)

const InvoicesCollection = "invoices"

type InvoiceRepository struct {
	*base.Repository
}

func NewInvoiceRepository(store docstore.Store) *InvoiceRepository {
	return &InvoiceRepository{Repository: base.NewRepository(store, InvoicesCollection)}
}

// CreateWithLessons одной пакетной записью создаёт счёт и помечает все его
// занятия выставленными. Если хотя бы одно занятие уже в счёте или его
// посещаемость к моменту записи не отмечена, ничего не пишется и возвращается
// docstore.ErrConflict
func (r *InvoiceRepository) CreateWithLessons(ctx context.Context, invoice *model.Invoice) error {
	if invoice.ID == "" {
		return fmt.Errorf("create invoice: %w: id is required", docstore.ErrInvalid)
	}

	doc, err := docstore.Encode(invoice)
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}

	ops := make([]docstore.Op, 0, len(invoice.LessonIDs)+1)
	ops = append(ops, docstore.CreateOp(InvoicesCollection, invoice.ID, doc))
	for _, lessonID := range invoice.LessonIDs {
		ops = append(ops, billOp(lessonID, invoice.ID))
	}

	if err := r.Store().Batch(ctx, ops); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// GetByID получает счёт по ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*model.Invoice, error) {
	var invoice model.Invoice
	found, err := r.Get(ctx, id, &invoice)
	if err != nil {
		return nil, fmt.Errorf("get invoice by id: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &invoice, nil
}

// List получает счета учителя, при studentID != "" только этого ученика
func (r *InvoiceRepository) List(ctx context.Context, teacherID, studentID string) ([]*model.Invoice, error) {
	var filters []docstore.Filter
	if teacherID != "" {
		filters = append(filters, docstore.Where("teacherId", docstore.OpEq, teacherID))
	}
	if studentID != "" {
		filters = append(filters, docstore.Where("studentId", docstore.OpEq, studentID))
	}

	docs, err := r.Query(ctx, docstore.Query{Filters: filters, OrderBy: "date", Desc: true})
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	invoices, err := base.DecodeAll[model.Invoice](docs)
	if err != nil {
		return nil, fmt.Errorf("decode invoices: %w", err)
	}
	return invoices, nil
}

// MarkPaid отмечает счёт оплаченным
func (r *InvoiceRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	err := r.Update(ctx, id, docstore.Document{"paid": true, "paidAt": paidAt.UTC()})
	if err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}
	return nil
}
