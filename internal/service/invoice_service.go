package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetutor/internal/billing"
	"github.com/Freeeeeet/timetutor/internal/metrics"
	"github.com/Freeeeeet/timetutor/internal/model"
	"github.com/Freeeeeet/timetutor/internal/notify"
	"github.com/Freeeeeet/timetutor/internal/repository"
)

// InvoiceStore то, что нужно сервису счетов от хранилища
type InvoiceStore interface {
	CreateWithLessons(ctx context.Context, invoice *model.Invoice) error
	GetByID(ctx context.Context, id string) (*model.Invoice, error)
	List(ctx context.Context, teacherID, studentID string) ([]*model.Invoice, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time) error
}

type InvoiceService struct {
	invoiceRepo InvoiceStore
	lessonRepo  *repository.LessonRepository
	userRepo    *repository.UserRepository
	rates       repository.RateLookup
	notifier    notify.Notifier
	now         func() time.Time
	logger      *zap.Logger
}

func NewInvoiceService(
	invoiceRepo InvoiceStore,
	lessonRepo *repository.LessonRepository,
	userRepo *repository.UserRepository,
	rates repository.RateLookup,
	notifier notify.Notifier,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		lessonRepo:  lessonRepo,
		userRepo:    userRepo,
		rates:       rates,
		notifier:    notifier,
		now:         time.Now,
		logger:      logger,
	}
}

// GenerateInvoice выставляет счёт за набор занятий одной пары учитель-ученик.
// Либо все занятия попадают в счёт, либо ничего не меняется.
func (s *InvoiceService) GenerateInvoice(
	ctx context.Context,
	teacherID, studentID string,
	lessons []*model.Lesson,
	rates map[string]decimal.Decimal,
) (*model.Invoice, error) {
	invoice, err := s.generate(ctx, teacherID, studentID, lessons, rates)
	if err != nil {
		metrics.InvoiceRejections.WithLabelValues(string(Classify(err))).Inc()
		return nil, err
	}
	return invoice, nil
}

func (s *InvoiceService) generate(
	ctx context.Context,
	teacherID, studentID string,
	lessons []*model.Lesson,
	rates map[string]decimal.Decimal,
) (*model.Invoice, error) {
	if len(lessons) == 0 {
		return nil, ValidationError("no lessons selected")
	}
	if strings.TrimSpace(teacherID) == "" || strings.TrimSpace(studentID) == "" {
		return nil, ValidationError("teacher and student are required")
	}

	seen := make(map[string]struct{}, len(lessons))
	for _, l := range lessons {
		if l.TeacherID != teacherID || l.StudentID != studentID {
			return nil, ValidationError("lesson " + l.ID + " does not belong to this teacher and student")
		}
		if _, dup := seen[l.ID]; dup {
			return nil, ValidationError("lesson " + l.ID + " selected twice")
		}
		seen[l.ID] = struct{}{}
	}

	if !billing.CanBill(lessons) {
		for _, l := range lessons {
			if l.IsBilled {
				return nil, ValidationError("lesson already billed")
			}
		}
		return nil, ValidationError("unresolved attendance")
	}

	if missing := billing.MissingRates(lessons, rates); len(missing) > 0 {
		s.logger.Warn("Missing category rates, billed as zero",
			zap.String("teacher_id", teacherID),
			zap.Strings("category_ids", missing),
		)
	}

	now := s.now().UTC()
	invoice := &model.Invoice{
		ID:          uuid.NewString(),
		TeacherID:   teacherID,
		StudentID:   studentID,
		StudentName: lessons[0].StudentName,
		Date:        model.FormatDate(now),
		TotalAmount: billing.ComputeAmount(lessons, rates),
		LessonIDs:   make([]string, 0, len(lessons)),
		CreatedAt:   now,
	}
	for _, l := range lessons {
		invoice.LessonIDs = append(invoice.LessonIDs, l.ID)
	}

	if err := s.invoiceRepo.CreateWithLessons(ctx, invoice); err != nil {
		s.logger.Error("Failed to commit invoice",
			zap.String("invoice_id", invoice.ID),
			zap.String("teacher_id", teacherID),
			zap.Error(err),
		)
		return nil, wrapStore("failed to generate invoice", err)
	}

	for _, l := range lessons {
		l.IsBilled = true
		l.InvoiceID = &invoice.ID
	}

	metrics.InvoicesGenerated.Inc()
	s.logger.Info("Invoice generated",
		zap.String("invoice_id", invoice.ID),
		zap.String("teacher_id", teacherID),
		zap.String("student_id", studentID),
		zap.Int("lessons", len(lessons)),
		zap.String("total", invoice.TotalAmount.StringFixed(2)),
	)

	s.notifier.Notify(ctx, studentID, "New invoice",
		fmt.Sprintf("Invoice for %d lesson(s), total %s", len(lessons), invoice.TotalAmount.StringFixed(2)))

	return invoice, nil
}

// GenerateInvoiceForLessons загружает занятия и ставки, затем выставляет счёт
func (s *InvoiceService) GenerateInvoiceForLessons(ctx context.Context, teacherID, studentID string, lessonIDs []string) (*model.Invoice, error) {
	if len(lessonIDs) == 0 {
		return nil, ValidationError("no lessons selected")
	}

	lessons, missing, err := s.lessonRepo.GetByIDs(ctx, lessonIDs)
	if err != nil {
		return nil, wrapStore("failed to load lessons", err)
	}
	if len(missing) > 0 {
		return nil, ValidationError("unknown lessons: " + strings.Join(missing, ", "))
	}

	rates, err := s.rates.Rates(ctx, billing.CategoryIDs(lessons))
	if err != nil {
		return nil, wrapStore("failed to load rates", err)
	}

	if lessons[0].StudentName == "" {
		if student, err := s.userRepo.GetByID(ctx, studentID); err == nil && student != nil {
			for _, l := range lessons {
				l.StudentName = student.Name
			}
		}
	}

	return s.GenerateInvoice(ctx, teacherID, studentID, lessons, rates)
}

// MarkPaid отмечает счёт оплаченным; только учителем, выставившим счёт
func (s *InvoiceService) MarkPaid(ctx context.Context, teacherID, invoiceID string) (*model.Invoice, error) {
	invoice, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.TeacherID != teacherID {
		return nil, AuthError("not permitted")
	}
	if invoice.Paid {
		return invoice, nil
	}

	paidAt := s.now().UTC()
	if err := s.invoiceRepo.MarkPaid(ctx, invoiceID, paidAt); err != nil {
		return nil, wrapStore("failed to mark invoice paid", err)
	}
	invoice.Paid = true
	invoice.PaidAt = &paidAt

	s.logger.Info("Invoice paid",
		zap.String("invoice_id", invoiceID),
		zap.String("teacher_id", teacherID),
	)

	s.notifier.Notify(ctx, invoice.StudentID, "Payment received",
		fmt.Sprintf("Invoice from %s marked as paid", invoice.Date))

	return invoice, nil
}

// ListInvoices получает счета учителя, опционально по одному ученику
func (s *InvoiceService) ListInvoices(ctx context.Context, teacherID, studentID string) ([]*model.Invoice, error) {
	if teacherID == "" && studentID == "" {
		return nil, ValidationError("teacher or student is required")
	}
	invoices, err := s.invoiceRepo.List(ctx, teacherID, studentID)
	if err != nil {
		return nil, wrapStore("failed to list invoices", err)
	}
	return invoices, nil
}

// GetInvoice получает счёт по ID
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, wrapStore("failed to load invoice", err)
	}
	if invoice == nil {
		return nil, ValidationError("invoice not found")
	}
	return invoice, nil
}

// UnbilledLessons занятия с отмеченной посещаемостью, ещё не выставленные в счёт
func (s *InvoiceService) UnbilledLessons(ctx context.Context, teacherID, studentID string) ([]*model.Lesson, error) {
	lessons, err := s.lessonRepo.GetUnbilled(ctx, teacherID, studentID)
	if err != nil {
		return nil, wrapStore("failed to load unbilled lessons", err)
	}
	return lessons, nil
}
