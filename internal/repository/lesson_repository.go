package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/timetutor/internal/docstore"
	"github.com/Freeeeeet/timetutor/internal/model"
	"github.com/Freeeeeet/timetutor/internal/repository/base"
)

const LessonsCollection = "lessons"

type LessonRepository struct {
	*base.Repository
}

func NewLessonRepository(store docstore.Store) *LessonRepository {
	return &LessonRepository{Repository: base.NewRepository(store, LessonsCollection)}
}

// LessonFilter условия выборки занятий; пустые поля не фильтруют
type LessonFilter struct {
	TeacherID string
	StudentID string
	From      string // "2006-01-02", включительно
	To        string // "2006-01-02", включительно
}

// Create сохраняет занятие и заполняет ID и CreatedAt
func (r *LessonRepository) Create(ctx context.Context, lesson *model.Lesson) error {
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = time.Now().UTC()
	}

	id, err := r.Repository.Create(ctx, lesson)
	if err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}

	lesson.ID = id
	return nil
}

// GetByID получает занятие по ID
func (r *LessonRepository) GetByID(ctx context.Context, id string) (*model.Lesson, error) {
	var lesson model.Lesson
	found, err := r.Get(ctx, id, &lesson)
	if err != nil {
		return nil, fmt.Errorf("get lesson by id: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &lesson, nil
}

// GetByIDs получает занятия по списку ID; отсутствующие ID возвращаются отдельно
func (r *LessonRepository) GetByIDs(ctx context.Context, ids []string) ([]*model.Lesson, []string, error) {
	lessons := make([]*model.Lesson, 0, len(ids))
	var missing []string

	for _, id := range ids {
		lesson, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if lesson == nil {
			missing = append(missing, id)
			continue
		}
		lessons = append(lessons, lesson)
	}

	return lessons, missing, nil
}

// List получает занятия по фильтру, отсортированные по дате
func (r *LessonRepository) List(ctx context.Context, f LessonFilter) ([]*model.Lesson, error) {
	var filters []docstore.Filter
	if f.TeacherID != "" {
		filters = append(filters, docstore.Where("teacherId", docstore.OpEq, f.TeacherID))
	}
	if f.StudentID != "" {
		filters = append(filters, docstore.Where("studentId", docstore.OpEq, f.StudentID))
	}
	if f.From != "" {
		filters = append(filters, docstore.Where("date", docstore.OpGte, f.From))
	}
	if f.To != "" {
		filters = append(filters, docstore.Where("date", docstore.OpLte, f.To))
	}

	docs, err := r.Query(ctx, docstore.Query{Filters: filters, OrderBy: "date"})
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}

	lessons, err := base.DecodeAll[model.Lesson](docs)
	if err != nil {
		return nil, fmt.Errorf("decode lessons: %w", err)
	}
	return lessons, nil
}

// GetUnbilled получает проведённые или пропущенные, но не выставленные в счёт занятия
func (r *LessonRepository) GetUnbilled(ctx context.Context, teacherID, studentID string) ([]*model.Lesson, error) {
	filters := []docstore.Filter{
		docstore.Where("teacherId", docstore.OpEq, teacherID),
		docstore.Where("isBilled", docstore.OpEq, false),
		docstore.Where("status", docstore.OpIn, []model.LessonStatus{model.LessonStatusDelivered, model.LessonStatusAbsent}),
	}
	if studentID != "" {
		filters = append(filters, docstore.Where("studentId", docstore.OpEq, studentID))
	}

	docs, err := r.Query(ctx, docstore.Query{Filters: filters, OrderBy: "date"})
	if err != nil {
		return nil, fmt.Errorf("get unbilled lessons: %w", err)
	}

	lessons, err := base.DecodeAll[model.Lesson](docs)
	if err != nil {
		return nil, fmt.Errorf("decode lessons: %w", err)
	}
	return lessons, nil
}

// ExistingDates возвращает даты уже созданных занятий той же пары в то же время
func (r *LessonRepository) ExistingDates(ctx context.Context, teacherID, studentID, startTime string) (map[string]bool, error) {
	docs, err := r.Query(ctx, docstore.Query{Filters: []docstore.Filter{
		docstore.Where("teacherId", docstore.OpEq, teacherID),
		docstore.Where("studentId", docstore.OpEq, studentID),
		docstore.Where("startTime", docstore.OpEq, startTime),
	}})
	if err != nil {
		return nil, fmt.Errorf("get existing lesson dates: %w", err)
	}

	dates := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if d, ok := doc["date"].(string); ok {
			dates[d] = true
		}
	}
	return dates, nil
}

// ErrLessonBilled занятие уже выставлено в счёт и не может меняться
var ErrLessonBilled = errors.New("lesson already billed")

// billingFields меняются только вместе со счётом
var billingFields = []string{"isBilled", "invoiceId"}

func notBilled() docstore.Filter {
	return docstore.Where("isBilled", docstore.OpEq, false)
}

// lessonWriteError переводит несработавшее условие notBilled в ErrLessonBilled
func lessonWriteError(action string, err error) error {
	if base.IsConflict(err) {
		return fmt.Errorf("%s: %w", action, ErrLessonBilled)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// Update перезаписывает поля занятия, кроме полей счёта, пока занятие не в счёте
func (r *LessonRepository) Update(ctx context.Context, lesson *model.Lesson) error {
	if err := r.ReplaceExcept(ctx, lesson.ID, lesson, billingFields, notBilled()); err != nil {
		return lessonWriteError("update lesson", err)
	}
	return nil
}

// UpdateStatus обновляет статус посещаемости, пока занятие не в счёте
func (r *LessonRepository) UpdateStatus(ctx context.Context, id string, status model.LessonStatus) error {
	err := r.UpdateIf(ctx, id, docstore.Document{"status": status}, notBilled())
	if err != nil {
		return lessonWriteError("update lesson status", err)
	}
	return nil
}

// Delete удаляет занятие, пока оно не в счёте
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	if err := r.DeleteIf(ctx, id, notBilled()); err != nil {
		return lessonWriteError("delete lesson", err)
	}
	return nil
}

// billOp помечает занятие выставленным в счёт, только если оно ещё не в счёте
// и посещаемость на момент записи отмечена
func billOp(lessonID, invoiceID string) docstore.Op {
	return docstore.UpdateOp(LessonsCollection, lessonID,
		docstore.Document{"isBilled": true, "invoiceId": invoiceID},
		notBilled(),
		docstore.Where("status", docstore.OpIn, []model.LessonStatus{model.LessonStatusDelivered, model.LessonStatusAbsent}),
	)
}
