package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/timetutor/internal/billing"
	"github.com/Freeeeeet/timetutor/internal/metrics"
	"github.com/Freeeeeet/timetutor/internal/model"
	"github.com/Freeeeeet/timetutor/internal/notify"
	"github.com/Freeeeeet/timetutor/internal/recurrence"
	"github.com/Freeeeeet/timetutor/internal/repository"
	"github.com/Freeeeeet/timetutor/internal/repository/base"
)

type LessonService struct {
	lessonRepo   *repository.LessonRepository
	userRepo     *repository.UserRepository
	categoryRepo *repository.CategoryRepository
	notifier     notify.Notifier
	logger       *zap.Logger
}

func NewLessonService(
	lessonRepo *repository.LessonRepository,
	userRepo *repository.UserRepository,
	categoryRepo *repository.CategoryRepository,
	notifier notify.Notifier,
	logger *zap.Logger,
) *LessonService {
	return &LessonService{
		lessonRepo:   lessonRepo,
		userRepo:     userRepo,
		categoryRepo: categoryRepo,
		notifier:     notifier,
		logger:       logger,
	}
}

// CreateResult итог пакетного создания занятий
type CreateResult struct {
	Requested int      `json:"requested"`
	Created   int      `json:"created"`
	IDs       []string `json:"ids"`
}

// EditResult итог редактирования занятия
type EditResult struct {
	Lesson *model.Lesson `json:"lesson"`
	Added  CreateResult  `json:"added"`
}

// validateTemplate проверяет шаблон занятия
func validateTemplate(tpl model.LessonTemplate) error {
	if strings.TrimSpace(tpl.TeacherID) == "" || strings.TrimSpace(tpl.StudentID) == "" {
		return ValidationError("teacher and student are required")
	}
	if strings.TrimSpace(tpl.CategoryID) == "" {
		return ValidationError("category is required")
	}
	start, err := billing.ParseClock(tpl.StartTime)
	if err != nil {
		return ValidationError("start time must be HH:MM")
	}
	end, err := billing.ParseClock(tpl.EndTime)
	if err != nil {
		return ValidationError("end time must be HH:MM")
	}
	if end <= start {
		return ValidationError("end time must be after start time")
	}
	return nil
}

// validateRule отклоняет некорректные правила; вырожденные правила
// (конец раньше начала, пустой набор дней) просто дают пустой результат
func validateRule(start time.Time, rule recurrence.Rule) error {
	err := rule.Validate(start)
	switch {
	case err == nil,
		errors.Is(err, recurrence.ErrEndBeforeStart),
		errors.Is(err, recurrence.ErrNoWeekdays),
		errors.Is(err, recurrence.ErrMissingEndDate):
		return nil
	}
	return &Error{Kind: KindValidation, Message: "invalid recurrence rule", Err: err}
}

// CreateLessons разворачивает шаблон по правилу повторения и сохраняет каждое
// занятие отдельно. Ошибка одного занятия не откатывает уже созданные.
func (s *LessonService) CreateLessons(ctx context.Context, tpl model.LessonTemplate, startDate time.Time, rule recurrence.Rule) (CreateResult, error) {
	if err := validateTemplate(tpl); err != nil {
		return CreateResult{}, err
	}
	if err := validateRule(startDate, rule); err != nil {
		return CreateResult{}, err
	}
	if err := s.checkCategory(ctx, tpl); err != nil {
		return CreateResult{}, err
	}

	lessons := recurrence.Expand(tpl, startDate, rule)
	if len(lessons) == 0 {
		return CreateResult{}, ValidationError("no lessons generated, check the dates")
	}

	s.fillNames(ctx, lessons)

	result := s.persist(ctx, lessons)
	s.logger.Info("Lessons created",
		zap.String("teacher_id", tpl.TeacherID),
		zap.String("student_id", tpl.StudentID),
		zap.String("recurrence", string(rule.Frequency)),
		zap.Int("requested", result.Requested),
		zap.Int("created", result.Created),
	)

	if result.Created > 0 {
		s.notifier.Notify(ctx, tpl.StudentID, "New lessons scheduled",
			fmt.Sprintf("%d lesson(s) scheduled starting %s at %s", result.Created, lessons[0].Date, tpl.StartTime))
	}

	if result.Created < result.Requested {
		return result, PersistenceError(
			fmt.Sprintf("created %d of %d lessons", result.Created, result.Requested), nil)
	}
	return result, nil
}

// persist сохраняет занятия по одному, логируя и пропуская неудачные
func (s *LessonService) persist(ctx context.Context, lessons []*model.Lesson) CreateResult {
	result := CreateResult{Requested: len(lessons), IDs: make([]string, 0, len(lessons))}
	for _, lesson := range lessons {
		if err := s.lessonRepo.Create(ctx, lesson); err != nil {
			metrics.LessonCreateFailures.Inc()
			s.logger.Error("Failed to create lesson",
				zap.String("date", lesson.Date),
				zap.String("teacher_id", lesson.TeacherID),
				zap.Error(err),
			)
			continue
		}
		metrics.LessonsCreated.Inc()
		result.Created++
		result.IDs = append(result.IDs, lesson.ID)
	}
	return result
}

// EditLesson обновляет одно занятие и, если задано повторение, досоздаёт
// занятия от его даты, пропуская саму дату и уже существующие даты
func (s *LessonService) EditLesson(ctx context.Context, teacherID, lessonID string, tpl model.LessonTemplate, date time.Time, rule recurrence.Rule) (EditResult, error) {
	lesson, err := s.ownedLesson(ctx, teacherID, lessonID)
	if err != nil {
		return EditResult{}, err
	}
	if lesson.IsBilled {
		return EditResult{}, ValidationError("billed lessons cannot be edited")
	}

	tpl.TeacherID = lesson.TeacherID
	if tpl.StudentID == "" {
		tpl.StudentID = lesson.StudentID
	}
	if err := validateTemplate(tpl); err != nil {
		return EditResult{}, err
	}
	if err := validateRule(date, rule); err != nil {
		return EditResult{}, err
	}
	if err := s.checkCategory(ctx, tpl); err != nil {
		return EditResult{}, err
	}

	lesson.LessonTemplate = tpl
	lesson.Date = model.FormatDate(date)
	lesson.RecurrenceType = string(rule.Frequency)
	lesson.RecurrenceEndDate = nil
	lesson.RecurrenceDays = nil
	if rule.Frequency != recurrence.None {
		end := model.FormatDate(rule.EndDate)
		lesson.RecurrenceEndDate = &end
		lesson.RecurrenceDays = rule.Weekdays
	}
	s.fillNames(ctx, []*model.Lesson{lesson})

	if err := s.lessonRepo.Update(ctx, lesson); err != nil {
		return EditResult{}, lessonWriteError("failed to update lesson", err)
	}

	s.logger.Info("Lesson updated",
		zap.String("lesson_id", lesson.ID),
		zap.String("teacher_id", teacherID),
		zap.String("date", lesson.Date),
	)

	result := EditResult{Lesson: lesson}

	if rule.Frequency != recurrence.None {
		existing, err := s.lessonRepo.ExistingDates(ctx, tpl.TeacherID, tpl.StudentID, tpl.StartTime)
		if err != nil {
			return result, wrapStore("failed to load existing lessons", err)
		}
		skip := []string{lesson.Date}
		for d := range existing {
			skip = append(skip, d)
		}

		extra := recurrence.ExcludeDates(recurrence.Expand(tpl, date, rule), skip...)
		s.fillNames(ctx, extra)
		result.Added = s.persist(ctx, extra)

		s.logger.Info("Recurring lessons added on edit",
			zap.String("lesson_id", lesson.ID),
			zap.Int("requested", result.Added.Requested),
			zap.Int("created", result.Added.Created),
		)
	}

	s.notifier.Notify(ctx, tpl.StudentID, "Lesson updated", "Your lesson on "+lesson.Date+" was updated")

	if result.Added.Created < result.Added.Requested {
		return result, PersistenceError(
			fmt.Sprintf("created %d of %d lessons", result.Added.Created, result.Added.Requested), nil)
	}
	return result, nil
}

// UpdateStatus отмечает посещаемость; доступно только учителю занятия
func (s *LessonService) UpdateStatus(ctx context.Context, teacherID, lessonID string, status model.LessonStatus) (*model.Lesson, error) {
	if !status.IsValid() {
		return nil, ValidationError("unknown lesson status")
	}

	lesson, err := s.ownedLesson(ctx, teacherID, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.IsBilled {
		return nil, ValidationError("lesson already billed")
	}

	if err := s.lessonRepo.UpdateStatus(ctx, lessonID, status); err != nil {
		return nil, lessonWriteError("failed to update lesson status", err)
	}
	lesson.Status = status

	s.logger.Info("Lesson status updated",
		zap.String("lesson_id", lessonID),
		zap.String("teacher_id", teacherID),
		zap.String("status", string(status)),
	)

	s.notifier.Notify(ctx, lesson.StudentID, "Attendance updated",
		fmt.Sprintf("Lesson on %s marked as %s", lesson.Date, status))

	return lesson, nil
}

// DeleteLesson удаляет занятие; выставленные в счёт занятия не удаляются
func (s *LessonService) DeleteLesson(ctx context.Context, teacherID, lessonID string) error {
	lesson, err := s.ownedLesson(ctx, teacherID, lessonID)
	if err != nil {
		return err
	}
	if lesson.IsBilled {
		return ValidationError("billed lessons cannot be deleted")
	}

	if err := s.lessonRepo.Delete(ctx, lessonID); err != nil {
		return lessonWriteError("failed to delete lesson", err)
	}

	s.logger.Info("Lesson deleted",
		zap.String("lesson_id", lessonID),
		zap.String("teacher_id", teacherID),
	)

	s.notifier.Notify(ctx, lesson.StudentID, "Lesson cancelled",
		fmt.Sprintf("Lesson on %s at %s was cancelled", lesson.Date, lesson.StartTime))
	return nil
}

// ListLessons получает занятия по фильтру
func (s *LessonService) ListLessons(ctx context.Context, filter repository.LessonFilter) ([]*model.Lesson, error) {
	if filter.TeacherID == "" && filter.StudentID == "" {
		return nil, ValidationError("teacher or student is required")
	}
	lessons, err := s.lessonRepo.List(ctx, filter)
	if err != nil {
		return nil, wrapStore("failed to list lessons", err)
	}
	return lessons, nil
}

func (s *LessonService) ownedLesson(ctx context.Context, teacherID, lessonID string) (*model.Lesson, error) {
	lesson, err := s.lessonRepo.GetByID(ctx, lessonID)
	if err != nil {
		return nil, wrapStore("failed to load lesson", err)
	}
	if lesson == nil {
		return nil, ValidationError("lesson not found")
	}
	if lesson.TeacherID != teacherID {
		return nil, AuthError("not permitted")
	}
	return lesson, nil
}

// lessonWriteError: занятие могло попасть в счёт или исчезнуть между чтением и записью
func lessonWriteError(msg string, err error) error {
	switch {
	case errors.Is(err, repository.ErrLessonBilled):
		return &Error{Kind: KindValidation, Message: "lesson already billed", Err: err}
	case base.IsNotFound(err):
		return &Error{Kind: KindValidation, Message: "lesson not found", Err: err}
	}
	return wrapStore(msg, err)
}

func (s *LessonService) checkCategory(ctx context.Context, tpl model.LessonTemplate) error {
	category, err := s.categoryRepo.GetByID(ctx, tpl.CategoryID)
	if err != nil {
		return wrapStore("failed to load category", err)
	}
	if category == nil {
		return ValidationError("category not found")
	}
	if category.TeacherID != tpl.TeacherID {
		return AuthError("category does not belong to teacher")
	}
	return nil
}

// fillNames подставляет имена для отображения; ошибки не критичны
func (s *LessonService) fillNames(ctx context.Context, lessons []*model.Lesson) {
	if len(lessons) == 0 {
		return
	}
	first := lessons[0]

	users, err := s.userRepo.GetByIDs(ctx, []string{first.TeacherID, first.StudentID})
	if err != nil {
		s.logger.Warn("Failed to load lesson participants", zap.Error(err))
	}
	category, err := s.categoryRepo.GetByID(ctx, first.CategoryID)
	if err != nil {
		s.logger.Warn("Failed to load lesson category", zap.Error(err))
	}

	for _, l := range lessons {
		if u, ok := users[l.TeacherID]; ok {
			l.TeacherName = u.Name
		}
		if u, ok := users[l.StudentID]; ok {
			l.StudentName = u.Name
		}
		if category != nil {
			l.CategoryName = category.Name
		}
	}
}
