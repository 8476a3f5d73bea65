package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Freeeeeet/timetutor/internal/model"
	"github.com/Freeeeeet/timetutor/internal/recurrence"
	"github.com/Freeeeeet/timetutor/internal/repository"
	"github.com/Freeeeeet/timetutor/internal/service"
)

type lessonRequest struct {
	StudentID         string `json:"studentId" validate:"required"`
	CategoryID        string `json:"categoryId" validate:"required"`
	Date              string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime         string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime           string `json:"endTime" validate:"required,datetime=15:04"`
	Color             string `json:"color"`
	Recurrence        string `json:"recurrence" validate:"omitempty,oneof=none daily weekly biweekly monthly custom"`
	RecurrenceEndDate string `json:"recurrenceEndDate" validate:"omitempty,datetime=2006-01-02"`
	RecurrenceDays    []int  `json:"recurrenceDays" validate:"omitempty,dive,min=1,max=7"`
}

// editLessonRequest как lessonRequest, но ученик по умолчанию остаётся прежним
type editLessonRequest struct {
	StudentID         string `json:"studentId"`
	CategoryID        string `json:"categoryId" validate:"required"`
	Date              string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime         string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime           string `json:"endTime" validate:"required,datetime=15:04"`
	Color             string `json:"color"`
	Recurrence        string `json:"recurrence" validate:"omitempty,oneof=none daily weekly biweekly monthly custom"`
	RecurrenceEndDate string `json:"recurrenceEndDate" validate:"omitempty,datetime=2006-01-02"`
	RecurrenceDays    []int  `json:"recurrenceDays" validate:"omitempty,dive,min=1,max=7"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled delivered absent"`
}

// parseSchedule разбирает дату и правило повторения; поля уже проверены валидатором
func parseSchedule(date, freq, endDate string, days []int) (time.Time, recurrence.Rule, error) {
	start, err := model.ParseDate(date)
	if err != nil {
		return time.Time{}, recurrence.Rule{}, service.ValidationError("date must be YYYY-MM-DD")
	}

	rule := recurrence.Rule{Frequency: recurrence.Frequency(freq), Weekdays: days}
	if rule.Frequency == "" {
		rule.Frequency = recurrence.None
	}
	if endDate != "" {
		end, err := model.ParseDate(endDate)
		if err != nil {
			return time.Time{}, recurrence.Rule{}, service.ValidationError("recurrence end date must be YYYY-MM-DD")
		}
		rule.EndDate = end
	}
	return start, rule, nil
}

func (s *Server) handleCreateLessons(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req lessonRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	start, rule, err := parseSchedule(req.Date, req.Recurrence, req.RecurrenceEndDate, req.RecurrenceDays)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	tpl := model.LessonTemplate{
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		TeacherID:  user.ID,
		StudentID:  req.StudentID,
		CategoryID: req.CategoryID,
		Color:      req.Color,
	}
	result, err := s.lessons.CreateLessons(r.Context(), tpl, start, rule)
	if err != nil {
		if result.Created > 0 {
			s.writePartialError(w, r, err, result)
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleEditLesson(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req editLessonRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	date, rule, err := parseSchedule(req.Date, req.Recurrence, req.RecurrenceEndDate, req.RecurrenceDays)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	tpl := model.LessonTemplate{
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		StudentID:  req.StudentID,
		CategoryID: req.CategoryID,
		Color:      req.Color,
	}
	result, err := s.lessons.EditLesson(r.Context(), user.ID, chi.URLParam(r, "lessonId"), tpl, date, rule)
	if err != nil {
		// само занятие уже обновлено, не досоздались только повторы
		if result.Lesson != nil {
			s.writePartialError(w, r, err, result)
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req statusRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	lesson, err := s.lessons.UpdateStatus(r.Context(), user.ID, chi.URLParam(r, "lessonId"), model.LessonStatus(req.Status))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (s *Server) handleDeleteLesson(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	if err := s.lessons.DeleteLesson(r.Context(), user.ID, chi.URLParam(r, "lessonId")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListLessons: учитель видит свои занятия (опционально по ученику),
// ученик только свои
func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	query := r.URL.Query()

	filter := repository.LessonFilter{
		From: query.Get("from"),
		To:   query.Get("to"),
	}
	for _, d := range []string{filter.From, filter.To} {
		if d == "" {
			continue
		}
		if _, err := model.ParseDate(d); err != nil {
			s.writeServiceError(w, r, service.ValidationError("from and to must be YYYY-MM-DD"))
			return
		}
	}

	if user.Role == model.RoleTeacher {
		filter.TeacherID = user.ID
		filter.StudentID = query.Get("studentId")
	} else {
		filter.StudentID = user.ID
		filter.TeacherID = query.Get("teacherId")
	}

	lessons, err := s.lessons.ListLessons(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"lessons": lessons})
}

func (s *Server) handleUnbilledLessons(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	studentID := r.URL.Query().Get("studentId")
	if studentID == "" {
		s.writeServiceError(w, r, service.ValidationError("studentId is required"))
		return
	}

	lessons, err := s.invoices.UnbilledLessons(r.Context(), user.ID, studentID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"lessons": lessons})
}
