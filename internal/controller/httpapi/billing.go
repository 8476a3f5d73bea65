package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Freeeeeet/timetutor/internal/model"
)

type categoryRequest struct {
	Name       string           `json:"name" validate:"required,max=100"`
	HourlyRate *decimal.Decimal `json:"hourlyRate" validate:"required"`
}

type rateRequest struct {
	HourlyRate *decimal.Decimal `json:"hourlyRate" validate:"required"`
}

type invoiceRequest struct {
	StudentID string   `json:"studentId" validate:"required"`
	LessonIDs []string `json:"lessonIds" validate:"dive,required"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req categoryRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	category, err := s.categories.CreateCategory(r.Context(), user.ID, req.Name, *req.HourlyRate)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	categories, err := s.categories.ListCategories(r.Context(), user.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

func (s *Server) handleUpdateRate(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req rateRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	category, err := s.categories.UpdateRate(r.Context(), user.ID, chi.URLParam(r, "categoryId"), *req.HourlyRate)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (s *Server) handleGenerateInvoice(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req invoiceRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	invoice, err := s.invoices.GenerateInvoiceForLessons(r.Context(), user.ID, req.StudentID, req.LessonIDs)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoice)
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	teacherID, studentID := user.ID, r.URL.Query().Get("studentId")
	if user.Role != model.RoleTeacher {
		teacherID, studentID = r.URL.Query().Get("teacherId"), user.ID
	}

	invoices, err := s.invoices.ListInvoices(r.Context(), teacherID, studentID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"invoices": invoices})
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	invoice, err := s.invoices.MarkPaid(r.Context(), user.ID, chi.URLParam(r, "invoiceId"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}
