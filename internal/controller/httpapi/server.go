// Package httpapi отдаёт сервисы занятий, счетов и уведомлений по JSON/HTTP
// для клиентских приложений и запуска очистки.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetutor/internal/app"
	"github.com/Freeeeeet/timetutor/internal/config"
	"github.com/Freeeeeet/timetutor/internal/metrics"
	"github.com/Freeeeeet/timetutor/internal/service"
)

// Services набор сервисов, которые обслуживает API
type Services struct {
	Users         *service.UserService
	Lessons       *service.LessonService
	Invoices      *service.InvoiceService
	Categories    *service.CategoryService
	Notifications *service.NotificationService
	Purger        app.Purger
}

type Server struct {
	cfg           config.Config
	users         *service.UserService
	lessons       *service.LessonService
	invoices      *service.InvoiceService
	categories    *service.CategoryService
	notifications *service.NotificationService
	purger        app.Purger
	validate      *validator.Validate
	logger        *zap.Logger
}

func NewServer(cfg config.Config, svc Services, logger *zap.Logger) *Server {
	return &Server{
		cfg:           cfg,
		users:         svc.Users,
		lessons:       svc.Lessons,
		invoices:      svc.Invoices,
		categories:    svc.Categories,
		notifications: svc.Notifications,
		purger:        svc.Purger,
		validate:      newValidator(),
		logger:        logger,
	}
}

// newValidator сообщает об ошибках по именам JSON-полей
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(s.metricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.With(s.requireServiceToken).Post("/jobs/purge-expired-notifications", s.handlePurgeExpired)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/lessons", s.handleListLessons)
		r.With(s.requireTeacher).Post("/lessons", s.handleCreateLessons)
		r.With(s.requireTeacher).Get("/lessons/unbilled", s.handleUnbilledLessons)
		r.With(s.requireTeacher).Put("/lessons/{lessonId}", s.handleEditLesson)
		r.With(s.requireTeacher).Patch("/lessons/{lessonId}/status", s.handleUpdateStatus)
		r.With(s.requireTeacher).Delete("/lessons/{lessonId}", s.handleDeleteLesson)

		r.With(s.requireTeacher).Get("/categories", s.handleListCategories)
		r.With(s.requireTeacher).Post("/categories", s.handleCreateCategory)
		r.With(s.requireTeacher).Patch("/categories/{categoryId}", s.handleUpdateRate)

		r.Get("/invoices", s.handleListInvoices)
		r.With(s.requireTeacher).Post("/invoices", s.handleGenerateInvoice)
		r.With(s.requireTeacher).Post("/invoices/{invoiceId}/paid", s.handleMarkPaid)

		r.Get("/notifications", s.handleListNotifications)
		r.Post("/notifications/{notificationId}/read", s.handleMarkRead)
	})

	return r
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

// errorBody единый формат ошибки для всех обработчиков
type errorBody struct {
	Error     service.Kind `json:"error"`
	Message   string       `json:"message"`
	Retryable bool         `json:"retryable"`
	RequestID string       `json:"requestId"`
	Timestamp string       `json:"timestamp"`
	// Result частичный результат, например созданные до сбоя занятия
	Result interface{} `json:"result,omitempty"`
}

// statusFor сопоставляет категорию ошибки HTTP-статусу
func statusFor(err error) int {
	switch service.Classify(err) {
	case service.KindTimeout:
		return http.StatusGatewayTimeout
	case service.KindAuth:
		return http.StatusForbidden
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindStore:
		if service.IsQuota(err) {
			return http.StatusTooManyRequests
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, statusFor(err), err)
}

// writePartialError как writeServiceError, но кладёт в тело уже выполненную часть
func (s *Server) writePartialError(w http.ResponseWriter, r *http.Request, err error, result interface{}) {
	s.writeErrorBody(w, r, statusFor(err), err, result)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.writeErrorBody(w, r, status, err, nil)
}

func (s *Server) writeErrorBody(w http.ResponseWriter, r *http.Request, status int, err error, result interface{}) {
	kind := service.Classify(err)
	message := "internal error"
	var se *service.Error
	switch {
	case errors.As(err, &se):
		message = se.Message
	case kind == service.KindTimeout:
		message = "operation timed out"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err),
		)
	}

	writeJSON(w, status, errorBody{
		Error:     kind,
		Message:   message,
		Retryable: service.IsRetryable(err),
		RequestID: requestID(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Result:    result,
	})
}

// decodeAndValidate разбирает тело запроса и проверяет теги validate
func (s *Server) decodeAndValidate(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return &service.Error{Kind: service.KindValidation, Message: "invalid request body", Err: err}
	}
	if err := s.validate.Struct(out); err != nil {
		return &service.Error{Kind: service.KindValidation, Message: validationMessage(err), Err: err}
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "invalid field " + fe.Field() + ": " + fe.Tag()
	}
	return "invalid request"
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
