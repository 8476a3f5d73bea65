package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetutor/internal/app"
	"github.com/Freeeeeet/timetutor/internal/service"
)

// PurgeResponse тело успешного ответа задачи очистки; его же печатает cmd/purge
type PurgeResponse struct {
	Deleted      int    `json:"deleted"`
	Batches      int    `json:"batches"`
	DurationMs   int64  `json:"durationMs"`
	RequestID    string `json:"requestId"`
	LimitReached bool   `json:"limitReached"`
}

func NewPurgeResponse(res service.PurgeResult, requestID string) PurgeResponse {
	return PurgeResponse{
		Deleted:      res.Deleted,
		Batches:      res.Batches,
		DurationMs:   res.Duration.Milliseconds(),
		RequestID:    requestID,
		LimitReached: res.LimitReached,
	}
}

// purgeSource отличает вызов планировщика от ручного запуска
func purgeSource(r *http.Request) string {
	if strings.Contains(strings.ToLower(r.UserAgent()), "scheduler") {
		return "scheduler"
	}
	return "manual"
}

func (s *Server) handlePurgeExpired(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r.Context())
	source := purgeSource(r)
	logger := s.logger.With(zap.String("request_id", reqID), zap.String("source", source))

	res, err := app.RunPurge(r.Context(), s.purger, s.cfg.PurgeTimeout, source, logger)
	if err != nil {
		logger.Error("Purge failed",
			zap.Int("deleted", res.Deleted),
			zap.Int("batches", res.Batches),
			zap.Error(err),
		)
		s.writeServiceError(w, r, err)
		return
	}

	logger.Info("Purge finished",
		zap.Int("deleted", res.Deleted),
		zap.Int("batches", res.Batches),
		zap.Bool("limit_reached", res.LimitReached),
	)
	writeJSON(w, http.StatusOK, NewPurgeResponse(res, reqID))
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	list, err := s.notifications.List(r.Context(), user.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": list})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	if err := s.notifications.MarkRead(r.Context(), user.ID, chi.URLParam(r, "notificationId")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
