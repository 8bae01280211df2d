// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/MereWhiplash/pubembed/internal/service"
	"github.com/MereWhiplash/pubembed/internal/types"
)

// Handlers holds HTTP handler dependencies
type Handlers struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewHandlers creates new API handlers
func NewHandlers(svc *service.Service, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{svc: svc, logger: logger}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, ErrorResponse{Detail: msg})
}

// Ping handles GET /api/ping
func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, "pong!")
}

// Embed handles POST /api/embed
func (h *Handlers) Embed(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := h.logger.With(zap.String("request_id", requestID(r)))

	var req EmbedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid embed request body", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	embedding, err := h.svc.Embed(r.Context(), req.Text)
	if err != nil {
		var vErr *types.ValidationError
		if errors.As(err, &vErr) {
			log.Info("rejected embed request", zap.String("reason", vErr.Message))
			h.respondError(w, http.StatusUnprocessableEntity, vErr.Message)
			return
		}

		log.Error("embedding generation went wrong",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info("Successfully processed query",
		zap.Int("text_length", len(req.Text)),
		zap.Int("dimensions", len(embedding)),
		zap.Duration("duration", time.Since(start)),
	)
	h.respondJSON(w, http.StatusOK, EmbedResponse{Embedding: embedding})
}
