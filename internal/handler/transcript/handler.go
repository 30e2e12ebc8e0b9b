package transcript

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eureka-labs/eureka/backend/internal/service/session"
	"github.com/eureka-labs/eureka/backend/pkg/utils"
)

// Handler serves rendered session transcripts.
type Handler struct {
	registry *session.Registry
}

// New 创建会话记录处理器
func New(registry *session.Registry) *Handler {
	return &Handler{registry: registry}
}

// RegisterRoutes 注册会话记录路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Get("/sessions/{sessionID}/transcript", h.handleTranscript)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, s)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	tr, err := h.registry.Transcript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, tr)
}

func (h *Handler) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
}
