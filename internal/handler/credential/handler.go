package credential

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/eureka-labs/eureka/backend/internal/apperr"
	credentialsvc "github.com/eureka-labs/eureka/backend/internal/service/credential"
	"github.com/eureka-labs/eureka/backend/pkg/utils"
)

// Handler 临时凭证签发接口
type Handler struct {
	source credentialsvc.Source
	log    *logrus.Entry
}

// New 创建凭证处理器
func New(source credentialsvc.Source, log *logrus.Entry) *Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{source: source, log: log.WithField("component", "credential_handler")}
}

// RegisterRoutes 注册凭证路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.HandleFunc("/session", h.handleSession)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleIssue(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		utils.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	issued, err := h.source.Issue(r.Context())
	if err == nil {
		utils.RespondRawJSON(w, http.StatusOK, issued.Raw)
		return
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		h.log.WithError(err).Error("credential issuance failed")
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	switch appErr.Kind {
	case apperr.KindConfiguration:
		utils.RespondError(w, http.StatusInternalServerError, appErr.Message)
	case apperr.KindUpstream:
		status := appErr.Status
		if status == 0 {
			status = http.StatusBadGateway
		}
		utils.RespondRawJSON(w, status, credentialsvc.UpstreamDetail(status, appErr.Detail))
	default:
		h.log.WithError(err).Error("credential issuance failed")
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
