package handler

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	agentHandler "github.com/eureka-labs/eureka/backend/internal/handler/agent"
	credentialHandler "github.com/eureka-labs/eureka/backend/internal/handler/credential"
	"github.com/eureka-labs/eureka/backend/internal/handler/live"
	transcriptHandler "github.com/eureka-labs/eureka/backend/internal/handler/transcript"
	middlewarePkg "github.com/eureka-labs/eureka/backend/internal/middleware"
	agentModel "github.com/eureka-labs/eureka/backend/internal/model/agent"
	credentialService "github.com/eureka-labs/eureka/backend/internal/service/credential"
	sessionService "github.com/eureka-labs/eureka/backend/internal/service/session"
	"github.com/eureka-labs/eureka/backend/pkg/utils"
)

// Deps 路由依赖的服务
type Deps struct {
	Agents      agentModel.Store
	Credentials credentialService.Source
	Controllers live.ControllerFactory
	Registry    *sessionService.Registry
	StaticDir   string
	Logger      *logrus.Entry
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", handleHealth)

		// 临时凭证签发
		credentialHandler.New(deps.Credentials, log).RegisterRoutes(api)

		agentHandler.New(deps.Agents).RegisterRoutes(api)

		if deps.Registry != nil {
			transcriptHandler.New(deps.Registry).RegisterRoutes(api)
		}

		// 实时会话中继
		if deps.Controllers != nil {
			live.New(deps.Controllers, log).RegisterRoutes(api)
		}
	})

	if dir := deps.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
			log.WithField("dir", dir).Info("serving static files")
		}
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Server is running",
	})
}
