package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/eureka-labs/eureka/backend/internal/config"
	"github.com/eureka-labs/eureka/backend/internal/handler"
	"github.com/eureka-labs/eureka/backend/internal/model/agent"
	"github.com/eureka-labs/eureka/backend/internal/service/credential"
	"github.com/eureka-labs/eureka/backend/internal/service/realtime"
	"github.com/eureka-labs/eureka/backend/internal/service/session"
	"github.com/eureka-labs/eureka/backend/internal/service/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	logger := config.NewLogger(cfg.Log)
	log := logrus.NewEntry(logger)
	if envErr != nil {
		log.WithError(envErr).Warn("failed to load .env file, continuing with system environment variables only")
	}

	agents, err := loadAgents(cfg.Realtime.ProfilesPath, log)
	if err != nil {
		log.WithError(err).Fatal("failed to load agent profiles")
	}

	if !cfg.Realtime.Enabled() {
		log.Warn("OPENAI_API_KEY 未配置，凭证签发将返回配置错误")
	}
	if !cfg.Webhook.Enabled() {
		log.Warn("N8N_WEBHOOK_URL 未配置，项目提交将失败")
	}

	creds := credential.NewProxy(cfg.Realtime, nil, log)
	streams := realtime.NewFactory(realtime.Options{
		URL:    cfg.Realtime.StreamURL,
		Model:  cfg.Realtime.Model,
		Logger: log,
	})
	submitter := webhook.NewClient(cfg.Webhook, log)
	registry := session.NewRegistryWithLimit(cfg.Server.SessionRetention)

	controllers := func(sink session.Sink, connLog *logrus.Entry) *session.Controller {
		return session.NewController(session.Options{
			Credentials:    creds,
			Streams:        streams,
			Agents:         agents,
			Webhook:        submitter,
			Registry:       registry,
			Sink:           sink,
			ConnectTimeout: cfg.Realtime.ConnectTimeout,
			Logger:         connLog,
		})
	}

	router := handler.NewRouter(handler.Deps{
		Agents:      agents,
		Credentials: creds,
		Controllers: controllers,
		Registry:    registry,
		StaticDir:   cfg.Server.StaticDir,
		Logger:      log,
	})

	startServer(ctx, cfg.Server, router, log)
}

func loadAgents(path string, log *logrus.Entry) (*agent.MemoryStore, error) {
	profiles, err := agent.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if path != "" {
		log.WithFields(logrus.Fields{"path": path, "count": len(profiles)}).Info("agent profiles loaded")
	}
	return agent.NewMemoryStore(profiles), nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log *logrus.Entry) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.WithField("addr", addr).Info("Eureka backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
