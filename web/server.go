package web

import (
	"context"
	"net/http"

	"clause-agent/config"
	"clause-agent/observability"
	"clause-agent/session"
	"clause-agent/web/handlers"
	"clause-agent/web/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	logger *zap.Logger
	config *config.Config
}

func NewServer(engine handlers.TurnRunner, sessions *session.Store, metrics *observability.Metrics, logger *zap.Logger, cfg *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger, metrics))

	server := &Server{
		router: router,
		logger: logger,
		config: cfg,
	}

	askHandler := handlers.NewAskHandler(engine, sessions, logger, cfg.StreamDelay)
	router.POST("/insurance/question-inquiry", askHandler.Ask)
	router.GET("/metrics", gin.WrapH(observability.MetricsHandler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return server
}

func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("Starting web server", zap.String("address", addr))

	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Web server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()

	s.logger.Info("Shutting down web server")
	return srv.Shutdown(context.Background())
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
