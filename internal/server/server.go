package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tallgy/qiankun/internal/api/middleware"
	"github.com/tallgy/qiankun/internal/config"
	"github.com/tallgy/qiankun/internal/lifecycle"
	"github.com/tallgy/qiankun/internal/logging"
	"github.com/tallgy/qiankun/internal/monitoring"
	"github.com/tallgy/qiankun/internal/sandbox"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	controller *lifecycle.Controller
	realm      *sandbox.Realm
	metrics    *monitoring.Metrics
	logger     *logging.Logger
	httpServer *http.Server
	cfg        *config.Config
}

// New creates a new server instance
func New(cfg *config.Config, ctrl *lifecycle.Controller, realm *sandbox.Realm, metrics *monitoring.Metrics, logger *logging.Logger) *Server {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}
	router.Use(monitoring.Middleware(metrics))

	s := &Server{
		router:     router,
		controller: ctrl,
		realm:      realm,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apps := s.router.Group("/apps")
	{
		apps.POST("", s.handleRegister)
		apps.GET("", s.handleList)
		apps.POST("/:name/mount", s.handleMount)
		apps.POST("/:name/unmount", s.handleUnmount)
		apps.DELETE("/:name", s.handleUnload)
		apps.POST("/:name/execute", s.handleExecute)
		apps.GET("/:name/global/:key", s.handleGlobal)
	}
}

// Router exposes the underlying Gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
