package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/green-credit-copilot/server/internal/core"
	errx "github.com/green-credit-copilot/server/internal/core/error"
	"github.com/green-credit-copilot/server/internal/documents"
	"github.com/green-credit-copilot/server/internal/model"
	"github.com/green-credit-copilot/server/internal/workflow"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

// Config holds the HTTP listener settings.
type Config struct {
	Addr            string `envconfig:"SERVER_ADDR" default:":8080"`
	ReadTimeout     string `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	ShutdownTimeout string `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// Server is the HTTP surface over the copilot services.
type Server struct {
	engine    *gin.Engine
	cfg       Config
	turns     *workflow.Service
	docs      *documents.Service
	sessions  model.SessionRepository
	config    model.ConfigRepository
	optimizer *workflow.InputOptimizer
}

func New(cfg Config, env core.Environment, turns *workflow.Service, docs *documents.Service, sessions model.SessionRepository, config model.ConfigRepository, optimizer *workflow.InputOptimizer) *Server {
	if env.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(requestLogger(), gin.Recovery())

	s := &Server{
		engine:    engine,
		cfg:       cfg,
		turns:     turns,
		docs:      docs,
		sessions:  sessions,
		config:    config,
		optimizer: optimizer,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api/v1", ownerID())

	api.POST("/chat/stream", s.handleChatStream)
	api.POST("/optimization", s.handleOptimize)

	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/:id", s.handleGetSession)
	api.DELETE("/sessions/:id", s.handleDeleteSession)
	api.PUT("/sessions/:id/rename", s.handleRenameSession)

	api.POST("/documents", s.handleUploadDocument)
	api.GET("/documents", s.handleListDocuments)
	api.GET("/documents/:hash", s.handleGetDocument)
	api.DELETE("/documents/:hash", s.handleDeleteDocument)

	api.GET("/tools", s.handleListTools)
	api.POST("/tools", s.handleCreateTool)
	api.PUT("/tools/:id", s.handleUpdateTool)
	api.DELETE("/tools/:id", s.handleDeleteTool)

	api.GET("/servers", s.handleListServers)
	api.POST("/servers", s.handleCreateServer)
	api.PUT("/servers/:id", s.handleUpdateServer)
	api.DELETE("/servers/:id", s.handleDeleteServer)

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	readTimeout, err := time.ParseDuration(s.cfg.ReadTimeout)
	if err != nil {
		readTimeout = 30 * time.Second
	}
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: readTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownTimeout, err := time.ParseDuration(s.cfg.ShutdownTimeout)
	if err != nil {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// writeError maps AppError statuses onto the JSON error envelope.
func writeError(c *gin.Context, err error) {
	var appErr *errx.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Status, gin.H{"error": appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": errx.SystemErrorMessage})
}
