package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/adapter/handler/http"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/config"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/middleware/auth"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/pkg/logger"
)

type Server struct {
	config  *config.Config
	logger  *zap.Logger
	echo    *echo.Echo
	usecase handlers.ReconciliationUsecase
}

func NewServer(cfg *config.Config, logger *zap.Logger, usecase handlers.ReconciliationUsecase) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		config:  cfg,
		logger:  logger,
		echo:    e,
		usecase: usecase,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := s.config.Server.HTTP.Address()
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.echo.Use(logger.NewEchoRequestLogger(s.logger))

	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": config.ServiceName,
		})
	})

	reconciliationHandler := handlers.NewReconciliationHandler(s.usecase, s.logger)

	v1 := s.echo.Group("/api/v1")
	runGuards := []echo.MiddlewareFunc{}

	if s.config.JWT.Secret != "" {
		v1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Secret: s.config.JWT.Secret,
			Logger: s.logger,
		}))
		if s.config.JWT.AdminRole != "" {
			runGuards = append(runGuards, auth.RequireRole(s.config.JWT.AdminRole, s.logger))
		}
	} else {
		s.logger.Warn("JWT secret not configured, admin API is unauthenticated")
	}

	v1.POST("/reconciliations", reconciliationHandler.RunReconciliation, runGuards...)

	snapshots := v1.Group("/snapshots/latest")
	snapshots.GET("", reconciliationHandler.GetLatestSnapshot)
	snapshots.GET("/profiles", reconciliationHandler.ListProfiles)
	snapshots.GET("/profiles/:customerId", reconciliationHandler.GetProfile)
	snapshots.GET("/cohorts/:name", reconciliationHandler.GetCohort)
}
