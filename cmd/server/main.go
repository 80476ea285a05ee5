package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/config"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/infrastructure/bootstrap"
	grpcServer "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/infrastructure/grpc"
	httpServer "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/infrastructure/http"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The gRPC health service flips to serving on the first published snapshot
	grpcSrv := grpcServer.NewServer(cfg, zapLogger)

	app, err := bootstrap.New(ctx, cfg, zapLogger, grpcSrv)
	if err != nil {
		zapLogger.Fatal("Failed to assemble reconciler", zap.Error(err))
	}
	defer app.Close()

	// A snapshot kept in redis from a previous process is served immediately
	if snapshot, err := app.Service.LatestSnapshot(ctx); err == nil {
		_ = grpcSrv.PublishSnapshot(ctx, snapshot.Summary())
	}

	httpSrv := httpServer.NewServer(cfg, zapLogger, app.Service)

	// Start servers
	go func() {
		if err := grpcSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down servers...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()

	if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown gRPC server", zap.Error(err))
	}

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	zapLogger.Info("Servers shut down successfully")
}
