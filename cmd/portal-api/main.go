package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "agrolime/liming-portal-backend/api/v1"
	"agrolime/liming-portal-backend/internal/config"
	"agrolime/liming-portal-backend/internal/database"
	"agrolime/liming-portal-backend/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		bootstrap, _ := zap.NewDevelopment()
		bootstrap.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		bootstrap, _ := zap.NewDevelopment()
		bootstrap.Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	engine, err := cfg.Agronomy.Engine()
	if err != nil {
		logger.Fatal("Failed to load methodology", zap.String("path", cfg.Agronomy.MethodologyPath), zap.Error(err))
	}
	logger.Info("Methodology loaded", zap.String("name", engine.Methodology().Name))

	// Connect to database
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(db.Gorm); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	portal := v1.SetupPortal(db, engine, cfg.Economics.Params(), metrics.NewCollector("liming_portal"), logger)
	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	if err := portal.Catalog.Seed(seedCtx); err != nil {
		logger.Fatal("Failed to seed product catalog", zap.Error(err))
	}
	cancelSeed()

	// Setup Router
	gin.SetMode(cfg.Server.Mode)
	router := v1.NewRouter(portal)

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
