package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"agrolime/liming-portal-backend/internal/catalog"
	"agrolime/liming-portal-backend/internal/config"
	"agrolime/liming-portal-backend/internal/database"
	"agrolime/liming-portal-backend/internal/parcels"
	"agrolime/liming-portal-backend/internal/planning"
	"agrolime/liming-portal-backend/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	engine, err := cfg.Agronomy.Engine()
	if err != nil {
		logger.Fatal("Failed to load methodology", zap.Error(err))
	}

	// Connect to database
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	collector := metrics.NewCollector("liming_worker")
	parcelService := parcels.NewService(parcels.NewGormRepository(db.Gorm), engine, collector, logger)
	catalogService := catalog.NewService(catalog.NewGormRepository(db.Gorm), engine, logger)
	planningService := planning.NewService(planning.NewGormRepository(db.Gorm), parcelService, catalogService, planning.NewPlanner(engine), collector, logger)

	workerConfig := ConsistencyWorkerConfig{
		Schedule:   cfg.Worker.SweepSchedule,
		Timeout:    cfg.Worker.SweepTimeout,
		RunOnStart: cfg.Worker.RunOnStart,
	}
	worker, err := NewConsistencyWorker(planningService, logger, workerConfig)
	if err != nil {
		logger.Fatal("Failed to create worker", zap.Error(err))
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		worker.Sweep(ctx)
		return
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := worker.Start(ctx); err != nil {
		logger.Error("Worker error", zap.Error(err))
	}

	logger.Info("Consistency worker stopped")
}
