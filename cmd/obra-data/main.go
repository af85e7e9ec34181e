package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"obra-data/internal/common/database"
	"obra-data/internal/common/logger"
	commonredis "obra-data/internal/common/redis"
	"obra-data/internal/config"
	httpapi "obra-data/internal/http"
	"obra-data/internal/repository"
	"obra-data/internal/service"
	"obra-data/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "obra-data")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer lg.Sync()

	db, err := database.NewPostgresDB(context.Background(), &cfg.Database)
	if err != nil {
		lg.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if cfg.MigrateOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := repository.Migrate(ctx, db)
		cancel()
		if err != nil {
			lg.Fatal("Failed to migrate database", zap.Error(err))
		}
		lg.Info("Database migrated")
	}

	policy, err := service.ParseAllocationPolicy(cfg.AllocationPolicy)
	if err != nil {
		lg.Fatal("Invalid allocation policy", zap.Error(err))
	}

	var (
		publisher service.EventPublisher = service.NopPublisher{}
		feed      httpapi.EventFeed
		redisPing func(context.Context) error
	)
	if cfg.Events.Enabled {
		redisClient := commonredis.NewRedisClient(&cfg.Redis)
		defer commonredis.Close(redisClient)
		streams := store.NewRedisStreamPublisher(redisClient, cfg.Events.Stream, cfg.Events.MaxLen)
		publisher, feed = streams, streams
		redisPing = func(ctx context.Context) error { return commonredis.Ping(ctx, redisClient) }
		if err := redisPing(context.Background()); err != nil {
			lg.Warn("Redis unreachable, change events will be dropped until it recovers", zap.Error(err))
		}
		lg.Info("Change events enabled", zap.String("stream", cfg.Events.Stream))
	}

	hierarchyRepo := repository.NewPostgresHierarchyRepository(db)
	locationsRepo := repository.NewPostgresLocationsRepository(db, cfg.ListPageSize)
	responsiblesRepo := repository.NewPostgresResponsiblesRepository(db)
	taskTypesRepo := repository.NewPostgresTaskTypesRepository(db)
	pricesRepo := repository.NewPostgresPricesRepository(db)
	tasksRepo := repository.NewPostgresTasksRepository(db)

	hierarchySvc := service.NewHierarchyService(hierarchyRepo, publisher, lg)
	locationSvc := service.NewLocationService(locationsRepo, hierarchyRepo, publisher, lg)
	responsibleSvc := service.NewResponsibleService(responsiblesRepo, lg)
	pricingSvc := service.NewPricingService(taskTypesRepo, pricesRepo, publisher, lg)
	taskSvc := service.NewTaskService(tasksRepo, locationsRepo, taskTypesRepo, pricesRepo, policy, publisher, lg)
	importSvc := service.NewImportService(hierarchyRepo, lg)

	router := httpapi.NewRouter(lg,
		httpapi.NewHealthHandler(db, redisPing),
		httpapi.NewHierarchyHandler(hierarchySvc, lg),
		httpapi.NewLocationHandler(locationSvc, lg),
		httpapi.NewResponsibleHandler(responsibleSvc, lg),
		httpapi.NewPricingHandler(pricingSvc, lg),
		httpapi.NewTaskHandler(taskSvc, lg),
		httpapi.NewImportHandler(importSvc, lg),
		httpapi.NewEventHandler(feed, lg),
	)

	srv := service.NewServer(cfg.HTTP.Addr, router, lg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		lg.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			lg.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		lg.Warn("Failed to stop HTTP server cleanly", zap.Error(err))
	}
}
