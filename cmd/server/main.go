package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hidrocl-platform/internal/config"
	"hidrocl-platform/internal/handlers"
	"hidrocl-platform/internal/products"
	"hidrocl-platform/internal/repository"
	"hidrocl-platform/internal/services"
	"hidrocl-platform/pkg/database"
	"hidrocl-platform/pkg/logging"
	"hidrocl-platform/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logLevel := logging.InfoLevel
	if cfg.Logging.Level == "debug" {
		logLevel = logging.DebugLevel
	}
	logger := logging.NewStructuredLogger("hidrocl-api", cfg.Service.Version, logLevel)

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting extraction status API server", logging.Fields{
		"version":     cfg.Service.Version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"journal":     cfg.Database.Enabled(),
	})

	metricsCollector := metrics.NewCollector("hidrocl")

	journal := repository.RunJournal(repository.NewNoopJournal())
	if cfg.Database.Enabled() {
		db, err := database.NewPostgresDB(&database.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Name,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to journal database", logging.Fields{}, err)
		}
		defer db.Close()
		journal = repository.NewPostgresJournal(db, logger, metricsCollector)
	}

	stores := openStores(ctx, cfg, logger)

	statusService := services.NewStatusService(journal, stores, logger, metricsCollector)
	statsService := services.NewStatisticsService(logger, metricsCollector)

	statusHandler := handlers.NewStatusHandler(statusService, statsService, logger, metricsCollector)

	router := mux.NewRouter()
	statusHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}

// openStores loads every configured variable table that already exists on
// disk. Tables appear as the extractor creates them; absence is not an
// error for a read-only server.
func openStores(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger) map[string]*repository.SeriesStore {
	stores := make(map[string]*repository.SeriesStore)

	specs, err := products.Build(cfg)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid product configuration", logging.Fields{}, err)
	}

	for _, spec := range specs {
		for _, v := range spec.Variables() {
			if _, ok := stores[v.Name]; ok {
				continue
			}
			store, err := repository.OpenSeriesStore(v.TablePath, services.SceneColumn)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				logger.Warn(ctx, "[STARTUP] Skipping unreadable variable table", logging.Fields{
					"variable": v.Name,
					"table":    v.TablePath,
					"error":    err.Error(),
				})
				continue
			}
			stores[v.Name] = store
		}
	}

	logger.Info(ctx, "[STARTUP] Variable tables loaded", logging.Fields{
		"tables": len(stores),
	})
	return stores
}
