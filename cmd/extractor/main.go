package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/airbusgeo/godal"
	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hidrocl-platform/internal/config"
	"hidrocl-platform/internal/models"
	"hidrocl-platform/internal/products"
	"hidrocl-platform/internal/raster"
	"hidrocl-platform/internal/repository"
	"hidrocl-platform/internal/scratch"
	"hidrocl-platform/internal/services"
	"hidrocl-platform/internal/zonal"
	"hidrocl-platform/pkg/database"
	"hidrocl-platform/pkg/logging"
	"hidrocl-platform/pkg/metrics"
)

func main() {
	productFlag := flag.String("product", "all", "Product to process, or 'all'")
	limitFlag := flag.Int("limit", -1, "Max frontier scenes per product (-1 uses the configured limit)")
	dryRun := flag.Bool("dry-run", false, "Report the frontier without processing any scene")
	serveMetrics := flag.Bool("serve-metrics", false, "Expose /metrics while the batch runs")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logLevel := logging.InfoLevel
	if cfg.Logging.Level == "debug" {
		logLevel = logging.DebugLevel
	}
	logger := logging.NewStructuredLogger("hidrocl-extractor", cfg.Service.Version, logLevel)

	if cfg.Paths.LogFile != "" {
		closer, err := logger.TeeToFile(cfg.Paths.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "[EXTRACTOR_START] Starting extraction batch", logging.Fields{
		"version": cfg.Service.Version,
		"product": *productFlag,
	})

	metricsCollector := metrics.NewCollector("hidrocl")

	if *serveMetrics {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info(ctx, "[EXTRACTOR_METRICS] Serving metrics during batch", logging.Fields{
				"address": addr,
			})
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Warn(ctx, "[EXTRACTOR_METRICS] Metrics endpoint stopped", logging.Fields{
					"error": err.Error(),
				})
			}
		}()
	}

	godal.RegisterAll()

	specs, err := products.Build(cfg)
	if err != nil {
		logger.Fatal(ctx, "[EXTRACTOR_ERROR] Invalid product configuration", logging.Fields{}, err)
	}
	if len(specs) == 0 {
		logger.Fatal(ctx, "[EXTRACTOR_ERROR] No product directories configured", logging.Fields{}, fmt.Errorf("empty product set"))
	}

	selected, err := selectProducts(specs, *productFlag)
	if err != nil {
		logger.Fatal(ctx, "[EXTRACTOR_ERROR] Unknown product", logging.Fields{
			"product": *productFlag,
		}, err)
	}

	scratchManager, err := scratch.NewManager(ctx, cfg.Paths.ScratchDir, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[EXTRACTOR_ERROR] Failed to prepare scratch directory", logging.Fields{}, err)
	}

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
			logger.Fatal(ctx, "[EXTRACTOR_ERROR] Failed to connect to journal database", logging.Fields{}, err)
		}
		defer db.Close()
		journal = repository.NewPostgresJournal(db, logger, metricsCollector)
	}

	limit := cfg.Engine.SceneLimit
	if *limitFlag >= 0 {
		limit = *limitFlag
	}

	extraction := services.NewExtractionService(
		services.NewCatalogService(logger, metricsCollector),
		raster.NewGodalBuilder(logger),
		zonal.NewRscriptEngine(cfg.Engine.RscriptBinary, products.Scripts(cfg.Engine.ScriptsDir), cfg.Engine.Timeout, logger),
		raster.NewGodalCatchmentSource(cfg.Paths.CatchmentField),
		journal,
		logger,
		metricsCollector,
		scratchManager.Dir(),
		limit,
	)

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	exitCode := 0
	for _, spec := range selected {
		if ctx.Err() != nil {
			break
		}
		bold.Printf("==> %s\n", spec.Name)

		if *dryRun {
			frontier, err := extraction.PlanProduct(ctx, spec)
			if err != nil {
				red.Printf("    plan failed: %v\n", err)
				exitCode = 1
				continue
			}
			yellow.Printf("    pending scenes: %d\n", len(frontier))
			for _, sceneID := range frontier {
				fmt.Printf("    %s\n", sceneID)
			}
			continue
		}

		run, err := extraction.ProcessProduct(ctx, spec)
		if err != nil {
			red.Printf("    run failed: %v\n", err)
			logger.Error(ctx, "[EXTRACTOR_RUN_ERROR] Product run failed", logging.Fields{
				"product": spec.Name,
			}, err)
			exitCode = 1
			continue
		}

		green.Printf("    appended: %d\n", run.ScenesAppended)
		yellow.Printf("    skipped:  %d\n", run.ScenesSkipped)
		if run.ScenesFailed > 0 {
			red.Printf("    failed:   %d\n", run.ScenesFailed)
		}
	}

	logger.Info(ctx, "[EXTRACTOR_COMPLETE] Extraction batch finished", logging.Fields{
		"products": len(selected),
	})
	os.Exit(exitCode)
}

func selectProducts(specs []models.ProductSpec, selector string) ([]models.ProductSpec, error) {
	if selector == "all" || selector == "" {
		return specs, nil
	}
	var out []models.ProductSpec
	for _, name := range strings.Split(selector, ",") {
		spec, err := products.ByName(specs, strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}
