package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"hidrocl-platform/internal/config"
	"hidrocl-platform/internal/products"
	"hidrocl-platform/internal/services"
	"hidrocl-platform/pkg/logging"
	"hidrocl-platform/pkg/metrics"
)

func main() {
	productFlag := flag.String("product", "all", "Product to clean, or 'all'")
	apply := flag.Bool("apply", false, "Actually delete duplicates (default is a dry run)")
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
	logger := logging.NewStructuredLogger("hidrocl-maintainer", cfg.Service.Version, logLevel)
	ctx := context.Background()

	metricsCollector := metrics.NewCollector("hidrocl_maintainer")

	specs, err := products.Build(cfg)
	if err != nil {
		logger.Fatal(ctx, "[MAINTAINER_ERROR] Invalid product configuration", logging.Fields{}, err)
	}

	maintenance := services.NewMaintenanceService(logger, metricsCollector)

	bold := color.New(color.Bold)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)

	seen := make(map[string]bool)
	exitCode := 0
	for _, spec := range specs {
		if *productFlag != "all" && !matches(*productFlag, spec.Name) {
			continue
		}
		// Sibling variables share a directory; clean each archive once.
		if seen[spec.Directory] || spec.ID.TileField < 0 {
			continue
		}
		seen[spec.Directory] = true

		bold.Printf("==> %s (%s)\n", spec.Name, spec.Directory)

		result, err := maintenance.Deduplicate(ctx, spec, !*apply)
		if err != nil {
			fmt.Fprintf(os.Stderr, "    failed: %v\n", err)
			exitCode = 1
			continue
		}

		if result.DuplicateSets == 0 {
			green.Println("    no duplicates")
			continue
		}
		if *apply {
			green.Printf("    removed %d of %d duplicate files\n", result.FilesRemoved, len(result.FilesRemovable))
		} else {
			yellow.Printf("    %d duplicate files (re-run with -apply to delete)\n", len(result.FilesRemovable))
		}
	}

	os.Exit(exitCode)
}

func matches(selector, name string) bool {
	for _, s := range strings.Split(selector, ",") {
		if strings.TrimSpace(s) == name {
			return true
		}
	}
	return false
}
