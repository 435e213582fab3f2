package zonal

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"hidrocl-platform/internal/models"
	"hidrocl-platform/internal/services"
	"hidrocl-platform/pkg/logging"
)

// RscriptEngine reduces rasters over catchment polygons by shelling out to
// R. Each statistic has its own script; every script takes the polygon file,
// the input raster (or product directory plus scene id) and the output CSV
// path as positional arguments.
type RscriptEngine struct {
	binary  string
	scripts map[models.StatKind]string
	timeout time.Duration
	logger  *logging.StructuredLogger
}

// NewRscriptEngine creates a new R-backed zonal engine. binary defaults to
// "Rscript" when empty; timeout bounds one script invocation.
func NewRscriptEngine(binary string, scripts map[models.StatKind]string, timeout time.Duration, logger *logging.StructuredLogger) *RscriptEngine {
	if binary == "" {
		binary = "Rscript"
	}
	return &RscriptEngine{
		binary:  binary,
		scripts: scripts,
		timeout: timeout,
		logger:  logger,
	}
}

// Extract runs the statistic's script and parses its output CSV. The first
// output column must be the catchment id; statistic columns follow.
func (e *RscriptEngine) Extract(ctx context.Context, req services.ZonalRequest) (*services.ZonalResult, error) {
	script, ok := e.scripts[req.Statistic]
	if !ok {
		return nil, fmt.Errorf("no script configured for statistic %q", req.Statistic)
	}

	input := req.RasterPath
	args := []string{"--vanilla", script, req.PolygonsPath}
	if input == "" {
		// Direct mode: the script reads the raw scene files itself.
		args = append(args, req.ProductDir, req.SceneID)
	} else {
		args = append(args, input)
	}
	outPath := filepath.Join(req.ScratchDir, fmt.Sprintf("zonal_%s_%s.csv", req.SceneID, req.Statistic))
	args = append(args, outPath)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, e.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, &models.ExternalToolError{
			SceneID: req.SceneID,
			Stage:   string(req.Statistic),
			Output:  truncateOutput(output),
			Err:     err,
		}
	}

	e.logger.Debug(ctx, "[ZONAL_SCRIPT_DONE] Extraction script finished", logging.Fields{
		"scene_id":    req.SceneID,
		"statistic":   string(req.Statistic),
		"script":      script,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	rows, err := readResultCSV(outPath)
	if err != nil {
		return nil, &models.ExternalToolError{
			SceneID: req.SceneID,
			Stage:   string(req.Statistic),
			Output:  truncateOutput(output),
			Err:     err,
		}
	}

	return &services.ZonalResult{Rows: rows}, nil
}

// readResultCSV loads the script's output, dropping the header row
func readResultCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("script produced no output file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse script output %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("script output %s has no data rows", path)
	}
	return records[1:], nil
}

// truncateOutput keeps error context bounded; R tracebacks can be enormous
func truncateOutput(output []byte) string {
	const max = 2048
	s := strings.TrimSpace(string(output))
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
