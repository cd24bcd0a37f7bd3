package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"aqpanel/internal/config"
	apperrors "aqpanel/internal/errors"
	"aqpanel/internal/infrastructure"
	"aqpanel/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (defaults to aqpanel.yaml or configs/aqpanel.yaml when present)")
	inputPath := flag.String("input", "", "panel workbook (.xlsx) or CSV file")
	sheet := flag.String("sheet", "", "sheet to read (defaults to the first sheet)")
	outputDir := flag.String("out", "", "output directory for the report artifacts")
	flag.Parse()

	cfg, err := config.Load(*configPath, func(c *config.Config) {
		if *inputPath != "" {
			c.Input.Path = *inputPath
		}
		if *sheet != "" {
			c.Input.Sheet = *sheet
		}
		if *outputDir != "" {
			c.Output.Dir = *outputDir
		}
	})
	if err != nil {
		slog.Error("Failed to load configuration", "error", apperrors.NewConfigError("invalid configuration", err))
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	if err := run(cfg, logger); err != nil {
		logger.Error("Collinearity report failed",
			"error", err,
			"error_type", string(apperrors.TypeOf(err)))
		infrastructure.CloseLogFile()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFromTelemetry(cfg.Telemetry), logger)
	if err != nil {
		return apperrors.NewConfigError("failed to initialize telemetry", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(ctx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	runner, err := pipeline.NewFromConfig(cfg, providers, logger)
	if err != nil {
		return err
	}

	ctx := infrastructure.EnsureRunID(context.Background())
	logger.InfoContext(ctx, "Starting collinearity report",
		"input", cfg.Input.Path,
		"sheet", cfg.Input.Sheet,
		"output_dir", cfg.Output.Dir,
		"format", cfg.Output.Format)

	state, runErr := runner.Run(ctx, cfg.Input.Path)

	// Metrics are flushed only when the run produced output.
	if state != nil && len(state.Artifacts) > 0 && cfg.Telemetry.MetricsFile != "" {
		path := cfg.Paths().MetricsPath(cfg.Telemetry.MetricsFile)
		if err := providers.WriteMetrics(path); err != nil {
			logger.WarnContext(ctx, "Failed to write metrics textfile", "path", path, "error", err)
		}
	}

	if runErr != nil {
		return runErr
	}

	printSummary(state)
	return nil
}

func printSummary(state *pipeline.State) {
	fmt.Println("\n=== Collinearity Report Summary ===")
	fmt.Printf("Run: %s\n", state.RunID)
	fmt.Printf("Observations: %d\n", state.Raw.Len())
	fmt.Printf("Features loaded: %d\n", len(state.Raw.Features))
	fmt.Printf("Removed by correlation pruning: %d\n", len(state.Prune.Removed))
	fmt.Printf("Removed by VIF reduction: %d (%s after %d iterations)\n",
		len(state.VIF.Removed), state.VIF.Status, state.VIF.Iterations)
	fmt.Printf("Final features: %v\n", state.Final.FeatureNames())

	fmt.Println("\nArtifacts:")
	for _, a := range state.Artifacts {
		for _, f := range a.Files {
			fmt.Printf("  %-18s %s\n", a.Name, f)
		}
	}
	if state.VIF.Status.Degraded() {
		fmt.Println("\nWARNING: VIF reduction did not converge; see the narrative report.")
	}
}
