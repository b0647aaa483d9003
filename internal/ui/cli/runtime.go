package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"pybundle/internal/core/config"
	"pybundle/internal/core/ports"
	"pybundle/internal/shared/observability"
	"pybundle/internal/ui/report"

	charmlog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Run executes the CLI and returns the process exit code: 0 on success, 1
// when the bundle fails, 2 on invalid usage.
func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr, coreBundleFactory{})
}

func run(args []string, stdout, stderr io.Writer, factory bundleFactory) int {
	var opts cliOptions
	code := 0
	root := newRootCommand(&opts, func(cmd *cobra.Command) error {
		code = execute(cmd.Context(), opts, stdout, stderr, factory)
		return nil
	})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.Name())
		return 2
	}
	return code
}

func execute(ctx context.Context, opts cliOptions, stdout, stderr io.Writer, factory bundleFactory) int {
	runID := uuid.NewString()
	configureLogging(stderr, opts.verbose, runID)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	metricsFile := opts.metricsFile
	if metricsFile == "" {
		metricsFile = cfg.Observability.MetricsFile
	}
	if metricsFile != "" {
		defer func() {
			if err := observability.WriteMetricsFile(metricsFile); err != nil {
				slog.Warn("failed to write metrics file", "path", metricsFile, "error", err)
			}
		}()
	}

	shutdown, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint, runID)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	svc, err := factory.New(cfg)
	if err != nil {
		slog.Error("failed to initialize bundler", "error", err)
		return 1
	}
	defer svc.Close(ctx)

	res, err := svc.Bundle(ctx, ports.BundleRequest{
		EntryPath:        opts.module,
		OutputDir:        opts.outputDir,
		ArchivePath:      opts.archive,
		Compression:      opts.compression,
		ShebangFromEntry: opts.shebangFromEntry,
		Shebang:          opts.shebang,
		Executable:       opts.executable,
		KeepOutputDir:    opts.keepOutputDir,
	})
	if err != nil {
		slog.Error("bundle failed", "error", err)
		return 1
	}

	if opts.reportPath != "" {
		err := report.Write(opts.reportPath, res, report.Options{
			Version:        versionString,
			IncludeRenames: opts.reportRenames,
		})
		if err != nil {
			slog.Error("failed to write report", "path", opts.reportPath, "error", err)
			return 1
		}
		slog.Debug("report written", "path", opts.reportPath)
	}

	fmt.Fprint(stdout, renderSummary(res))
	return 0
}

// loadConfig returns the file configuration, or the defaults when no path is
// given, with PYBUNDLE_* environment overrides applied on top.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	if path == "" {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.ApplyEnvOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configureLogging(w io.Writer, verbose bool, runID string) {
	level := charmlog.InfoLevel
	if verbose {
		level = charmlog.DebugLevel
	}
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
		Prefix:          "pybundle",
	})
	slog.SetDefault(slog.New(handler).With("run_id", runID))
}
