package app

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"pybundle/internal/core/errors"
	"pybundle/internal/core/ports"
	"pybundle/internal/engine/obfuscate"
	"pybundle/internal/engine/packager"
	"pybundle/internal/engine/project"
	"pybundle/internal/engine/resolver"
	"pybundle/internal/engine/transform"
	"pybundle/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	StageResolve   = "resolve"
	StageObfuscate = "obfuscate"
	StageTransform = "transform"
	StagePackage   = "package"
)

type bundleService struct {
	app *App
}

var _ ports.BundleService = (*bundleService)(nil)

func NewBundleService(app *App) ports.BundleService {
	return &bundleService{app: app}
}

func (s *bundleService) Close(ctx context.Context) error {
	if s == nil || s.app == nil {
		return nil
	}
	return s.app.Close(ctx)
}

// Bundle runs resolve, obfuscate, transform and package strictly in sequence.
// Each stage completes before the next begins.
func (s *bundleService) Bundle(ctx context.Context, req ports.BundleRequest) (res ports.BundleResult, err error) {
	ctx, span := observability.Tracer.Start(ctx, "bundleService.Bundle", trace.WithAttributes(
		attribute.String("pybundle.entry", req.EntryPath),
	))
	started := time.Now()
	defer func() {
		res.Duration = time.Since(started)
		outcome := "success"
		if err != nil {
			outcome = strings.ToLower(string(errors.CodeOf(err)))
		}
		observability.RunsTotal.WithLabelValues(outcome).Inc()
		observability.EndStage(span, err)
	}()

	if s.app == nil || s.app.Config == nil {
		return res, errors.New(errors.CodeInternal, "config is required")
	}
	if err := validateRequest(req); err != nil {
		return res, err
	}
	compression := packager.CompressionDeflate
	if req.Compression != "" {
		if compression, err = packager.ParseCompression(req.Compression); err != nil {
			return res, err
		}
	}

	res.OutputDir = req.OutputDir
	if res.OutputDir == "" {
		scratch, err := newScratchDir()
		if err != nil {
			return res, err
		}
		res.OutputDir = scratch.path
		res.OutputDirScratch = true
		if !req.KeepOutputDir {
			defer func() {
				res.OutputDirRemoved = scratch.remove()
			}()
		}
	}

	var proj *project.Project
	err = runStage(ctx, StageResolve, func(ctx context.Context) error {
		r, err := resolver.NewResolver(s.app.Config)
		if err != nil {
			return err
		}
		defer r.Close()
		proj, err = r.Resolve(ctx, req.EntryPath, s.app.Config.Bundle.EntryPlacement)
		return err
	})
	if err != nil {
		return res, err
	}
	for _, u := range proj.Units() {
		res.Placements = append(res.Placements, u.Placement)
		res.Modules = append(res.Modules, summarizeUnit(u))
	}
	res.Unresolved = proj.Unresolved()
	observability.UnitsBundled.Set(float64(proj.Len()))
	observability.UnresolvedImports.Set(float64(res.Unresolved))

	err = runStage(ctx, StageObfuscate, func(ctx context.Context) error {
		table, err := obfuscate.BuildRenameTable(proj.Identifiers(), proj.Config().Obfuscate)
		if err != nil {
			return err
		}
		proj.Renames = table
		res.Renames = table.Map()
		res.NamesSelected = table.Len()
		res.AliasCollisions = len(table.Collisions)
		return nil
	})
	if err != nil {
		return res, err
	}

	err = runStage(ctx, StageTransform, func(ctx context.Context) error {
		stats, err := transform.Run(proj)
		if err != nil {
			return err
		}
		res.DocstringsStripped = stats.Docstrings
		res.GuardsRemoved = stats.Guards
		res.IdentifiersRenamed = stats.Renames
		return nil
	})
	if err != nil {
		return res, err
	}

	err = runStage(ctx, StagePackage, func(ctx context.Context) error {
		out, err := packager.Package(ctx, proj, packager.Options{
			OutputDir:   res.OutputDir,
			ArchivePath: req.ArchivePath,
			Compression: compression,
			Shebang: packager.ShebangPolicy{
				FromEntry: req.ShebangFromEntry,
				Override:  req.Shebang,
			},
			Executable: req.Executable,
		})
		if err != nil {
			return err
		}
		res.ArchivePath = out.ArchivePath
		res.ArchiveBytes = out.ArchiveBytes
		res.Marker = out.Marker
		return nil
	})
	if err != nil {
		return res, err
	}

	slog.Info("bundle complete",
		"units", len(res.Placements),
		"unresolved", res.Unresolved,
		"renamed", res.IdentifiersRenamed,
		"output_dir", res.OutputDir,
		"archive", res.ArchivePath,
	)
	return res, nil
}

// runStage wraps one pipeline stage in a span and a duration observation, and
// tags any error with the stage name.
func runStage(ctx context.Context, stage string, fn func(context.Context) error) error {
	ctx, span := observability.StartStage(ctx, stage)
	started := time.Now()
	err := fn(ctx)
	observability.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
	observability.EndStage(span, err)
	if err != nil {
		slog.Debug("stage failed", "stage", stage, "error", err)
		return errors.AddContext(err, errors.CtxStage, stage)
	}
	slog.Debug("stage complete", "stage", stage, "duration", time.Since(started))
	return nil
}

func summarizeUnit(u *project.Unit) ports.ModuleSummary {
	summary := ports.ModuleSummary{
		Placement:    u.Placement,
		Source:       u.Path,
		Entry:        u.Entry,
		Dependencies: append([]string(nil), u.Dependencies...),
	}
	for _, imp := range u.Unresolved {
		summary.Unresolved = append(summary.Unresolved, imp.String())
	}
	return summary
}

func validateRequest(req ports.BundleRequest) error {
	if strings.TrimSpace(req.EntryPath) == "" {
		return errors.New(errors.CodeConfiguration, "entry module is required")
	}
	if req.OutputDir == "" && req.ArchivePath == "" {
		return errors.New(errors.CodeConfiguration, "an output directory or an archive path is required")
	}
	if strings.ContainsAny(req.Shebang, "\r\n") {
		return errors.New(errors.CodeConfiguration, "shebang must be a single line")
	}
	return nil
}

type scratchDir struct {
	path string
}

func newScratchDir() (*scratchDir, error) {
	dir, err := os.MkdirTemp("", "pybundle-")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeFilesystem, "create scratch directory")
	}
	slog.Debug("scratch directory created", "dir", dir)
	return &scratchDir{path: dir}, nil
}

// remove deletes the scratch tree. A failure is logged, not returned: the
// bundle itself is already complete or already failed.
func (d *scratchDir) remove() bool {
	if err := os.RemoveAll(d.path); err != nil {
		slog.Warn("scratch directory not removed", "dir", d.path, "error", err)
		return false
	}
	slog.Debug("scratch directory removed", "dir", d.path)
	return true
}
