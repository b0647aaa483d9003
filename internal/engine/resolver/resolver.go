// # internal/engine/resolver/resolver.go
package resolver

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"pybundle/internal/core/config"
	"pybundle/internal/core/errors"
	"pybundle/internal/engine/parser"
	"pybundle/internal/engine/project"
	"pybundle/internal/shared/util"

	"github.com/gobwas/glob"
)

const (
	sourceExt    = ".py"
	packageEntry = "__init__.py"
)

// Resolver discovers every local module reachable from an entry file.
// It is not safe for concurrent use.
type Resolver struct {
	parser *parser.Parser
	base   *config.Config
}

func NewResolver(base *config.Config) (*Resolver, error) {
	p, err := parser.NewParser()
	if err != nil {
		return nil, err
	}
	return &Resolver{parser: p, base: base}, nil
}

func (r *Resolver) Close() {
	if r == nil {
		return
	}
	r.parser.Close()
}

// resolution is the mutable state of one Resolve call. It is threaded through
// the traversal instead of living on the Resolver.
type resolution struct {
	ctx     context.Context
	project *project.Project

	globsFor *config.Config
	excludes []glob.Glob
}

// Resolve parses the entry file and, depth first, every local module it
// imports. Units are added to the project in discovery order, entry first.
func (r *Resolver) Resolve(ctx context.Context, entryPath, entryPlacement string) (*project.Project, error) {
	canonical, err := canonicalPath(entryPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeFilesystem, "entry module not found"),
			errors.CtxPath, entryPath,
		)
	}
	if info.IsDir() {
		return nil, errors.AddContext(
			errors.New(errors.CodeFilesystem, "entry module is a directory"),
			errors.CtxPath, entryPath,
		)
	}

	placement := util.NormalizePatternPath(entryPlacement)
	if placement == "" || util.EscapesRoot(placement) {
		return nil, errors.AddContext(
			errors.Newf(errors.CodeConfiguration, "invalid entry placement %q", entryPlacement),
			errors.CtxPlacement, entryPlacement,
		)
	}

	res := &resolution{ctx: ctx, project: project.New(r.base)}
	if err := r.visit(res, canonical, placement); err != nil {
		return nil, err
	}
	slog.Debug("resolution complete",
		"units", res.project.Len(),
		"unresolved", res.project.Unresolved(),
	)
	return res.project, nil
}

func (r *Resolver) visit(res *resolution, srcPath, placement string) error {
	if err := res.ctx.Err(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "resolution cancelled")
	}

	unit, err := r.load(srcPath, placement)
	if err != nil {
		return err
	}
	if err := res.project.AddUnit(unit); err != nil {
		return err
	}
	slog.Debug("module added", "path", srcPath, "placement", placement)

	dir := filepath.Dir(srcPath)
	for _, imp := range unit.Imports {
		found := false
		for _, forms := range candidates(dir, imp) {
			candidate := firstFile(forms)
			if candidate == "" {
				continue
			}
			found = true
			if existing, seen := res.project.Lookup(candidate); seen {
				unit.Dependencies = appendUnique(unit.Dependencies, existing.Placement)
				continue
			}

			childPlacement, err := placementFor(dir, placement, candidate)
			if err != nil {
				return errors.AddContext(err, errors.CtxPath, srcPath)
			}
			excluded, err := res.excluded(childPlacement)
			if err != nil {
				return err
			}
			if excluded {
				slog.Debug("module excluded", "path", candidate, "placement", childPlacement)
				continue
			}
			unit.Dependencies = appendUnique(unit.Dependencies, childPlacement)
			if err := r.visit(res, candidate, childPlacement); err != nil {
				return err
			}
		}
		if !found {
			unit.Unresolved = append(unit.Unresolved, imp)
			slog.Debug("import left unresolved", "path", srcPath, "import", imp.String(), "line", imp.Line)
		}
	}
	return nil
}

// load reads and parses one module and collects what the project needs from
// it: marker line, inline override, imports and identifiers.
func (r *Resolver) load(srcPath, placement string) (*project.Unit, error) {
	source, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeResolution, "read module"),
			errors.CtxPath, srcPath,
		)
	}
	tree, err := r.parser.Parse(srcPath, source)
	if err != nil {
		return nil, err
	}
	override, err := parser.ExtractInlineConfig(tree)
	if err != nil {
		return nil, err
	}
	return &project.Unit{
		Path:        srcPath,
		Placement:   placement,
		Tree:        tree,
		Marker:      parser.ExecutionMarker(source),
		Override:    override,
		Imports:     tree.Imports(),
		Identifiers: tree.RenamableNames(),
	}, nil
}

func (res *resolution) excluded(placement string) (bool, error) {
	cfg := res.project.Config()
	if res.globsFor != cfg {
		globs, err := util.CompileGlobs(cfg.Bundle.Exclude, "bundle.exclude")
		if err != nil {
			return false, errors.Wrap(err, errors.CodeConfiguration, "compile exclude globs")
		}
		res.globsFor = cfg
		res.excludes = globs
	}
	return util.MatchAnyGlob(res.excludes, placement), nil
}

// candidates lists the files an import may name, in lookup order. A relative
// import that climbs past the filesystem root has none.
// candidates lists, per referenced name, the file forms it may take in
// preference order. Only the first existing form of each name is bundled.
func candidates(dir string, imp parser.Import) [][]string {
	base := dir
	for i := 0; i < imp.Hops(); i++ {
		parent := filepath.Dir(base)
		if parent == base {
			return nil
		}
		base = parent
	}

	var out [][]string
	moduleDir := base
	if imp.Module != "" {
		moduleDir = filepath.Join(base, filepath.FromSlash(strings.ReplaceAll(imp.Module, ".", "/")))
		out = append(out, moduleForms(moduleDir))
	}
	for _, item := range imp.Items {
		if item == "*" || strings.Contains(item, ".") {
			continue
		}
		out = append(out, moduleForms(filepath.Join(moduleDir, item)))
	}
	return out
}

func moduleForms(p string) []string {
	return []string{p + sourceExt, filepath.Join(p, packageEntry)}
}

// placementFor mirrors the candidate's position relative to the importing
// module's directory under the importing module's placement directory.
func placementFor(importerDir, importerPlacement, candidate string) (string, error) {
	rel, err := filepath.Rel(importerDir, candidate)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeResolution, "relative module path")
	}
	placement := path.Clean(path.Join(path.Dir(importerPlacement), filepath.ToSlash(rel)))
	if util.EscapesRoot(placement) {
		return "", errors.AddContext(
			errors.Newf(errors.CodeResolution,
				"module %s would be placed outside the bundle root (%s); set bundle.entry_placement to a nested path such as \"A/__init__.py\" so the entry keeps its package directory",
				candidate, placement),
			errors.CtxPlacement, placement,
		)
	}
	return placement, nil
}

func canonicalPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.AddContext(
			errors.Wrap(err, errors.CodeFilesystem, "resolve path"),
			errors.CtxPath, p,
		)
	}
	return filepath.Clean(abs), nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func firstFile(forms []string) string {
	for _, p := range forms {
		if isFile(p) {
			return p
		}
	}
	return ""
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
