// Package transform rewrites parsed units in place once resolution is
// complete. Every pass works by attaching replacements to tree nodes; the
// rendered text reflects nothing else.
package transform

import (
	"log/slog"
	"regexp"

	"pybundle/internal/core/config"
	"pybundle/internal/core/errors"
	"pybundle/internal/engine/obfuscate"
	"pybundle/internal/engine/parser"
	"pybundle/internal/engine/project"
	"pybundle/internal/shared/observability"
)

const (
	RunContextName = "__name__"
	EntrySentinel  = "__main__"

	emptyLiteral = `""`
	noOp         = "pass"
)

// Stats counts the replacements made by Run.
type Stats struct {
	Docstrings int
	Guards     int
	Renames    int
}

// StripDocstrings empties every standalone plain string statement unless one
// of excludes finds a match in its value. Escape sequences are decoded before
// matching; raw literals are matched as written.
func StripDocstrings(u *project.Unit, excludes []*regexp.Regexp) int {
	t := u.Tree
	count := 0
	parser.Walk(t.Root, func(n *parser.Node) bool {
		if n.Kind != parser.KindExpressionStatement {
			return true
		}
		lit, body, ok := t.Docstring(n)
		if !ok {
			return false
		}
		if _, replaced := lit.Replacement(); replaced {
			return false
		}
		for _, re := range excludes {
			if re.MatchString(body) {
				return false
			}
		}
		lit.Replace(emptyLiteral)
		count++
		return false
	})
	return count
}

// RemoveEntryGuard replaces the body of each top-level
// `if __name__ == "__main__":` with pass. The entry unit is never touched.
func RemoveEntryGuard(u *project.Unit) int {
	if u.Entry {
		return 0
	}
	count := 0
	for _, stmt := range u.Tree.Statements() {
		body := u.Tree.EntryGuardBody(stmt, RunContextName, EntrySentinel)
		if body == nil {
			continue
		}
		body.Replace(noOp)
		count++
	}
	return count
}

// ApplyRenames substitutes the alias of every renamable token the table
// selects.
func ApplyRenames(u *project.Unit, table *obfuscate.Table) int {
	count := 0
	for _, tok := range u.Tree.Identifiers() {
		if !tok.Role.Renamable() {
			continue
		}
		alias, ok := table.Alias(tok.Text)
		if !ok {
			continue
		}
		tok.Node.Replace(alias)
		count++
	}
	return count
}

// Run applies every pass to every unit of p. The rename table must already
// be set on p.
func Run(p *project.Project) (Stats, error) {
	var stats Stats
	if p.Renames == nil {
		return stats, errors.New(errors.CodeInternal, "rename table not built")
	}
	cfg := p.Config()
	excludes, err := config.CompilePatterns(cfg.Obfuscate.DocstringExclude, "obfuscate.docstring_exclude")
	if err != nil {
		return stats, errors.Wrap(err, errors.CodeConfiguration, "compile docstring excludes")
	}

	for _, u := range p.Units() {
		docs := StripDocstrings(u, excludes)
		guards := RemoveEntryGuard(u)
		renames := ApplyRenames(u, p.Renames)
		slog.Debug("unit transformed",
			"placement", u.Placement,
			"docstrings", docs,
			"guards", guards,
			"renames", renames,
		)
		stats.Docstrings += docs
		stats.Guards += guards
		stats.Renames += renames
	}

	observability.DocstringsStripped.Add(float64(stats.Docstrings))
	observability.GuardsRemoved.Add(float64(stats.Guards))
	observability.IdentifiersRenamed.Add(float64(stats.Renames))
	return stats, nil
}
