package report

import (
	"fmt"
	"strings"

	"pybundle/internal/core/ports"
	"pybundle/internal/shared/util"
)

type TSVGenerator struct{}

func NewTSVGenerator() *TSVGenerator {
	return &TSVGenerator{}
}

// Generate emits one row per fact: a module, an edge between bundled
// modules, an unresolved import and, when asked for, a rename.
func (t *TSVGenerator) Generate(res ports.BundleResult, opts Options) string {
	var buf strings.Builder

	buf.WriteString("Type\tPlacement\tValue\tDetail\n")
	for _, mod := range res.Modules {
		detail := ""
		if mod.Entry {
			detail = "entry"
		}
		buf.WriteString(fmt.Sprintf("module\t%s\t%s\t%s\n", mod.Placement, tsvField(mod.Source), detail))
	}
	for _, mod := range res.Modules {
		for _, dep := range mod.Dependencies {
			buf.WriteString(fmt.Sprintf("import\t%s\t%s\t\n", mod.Placement, dep))
		}
	}
	for _, mod := range res.Modules {
		for _, ref := range mod.Unresolved {
			buf.WriteString(fmt.Sprintf("unresolved\t%s\t%s\t\n", mod.Placement, tsvField(ref)))
		}
	}
	if opts.IncludeRenames {
		for _, name := range util.SortedStringKeys(res.Renames) {
			buf.WriteString(fmt.Sprintf("rename\t\t%s\t%s\n", name, res.Renames[name]))
		}
	}
	return buf.String()
}

func tsvField(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}
