package report

import (
	"fmt"
	"strings"
	"unicode"

	"pybundle/internal/core/ports"
)

type MermaidGenerator struct{}

func NewMermaidGenerator() *MermaidGenerator {
	return &MermaidGenerator{}
}

// Generate draws the bundled modules and the imports between them. The entry
// module gets its own class.
func (m *MermaidGenerator) Generate(res ports.BundleResult) string {
	var b strings.Builder
	b.WriteString("flowchart LR\n")
	b.WriteString("  classDef entry fill:#e8f4ff,stroke:#1f6feb,stroke-width:2px;\n")

	ids := makeIDs(placementsOf(res))
	for _, mod := range res.Modules {
		b.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", ids[mod.Placement], escapeLabel(mod.Placement)))
		if mod.Entry {
			b.WriteString(fmt.Sprintf("  class %s entry\n", ids[mod.Placement]))
		}
	}
	for _, mod := range res.Modules {
		for _, dep := range mod.Dependencies {
			to, ok := ids[dep]
			if !ok {
				continue
			}
			b.WriteString(fmt.Sprintf("  %s --> %s\n", ids[mod.Placement], to))
		}
	}
	return b.String()
}

type DOTGenerator struct{}

func NewDOTGenerator() *DOTGenerator {
	return &DOTGenerator{}
}

func (d *DOTGenerator) Generate(res ports.BundleResult) string {
	var b strings.Builder
	b.WriteString("digraph bundle {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded];\n")
	for _, mod := range res.Modules {
		attrs := ""
		if mod.Entry {
			attrs = " [penwidth=2, color=\"#1f6feb\"]"
		}
		b.WriteString(fmt.Sprintf("  %q%s;\n", mod.Placement, attrs))
	}
	for _, mod := range res.Modules {
		for _, dep := range mod.Dependencies {
			b.WriteString(fmt.Sprintf("  %q -> %q;\n", mod.Placement, dep))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func placementsOf(res ports.BundleResult) []string {
	out := make([]string, 0, len(res.Modules))
	for _, mod := range res.Modules {
		out = append(out, mod.Placement)
	}
	return out
}

func sanitizeID(name string) string {
	if name == "" {
		return "m"
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	if unicode.IsDigit(rune(out[0])) {
		return "m_" + out
	}
	return out
}

// makeIDs assigns each name a node id, suffixing ids that sanitize alike.
func makeIDs(names []string) map[string]string {
	ids := make(map[string]string, len(names))
	used := make(map[string]int, len(names))
	for _, name := range names {
		base := sanitizeID(name)
		idx := used[base]
		used[base] = idx + 1
		if idx == 0 {
			ids[name] = base
			continue
		}
		ids[name] = fmt.Sprintf("%s_%d", base, idx+1)
	}
	return ids
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
