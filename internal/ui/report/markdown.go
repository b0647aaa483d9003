package report

import (
	"fmt"
	"strings"
	"time"

	"pybundle/internal/core/errors"
	"pybundle/internal/core/ports"
	"pybundle/internal/shared/util"
)

// ManifestMarker names the marker pair that delimits an injected manifest:
// <!-- pybundle:manifest:start --> ... <!-- pybundle:manifest:end -->
const ManifestMarker = "manifest"

type MarkdownGenerator struct{}

func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

func (m *MarkdownGenerator) Generate(res ports.BundleResult, opts Options) string {
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now().UTC()
	}

	var b strings.Builder
	b.WriteString("# Bundle Manifest\n\n")
	b.WriteString(fmt.Sprintf("Generated %s by pybundle %s.\n\n",
		opts.GeneratedAt.UTC().Format(time.RFC3339), nonEmpty(opts.Version, "unknown")))

	b.WriteString("## Summary\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	b.WriteString(fmt.Sprintf("| Modules | %d |\n", len(res.Modules)))
	b.WriteString(fmt.Sprintf("| Unresolved Imports | %d |\n", res.Unresolved))
	b.WriteString(fmt.Sprintf("| Names Selected | %d |\n", res.NamesSelected))
	b.WriteString(fmt.Sprintf("| Identifiers Renamed | %d |\n", res.IdentifiersRenamed))
	b.WriteString(fmt.Sprintf("| Alias Collisions | %d |\n", res.AliasCollisions))
	b.WriteString(fmt.Sprintf("| Docstrings Stripped | %d |\n", res.DocstringsStripped))
	b.WriteString(fmt.Sprintf("| Entry Guards Removed | %d |\n", res.GuardsRemoved))
	if res.ArchivePath != "" {
		b.WriteString(fmt.Sprintf("| Archive | `%s` (%d bytes) |\n", res.ArchivePath, res.ArchiveBytes))
	}
	b.WriteString("\n")

	b.WriteString("## Modules\n")
	b.WriteString("| Placement | Source | Imports |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, mod := range res.Modules {
		placement := "`" + mod.Placement + "`"
		if mod.Entry {
			placement += " (entry)"
		}
		b.WriteString(fmt.Sprintf("| %s | `%s` | %s |\n",
			placement, escapeCell(mod.Source), codeList(mod.Dependencies)))
	}
	b.WriteString("\n")

	b.WriteString("## Unresolved Imports\n")
	unresolved := 0
	for _, mod := range res.Modules {
		for _, ref := range mod.Unresolved {
			if unresolved == 0 {
				b.WriteString("| Module | Import |\n")
				b.WriteString("| --- | --- |\n")
			}
			unresolved++
			b.WriteString(fmt.Sprintf("| `%s` | `%s` |\n", mod.Placement, escapeCell(ref)))
		}
	}
	if unresolved == 0 {
		b.WriteString("None.\n")
	}
	b.WriteString("\n")

	if opts.IncludeRenames {
		b.WriteString("## Renames\n")
		b.WriteString("| Identifier | Alias |\n")
		b.WriteString("| --- | --- |\n")
		for _, name := range util.SortedStringKeys(res.Renames) {
			b.WriteString(fmt.Sprintf("| `%s` | `%s` |\n", name, res.Renames[name]))
		}
		b.WriteString("\n")
	}

	if len(res.Modules) > 1 {
		b.WriteString("## Dependency Diagram\n")
		b.WriteString("```mermaid\n")
		b.WriteString(NewMermaidGenerator().Generate(res))
		b.WriteString("```\n")
	}
	return b.String()
}

// HasMarkers reports whether content carries both markers of the named pair.
func HasMarkers(content, marker string) bool {
	start, end := markerPair(marker)
	return strings.Contains(content, start) && strings.Contains(content, end)
}

// ReplaceBetweenMarkers swaps the text between a marker pair, keeping the
// markers and the file's line ending style.
func ReplaceBetweenMarkers(content, marker, replacement string) (string, error) {
	marker = strings.TrimSpace(marker)
	if marker == "" {
		return "", errors.New(errors.CodeValidation, "markdown marker must not be empty")
	}

	newline := "\n"
	if strings.Contains(content, "\r\n") {
		newline = "\r\n"
	}

	start, end := markerPair(marker)
	if strings.Count(content, start) != 1 || strings.Count(content, end) != 1 {
		return "", errors.Newf(errors.CodeValidation, "markdown marker %q must appear exactly once for start and end", marker)
	}

	startIdx := strings.Index(content, start)
	endIdx := strings.Index(content, end)
	if endIdx < startIdx {
		return "", errors.Newf(errors.CodeValidation, "invalid marker order for %q", marker)
	}

	prefix := content[:startIdx+len(start)]
	suffix := content[endIdx:]
	cleanReplacement := strings.TrimRight(replacement, "\r\n")
	if newline != "\n" {
		cleanReplacement = strings.ReplaceAll(cleanReplacement, "\n", newline)
	}

	return prefix + newline + cleanReplacement + newline + suffix, nil
}

func markerPair(marker string) (string, string) {
	return fmt.Sprintf("<!-- pybundle:%s:start -->", marker), fmt.Sprintf("<!-- pybundle:%s:end -->", marker)
}

func codeList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = "`" + item + "`"
	}
	return strings.Join(out, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
