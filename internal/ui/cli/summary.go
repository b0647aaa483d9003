package cli

import (
	"fmt"
	"strings"
	"time"

	"pybundle/internal/core/ports"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Width(14)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	placementStyle = lipgloss.NewStyle().PaddingLeft(2)
)

func renderSummary(res ports.BundleResult) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("pybundle") + " " + successStyle.Render("bundle complete") + "\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}
	row("modules", fmt.Sprintf("%d", len(res.Placements)))
	for _, p := range res.Placements {
		b.WriteString(placementStyle.Render(p) + "\n")
	}
	row("renamed", fmt.Sprintf("%d occurrences of %d names", res.IdentifiersRenamed, res.NamesSelected))
	row("docstrings", fmt.Sprintf("%d stripped", res.DocstringsStripped))
	row("guards", fmt.Sprintf("%d disabled", res.GuardsRemoved))
	if res.Unresolved > 0 {
		row("external", fmt.Sprintf("%d imports left to the runtime", res.Unresolved))
	}
	if res.AliasCollisions > 0 {
		row("collisions", warnStyle.Render(fmt.Sprintf("%d alias collisions", res.AliasCollisions)))
	}

	dir := res.OutputDir
	switch {
	case res.OutputDirRemoved:
		dir += " (scratch, removed)"
	case res.OutputDirScratch:
		dir += " (scratch, kept)"
	}
	row("output dir", dir)
	if res.ArchivePath != "" {
		row("archive", fmt.Sprintf("%s (%d bytes)", res.ArchivePath, res.ArchiveBytes))
		if res.Marker != "" {
			row("marker", res.Marker)
		}
	}
	row("duration", res.Duration.Round(time.Millisecond).String())
	return b.String()
}
