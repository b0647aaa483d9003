package ports

import (
	"context"
	"time"
)

// BundleService is the driving port used by the CLI.
type BundleService interface {
	Bundle(ctx context.Context, req BundleRequest) (BundleResult, error)
	Close(ctx context.Context) error
}

// BundleRequest describes one bundling run. At least one of OutputDir and
// ArchivePath must be set.
type BundleRequest struct {
	EntryPath        string
	OutputDir        string
	ArchivePath      string
	Compression      string
	ShebangFromEntry bool
	Shebang          string
	Executable       bool
	KeepOutputDir    bool
}

// ModuleSummary describes one bundled module.
type ModuleSummary struct {
	Placement string
	Source    string
	Entry     bool
	// Dependencies are the placements of the bundled modules it imports.
	Dependencies []string
	// Unresolved holds the import references left to the runtime.
	Unresolved []string
}

// BundleResult summarizes a completed run.
type BundleResult struct {
	Placements         []string
	Modules            []ModuleSummary
	Renames            map[string]string
	Unresolved         int
	IdentifiersRenamed int
	NamesSelected      int
	AliasCollisions    int
	DocstringsStripped int
	GuardsRemoved      int

	OutputDir        string
	OutputDirScratch bool
	OutputDirRemoved bool

	ArchivePath  string
	ArchiveBytes int64
	Marker       string

	Duration time.Duration
}
