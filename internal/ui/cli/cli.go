package cli

import (
	"pybundle/internal/ui/report"

	"github.com/spf13/cobra"
)

const versionString = "1.0.0"

type cliOptions struct {
	module           string
	outputDir        string
	archive          string
	compression      string
	shebangFromEntry bool
	shebang          string
	executable       bool
	configPath       string
	keepOutputDir    bool
	verbose          bool
	metricsFile      string
	reportPath       string
	reportRenames    bool
}

func newRootCommand(opts *cliOptions, run func(cmd *cobra.Command) error) *cobra.Command {
	root := &cobra.Command{
		Use:   "pybundle -m ENTRY.py [-o DIR] [-z ARCHIVE]",
		Short: "Bundle a Python entry script and its local imports",
		Long: `pybundle resolves every local module imported by an entry script, strips
docstrings, disables main guards outside the entry, renames selected
identifiers with a seeded alias, and writes the result as a directory tree,
a ZIP archive, or both.`,
		Version:       versionString,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.reportPath != "" {
				if _, err := report.FormatForPath(opts.reportPath); err != nil {
					return err
				}
			}
			return run(cmd)
		},
	}
	root.SetVersionTemplate("pybundle v{{.Version}}\n")

	f := root.Flags()
	f.StringVarP(&opts.module, "module", "m", "", "entry source file")
	f.StringVarP(&opts.outputDir, "output-dir", "o", "", "directory where bundled files are written (scratch directory if omitted)")
	f.StringVarP(&opts.archive, "archive", "z", "", "write a single ZIP archive to this path")
	f.StringVar(&opts.compression, "compression", "deflate", "archive compression: none, deflate, bzip2 or lzma")
	f.BoolVar(&opts.shebangFromEntry, "shebang-from-entry", false, "prefix the archive with the entry module's #! line")
	f.StringVar(&opts.shebang, "shebang", "", "prefix the archive with this line (wins over --shebang-from-entry)")
	f.BoolVarP(&opts.executable, "executable", "x", false, "add execute permission bits to the archive")
	f.StringVarP(&opts.configPath, "config", "c", "", "path to a TOML config file")
	f.BoolVarP(&opts.keepOutputDir, "keep-output-dir", "k", false, "keep the scratch output directory")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
	f.StringVar(&opts.reportPath, "report", "", "write a bundle manifest (.md, .tsv, .mmd or .dot) to this path")
	f.BoolVar(&opts.reportRenames, "report-renames", false, "include the identifier to alias table in the manifest")
	_ = root.MarkFlagRequired("module")

	return root
}
