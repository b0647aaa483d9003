package report

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"pybundle/internal/core/errors"
	"pybundle/internal/core/ports"
)

type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatTSV      Format = "tsv"
	FormatMermaid  Format = "mermaid"
	FormatDOT      Format = "dot"
)

// FormatForPath picks the manifest format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".tsv":
		return FormatTSV, nil
	case ".mmd", ".mermaid":
		return FormatMermaid, nil
	case ".dot", ".gv":
		return FormatDOT, nil
	}
	return "", errors.AddContext(
		errors.New(errors.CodeConfiguration, "unsupported report extension (want .md, .tsv, .mmd or .dot)"),
		errors.CtxPath, path,
	)
}

type Options struct {
	Version     string
	GeneratedAt time.Time
	// IncludeRenames adds the identifier to alias table. The table undoes
	// the obfuscation, so it is off unless asked for.
	IncludeRenames bool
}

func Generate(format Format, res ports.BundleResult, opts Options) (string, error) {
	switch format {
	case FormatMarkdown:
		return NewMarkdownGenerator().Generate(res, opts), nil
	case FormatTSV:
		return NewTSVGenerator().Generate(res, opts), nil
	case FormatMermaid:
		return NewMermaidGenerator().Generate(res), nil
	case FormatDOT:
		return NewDOTGenerator().Generate(res), nil
	}
	return "", errors.Newf(errors.CodeConfiguration, "unknown report format %q", format)
}

// Write renders the manifest for path's extension and replaces the file. A
// markdown file that already carries the manifest markers keeps everything
// outside them.
func Write(path string, res ports.BundleResult, opts Options) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	content, err := Generate(format, res, opts)
	if err != nil {
		return err
	}

	if format == FormatMarkdown {
		existing, err := os.ReadFile(path)
		if err == nil && HasMarkers(string(existing), ManifestMarker) {
			content, err = ReplaceBetweenMarkers(string(existing), ManifestMarker, content)
			if err != nil {
				return errors.AddContext(err, errors.CtxPath, path)
			}
		}
	}
	return writeAtomic(path, content)
}

func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pybundle-report-*.tmp")
	if err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeFilesystem, "create temp report file"), errors.CtxPath, path)
	}
	tmpName := tmp.Name()

	writeErr := error(nil)
	if _, err := tmp.WriteString(content); err != nil {
		writeErr = errors.Wrap(err, errors.CodeFilesystem, "write temp report file")
	}
	if err := tmp.Close(); err != nil && writeErr == nil {
		writeErr = errors.Wrap(err, errors.CodeFilesystem, "close temp report file")
	}
	if writeErr != nil {
		_ = os.Remove(tmpName)
		return errors.AddContext(writeErr, errors.CtxPath, path)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.AddContext(errors.Wrap(err, errors.CodeFilesystem, "replace report file"), errors.CtxPath, path)
	}
	return nil
}
