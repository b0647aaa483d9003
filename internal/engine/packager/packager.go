// # internal/engine/packager/packager.go
package packager

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pybundle/internal/core/errors"
	"pybundle/internal/engine/project"
	"pybundle/internal/shared/observability"
	"pybundle/internal/shared/util"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
	execBits = 0o111
)

// ShebangPolicy decides the marker line prefixed to an archive. An explicit
// Override always wins over FromEntry.
type ShebangPolicy struct {
	FromEntry bool
	Override  string
}

// Marker returns the line to prefix, without its newline, or "".
func (s ShebangPolicy) Marker(entry *project.Unit) string {
	if s.Override != "" {
		return strings.TrimRight(s.Override, "\r\n")
	}
	if s.FromEntry && entry != nil {
		return entry.Marker
	}
	return ""
}

type Options struct {
	OutputDir   string
	ArchivePath string
	Compression Compression
	Shebang     ShebangPolicy
	Executable  bool
}

type Result struct {
	OutputDir    string
	Files        []string
	ArchivePath  string
	ArchiveBytes int64
	Marker       string
	Entries      int
}

// file is one rendered unit ready to be written.
type file struct {
	placement string
	data      []byte
}

// Package renders every unit once, writes the directory layout and, when
// ArchivePath is set, the archive.
func Package(ctx context.Context, p *project.Project, opts Options) (*Result, error) {
	if opts.OutputDir == "" {
		return nil, errors.New(errors.CodeInternal, "packager requires an output directory")
	}
	if opts.Compression == "" {
		opts.Compression = CompressionDeflate
	}

	files := make([]file, 0, p.Len())
	for _, u := range p.Units() {
		files = append(files, file{placement: u.Placement, data: u.Render()})
	}

	res := &Result{OutputDir: opts.OutputDir}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "packaging cancelled")
		}
		dst := filepath.Join(opts.OutputDir, filepath.FromSlash(f.placement))
		if err := util.WriteFileWithDirs(dst, f.data, filePerm); err != nil {
			return nil, errors.AddContext(
				errors.Wrap(err, errors.CodeFilesystem, "write module"),
				errors.CtxPath, dst,
			)
		}
		res.Files = append(res.Files, dst)
	}
	slog.Debug("layout written", "dir", opts.OutputDir, "files", len(res.Files))

	if opts.ArchivePath == "" {
		return res, nil
	}

	container, err := BuildContainer(files, opts.Compression)
	if err != nil {
		return nil, err
	}
	if err := VerifyContainer(container, len(files)); err != nil {
		return nil, err
	}

	res.Marker = opts.Shebang.Marker(p.Entry())
	data := Assemble(res.Marker, container)
	if err := writeArchive(opts.ArchivePath, data, opts.Executable); err != nil {
		return nil, err
	}

	res.ArchivePath = opts.ArchivePath
	res.ArchiveBytes = int64(len(data))
	res.Entries = len(files)
	observability.ArchiveBytes.Set(float64(len(data)))
	slog.Debug("archive written",
		"path", opts.ArchivePath,
		"bytes", len(data),
		"compression", string(opts.Compression),
		"marker", res.Marker != "",
	)
	return res, nil
}

// Assemble lays out the final archive bytes: the marker line and its newline,
// if any, immediately followed by the container.
func Assemble(marker string, container []byte) []byte {
	if marker == "" {
		return container
	}
	out := make([]byte, 0, len(marker)+1+len(container))
	out = append(out, marker...)
	out = append(out, '\n')
	return append(out, container...)
}

func writeArchive(path string, data []byte, executable bool) error {
	if err := util.WriteFileWithDirs(path, data, filePerm); err != nil {
		return errors.AddContext(
			errors.Wrap(err, errors.CodePackaging, "write archive"),
			errors.CtxPath, path,
		)
	}
	if !executable {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.AddContext(
			errors.Wrap(err, errors.CodePackaging, "stat archive"),
			errors.CtxPath, path,
		)
	}
	if err := os.Chmod(path, info.Mode().Perm()|execBits); err != nil {
		return errors.AddContext(
			errors.Wrap(err, errors.CodePackaging, "mark archive executable"),
			errors.CtxPath, path,
		)
	}
	return nil
}
