package packager

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"pybundle/internal/core/errors"
	"pybundle/internal/engine/parser"
	"pybundle/internal/engine/project"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixture = []struct {
	placement string
	source    string
	rendered  string
}{
	{"__main__.py", "#!/usr/bin/env python3\nimport pkg.mod\nprint(pkg.mod.VALUE)\n", "\nimport pkg.mod\nprint(pkg.mod.VALUE)\n"},
	{"pkg/mod.py", "VALUE = 42  # answer\n", "VALUE = 42\n"},
	{"pkg/__init__.py", "", ""},
}

func buildProject(t *testing.T) *project.Project {
	t.Helper()
	p, err := parser.NewParser()
	require.NoError(t, err)
	defer p.Close()

	proj := project.New(nil)
	for _, f := range fixture {
		tree, err := p.Parse(f.placement, []byte(f.source))
		require.NoError(t, err)
		require.NoError(t, proj.AddUnit(&project.Unit{
			Path:      "/src/" + f.placement,
			Placement: f.placement,
			Tree:      tree,
			Marker:    parser.ExecutionMarker([]byte(f.source)),
		}))
	}
	return proj
}

func openContainer(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	registerDecompressors(zr)

	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = string(content)
	}
	return out
}

func TestPackage_AllCompressions(t *testing.T) {
	for _, c := range compressions {
		t.Run(string(c), func(t *testing.T) {
			dir := t.TempDir()
			archive := filepath.Join(dir, "out", "app.pyz")

			res, err := Package(context.Background(), buildProject(t), Options{
				OutputDir:   filepath.Join(dir, "bundle"),
				ArchivePath: archive,
				Compression: c,
			})
			require.NoError(t, err)
			assert.Equal(t, 3, res.Entries)
			assert.Len(t, res.Files, 3)
			assert.Empty(t, res.Marker)

			for _, f := range fixture {
				data, err := os.ReadFile(filepath.Join(dir, "bundle", filepath.FromSlash(f.placement)))
				require.NoError(t, err)
				assert.Equal(t, f.rendered, string(data))
			}

			data, err := os.ReadFile(archive)
			require.NoError(t, err)
			assert.Equal(t, res.ArchiveBytes, int64(len(data)))

			entries := openContainer(t, data)
			require.Len(t, entries, 3)
			for _, f := range fixture {
				assert.Equal(t, f.rendered, entries[f.placement])
			}
		})
	}
}

func TestPackage_EntryOrderAndMethod(t *testing.T) {
	container, err := BuildContainer([]file{
		{placement: "b.py", data: []byte("b = 1\n")},
		{placement: "a/x.py", data: []byte("x = 1\n")},
	}, CompressionLZMA)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(container), int64(len(container)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "b.py", zr.File[0].Name)
	assert.Equal(t, "a/x.py", zr.File[1].Name)
	assert.Equal(t, methodLZMA, zr.File[0].Method)
	assert.NotZero(t, zr.File[0].Flags&lzmaEOSFlag)
}

func TestLZMAPreamble(t *testing.T) {
	var buf bytes.Buffer
	w, err := newLZMAWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello hello hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	raw := buf.Bytes()
	require.Greater(t, len(raw), 9)
	assert.Equal(t, []byte{0x09, 0x14, 0x05, 0x00}, raw[:4])

	rc := newLZMAReader(bytes.NewReader(raw))
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello hello hello", string(got))
}

func TestPackage_MarkerLayout(t *testing.T) {
	cases := []struct {
		name   string
		policy ShebangPolicy
		want   string
	}{
		{"None", ShebangPolicy{}, ""},
		{"FromEntry", ShebangPolicy{FromEntry: true}, "#!/usr/bin/env python3"},
		{"OverrideWins", ShebangPolicy{FromEntry: true, Override: "#!/opt/py/bin/python"}, "#!/opt/py/bin/python"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			archive := filepath.Join(dir, "app.pyz")
			res, err := Package(context.Background(), buildProject(t), Options{
				OutputDir:   filepath.Join(dir, "bundle"),
				ArchivePath: archive,
				Compression: CompressionDeflate,
				Shebang:     tc.policy,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Marker)

			data, err := os.ReadFile(archive)
			require.NoError(t, err)

			container := data
			if tc.want != "" {
				prefix := []byte(tc.want + "\n")
				require.True(t, bytes.HasPrefix(data, prefix))
				container = data[len(prefix):]
			}
			assert.Equal(t, []byte("PK\x03\x04"), container[:4])
			assert.Len(t, openContainer(t, container), 3)
		})
	}
}

func TestPackage_ExecutableKeepsExistingBits(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "app.pyz")
	require.NoError(t, os.WriteFile(archive, nil, 0o600))
	require.NoError(t, os.Chmod(archive, 0o640))

	_, err := Package(context.Background(), buildProject(t), Options{
		OutputDir:   filepath.Join(dir, "bundle"),
		ArchivePath: archive,
		Executable:  true,
	})
	require.NoError(t, err)

	info, err := os.Stat(archive)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o751), info.Mode().Perm())
}

func TestPackage_DirectoryOnly(t *testing.T) {
	dir := t.TempDir()
	res, err := Package(context.Background(), buildProject(t), Options{OutputDir: dir})
	require.NoError(t, err)
	assert.Empty(t, res.ArchivePath)
	assert.FileExists(t, filepath.Join(dir, "pkg", "mod.py"))
}

func TestPackage_UnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := Package(context.Background(), buildProject(t), Options{OutputDir: blocker})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeFilesystem))
}

func TestAssemble(t *testing.T) {
	assert.Equal(t, []byte("PK"), Assemble("", []byte("PK")))
	assert.Equal(t, []byte("#!/bin/py\nPK"), Assemble("#!/bin/py", []byte("PK")))
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression(" LZMA ")
	require.NoError(t, err)
	assert.Equal(t, CompressionLZMA, c)

	_, err = ParseCompression("zstd")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeConfiguration))
}

func TestVerifyContainer_EntryCountMismatch(t *testing.T) {
	container, err := BuildContainer([]file{{placement: "a.py", data: []byte("a")}}, CompressionNone)
	require.NoError(t, err)
	require.NoError(t, VerifyContainer(container, 1))

	err = VerifyContainer(container, 2)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodePackaging))
}
