package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pybundle/internal/core/config"
	"pybundle/internal/core/errors"
	"pybundle/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEntry(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	entry := filepath.Join(root, "main.py")
	require.NoError(t, os.WriteFile(entry, []byte("#!/usr/bin/env python3\nimport helper\nhelper.secretRun()\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "helper.py"), []byte("def secretRun():\n    \"\"\"doc\"\"\"\n    return 1\n"), 0o644))
	return entry
}

func runCLI(t *testing.T, factory bundleFactory, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr, factory)
	return code, stdout.String(), stderr.String()
}

func TestRun_BundlesDirectory(t *testing.T) {
	entry := writeEntry(t)
	out := filepath.Join(t.TempDir(), "bundle")

	code, stdout, stderr := runCLI(t, coreBundleFactory{}, "-m", entry, "-o", out)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "bundle complete")
	assert.Contains(t, stdout, "helper.py")
	assert.FileExists(t, filepath.Join(out, "__main__.py"))
	assert.FileExists(t, filepath.Join(out, "helper.py"))
}

func TestRun_ConfigAndArchive(t *testing.T) {
	entry := writeEntry(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pybundle.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[obfuscate]\nseed = \"s1\"\nids_include = [\"^secret\"]\n"), 0o644))
	archive := filepath.Join(dir, "app.pyz")
	metrics := filepath.Join(dir, "metrics.prom")

	code, stdout, stderr := runCLI(t, coreBundleFactory{},
		"--module", entry,
		"--archive", archive,
		"--config", cfgPath,
		"--compression", "bzip2",
		"--shebang-from-entry",
		"-x",
		"--metrics-file", metrics,
	)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "scratch, removed")

	data, err := os.ReadFile(archive)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "#!/usr/bin/env python3\nPK"))

	info, err := os.Stat(archive)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100)

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "pybundle_units_bundled 2")
}

func TestRun_WritesReport(t *testing.T) {
	entry := writeEntry(t)
	dir := t.TempDir()
	manifest := filepath.Join(dir, "bundle.tsv")

	code, _, stderr := runCLI(t, coreBundleFactory{},
		"-m", entry, "-o", filepath.Join(dir, "out"), "--report", manifest, "--report-renames")
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(manifest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "module\t__main__.py\t")
	assert.Contains(t, string(data), "import\t__main__.py\thelper.py\t")
	assert.Contains(t, string(data), "rename\t\tFLASH_ADDR\t")
}

func TestRun_UsageErrors(t *testing.T) {
	code, _, stderr := runCLI(t, coreBundleFactory{}, "-o", t.TempDir())
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "module")

	code, _, _ = runCLI(t, coreBundleFactory{}, "-m", "x.py", "--no-such-flag")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, coreBundleFactory{}, "-m", "x.py", "stray")
	assert.Equal(t, 2, code)

	code, _, stderr = runCLI(t, coreBundleFactory{}, "-m", "x.py", "-o", t.TempDir(), "--report", "out.json")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unsupported report extension")
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, coreBundleFactory{}, "--version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "pybundle v"+versionString+"\n", stdout)
}

func TestRun_FailuresExitOne(t *testing.T) {
	entry := writeEntry(t)

	code, _, stderr := runCLI(t, coreBundleFactory{}, "-m", entry)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "output directory or an archive path is required")

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[obfuscate]\nmode = \"rot13\"\n"), 0o644))
	code, _, stderr = runCLI(t, coreBundleFactory{}, "-m", entry, "-o", t.TempDir(), "-c", bad)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "failed to load config")
}

type stubService struct {
	req ports.BundleRequest
	err error
}

func (s *stubService) Bundle(_ context.Context, req ports.BundleRequest) (ports.BundleResult, error) {
	s.req = req
	return ports.BundleResult{
		Placements:       []string{"__main__.py"},
		OutputDir:        "/tmp/x",
		OutputDirScratch: true,
		Duration:         time.Millisecond,
	}, s.err
}

func (s *stubService) Close(context.Context) error { return nil }

type stubFactory struct{ svc *stubService }

func (f stubFactory) New(*config.Config) (ports.BundleService, error) { return f.svc, nil }

func TestRun_FlagsReachRequest(t *testing.T) {
	svc := &stubService{}
	code, stdout, _ := runCLI(t, stubFactory{svc},
		"-m", "main.py", "-z", "out.pyz", "--compression", "lzma",
		"--shebang", "#!/opt/python", "-k", "-v",
	)
	require.Equal(t, 0, code)
	assert.Equal(t, ports.BundleRequest{
		EntryPath:     "main.py",
		ArchivePath:   "out.pyz",
		Compression:   "lzma",
		Shebang:       "#!/opt/python",
		KeepOutputDir: true,
	}, svc.req)
	assert.Contains(t, stdout, "scratch, kept")

	svc.err = errors.New(errors.CodePackaging, "disk full")
	code, _, stderr := runCLI(t, stubFactory{svc}, "-m", "main.py", "-o", "out")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "disk full")
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("PYBUNDLE_OBFUSCATE_SEED", "from-env")
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Obfuscate.Seed)
	assert.Equal(t, config.ModeMD5, cfg.Obfuscate.Mode)
}
