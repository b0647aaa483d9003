package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pybundle/internal/core/errors"
	"pybundle/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() ports.BundleResult {
	return ports.BundleResult{
		Placements: []string{"__main__.py", "pkg/__init__.py", "pkg/util.py"},
		Modules: []ports.ModuleSummary{
			{Placement: "__main__.py", Source: "/src/app.py", Entry: true, Dependencies: []string{"pkg/__init__.py", "pkg/util.py"}, Unresolved: []string{"os"}},
			{Placement: "pkg/__init__.py", Source: "/src/pkg/__init__.py"},
			{Placement: "pkg/util.py", Source: "/src/pkg/util.py", Dependencies: []string{"pkg/__init__.py"}, Unresolved: []string{"..far"}},
		},
		Renames:            map[string]string{"secretKey": "Oabe2e124ba", "FLASH_ADDR": "O0123456789"},
		Unresolved:         2,
		NamesSelected:      2,
		IdentifiersRenamed: 5,
		ArchivePath:        "/out/app.pyz",
		ArchiveBytes:       512,
	}
}

var fixedOpts = Options{Version: "1.0.0", GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}

func TestFormatForPath(t *testing.T) {
	cases := map[string]Format{
		"out/MANIFEST.md": FormatMarkdown,
		"deps.tsv":        FormatTSV,
		"graph.mmd":       FormatMermaid,
		"graph.DOT":       FormatDOT,
	}
	for path, want := range cases {
		got, err := FormatForPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatForPath("report.json")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeConfiguration))
}

func TestMarkdownGenerator(t *testing.T) {
	out := NewMarkdownGenerator().Generate(sampleResult(), fixedOpts)

	assert.Contains(t, out, "Generated 2026-01-02T03:04:05Z by pybundle 1.0.0.")
	assert.Contains(t, out, "| Modules | 3 |")
	assert.Contains(t, out, "| `__main__.py` (entry) | `/src/app.py` | `pkg/__init__.py`, `pkg/util.py` |")
	assert.Contains(t, out, "| `pkg/__init__.py` | `/src/pkg/__init__.py` | - |")
	assert.Contains(t, out, "| `pkg/util.py` | `..far` |")
	assert.Contains(t, out, "| Archive | `/out/app.pyz` (512 bytes) |")
	assert.Contains(t, out, "```mermaid\nflowchart LR\n")
	assert.NotContains(t, out, "Oabe2e124ba")

	withRenames := fixedOpts
	withRenames.IncludeRenames = true
	out = NewMarkdownGenerator().Generate(sampleResult(), withRenames)
	assert.Contains(t, out, "| `FLASH_ADDR` | `O0123456789` |\n| `secretKey` | `Oabe2e124ba` |")
}

func TestMarkdownGenerator_NoUnresolved(t *testing.T) {
	res := ports.BundleResult{Modules: []ports.ModuleSummary{{Placement: "__main__.py", Entry: true}}}
	out := NewMarkdownGenerator().Generate(res, fixedOpts)
	assert.Contains(t, out, "## Unresolved Imports\nNone.\n")
	assert.NotContains(t, out, "mermaid")
}

func TestTSVGenerator(t *testing.T) {
	out := NewTSVGenerator().Generate(sampleResult(), Options{IncludeRenames: true})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	assert.Equal(t, []string{
		"Type\tPlacement\tValue\tDetail",
		"module\t__main__.py\t/src/app.py\tentry",
		"module\tpkg/__init__.py\t/src/pkg/__init__.py\t",
		"module\tpkg/util.py\t/src/pkg/util.py\t",
		"import\t__main__.py\tpkg/__init__.py\t",
		"import\t__main__.py\tpkg/util.py\t",
		"import\tpkg/util.py\tpkg/__init__.py\t",
		"unresolved\t__main__.py\tos\t",
		"unresolved\tpkg/util.py\t..far\t",
		"rename\t\tFLASH_ADDR\tO0123456789",
		"rename\t\tsecretKey\tOabe2e124ba",
	}, lines)
}

func TestMermaidGenerator(t *testing.T) {
	out := NewMermaidGenerator().Generate(sampleResult())
	assert.Contains(t, out, "  __main___py[\"__main__.py\"]\n  class __main___py entry\n")
	assert.Contains(t, out, "  pkg___init___py[\"pkg/__init__.py\"]\n")
	assert.Contains(t, out, "  __main___py --> pkg_util_py\n")
	assert.Contains(t, out, "  pkg_util_py --> pkg___init___py\n")
}

func TestDOTGenerator(t *testing.T) {
	out := NewDOTGenerator().Generate(sampleResult())
	assert.True(t, strings.HasPrefix(out, "digraph bundle {\n"))
	assert.Contains(t, out, "  \"__main__.py\" [penwidth=2, color=\"#1f6feb\"];\n")
	assert.Contains(t, out, "  \"pkg/util.py\" -> \"pkg/__init__.py\";\n")
}

func TestMakeIDs(t *testing.T) {
	ids := makeIDs([]string{"a/b.py", "a_b.py", "1x.py"})
	assert.Equal(t, "a_b_py", ids["a/b.py"])
	assert.Equal(t, "a_b_py_2", ids["a_b.py"])
	assert.Equal(t, "m_1x_py", ids["1x.py"])
}

func TestReplaceBetweenMarkers(t *testing.T) {
	content := "# Notes\r\n<!-- pybundle:manifest:start -->\r\nold\r\n<!-- pybundle:manifest:end -->\r\ntail\r\n"
	got, err := ReplaceBetweenMarkers(content, ManifestMarker, "line one\nline two\n")
	require.NoError(t, err)
	assert.Equal(t, "# Notes\r\n<!-- pybundle:manifest:start -->\r\nline one\r\nline two\r\n<!-- pybundle:manifest:end -->\r\ntail\r\n", got)

	_, err = ReplaceBetweenMarkers("no markers here", ManifestMarker, "x")
	require.Error(t, err)

	_, err = ReplaceBetweenMarkers("<!-- pybundle:manifest:end --><!-- pybundle:manifest:start -->", ManifestMarker, "x")
	require.Error(t, err)

	_, err = ReplaceBetweenMarkers(content, " ", "x")
	require.Error(t, err)
}

func TestWrite_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.tsv")
	require.NoError(t, Write(path, sampleResult(), fixedOpts))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Type\tPlacement\tValue\tDetail\n"))
	assert.NotContains(t, string(data), "rename")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestWrite_InjectsIntoMarkedMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README.md")
	original := "# App\n\n<!-- pybundle:manifest:start -->\nstale\n<!-- pybundle:manifest:end -->\n\nFooter\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	require.NoError(t, Write(path, sampleResult(), fixedOpts))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# App\n\n<!-- pybundle:manifest:start -->\n# Bundle Manifest\n"))
	assert.True(t, strings.HasSuffix(text, "<!-- pybundle:manifest:end -->\n\nFooter\n"))
	assert.NotContains(t, text, "stale")
}

func TestWrite_ReplacesUnmarkedMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "MANIFEST.md")
	require.NoError(t, os.WriteFile(path, []byte("old content\n"), 0o644))

	require.NoError(t, Write(path, sampleResult(), fixedOpts))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Bundle Manifest\n"))
}

func TestWrite_MissingDirectory(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "missing", "bundle.md"), sampleResult(), fixedOpts)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeFilesystem))
}
