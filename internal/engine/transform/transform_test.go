package transform

import (
	"regexp"
	"strings"
	"testing"

	"pybundle/internal/core/config"
	"pybundle/internal/engine/obfuscate"
	"pybundle/internal/engine/parser"
	"pybundle/internal/engine/project"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildProject(t *testing.T, cfg *config.Config, sources ...string) *project.Project {
	t.Helper()
	p, err := parser.NewParser()
	require.NoError(t, err)
	defer p.Close()

	proj := project.New(cfg)
	for i, src := range sources {
		name := "m" + string(rune('a'+i)) + ".py"
		tree, err := p.Parse("/src/"+name, []byte(src))
		require.NoError(t, err)
		require.NoError(t, proj.AddUnit(&project.Unit{
			Path:        "/src/" + name,
			Placement:   name,
			Tree:        tree,
			Identifiers: tree.RenamableNames(),
		}))
	}
	return proj
}

func render(u *project.Unit) string {
	return string(u.Render())
}

func TestStripDocstrings(t *testing.T) {
	src := `"""module doc"""
def f():
    '''! keep me'''
    x = "not a docstring"
    r"raw doc"
    f"{x}"
    return x

class C:
    """class doc"""
`
	proj := buildProject(t, nil, src)
	u := proj.Entry()

	n := StripDocstrings(u, []*regexp.Regexp{regexp.MustCompile(`^!`)})
	assert.Equal(t, 3, n)

	want := `""
def f():
    '''! keep me'''
    x = "not a docstring"
    ""
    f"{x}"
    return x

class C:
    ""
`
	assert.Equal(t, want, render(u))
}

func TestStripDocstrings_ExcludeSearchesAnywhere(t *testing.T) {
	proj := buildProject(t, nil, "\"\"\"Copyright ACME\"\"\"\n\"\"\"other\"\"\"\n")
	n := StripDocstrings(proj.Entry(), []*regexp.Regexp{regexp.MustCompile(`ACME`)})
	assert.Equal(t, 1, n)
	assert.Equal(t, "\"\"\"Copyright ACME\"\"\"\n\"\"\n", render(proj.Entry()))
}

func TestRemoveEntryGuard(t *testing.T) {
	guarded := `import sys

def main():
    return 0

if __name__ == "__main__":
    sys.exit(main())
elif other:
    run()

if __name__ != "__main__":
    setup()
`
	proj := buildProject(t, nil, guarded, guarded)
	entry, lib := proj.Units()[0], proj.Units()[1]

	assert.Zero(t, RemoveEntryGuard(entry))
	assert.Equal(t, guarded, render(entry))

	assert.Equal(t, 1, RemoveEntryGuard(lib))
	got := render(lib)
	assert.Contains(t, got, "if __name__ == \"__main__\":\n    pass\nelif other:\n    run()\n")
	assert.Contains(t, got, "if __name__ != \"__main__\":\n    setup()\n")
	assert.NotContains(t, got, "sys.exit(main())")
}

func TestRemoveEntryGuard_NestedIgnored(t *testing.T) {
	src := "def f():\n    if __name__ == \"__main__\":\n        run()\n"
	proj := buildProject(t, nil, "", src)
	assert.Zero(t, RemoveEntryGuard(proj.Units()[1]))
}

func TestRun_GlobalConsistency(t *testing.T) {
	cfg := config.Default()
	cfg.Obfuscate.Seed = "s1"
	cfg.Obfuscate.IDsInclude = []string{"secret"}

	proj := buildProject(t, cfg,
		"from mb import secretKey\nprint(secretKey)\nif __name__ == \"__main__\":\n    print(secretKey)\n",
		"secretKey = 42\ndef use(secretKey=secretKey):\n    return obj.secretKey\nif __name__ == \"__main__\":\n    use()\n",
	)
	table, err := obfuscate.BuildRenameTable(proj.Identifiers(), proj.Config().Obfuscate)
	require.NoError(t, err)
	proj.Renames = table

	stats, err := Run(proj)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Guards)
	assert.Equal(t, 7, stats.Renames)

	alias, ok := table.Alias("secretKey")
	require.True(t, ok)
	assert.Equal(t, "Oabe2e124ba", alias)

	entry := render(proj.Units()[0])
	lib := render(proj.Units()[1])
	assert.Equal(t, "from mb import "+alias+"\nprint("+alias+")\nif __name__ == \"__main__\":\n    print("+alias+")\n", entry)
	assert.Equal(t, alias+" = 42\ndef use("+alias+"="+alias+"):\n    return obj."+alias+"\nif __name__ == \"__main__\":\n    pass\n", lib)

	for _, out := range []string{entry, lib} {
		assert.False(t, strings.Contains(out, "secretKey"))
	}
}

func TestRun_ModulePathsKept(t *testing.T) {
	cfg := config.Default()
	cfg.Obfuscate.IDsInclude = []string{"secret"}

	proj := buildProject(t, cfg, "from .secretpkg import helper\nfrom secretmod import thing\n")
	table, err := obfuscate.BuildRenameTable(proj.Identifiers(), proj.Config().Obfuscate)
	require.NoError(t, err)
	proj.Renames = table

	_, err = Run(proj)
	require.NoError(t, err)
	assert.Equal(t, "from .secretpkg import helper\nfrom secretmod import thing\n", render(proj.Entry()))
}

func TestRun_RequiresRenameTable(t *testing.T) {
	proj := buildProject(t, nil, "x = 1\n")
	_, err := Run(proj)
	require.Error(t, err)
}

func TestStripDocstrings_ExcludeMatchesDecodedValue(t *testing.T) {
	src := "\"\"\"\\x21 keep\"\"\"\n\"\"\"line\\tTAB\"\"\"\nr\"\"\"\\x21 raw\"\"\"\n"
	proj := buildProject(t, nil, src)
	n := StripDocstrings(proj.Entry(), []*regexp.Regexp{
		regexp.MustCompile(`^!`),
		regexp.MustCompile(`line\\tTAB`),
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, "\"\"\"\\x21 keep\"\"\"\n\"\"\n\"\"\n", render(proj.Entry()))
}
