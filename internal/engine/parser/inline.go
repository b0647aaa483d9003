package parser

import (
	"strings"

	"pybundle/internal/core/config"
	"pybundle/internal/core/errors"
)

// InlineConfigTag opens a module-level configuration block. The tag must be
// the first line of the module's first docstring, after leading whitespace:
//
//	"""pybundle:config
//	[obfuscate]
//	ids_include = ["^secret"]
//	"""
const InlineConfigTag = "pybundle:config"

// ExtractInlineConfig decodes the configuration block of a module, if any,
// and clears the docstring that carried it. It returns nil when the module
// has no such block.
func ExtractInlineConfig(t *Tree) (*config.Override, error) {
	stmts := t.Statements()
	if len(stmts) == 0 {
		return nil, nil
	}
	lit, body, ok := t.Docstring(stmts[0])
	if !ok {
		return nil, nil
	}
	text := strings.TrimLeft(body, " \t\r\n")
	if !strings.HasPrefix(text, InlineConfigTag) {
		return nil, nil
	}

	rest := strings.TrimPrefix(text, InlineConfigTag)
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		rest = rest[idx+1:]
	} else if strings.TrimSpace(rest) != "" {
		return nil, errors.AddContext(
			errors.New(errors.CodeConfiguration, "inline config tag must be on its own line"),
			errors.CtxPath, t.Path,
		)
	} else {
		rest = ""
	}

	override, err := config.DecodeOverride(dedent(rest))
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, t.Path)
	}
	lit.Replace(`""`)
	return override, nil
}

// dedent strips the common leading whitespace so an indented block inside a
// docstring still decodes as TOML.
func dedent(text string) string {
	lines := strings.Split(text, "\n")
	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = indent
			first = false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if prefix == "" {
		return text
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}
