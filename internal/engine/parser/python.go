package parser

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Import is one import reference found in a module.
//
// Level 0 is an absolute-style reference (`import a.b`, `from a import b`),
// resolved against the importing module's directory. Level N > 0 is a
// relative reference with N leading dots, i.e. N-1 parent hops.
type Import struct {
	Module string
	Level  int
	Items  []string
	Line   int
}

// Hops is the number of parent directories a relative import climbs.
func (i Import) Hops() int {
	if i.Level <= 1 {
		return 0
	}
	return i.Level - 1
}

func (i Import) IsRelative() bool {
	return i.Level > 0
}

func (i Import) String() string {
	return strings.Repeat(".", i.Level) + i.Module
}

// NodeHandler processes a node during an import scan. Returning true stops
// descent into the node's children.
type NodeHandler func(t *Tree, n *Node, out *[]Import) bool

var importHandlers = map[Kind]NodeHandler{
	KindImport:     extractImport,
	KindImportFrom: extractFromImport,
}

// Imports scans the whole tree, including imports nested in functions and
// conditionals, in document order.
func (t *Tree) Imports() []Import {
	var out []Import
	Walk(t.Root, func(n *Node) bool {
		if handler, ok := importHandlers[n.Kind]; ok {
			return !handler(t, n, &out)
		}
		return true
	})
	return out
}

func extractImport(t *Tree, n *Node, out *[]Import) bool {
	for _, child := range n.ChildrenByField("name") {
		name := importedName(t, child)
		if name == "" {
			continue
		}
		*out = append(*out, Import{Module: name, Line: child.Line})
	}
	return true
}

func extractFromImport(t *Tree, n *Node, out *[]Import) bool {
	imp := Import{Line: n.Line}

	module := n.ChildByField("module_name")
	if module == nil {
		return true
	}
	switch module.Kind {
	case KindRelativeImport:
		for _, c := range module.Children {
			switch c.Kind {
			case KindImportPrefix:
				imp.Level = strings.Count(t.Text(c), ".")
			case KindDottedName:
				imp.Module = normalizeDotted(t.Text(c))
			}
		}
	default:
		imp.Module = normalizeDotted(t.Text(module))
	}

	for _, child := range n.ChildrenByField("name") {
		if name := importedName(t, child); name != "" {
			imp.Items = append(imp.Items, name)
		}
	}

	*out = append(*out, imp)
	return true
}

func importedName(t *Tree, n *Node) string {
	switch n.Kind {
	case KindDottedName, KindIdentifier:
		return normalizeDotted(t.Text(n))
	case KindAliasedImport:
		return importedName(t, n.ChildByField("name"))
	}
	return ""
}

// StringLiteral is the surface form of a string token.
type StringLiteral struct {
	Prefix string
	Quote  string
	Body   string
}

// Plain reports whether the literal is an ordinary str constant: not an
// f-string, not bytes.
func (s StringLiteral) Plain() bool {
	return !strings.ContainsAny(s.Prefix, "fFbBtT")
}

// Value returns the body with escape sequences decoded, as the interpreter
// would see it. Raw literals are returned as written. Named escapes
// (\N{...}) and malformed sequences are kept verbatim.
func (s StringLiteral) Value() string {
	if strings.ContainsAny(s.Prefix, "rR") || !strings.Contains(s.Body, `\`) {
		return s.Body
	}
	return decodeEscapes(s.Body)
}

var simpleEscapes = map[byte]string{
	'\\': "\\",
	'\'': "'",
	'"':  "\"",
	'a':  "\a",
	'b':  "\b",
	'f':  "\f",
	'n':  "\n",
	'r':  "\r",
	't':  "\t",
	'v':  "\v",
	'\n': "",
}

func decodeEscapes(body string) string {
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 == len(body) {
			b.WriteByte(c)
			continue
		}
		next := body[i+1]
		if rep, ok := simpleEscapes[next]; ok {
			b.WriteString(rep)
			i++
			continue
		}
		switch {
		case next == '\r':
			i++
			if i+1 < len(body) && body[i+1] == '\n' {
				i++
			}
		case next >= '0' && next <= '7':
			j := i + 1
			for j < len(body) && j < i+4 && body[j] >= '0' && body[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(body[i+1:j], 8, 32)
			b.WriteRune(rune(v))
			i = j - 1
		case next == 'x' || next == 'u' || next == 'U':
			end := i + 2 + hexEscapeWidth(next)
			if end > len(body) {
				b.WriteByte(c)
				continue
			}
			v, err := strconv.ParseUint(body[i+2:end], 16, 32)
			if err != nil || !utf8.ValidRune(rune(v)) {
				b.WriteByte(c)
				continue
			}
			b.WriteRune(rune(v))
			i = end - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func hexEscapeWidth(c byte) int {
	switch c {
	case 'u':
		return 4
	case 'U':
		return 8
	}
	return 2
}

// SplitStringLiteral splits raw literal text such as r"""doc""" into prefix,
// quote and body. Escape sequences in the body are left as written.
func SplitStringLiteral(text string) (StringLiteral, bool) {
	i := 0
	for i < len(text) && text[i] != '"' && text[i] != '\'' {
		i++
	}
	if i == len(text) {
		return StringLiteral{}, false
	}
	lit := StringLiteral{Prefix: text[:i]}
	rest := text[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(rest, q) && len(rest) >= 2*len(q) && strings.HasSuffix(rest, q) {
			lit.Quote = q
			lit.Body = rest[len(q) : len(rest)-len(q)]
			return lit, true
		}
	}
	return StringLiteral{}, false
}

// StringValue returns the decoded value of a plain string or of implicitly
// concatenated plain strings.
func (t *Tree) StringValue(n *Node) (string, bool) {
	switch n.Kind {
	case KindString:
		lit, ok := SplitStringLiteral(t.Text(n))
		if !ok || !lit.Plain() {
			return "", false
		}
		return lit.Value(), true
	case KindConcatenatedString:
		var b strings.Builder
		for _, c := range n.NamedChildren() {
			if c.Kind == KindComment {
				continue
			}
			part, ok := t.StringValue(c)
			if !ok {
				return "", false
			}
			b.WriteString(part)
		}
		return b.String(), true
	}
	return "", false
}

// Docstring reports whether stmt is a standalone string-literal statement and
// returns the literal node with its body.
func (t *Tree) Docstring(stmt *Node) (*Node, string, bool) {
	if stmt == nil || stmt.Kind != KindExpressionStatement || len(stmt.Children) != 1 {
		return nil, "", false
	}
	lit := stmt.Children[0]
	body, ok := t.StringValue(lit)
	if !ok {
		return nil, "", false
	}
	return lit, body, true
}

// Statements returns the top-level statements of the module, skipping
// comments.
func (t *Tree) Statements() []*Node {
	out := make([]*Node, 0, len(t.Root.Children))
	for _, c := range t.Root.Children {
		if c.Kind == KindComment || !c.Named {
			continue
		}
		out = append(out, c)
	}
	return out
}

// EntryGuardBody returns the consequence block of an if statement shaped
// exactly like `if __name__ == "<sentinel>":`, either operand order. Any
// other condition, including parenthesized or chained comparisons, yields nil.
func (t *Tree) EntryGuardBody(stmt *Node, runName, sentinel string) *Node {
	if stmt == nil || stmt.Kind != KindIf {
		return nil
	}
	cond := stmt.ChildByField("condition")
	if cond == nil || cond.Kind != KindComparison {
		return nil
	}
	operands := make([]*Node, 0, 2)
	var operators []*Node
	for _, c := range cond.Children {
		if c.Field == "operators" {
			operators = append(operators, c)
			continue
		}
		if c.Kind == KindComment {
			continue
		}
		operands = append(operands, c)
	}
	if len(operators) != 1 || len(operands) != 2 || t.Text(operators[0]) != "==" {
		return nil
	}

	matches := func(name, literal *Node) bool {
		if name.Kind != KindIdentifier || t.Text(name) != runName || literal.Kind != KindString {
			return false
		}
		value, ok := t.StringValue(literal)
		return ok && value == sentinel
	}
	if !matches(operands[0], operands[1]) && !matches(operands[1], operands[0]) {
		return nil
	}
	return stmt.ChildByField("consequence")
}

// ExecutionMarker returns the first line of source, trimmed, when it is an
// interpreter directive.
func ExecutionMarker(source []byte) string {
	line := string(source)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	if !strings.HasPrefix(line, "#!") {
		return ""
	}
	return strings.TrimSpace(line)
}
