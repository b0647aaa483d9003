// # internal/engine/parser/types.go
package parser

// Kind is the closed set of node kinds the bundler distinguishes. Every
// tree-sitter node type not listed in kindsByType maps to KindOther.
type Kind uint8

const (
	KindOther Kind = iota
	KindModule
	KindBlock
	KindExpressionStatement
	KindString
	KindConcatenatedString
	KindIdentifier
	KindDottedName
	KindAttribute
	KindIf
	KindComparison
	KindImport
	KindImportFrom
	KindFutureImport
	KindRelativeImport
	KindImportPrefix
	KindAliasedImport
	KindWildcardImport
	KindFunctionDef
	KindClassDef
	KindParameters
	KindDefaultParameter
	KindKeyword
	KindComment
	KindError
)

var kindsByType = map[string]Kind{
	"module":                  KindModule,
	"block":                   KindBlock,
	"expression_statement":    KindExpressionStatement,
	"string":                  KindString,
	"concatenated_string":     KindConcatenatedString,
	"identifier":              KindIdentifier,
	"dotted_name":             KindDottedName,
	"attribute":               KindAttribute,
	"if_statement":            KindIf,
	"comparison_operator":     KindComparison,
	"import_statement":        KindImport,
	"import_from_statement":   KindImportFrom,
	"future_import_statement": KindFutureImport,
	"relative_import":         KindRelativeImport,
	"import_prefix":           KindImportPrefix,
	"aliased_import":          KindAliasedImport,
	"wildcard_import":         KindWildcardImport,
	"function_definition":     KindFunctionDef,
	"class_definition":        KindClassDef,
	"parameters":              KindParameters,
	"lambda_parameters":       KindParameters,
	"default_parameter":       KindDefaultParameter,
	"typed_default_parameter": KindDefaultParameter,
	"keyword_argument":        KindKeyword,
	"comment":                 KindComment,
	"ERROR":                   KindError,
}

func kindOf(nodeType string) Kind {
	if k, ok := kindsByType[nodeType]; ok {
		return k
	}
	return KindOther
}

// Node is one syntax node. Field is the grammar field name under which the
// node hangs from its parent ("" when the slot is unnamed). Start and End are
// byte offsets into the owning Tree's source.
type Node struct {
	Kind     Kind
	Type     string
	Field    string
	Start    uint
	End      uint
	Line     int
	Column   int
	Named    bool
	Missing  bool
	Parent   *Node
	Depth    int
	Children []*Node

	replacement *string
}

// Replace marks the node to be rendered as text instead of its source span.
// Replacements on descendants are ignored once an ancestor is replaced.
func (n *Node) Replace(text string) {
	n.replacement = &text
}

func (n *Node) Replacement() (string, bool) {
	if n.replacement == nil {
		return "", false
	}
	return *n.replacement, true
}

// ChildByField returns the first child hanging under field.
func (n *Node) ChildByField(field string) *Node {
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// ChildrenByField returns every child hanging under field, in order.
func (n *Node) ChildrenByField(field string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Field == field {
			out = append(out, c)
		}
	}
	return out
}

// NamedChildren skips punctuation and keyword tokens.
func (n *Node) NamedChildren() []*Node {
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Named {
			out = append(out, c)
		}
	}
	return out
}

// Tree is a parsed source file.
type Tree struct {
	Path   string
	Source []byte
	Root   *Node
}

// Text returns the original source text of n.
func (t *Tree) Text(n *Node) string {
	if n == nil {
		return ""
	}
	return string(t.Source[n.Start:n.End])
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}
