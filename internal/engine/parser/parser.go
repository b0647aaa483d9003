package parser

import (
	"fmt"
	"time"

	"pybundle/internal/core/errors"
	"pybundle/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// Parser turns Python source into a Tree. It is not safe for concurrent use.
type Parser struct {
	lang *sitter.Language
	sp   *sitter.Parser
}

func NewParser() (*Parser, error) {
	lang := sitter.NewLanguage(tree_sitter_python.Language())
	sp := sitter.NewParser()
	if err := sp.SetLanguage(lang); err != nil {
		sp.Close()
		return nil, errors.Wrap(err, errors.CodeInternal, "load python grammar")
	}
	return &Parser{lang: lang, sp: sp}, nil
}

func (p *Parser) Close() {
	if p == nil || p.sp == nil {
		return
	}
	p.sp.Close()
	p.sp = nil
}

// Parse builds a Tree for source. Any syntax error fails the parse with a
// resolution error naming the first offending position.
func (p *Parser) Parse(path string, source []byte) (*Tree, error) {
	start := time.Now()
	defer func() {
		observability.ParsingDuration.WithLabelValues("python").Observe(time.Since(start).Seconds())
	}()

	ts := p.sp.Parse(source, nil)
	if ts == nil {
		return nil, errors.AddContext(errors.New(errors.CodeResolution, "parse failed"), errors.CtxPath, path)
	}
	defer ts.Close()

	root := ts.RootNode()
	cursor := root.Walk()
	defer cursor.Close()

	tree := &Tree{
		Path:   path,
		Source: source,
		Root:   convert(cursor, nil, ""),
	}

	if root.HasError() {
		msg := "syntax error"
		if bad := firstError(tree.Root); bad != nil {
			msg = fmt.Sprintf("syntax error at %d:%d", bad.Line, bad.Column)
		}
		return nil, errors.AddContext(errors.New(errors.CodeResolution, msg), errors.CtxPath, path)
	}
	return tree, nil
}

func convert(c *sitter.TreeCursor, parent *Node, field string) *Node {
	sn := c.Node()
	pos := sn.StartPosition()
	n := &Node{
		Kind:    kindOf(sn.Kind()),
		Type:    sn.Kind(),
		Field:   field,
		Start:   sn.StartByte(),
		End:     sn.EndByte(),
		Line:    int(pos.Row) + 1,
		Column:  int(pos.Column) + 1,
		Named:   sn.IsNamed(),
		Missing: sn.IsMissing(),
		Parent:  parent,
	}
	if parent != nil {
		n.Depth = parent.Depth + 1
	}

	if c.GotoFirstChild() {
		for {
			n.Children = append(n.Children, convert(c, n, c.FieldName()))
			if !c.GotoNextSibling() {
				break
			}
		}
		c.GotoParent()
	}
	return n
}

func firstError(root *Node) *Node {
	var bad *Node
	Walk(root, func(n *Node) bool {
		if bad != nil {
			return false
		}
		if n.Kind == KindError || n.Missing {
			bad = n
			return false
		}
		return true
	})
	return bad
}
