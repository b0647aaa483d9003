package parser

import (
	"bytes"
	"regexp"
)

// encodingDeclaration matches a source encoding comment. Python only honours
// it on the first two lines.
var encodingDeclaration = regexp.MustCompile(`^[ \t\f]*#.*?coding[:=][ \t]*[-_.a-zA-Z0-9]+`)

// Render returns the tree's source text with every replacement applied and
// every comment removed. Other bytes outside replaced nodes are copied
// verbatim, so layout and line numbers survive unchanged. An encoding
// declaration on the first two lines is kept.
func Render(t *Tree) []byte {
	var b bytes.Buffer
	b.Grow(len(t.Source))
	b.Write(t.Source[:t.Root.Start])
	renderNode(&b, t, t.Root)
	b.Write(t.Source[t.Root.End:])
	return b.Bytes()
}

func renderNode(b *bytes.Buffer, t *Tree, n *Node) {
	if text, ok := n.Replacement(); ok {
		b.WriteString(text)
		return
	}
	src := t.Source
	if n.Kind == KindComment {
		if keepComment(t, n) {
			b.Write(src[n.Start:n.End])
		} else {
			trimLineTail(b)
		}
		return
	}
	cursor := n.Start
	for _, c := range n.Children {
		if c.Start >= cursor {
			b.Write(src[cursor:c.Start])
		}
		renderNode(b, t, c)
		if c.End > cursor {
			cursor = c.End
		}
	}
	if n.End > cursor {
		b.Write(src[cursor:n.End])
	}
}

func keepComment(t *Tree, n *Node) bool {
	if n.Line > 2 || n.Column != 1 {
		return false
	}
	return encodingDeclaration.Match(t.Source[n.Start:n.End])
}

// trimLineTail drops the spaces and tabs that led up to a removed comment.
func trimLineTail(b *bytes.Buffer) {
	data := b.Bytes()
	end := len(data)
	for end > 0 && (data[end-1] == ' ' || data[end-1] == '\t') {
		end--
	}
	b.Truncate(end)
}
