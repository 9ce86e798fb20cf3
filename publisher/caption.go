package publisher

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// PlainCaption flattens a Markdown caption into the plain text the
// platforms accept: emphasis and links are reduced to their text, list
// items get bullets or numbers, blocks are separated by blank lines.
func PlainCaption(md string) string {
	src := []byte(md)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var (
		prevItem bool
		b        strings.Builder
	)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		collectBlocks(n, src, &prevItem, &b)
	}
	return strings.TrimSpace(b.String())
}

func collectBlocks(n ast.Node, src []byte, prevItem *bool, b *strings.Builder) {
	switch node := n.(type) {
	case *ast.List:
		i := node.Start
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "• "
			if node.IsOrdered() {
				marker = fmt.Sprintf("%d. ", i)
				i++
			}
			var parts []string
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				if t := strings.TrimSpace(blockText(c, src)); t != "" {
					parts = append(parts, t)
				}
			}
			writeBlock(b, marker+strings.Join(parts, "\n"), true, prevItem)
		}
	case *ast.ThematicBreak:
	default:
		if t := strings.TrimSpace(blockText(n, src)); t != "" {
			writeBlock(b, t, false, prevItem)
		}
	}
}

func writeBlock(b *strings.Builder, s string, item bool, prevItem *bool) {
	if b.Len() > 0 {
		if item && *prevItem {
			b.WriteString("\n")
		} else {
			b.WriteString("\n\n")
		}
	}
	b.WriteString(s)
	*prevItem = item
}

// blockText returns the inline text of a block node.
func blockText(n ast.Node, src []byte) string {
	if isCodeBlock(n) {
		var sb strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			sb.Write(seg.Value(src))
		}
		return sb.String()
	}
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				sb.WriteString("\n")
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.AutoLink:
			sb.Write(t.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

func isCodeBlock(n ast.Node) bool {
	switch n.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock:
		return true
	}
	return false
}
