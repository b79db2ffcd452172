// ABOUTME: Renders chat message content for the terminal
// ABOUTME: Agent replies go through glamour; list previews are flattened to plain text with goldmark

// Package render turns message content into terminal text.
package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/fatih/color"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/2389/coven-chat/internal/store"
)

// WordWrap is the column agent replies are wrapped at.
const WordWrap = 80

var (
	termOnce     sync.Once
	termRenderer *glamour.TermRenderer

	parser = goldmark.New().Parser()
)

// renderer builds the shared glamour renderer on first use. Color output
// follows fatih/color's NoColor switch so logs and messages agree.
func renderer() *glamour.TermRenderer {
	termOnce.Do(func() {
		style := styles.DarkStyleConfig
		if color.NoColor {
			style = styles.NoTTYStyleConfig
		}
		// The chat view indents message bodies itself
		var margin uint
		style.Document.Margin = &margin

		r, err := glamour.NewTermRenderer(
			glamour.WithStyles(style),
			glamour.WithWordWrap(WordWrap),
		)
		if err == nil {
			termRenderer = r
		}
	})
	return termRenderer
}

// Message renders a message: ai content as markdown, human content verbatim.
func Message(msg store.Message) string {
	if msg.Message.Type == store.MessageTypeAI {
		return Markdown(msg.Message.Content)
	}
	return msg.Message.Content
}

// Markdown renders markdown source as styled terminal text. If rendering
// fails the source is returned unchanged.
func Markdown(source string) string {
	r := renderer()
	if r == nil {
		return source
	}
	out, err := r.Render(source)
	if err != nil {
		return source
	}
	// glamour pads every line to the wrap width
	lines := strings.Split(strings.Trim(out, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}

// Preview flattens markdown to a single line of plain text, for places that
// show a snippet rather than the whole message.
func Preview(source string) string {
	src := []byte(source)
	doc := parser.Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(src))
			if n.SoftLineBreak() || n.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(n.Value)
		case *ast.AutoLink:
			b.Write(n.URL(src))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
		}
		if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
			b.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(b.String()), " ")
}
