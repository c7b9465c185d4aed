package parsing

import (
	"io"
	"regexp"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
)

// Renders only the text content of the document, collapsing block structure
// into spaces. Good enough for previews.
type plaintextRenderer struct{}

var _ renderer.Renderer = plaintextRenderer{}

var backslashRegex = regexp.MustCompile("\\\\(?P<char>[\\\\\\x60!\"#$%&'()*+,-./:;<=>?@\\[\\]^_{|}~])")

func (r plaintextRenderer) Render(w io.Writer, source []byte, n ast.Node) error {
	return ast.Walk(n, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n.Kind() {
		case ast.KindText:
			n := n.(*ast.Text)
			if _, err := w.Write(backslashRegex.ReplaceAll(n.Text(source), []byte("$1"))); err != nil {
				return ast.WalkContinue, err
			}

			if n.SoftLineBreak() {
				if _, err := w.Write([]byte(" ")); err != nil {
					return ast.WalkContinue, err
				}
			}
		case ast.KindParagraph:
			if _, err := w.Write([]byte(" ")); err != nil {
				return ast.WalkContinue, err
			}
		}

		return ast.WalkContinue, nil
	})
}

func (r plaintextRenderer) AddOptions(...renderer.Option) {}
