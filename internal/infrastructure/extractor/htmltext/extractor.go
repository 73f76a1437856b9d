package htmltext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Extractor returns the visible text of an HTML document, one block per line.
type Extractor struct{}

func New() Extractor { return Extractor{} }

func (Extractor) Extensions() []string { return []string{".html", ".htm"} }

func (Extractor) Extract(_ context.Context, data []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var lines []string
	var current strings.Builder
	flush := func() {
		if line := strings.Join(strings.Fields(current.String()), " "); line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Head:
				return
			}
		}
		if n.Type == html.TextNode {
			current.WriteString(n.Data)
			current.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			flush()
		}
	}
	walk(root)
	flush()
	return strings.Join(lines, "\n"), nil
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Tr, atom.H1, atom.H2, atom.H3,
		atom.H4, atom.H5, atom.H6, atom.Table, atom.Section, atom.Article, atom.Blockquote, atom.Pre:
		return true
	default:
		return false
	}
}
