// Package html normalises HTML and XHTML manuscripts into prose.
package html

import (
	"bytes"
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/normalisers/plaintext"
)

var _ driven.Normaliser = Normaliser{}

// Normaliser parses markup with x/net/html and keeps the visible text.
type Normaliser struct{}

func New() Normaliser { return Normaliser{} }

func (Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

func (Normaliser) Priority() int { return 50 }

// Normalise titles the document from <title>, then the first <h1>, then the
// file name.
func (Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	root, err := xhtml.Parse(bytes.NewReader(bytes.TrimPrefix(raw.Content, []byte("\ufeff"))))
	if err != nil {
		return nil, err
	}

	title := textOf(find(root, atom.Title))
	if title == "" {
		title = textOf(find(root, atom.H1))
	}
	if title == "" {
		title = plaintext.TitleFromURI(raw.URI)
	}

	return &driven.NormaliseResult{Document: domain.Document{
		ProjectID: raw.ProjectID,
		URI:       raw.URI,
		Title:     title,
		Content:   textOf(root),
	}}, nil
}

// Strip returns the readable text of an HTML fragment. Block elements become
// paragraph breaks and <br> a line break; other source whitespace collapses.
func Strip(content string) string {
	root, err := xhtml.Parse(strings.NewReader(content))
	if err != nil {
		return ""
	}
	return textOf(root)
}

// invisible elements contribute no text.
var invisible = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true,
	atom.Noscript: true, atom.Svg: true, atom.Template: true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Tr: true,
	atom.Blockquote: true, atom.Pre: true, atom.Table: true,
	atom.Section: true, atom.Article: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

func find(n *xhtml.Node, a atom.Atom) *xhtml.Node {
	if n == nil {
		return nil
	}
	if n.Type == xhtml.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *xhtml.Node) string {
	if n == nil {
		return ""
	}
	var w textWriter
	// A <title> lives in <head>, so start below the invisible check.
	if n.Type == xhtml.ElementNode && n.DataAtom == atom.Title {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c)
		}
	} else {
		w.walk(n)
	}
	return w.b.String()
}

// textWriter holds back whitespace until the next word so that trailing
// breaks never reach the output.
type textWriter struct {
	b       strings.Builder
	pending string
}

func (w *textWriter) walk(n *xhtml.Node) {
	switch n.Type {
	case xhtml.TextNode:
		w.text(n.Data)
		return
	case xhtml.ElementNode:
		if invisible[n.DataAtom] {
			return
		}
		if n.DataAtom == atom.Br {
			w.newline()
			return
		}
	case xhtml.CommentNode:
		return
	}

	block := n.Type == xhtml.ElementNode && blocks[n.DataAtom]
	if block {
		w.paragraph()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
	if block {
		w.paragraph()
	}
}

func (w *textWriter) text(s string) {
	words := strings.Fields(s)
	if len(words) == 0 {
		if s != "" {
			w.space()
		}
		return
	}
	if r, _ := utf8.DecodeRuneInString(s); unicode.IsSpace(r) {
		w.space()
	}
	if w.b.Len() > 0 {
		w.b.WriteString(w.pending)
	}
	w.pending = ""
	w.b.WriteString(strings.Join(words, " "))
	if r, _ := utf8.DecodeLastRuneInString(s); unicode.IsSpace(r) {
		w.space()
	}
}

func (w *textWriter) space() {
	if w.pending == "" {
		w.pending = " "
	}
}

func (w *textWriter) newline() {
	if w.pending == " " {
		w.pending = ""
	}
	if len(w.pending) < 2 {
		w.pending += "\n"
	}
}

func (w *textWriter) paragraph() { w.pending = "\n\n" }
