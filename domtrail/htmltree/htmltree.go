// Package htmltree exposes a parsed HTML document as a tree.Node rooted at
// <body>, so that paths located offline replay the same way they would
// against document.body.childNodes in a browser.
//
// Child slots mirror childNodes: text and comment nodes occupy an index but
// have no rendered text. Rendered text is an approximation of innerText
// computed from markup alone: script and style content is dropped, elements
// hidden with the hidden attribute or display:none are skipped, block
// elements and <br> break lines, and whitespace runs collapse to one space.
package htmltree

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domtrail/domtrail/tree"
)

// Node wraps an *html.Node. It is safe for concurrent reads once built.
type Node struct {
	n    *html.Node
	kids []*Node
	text string
	has  bool
}

// Parse reads an HTML document and returns its body.
func Parse(r io.Reader) (*Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmltree: parse: %w", err)
	}
	body := findBody(doc)
	if body == nil {
		return nil, fmt.Errorf("htmltree: no body element")
	}
	return wrap(body), nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}

// Wrap exposes an already parsed node.
func Wrap(n *html.Node) *Node {
	if n == nil {
		return nil
	}
	return wrap(n)
}

func wrap(n *html.Node) *Node {
	out := &Node{n: n}
	if n.Type == html.ElementNode {
		out.text, out.has = innerText(n), true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out.kids = append(out.kids, wrap(c))
	}
	return out
}

// HTML returns the underlying parser node.
func (n *Node) HTML() *html.Node { return n.n }

func (n *Node) Len() int { return len(n.kids) }

func (n *Node) Child(i int) tree.Node {
	if i < 0 || i >= len(n.kids) {
		return nil
	}
	return n.kids[i]
}

func (n *Node) Text() (string, bool) { return n.text, n.has }

// Markup renders the children of n, like innerHTML.
func (n *Node) Markup() string {
	var buf bytes.Buffer
	for c := n.n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return buf.String()
		}
	}
	return buf.String()
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

var (
	spaceRun   = regexp.MustCompile(`[ \t\r\n\f]+`)
	lineBreaks = regexp.MustCompile(`\n[ ]*(?:\n[ ]*)*`)
	displayOff = regexp.MustCompile(`(?i)display\s*:\s*none`)
)

func innerText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			b.WriteString(spaceRun.ReplaceAllString(c.Data, " "))
		case html.ElementNode:
			if skipped(c) {
				return
			}
			if c.DataAtom == atom.Br {
				b.WriteByte('\n')
				return
			}
			block := blockLevel[c.DataAtom]
			if block {
				b.WriteByte('\n')
			}
			for k := c.FirstChild; k != nil; k = k.NextSibling {
				walk(k)
			}
			if block {
				b.WriteByte('\n')
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	s := lineBreaks.ReplaceAllString(b.String(), "\n")
	return strings.TrimSpace(s)
}

func skipped(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
		return true
	}
	for _, a := range n.Attr {
		if a.Key == "hidden" || (a.Key == "style" && displayOff.MatchString(a.Val)) {
			return true
		}
	}
	return false
}

var blockLevel = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Dd: true, atom.Details: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true, atom.Footer: true,
	atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true, atom.Li: true,
	atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true, atom.Pre: true,
	atom.Section: true, atom.Summary: true, atom.Table: true, atom.Tr: true, atom.Ul: true,
}
