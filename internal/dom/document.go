// Package dom is a small headless document model over golang.org/x/net/html
// with goquery selectors, per-element data storage and a bubbling event bus.
//
// A Document is not safe for concurrent mutation. Callers drive it from a
// single goroutine, the way a page drives its DOM from one event loop.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed HTML page.
type Document struct {
	root *html.Node
	url  string

	data     map[*html.Node]map[string]any
	handlers map[*html.Node]map[string][]handlerEntry
	docSubs  map[string][]handlerEntry
	nextSub  uint64
}

// Parse reads a complete HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return newDocument(root), nil
}

// ParseString parses s as a complete HTML document.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func newDocument(root *html.Node) *Document {
	return &Document{
		root:     root,
		data:     map[*html.Node]map[string]any{},
		handlers: map[*html.Node]map[string][]handlerEntry{},
		docSubs:  map[string][]handlerEntry{},
	}
}

// TypeName reports "htmldocument" for option type checks.
func (d *Document) TypeName() string { return "htmldocument" }

// URL is the page location used for page-type detection and fragments.
func (d *Document) URL() string { return d.url }

func (d *Document) SetURL(u string) { d.url = u }

// Hash returns the fragment of the page URL without the leading "#".
func (d *Document) Hash() string {
	_, frag, _ := strings.Cut(d.url, "#")
	return frag
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	return &Element{node: n, doc: d}
}

func (d *Document) wrapAll(nodes []*html.Node) []*Element {
	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		if el := d.wrap(n); el != nil {
			out = append(out, el)
		}
	}
	return out
}

// Element returns the Element wrapping n, or nil when n is not an element.
func (d *Document) Element(n *html.Node) *Element { return d.wrap(n) }

// QuerySelectorAll returns every element matching selector in document order.
// An invalid selector matches nothing.
func (d *Document) QuerySelectorAll(selector string) []*Element {
	return d.wrapAll(goquery.NewDocumentFromNode(d.root).Find(selector).Nodes)
}

// QuerySelector returns the first element matching selector, or nil.
func (d *Document) QuerySelector(selector string) *Element {
	all := d.QuerySelectorAll(selector)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// GetElementByID returns the first element whose id attribute is id.
func (d *Document) GetElementByID(id string) *Element {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil && found == nil; c = c.NextSibling {
			if c.Type == html.ElementNode && attr(c, "id") == id {
				found = c
				return
			}
			walk(c)
		}
	}
	walk(d.root)
	return d.wrap(found)
}

// Body returns the <body> element.
func (d *Document) Body() *Element { return d.QuerySelector("body") }

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// HTML returns the serialized document.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Data returns the mutable per-element storage map for el.
func (d *Document) Data(el *Element) map[string]any {
	m, ok := d.data[el.node]
	if !ok {
		m = map[string]any{}
		d.data[el.node] = m
	}
	return m
}

// CreateElement returns a detached element with the given tag name.
func (d *Document) CreateElement(tag string) *Element {
	return d.wrap(&html.Node{Type: html.ElementNode, Data: strings.ToLower(tag), DataAtom: atomOf(tag)})
}
