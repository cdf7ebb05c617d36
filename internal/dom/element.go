package dom

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element is a handle on an element node of a Document. Two handles on the
// same node are interchangeable; compare them with Is.
type Element struct {
	node *html.Node
	doc  *Document
}

// TypeName reports "element" for option type checks.
func (e *Element) TypeName() string { return "element" }

func (e *Element) Node() *html.Node { return e.node }

func (e *Element) Document() *Document { return e.doc }

// Is reports whether e and other refer to the same node.
func (e *Element) Is(other *Element) bool {
	return e != nil && other != nil && e.node == other.node
}

func (e *Element) TagName() string { return e.node.Data }

func (e *Element) ID() string { return attr(e.node, "id") }

func (e *Element) SetID(id string) { e.SetAttr("id", id) }

func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// Attrs returns a copy of the element's attributes.
func (e *Element) Attrs() []html.Attribute {
	return append([]html.Attribute(nil), e.node.Attr...)
}

func (e *Element) SetAttr(name, value string) {
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

func (e *Element) RemoveAttr(name string) {
	out := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		out = append(out, a)
	}
	e.node.Attr = out
}

// Dataset returns the data-* attributes keyed by their camelCase names, so
// data-article-id becomes articleId.
func (e *Element) Dataset() map[string]string {
	out := map[string]string{}
	for _, a := range e.node.Attr {
		if a.Namespace != "" || !strings.HasPrefix(a.Key, "data-") {
			continue
		}
		out[camelCase(strings.TrimPrefix(a.Key, "data-"))] = a.Val
	}
	return out
}

func camelCase(s string) string {
	var b strings.Builder
	upper := false
	for _, r := range s {
		if r == '-' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String()
}

// ClassList returns the element's classes in order.
func (e *Element) ClassList() []string {
	return strings.Fields(attr(e.node, "class"))
}

func (e *Element) HasClass(name string) bool {
	for _, c := range e.ClassList() {
		if c == name {
			return true
		}
	}
	return false
}

func (e *Element) AddClass(names ...string) {
	classes := e.ClassList()
	for _, n := range names {
		if n != "" && !contains(classes, n) {
			classes = append(classes, n)
		}
	}
	e.SetAttr("class", strings.Join(classes, " "))
}

func (e *Element) RemoveClass(names ...string) {
	if !e.HasAttr("class") {
		return
	}
	var kept []string
	for _, c := range e.ClassList() {
		if !contains(names, c) {
			kept = append(kept, c)
		}
	}
	e.SetAttr("class", strings.Join(kept, " "))
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// InnerHTML serializes the element's children. Text inside raw text
// elements such as <script> is written as is.
func (e *Element) InnerHTML() string {
	var buf bytes.Buffer
	raw := rawTextElements[e.node.Data]
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if raw && c.Type == html.TextNode {
			buf.WriteString(c.Data)
			continue
		}
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

var rawTextElements = map[string]bool{
	"iframe":    true,
	"noembed":   true,
	"noframes":  true,
	"noscript":  true,
	"plaintext": true,
	"script":    true,
	"style":     true,
	"xmp":       true,
}

// OuterHTML serializes the element itself.
func (e *Element) OuterHTML() string {
	var buf bytes.Buffer
	_ = html.Render(&buf, e.node)
	return buf.String()
}

// Text returns the concatenated text content of the element.
func (e *Element) Text() string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return b.String()
}

func (e *Element) parseFragment(s string, context *html.Node) ([]*html.Node, error) {
	if context == nil || context.Type != html.ElementNode {
		context = &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	}
	nodes, err := html.ParseFragment(strings.NewReader(s), context)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	return nodes, nil
}

// SetInnerHTML replaces the element's children with the parsed markup.
func (e *Element) SetInnerHTML(s string) error {
	nodes, err := e.parseFragment(s, e.node)
	if err != nil {
		return err
	}
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
	return nil
}

// PrependHTML inserts the parsed markup before the element's first child.
func (e *Element) PrependHTML(s string) error {
	nodes, err := e.parseFragment(s, e.node)
	if err != nil {
		return err
	}
	first := e.node.FirstChild
	for _, n := range nodes {
		e.node.InsertBefore(n, first)
	}
	return nil
}

// AppendHTML inserts the parsed markup after the element's last child.
func (e *Element) AppendHTML(s string) error {
	nodes, err := e.parseFragment(s, e.node)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
	return nil
}

// InsertAfterHTML inserts the parsed markup right after the element and
// returns the first inserted element, if any.
func (e *Element) InsertAfterHTML(s string) (*Element, error) {
	parent := e.node.Parent
	if parent == nil {
		return nil, fmt.Errorf("insert after %s: element is detached", e.TagName())
	}
	nodes, err := e.parseFragment(s, parent)
	if err != nil {
		return nil, err
	}
	next := e.node.NextSibling
	var first *html.Node
	for _, n := range nodes {
		parent.InsertBefore(n, next)
		if first == nil && n.Type == html.ElementNode {
			first = n
		}
	}
	return e.doc.wrap(first), nil
}

// AppendChild moves child under e.
func (e *Element) AppendChild(child *Element) {
	if child.node.Parent != nil {
		child.node.Parent.RemoveChild(child.node)
	}
	e.node.AppendChild(child.node)
}

// ReplaceWith swaps e for the given nodes in its parent.
func (e *Element) ReplaceWith(nodes ...*html.Node) {
	parent := e.node.Parent
	if parent == nil {
		return
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		parent.InsertBefore(n, e.node)
	}
	parent.RemoveChild(e.node)
}

// Remove detaches the element from the tree.
func (e *Element) Remove() {
	if e.node.Parent != nil {
		e.node.Parent.RemoveChild(e.node)
	}
}

// Connected reports whether the element is still attached to its document.
func (e *Element) Connected() bool {
	for n := e.node; n != nil; n = n.Parent {
		if n == e.doc.root {
			return true
		}
	}
	return false
}

// Parent returns the nearest element ancestor, or nil.
func (e *Element) Parent() *Element {
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return e.doc.wrap(p)
		}
	}
	return nil
}

// Children returns the element children.
func (e *Element) Children() []*Element {
	var out []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.wrap(c))
		}
	}
	return out
}

func (e *Element) NextElementSibling() *Element {
	for s := e.node.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return e.doc.wrap(s)
		}
	}
	return nil
}

// Selection returns a goquery selection holding only this element.
func (e *Element) Selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(e.node).Selection
}

// QuerySelectorAll returns the descendants matching selector.
func (e *Element) QuerySelectorAll(selector string) []*Element {
	return e.doc.wrapAll(e.Selection().Find(selector).Nodes)
}

func (e *Element) QuerySelector(selector string) *Element {
	all := e.QuerySelectorAll(selector)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// Matches reports whether the element itself matches selector.
func (e *Element) Matches(selector string) bool {
	return e.Selection().Is(selector)
}

// Closest returns the element or its nearest ancestor matching selector.
func (e *Element) Closest(selector string) *Element {
	for el := e; el != nil; el = el.Parent() {
		if el.Matches(selector) {
			return el
		}
	}
	return nil
}

// TargetSelector returns the selector named by the element's data-target
// attribute, falling back to its href. It returns "" when neither is set or
// the selector matches nothing in the document.
func (e *Element) TargetSelector() string {
	sel, _ := e.Attr("data-target")
	if sel == "" || sel == "#" {
		href, _ := e.Attr("href")
		sel = ""
		if href != "#" {
			sel = strings.TrimSpace(href)
		}
	}
	if sel == "" || e.doc.QuerySelector(sel) == nil {
		return ""
	}
	return sel
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val
		}
	}
	return ""
}

func atomOf(tag string) atom.Atom {
	return atom.Lookup([]byte(strings.ToLower(tag)))
}
