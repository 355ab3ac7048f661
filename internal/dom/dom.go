// Package dom wraps an x/net/html node tree with the small set of
// operations the restore pipeline needs: selector lookup, text access,
// containment checks and structural edits. Selectors are plain CSS strings
// so the fixed paths stay replaceable lookups.
package dom

import (
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	selectorMu    sync.RWMutex
	selectorCache = make(map[string]cascadia.Selector)
)

// compile parses a selector once and caches it; the fixed structural paths
// are looked up on every mutation batch.
func compile(selector string) (cascadia.Selector, error) {
	selectorMu.RLock()
	sel, ok := selectorCache[selector]
	selectorMu.RUnlock()
	if ok {
		return sel, nil
	}

	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("bad selector %q: %w", selector, err)
	}

	selectorMu.Lock()
	selectorCache[selector] = sel
	selectorMu.Unlock()
	return sel, nil
}

// Parse reads a full document.
func Parse(markup string) (*html.Node, error) {
	return html.Parse(strings.NewReader(markup))
}

// ParseFragment parses markup as body content and returns the top-level nodes.
func ParseFragment(markup string) ([]*html.Node, error) {
	body := &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	}
	return html.ParseFragment(strings.NewReader(markup), body)
}

// Render serializes a node back to markup.
func Render(n *html.Node) (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// First returns the first node in DOM order, starting at scope itself, that
// matches the selector. Nil when nothing matches or the selector is invalid.
func First(scope *html.Node, selector string) *html.Node {
	if scope == nil {
		return nil
	}
	sel, err := compile(selector)
	if err != nil {
		return nil
	}
	return sel.MatchFirst(scope)
}

// All returns every node under scope (scope included) matching the selector.
func All(scope *html.Node, selector string) []*html.Node {
	if scope == nil {
		return nil
	}
	sel, err := compile(selector)
	if err != nil {
		return nil
	}
	return sel.MatchAll(scope)
}

// Matches reports whether the node itself matches the selector.
func Matches(n *html.Node, selector string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	sel, err := compile(selector)
	if err != nil {
		return false
	}
	return sel(n)
}

// Text concatenates all text descendants of n.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// SetText collapses n's children to a single text node with the given value.
func SetText(n *html.Node, text string) {
	if n == nil {
		return
	}
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// Attr returns the value of the named attribute, "" when absent.
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// SetAttr sets or replaces the named attribute.
func SetAttr(n *html.Node, key, val string) {
	if n == nil {
		return
	}
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// Contains reports whether ancestor is a strict ancestor of n.
func Contains(ancestor, n *html.Node) bool {
	if ancestor == nil || n == nil {
		return false
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// AppendChild attaches child as the last child of parent, detaching it from
// any previous parent first.
func AppendChild(parent, child *html.Node) {
	if parent == nil || child == nil {
		return
	}
	Detach(child)
	parent.AppendChild(child)
}

// InsertChildAt attaches child at the given child index, clamping to the
// end when the index is past the last child.
func InsertChildAt(parent *html.Node, index int, child *html.Node) {
	if parent == nil || child == nil {
		return
	}
	Detach(child)

	before := parent.FirstChild
	for i := 0; i < index && before != nil; i++ {
		before = before.NextSibling
	}
	if before == nil {
		parent.AppendChild(child)
		return
	}
	parent.InsertBefore(child, before)
}

// RemoveChild detaches child from parent and returns it. Returns nil when
// child is not attached to parent.
func RemoveChild(parent, child *html.Node) *html.Node {
	if parent == nil || child == nil || child.Parent != parent {
		return nil
	}
	parent.RemoveChild(child)
	return child
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// NewElement builds a detached element node.
func NewElement(tag string, attrs map[string]string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for k, v := range attrs {
		SetAttr(n, k, v)
	}
	return n
}

// NewText builds a detached text node.
func NewText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// Body returns the body element of a parsed document, or the root itself
// for fragments without one.
func Body(root *html.Node) *html.Node {
	if b := First(root, "body"); b != nil {
		return b
	}
	return root
}
