package dom

import (
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ShadowRootMode is the attribute that turns a template into a shadow root.
const ShadowRootMode = "shadowrootmode"

// QueryAll returns the descendants of scope matching selector, in document
// order. Nodes inside a nested shadow root are not visible from an outer
// scope, matching how selectors stop at shadow boundaries.
func QueryAll(scope *html.Node, selector string) []*html.Node {
	if scope == nil {
		return nil
	}
	var out []*html.Node
	goquery.NewDocumentFromNode(scope).Find(selector).Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		if shadowScope(n, scope) == scope {
			out = append(out, n)
		}
	})
	return out
}

// Closest returns n or its nearest ancestor matching selector.
func Closest(n *html.Node, selector string) *html.Node {
	sel := goquery.NewDocumentFromNode(n).Closest(selector)
	if sel.Length() == 0 {
		return nil
	}
	return sel.Get(0)
}

// ShadowRoots returns every open shadow root under scope, including nested ones.
func ShadowRoots(scope *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if IsShadowRoot(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(scope)
	return out
}

// IsShadowRoot reports whether n is an open declarative shadow root.
func IsShadowRoot(n *html.Node) bool {
	return n.Type == html.ElementNode && n.DataAtom == atom.Template && Attr(n, ShadowRootMode) == "open"
}

// ScopeOf returns the shadow root containing n, or the top of its tree.
func ScopeOf(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if IsShadowRoot(p) {
			return p
		}
		if p.Parent == nil {
			return p
		}
	}
	return n
}

// shadowScope returns the innermost shadow root between n and stop, or stop.
func shadowScope(n, stop *html.Node) *html.Node {
	for p := n.Parent; p != nil && p != stop; p = p.Parent {
		if IsShadowRoot(p) {
			return p
		}
	}
	return stop
}

// Attr returns the value of an attribute, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether the attribute is present.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

// HasClass reports whether n carries class.
func HasClass(n *html.Node, class string) bool {
	return slices.Contains(strings.Fields(Attr(n, "class")), class)
}

// Text returns the concatenated text content of n.
func Text(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// ElementOf returns n if it is an element, else its parent element.
func ElementOf(n *html.Node) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}
