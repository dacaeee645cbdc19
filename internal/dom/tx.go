package dom

import (
	"errors"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrDetached is returned when a node is no longer part of the document.
var ErrDetached = errors.New("dom: node is not attached to the document")

// Tx applies changes to a document under its write lock and records them.
type Tx struct {
	doc     *Document
	records []MutationRecord
}

// Root returns the document root.
func (tx *Tx) Root() *html.Node {
	return tx.doc.root
}

// Attached reports whether n is part of the document.
func (tx *Tx) Attached(n *html.Node) bool {
	return attached(tx.doc.root, n)
}

// InsertAfter inserts node as the next sibling of ref.
func (tx *Tx) InsertAfter(ref, node *html.Node) error {
	if ref.Parent == nil || !tx.Attached(ref) {
		return ErrDetached
	}
	ref.Parent.InsertBefore(node, ref.NextSibling)
	tx.childList(ref.Parent, node)
	return nil
}

// AppendChild appends node to parent.
func (tx *Tx) AppendChild(parent, node *html.Node) {
	parent.AppendChild(node)
	tx.childList(parent, node)
}

// ReplaceChildren removes every child of parent and appends nodes.
func (tx *Tx) ReplaceChildren(parent *html.Node, nodes ...*html.Node) {
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		parent.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	tx.childList(parent, nodes...)
}

// Remove detaches n from its parent.
func (tx *Tx) Remove(n *html.Node) {
	if n.Parent == nil {
		return
	}
	parent := n.Parent
	parent.RemoveChild(n)
	tx.childList(parent)
}

// SetText replaces the children of n with a single text node.
func (tx *Tx) SetText(n *html.Node, text string) {
	if n.FirstChild != nil && n.FirstChild == n.LastChild && n.FirstChild.Type == html.TextNode {
		if n.FirstChild.Data == text {
			return
		}
		n.FirstChild.Data = text
		tx.records = append(tx.records, MutationRecord{Type: MutationCharacterData, Target: n.FirstChild})
		return
	}
	tx.ReplaceChildren(n, TextNode(text))
}

// SetAttr sets an attribute. Unchanged values produce no record.
func (tx *Tx) SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			if n.Attr[i].Val == val {
				return
			}
			n.Attr[i].Val = val
			tx.attribute(n, key)
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	tx.attribute(n, key)
}

// RemoveAttr removes an attribute if present.
func (tx *Tx) RemoveAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			tx.attribute(n, key)
			return
		}
	}
}

// AddClass adds class to n's class list.
func (tx *Tx) AddClass(n *html.Node, class string) {
	if HasClass(n, class) {
		return
	}
	current := Attr(n, "class")
	if current != "" {
		current += " "
	}
	tx.SetAttr(n, "class", current+class)
}

func (tx *Tx) childList(target *html.Node, added ...*html.Node) {
	tx.records = append(tx.records, MutationRecord{Type: MutationChildList, Target: target, Added: added})
}

func (tx *Tx) attribute(target *html.Node, name string) {
	tx.records = append(tx.records, MutationRecord{Type: MutationAttributes, Target: target, AttributeName: name})
}

// Element builds a detached element with attributes given as key, value pairs.
func Element(tag string, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// TextNode builds a detached text node.
func TextNode(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}
