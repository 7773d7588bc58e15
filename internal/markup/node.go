package markup

import "strings"

// Node is one slot in an element's child sequence: *Element, *Text, *Comment or *Directive.
type Node interface {
	node()
}

// Attr is a single attribute. Keys are unique per element.
type Attr struct {
	Key string
	Val string
}

// Element is a tag node with ordered attributes and ordered children.
type Element struct {
	Tag         string
	Attrs       []Attr
	Children    []Node
	SelfClosing bool // void element or written as <x/>; never holds children
}

// Text is an immutable text leaf. Data is the unescaped text.
type Text struct {
	Data string
}

// Comment is an HTML comment. It carries no rendered text.
type Comment struct {
	Data string
}

// Directive holds a doctype or other <!...> declaration verbatim.
type Directive struct {
	Data string
}

func (*Element) node()   {}
func (*Text) node()      {}
func (*Comment) node()   {}
func (*Directive) node() {}

// Fragment is a parsed markup fragment: a synthetic root holding the top-level nodes.
type Fragment struct {
	Nodes []Node
}

// Empty reports whether the fragment holds no nodes.
func (f *Fragment) Empty() bool {
	return f == nil || len(f.Nodes) == 0
}

// Get returns the value of key and whether it was present.
func (e *Element) Get(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Set replaces key's value in place or appends it.
func (e *Element) Set(key, val string) {
	for i := range e.Attrs {
		if e.Attrs[i].Key == key {
			e.Attrs[i].Val = val
			return
		}
	}
	e.Attrs = append(e.Attrs, Attr{Key: key, Val: val})
}

// Delete removes key, returning true if it was present.
func (e *Element) Delete(key string) bool {
	for i := range e.Attrs {
		if e.Attrs[i].Key == key {
			e.Attrs = append(e.Attrs[:i:i], e.Attrs[i+1:]...)
			return true
		}
	}
	return false
}

// Classes returns the whitespace-separated tokens of the class attribute.
func (e *Element) Classes() []string {
	v, ok := e.Get("class")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

func isBlank(n Node) bool {
	t, ok := n.(*Text)
	return ok && strings.TrimSpace(t.Data) == ""
}

// walkElements calls fn for every element in pre-order.
func walkElements(nodes []Node, fn func(*Element)) {
	stack := make([]Node, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		e, ok := n.(*Element)
		if !ok {
			continue
		}
		fn(e)
		for i := len(e.Children) - 1; i >= 0; i-- {
			stack = append(stack, e.Children[i])
		}
	}
}

// walkText calls fn for every text leaf in document order.
func walkText(nodes []Node, fn func(*Text)) {
	stack := make([]Node, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch v := n.(type) {
		case *Text:
			fn(v)
		case *Element:
			for i := len(v.Children) - 1; i >= 0; i-- {
				stack = append(stack, v.Children[i])
			}
		}
	}
}
