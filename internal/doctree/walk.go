package doctree

import (
	"fmt"
	"strings"
)

// Visit is handed to a VisitFunc for every node of the tree.
type Visit struct {
	Depth int // 0 for the composition, 1 for top-level sections
	Title string

	slot **Narrative
	at   *frame // nil for the composition
}

// VisitFunc is applied to each node by Walk.
type VisitFunc func(v *Visit)

// WalkStats counts what Walk saw.
type WalkStats struct {
	Visited   int // nodes handed to the VisitFunc
	Empty     int // visited nodes with no markup
	Anomalies int // nil sections and sections with malformed children
	MaxDepth  int
}

// Fragment returns the node's markup, or "" when it has none.
func (v *Visit) Fragment() string {
	return (*v.slot).Fragment()
}

// Path locates the node, e.g. "composition" or "section[0].section[2]".
func (v *Visit) Path() string {
	if v.at == nil {
		return "composition"
	}
	var parts []string
	for f := v.at; f != nil; f = f.parent {
		parts = append(parts, fmt.Sprintf("section[%d]", f.index))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// Replace sets the node's markup. A node without a narrative gets one.
func (v *Visit) Replace(div string) {
	if *v.slot == nil {
		*v.slot = &Narrative{Status: "generated"}
	}
	(*v.slot).Div = div
}

type frame struct {
	sec    *Section
	depth  int
	index  int
	parent *frame
}

// Walk visits the composition and then every section at any depth,
// pre-order, siblings left to right. It uses an explicit stack, so depth
// is bounded only by the tree itself. Replacing one node's markup never
// touches another node's.
func Walk(c *Composition, fn VisitFunc) WalkStats {
	var st WalkStats
	if c == nil {
		return st
	}

	visit := func(v *Visit) {
		st.Visited++
		if v.Fragment() == "" {
			st.Empty++
		}
		if v.Depth > st.MaxDepth {
			st.MaxDepth = v.Depth
		}
		fn(v)
	}

	visit(&Visit{Depth: 0, Title: c.Title, slot: &c.Text})
	if c.Anomalous {
		st.Anomalies++
		return st
	}

	stack := pushSections(nil, c.Sections, nil, 1)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.sec == nil {
			st.Anomalies++
			continue
		}
		visit(&Visit{Depth: f.depth, Title: f.sec.Title, slot: &f.sec.Text, at: f})
		if f.sec.Anomalous {
			st.Anomalies++
			continue
		}
		stack = pushSections(stack, f.sec.Sections, f, f.depth+1)
	}
	return st
}

// pushSections pushes secs in reverse so the leftmost pops first.
func pushSections(stack []*frame, secs []*Section, parent *frame, depth int) []*frame {
	for i := len(secs) - 1; i >= 0; i-- {
		stack = append(stack, &frame{sec: secs[i], depth: depth, index: i, parent: parent})
	}
	return stack
}

// Fragments returns every node's markup in walk order.
func Fragments(c *Composition) []string {
	var out []string
	Walk(c, func(v *Visit) {
		out = append(out, v.Fragment())
	})
	return out
}
