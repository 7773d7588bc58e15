package markup

import (
	"sort"
	"strings"
)

// ClassSet is a set of class tokens.
type ClassSet map[string]struct{}

// NewClassSet returns a set holding the given tokens.
func NewClassSet(tokens ...string) ClassSet {
	s := make(ClassSet, len(tokens))
	for _, t := range tokens {
		s.Add(t)
	}
	return s
}

func (s ClassSet) Add(token string) {
	if token != "" {
		s[token] = struct{}{}
	}
}

func (s ClassSet) Has(token string) bool {
	_, ok := s[token]
	return ok
}

// Union adds every token of other to s.
func (s ClassSet) Union(other ClassSet) {
	for t := range other {
		s[t] = struct{}{}
	}
}

// Sorted returns the tokens in lexical order.
func (s ClassSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Classes returns every class token used anywhere in the fragment.
func (f *Fragment) Classes() ClassSet {
	set := make(ClassSet)
	if f.Empty() {
		return set
	}
	walkElements(f.Nodes, func(e *Element) {
		for _, c := range e.Classes() {
			set.Add(c)
		}
	})
	return set
}

// ExtractClasses parses text and returns its class tokens. Malformed or
// empty markup yields an empty set.
func ExtractClasses(text string) ClassSet {
	frag, _ := Parse(text)
	return frag.Classes()
}

// mergeClassValues unions the tokens of a then b, keeping first-seen order.
func mergeClassValues(a, b string) string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range append(strings.Fields(a), strings.Fields(b)...) {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return strings.Join(out, " ")
}
