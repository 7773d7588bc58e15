package markup

// structuralElements are never removed for emptiness nor merged with a
// same-type child: doing either changes layout even when no text moves.
var structuralElements = map[string]bool{
	"table": true, "caption": true, "colgroup": true, "thead": true, "tbody": true,
	"tfoot": true, "tr": true, "td": true, "th": true,
	"ul": true, "ol": true, "li": true, "dl": true, "dt": true, "dd": true,
	"blockquote": true, "pre": true,
	"script": true, "style": true, "textarea": true, "select": true, "option": true,
	"iframe": true, "object": true, "video": true, "audio": true, "canvas": true,
	"svg": true, "math": true,
}

// Result describes one Optimize run over a fragment.
type Result struct {
	Text      string
	Changed   bool // Text differs from the input
	Rejected  bool // the simplified tree failed Validate and was discarded
	Malformed bool
	Removed   int // empty tags deleted
	Merged    int // same-type wrappers collapsed
}

// Optimize simplifies the tag structure of text without touching its
// rendered text. The input is returned unchanged when nothing could be
// simplified or when the result fails Validate.
func Optimize(text string) string {
	return Simplify(text).Text
}

// Simplify is Optimize with counters.
func Simplify(text string) Result {
	frag, err := Parse(text)
	if err != nil {
		return Result{Text: text, Malformed: true}
	}
	if frag.Empty() {
		return Result{Text: text}
	}

	removed, merged := frag.Simplify()
	if removed+merged == 0 {
		return Result{Text: text}
	}

	out := Render(frag)
	if !Validate(text, out) {
		return Result{Text: text, Rejected: true}
	}
	return Result{
		Text:    out,
		Changed: out != text,
		Removed: removed,
		Merged:  merged,
	}
}

// Simplify rewrites the fragment in place until no rule applies and
// returns how many tags were removed and merged.
func (f *Fragment) Simplify() (removed, merged int) {
	s := &simplifier{}
	for {
		before := s.removed + s.merged
		f.Nodes = s.nodes(f.Nodes)
		if s.removed+s.merged == before {
			return s.removed, s.merged
		}
	}
}

type simplifier struct {
	removed int
	merged  int
}

// nodes returns a new child sequence with every element simplified.
func (s *simplifier) nodes(in []Node) []Node {
	out := make([]Node, 0, len(in))
	for _, n := range in {
		e, ok := n.(*Element)
		if !ok {
			out = append(out, n)
			continue
		}
		out = append(out, s.element(e)...)
	}
	return out
}

// element simplifies e post-order and returns the nodes that replace it:
// none when e is deleted, and for a merge the promoted child together
// with the whitespace leaves that surrounded it.
func (s *simplifier) element(e *Element) []Node {
	if e.SelfClosing {
		return []Node{e}
	}
	e.Children = s.nodes(e.Children)
	if structuralElements[e.Tag] {
		return []Node{e}
	}

	if inner := soleElement(e); inner != nil && inner.Tag == e.Tag && !inner.SelfClosing {
		mergeAttrs(e, inner)
		s.merged++
		// The rest of e.Children is whitespace; it stays in place around inner.
		return e.Children
	}

	if len(e.Children) == 0 && len(e.Attrs) == 0 {
		s.removed++
		return nil
	}
	return []Node{e}
}

// soleElement returns e's only element child when every other child is
// whitespace-only text.
func soleElement(e *Element) *Element {
	var found *Element
	for _, c := range e.Children {
		if isBlank(c) {
			continue
		}
		el, ok := c.(*Element)
		if !ok || found != nil {
			return nil
		}
		found = el
	}
	return found
}

// mergeAttrs folds outer's attributes into inner. Class tokens are
// unioned outer first; for any other key the inner value wins. Outer keys
// keep their order and come first, inner-only keys follow.
func mergeAttrs(outer, inner *Element) {
	if len(outer.Attrs) == 0 {
		return
	}
	merged := make([]Attr, 0, len(outer.Attrs)+len(inner.Attrs))
	taken := make(map[string]bool, len(outer.Attrs))
	for _, a := range outer.Attrs {
		taken[a.Key] = true
		iv, ok := inner.Get(a.Key)
		switch {
		case a.Key == "class":
			merged = append(merged, Attr{Key: "class", Val: mergeClassValues(a.Val, iv)})
		case ok:
			merged = append(merged, Attr{Key: a.Key, Val: iv})
		default:
			merged = append(merged, a)
		}
	}
	for _, a := range inner.Attrs {
		if !taken[a.Key] {
			merged = append(merged, a)
		}
	}
	inner.Attrs = merged
}
