package markup

import "strings"

// CleanupResult describes one CleanStyles run.
type CleanupResult struct {
	Text           string
	Changed        bool
	Rejected       bool
	Malformed      bool
	StylesRemoved  int // style attributes dropped
	ClassesRemoved int // class tokens dropped
}

// CleanStyles drops inline style attributes and every class token not in
// allowed. A class attribute left with no tokens is removed. As with
// Optimize, a result that fails Validate is discarded.
func CleanStyles(text string, allowed ClassSet) CleanupResult {
	frag, err := Parse(text)
	if err != nil {
		return CleanupResult{Text: text, Malformed: true}
	}
	if frag.Empty() {
		return CleanupResult{Text: text}
	}

	var res CleanupResult
	walkElements(frag.Nodes, func(e *Element) {
		if e.Delete("style") {
			res.StylesRemoved++
		}
		v, ok := e.Get("class")
		if !ok {
			return
		}
		tokens := strings.Fields(v)
		kept := tokens[:0:0]
		for _, t := range tokens {
			if allowed.Has(t) {
				kept = append(kept, t)
			}
		}
		res.ClassesRemoved += len(tokens) - len(kept)
		if len(kept) == 0 {
			e.Delete("class")
			return
		}
		if len(kept) != len(tokens) {
			e.Set("class", strings.Join(kept, " "))
		}
	})

	if res.StylesRemoved+res.ClassesRemoved == 0 {
		return CleanupResult{Text: text}
	}
	out := Render(frag)
	if !Validate(text, out) {
		return CleanupResult{Text: text, Rejected: true}
	}
	res.Text = out
	res.Changed = out != text
	return res
}
