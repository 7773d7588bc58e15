package markup

import "strings"

// TextContent returns the concatenated text leaves of a fragment in
// document order. A run of whitespace-only leaves counts as a single
// space, so reflowing the whitespace between tags keeps the text equal
// while joining two words does not. Whitespace inside a leaf that also
// carries text is kept verbatim.
func (f *Fragment) TextContent() string {
	if f.Empty() {
		return ""
	}
	var sb strings.Builder
	blankRun := false
	walkText(f.Nodes, func(t *Text) {
		if strings.TrimSpace(t.Data) == "" {
			if !blankRun {
				sb.WriteByte(' ')
			}
			blankRun = true
			return
		}
		blankRun = false
		sb.WriteString(t.Data)
	})
	return sb.String()
}

// Validate reports whether candidate renders the same text as original.
// It is the gate every destructive markup edit must pass.
func Validate(original, candidate string) bool {
	if original == candidate {
		return true
	}
	a, errA := Parse(original)
	b, errB := Parse(candidate)
	if errA != nil || errB != nil {
		return false
	}
	return a.TextContent() == b.TextContent()
}
