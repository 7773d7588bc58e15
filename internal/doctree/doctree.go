package doctree

// Composition is the root of a clinical document: an optional narrative,
// an ordered list of top-level sections and the annotations that link
// narrative classes to coded concepts.
type Composition struct {
	ID          string
	Title       string
	Text        *Narrative   // nil when the resource carries no narrative
	Sections    []*Section   // top-level sections
	Annotations []Annotation // HtmlElementLink extensions, in document order

	// Anomalous mirrors Section.Anomalous for the top-level section list.
	Anomalous bool
}

// Section is a recursive section of the document.
type Section struct {
	Title    string
	Text     *Narrative
	Sections []*Section // subsections

	// Anomalous is set when the source claimed subsections that were not a
	// well-formed list. Such a section is visited but its children are not.
	Anomalous bool
}

// Narrative is the embedded markup of a composition or section.
type Narrative struct {
	Status string // FHIR narrative status, e.g. "generated" or "extensions"
	Div    string // raw XHTML fragment
}

// Annotation links a narrative class token to a coded clinical concept.
type Annotation struct {
	ElementClass string   `json:"element_class"`
	Concept      []Coding `json:"concept"`
}

// Coding is one code in a concept.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// Fragment returns the narrative markup, or "" when there is none.
func (n *Narrative) Fragment() string {
	if n == nil {
		return ""
	}
	return n.Div
}
