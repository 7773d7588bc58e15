// Package bundle binds FHIR Bundle and Composition JSON to the document
// tree and writes the tree back. JSON the tree does not model is carried
// through unchanged.
package bundle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/dgallion1/epiprep/internal/annotation"
	"github.com/dgallion1/epiprep/internal/doctree"
)

var (
	ErrNotBundle     = errors.New("resource is neither a Bundle nor a Composition")
	ErrNoComposition = errors.New("bundle contains no Composition")
)

// Document is a decoded resource with its compositions bound to doctree
// records. Edits made to the compositions are written back by Encode.
type Document struct {
	kind  string
	root  map[string]any
	comps []*binding
}

type binding struct {
	comp  *doctree.Composition
	raw   map[string]any
	nodes []nodeRef

	// extensions as read, to keep unchanged annotations byte-stable
	links []link
}

// nodeRef ties a narrative slot to the JSON object that owns it.
type nodeRef struct {
	slot **doctree.Narrative
	raw  map[string]any
}

type link struct {
	ann doctree.Annotation
	raw map[string]any
}

// Parse decodes a Bundle or a bare Composition.
func Parse(data []byte) (*Document, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a Bundle or a bare Composition from r.
func Decode(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var root map[string]any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decode resource: %w", err)
	}

	d := &Document{root: root}
	d.kind, _ = root["resourceType"].(string)
	switch d.kind {
	case "Composition":
		d.comps = append(d.comps, bind(root))
	case "Bundle":
		entries, _ := root["entry"].([]any)
		for _, e := range entries {
			entry, _ := e.(map[string]any)
			res, _ := entry["resource"].(map[string]any)
			if rt, _ := res["resourceType"].(string); rt == "Composition" {
				d.comps = append(d.comps, bind(res))
			}
		}
		if len(d.comps) == 0 {
			return nil, ErrNoComposition
		}
	default:
		return nil, fmt.Errorf("%w: resourceType %q", ErrNotBundle, d.kind)
	}
	return d, nil
}

// Kind returns "Bundle" or "Composition".
func (d *Document) Kind() string { return d.kind }

// Compositions returns the bound compositions in entry order.
func (d *Document) Compositions() []*doctree.Composition {
	out := make([]*doctree.Composition, len(d.comps))
	for i, b := range d.comps {
		out[i] = b.comp
	}
	return out
}

// Encode writes the document, with every composition edit applied, as
// JSON with sorted keys. Markup is not HTML-escaped.
func (d *Document) Encode(w io.Writer) error {
	for _, b := range d.comps {
		b.sync()
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d.root); err != nil {
		return fmt.Errorf("encode resource: %w", err)
	}
	return nil
}

// Marshal is Encode into a byte slice.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func bind(raw map[string]any) *binding {
	b := &binding{raw: raw}
	c := &doctree.Composition{}
	c.ID, _ = raw["id"].(string)
	c.Title, _ = raw["title"].(string)
	c.Text = narrative(raw)
	b.comp = c
	b.nodes = append(b.nodes, nodeRef{slot: &c.Text, raw: raw})

	for _, ext := range extensions(raw) {
		if a, ok := parseLink(ext); ok {
			c.Annotations = append(c.Annotations, a)
			b.links = append(b.links, link{ann: a, raw: ext})
		}
	}

	c.Sections, c.Anomalous = b.sections(raw)
	return b
}

// sections binds raw["section"]. A present but non-array value is an
// anomaly; array items that are not objects become nil sections.
func (b *binding) sections(raw map[string]any) ([]*doctree.Section, bool) {
	v, ok := raw["section"]
	if !ok {
		return nil, false
	}
	items, ok := v.([]any)
	if !ok {
		return nil, true
	}

	// Objects are bound breadth-first with an explicit queue; nesting
	// depth comes from the input.
	type pending struct {
		dst *[]*doctree.Section
		raw []any
	}
	var out []*doctree.Section
	queue := []pending{{dst: &out, raw: items}}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		secs := make([]*doctree.Section, len(p.raw))
		for i, item := range p.raw {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			s := &doctree.Section{Text: narrative(m)}
			s.Title, _ = m["title"].(string)
			b.nodes = append(b.nodes, nodeRef{slot: &s.Text, raw: m})
			if child, ok := m["section"]; ok {
				if list, ok := child.([]any); ok {
					queue = append(queue, pending{dst: &s.Sections, raw: list})
				} else {
					s.Anomalous = true
				}
			}
			secs[i] = s
		}
		*p.dst = secs
	}
	return out, false
}

func narrative(raw map[string]any) *doctree.Narrative {
	text, ok := raw["text"].(map[string]any)
	if !ok {
		return nil
	}
	n := &doctree.Narrative{}
	n.Status, _ = text["status"].(string)
	n.Div, _ = text["div"].(string)
	return n
}

func extensions(raw map[string]any) []map[string]any {
	list, _ := raw["extension"].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, e := range list {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func isLink(ext map[string]any) bool {
	url, _ := ext["url"].(string)
	return url == annotation.StructureDefinitionURL
}

// parseLink reads an HtmlElementLink extension: an elementClass string
// and a concept CodeableReference.
func parseLink(ext map[string]any) (doctree.Annotation, bool) {
	if !isLink(ext) {
		return doctree.Annotation{}, false
	}
	var a doctree.Annotation
	subs, _ := ext["extension"].([]any)
	for _, s := range subs {
		sub, _ := s.(map[string]any)
		switch sub["url"] {
		case "elementClass":
			a.ElementClass, _ = sub["valueString"].(string)
		case "concept":
			ref, _ := sub["valueCodeableReference"].(map[string]any)
			concept, _ := ref["concept"].(map[string]any)
			codings, _ := concept["coding"].([]any)
			for _, c := range codings {
				cm, _ := c.(map[string]any)
				var cd doctree.Coding
				cd.System, _ = cm["system"].(string)
				cd.Code, _ = cm["code"].(string)
				cd.Display, _ = cm["display"].(string)
				a.Concept = append(a.Concept, cd)
			}
		}
	}
	return a, true
}

func encodeLink(a doctree.Annotation) map[string]any {
	codings := make([]any, 0, len(a.Concept))
	for _, c := range a.Concept {
		m := map[string]any{}
		if c.System != "" {
			m["system"] = c.System
		}
		if c.Code != "" {
			m["code"] = c.Code
		}
		if c.Display != "" {
			m["display"] = c.Display
		}
		codings = append(codings, m)
	}
	return map[string]any{
		"url": annotation.StructureDefinitionURL,
		"extension": []any{
			map[string]any{"url": "elementClass", "valueString": a.ElementClass},
			map[string]any{"url": "concept", "valueCodeableReference": map[string]any{
				"concept": map[string]any{"coding": codings},
			}},
		},
	}
}

// sync writes narratives and annotations back into the raw objects.
func (b *binding) sync() {
	for _, n := range b.nodes {
		nar := *n.slot
		if nar == nil {
			continue
		}
		text, ok := n.raw["text"].(map[string]any)
		if !ok {
			text = map[string]any{}
			n.raw["text"] = text
		}
		if nar.Status != "" {
			text["status"] = nar.Status
		}
		text["div"] = nar.Div
	}
	b.syncExtensions()
}

// syncExtensions replaces the HtmlElementLink entries with the current
// annotations at the position of the first one, keeping every other
// extension where it was.
func (b *binding) syncExtensions() {
	current := make([]any, 0, len(b.comp.Annotations))
	used := make([]bool, len(b.links))
	for _, a := range b.comp.Annotations {
		current = append(current, b.rawFor(a, used))
	}

	orig, _ := b.raw["extension"].([]any)
	out := make([]any, 0, len(orig)+len(current))
	placed := false
	for _, e := range orig {
		m, ok := e.(map[string]any)
		if ok && isLink(m) {
			if !placed {
				out = append(out, current...)
				placed = true
			}
			continue
		}
		out = append(out, e)
	}
	if !placed {
		out = append(out, current...)
	}

	if len(out) == 0 {
		delete(b.raw, "extension")
		return
	}
	b.raw["extension"] = out
}

// rawFor returns the JSON read for a, when a is unchanged, so unknown
// fields inside the extension survive.
func (b *binding) rawFor(a doctree.Annotation, used []bool) map[string]any {
	for i, l := range b.links {
		if used[i] || l.ann.ElementClass != a.ElementClass || !slices.Equal(l.ann.Concept, a.Concept) {
			continue
		}
		used[i] = true
		return l.raw
	}
	return encodeLink(a)
}
