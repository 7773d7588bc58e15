package annotation

import (
	"github.com/dgallion1/epiprep/internal/doctree"
	"github.com/dgallion1/epiprep/internal/markup"
)

// Reconcile returns the annotations whose element class is in classes and
// the number dropped. classes must be the union over the whole tree; see
// CollectClasses. The composition is not modified.
func Reconcile(c *doctree.Composition, classes markup.ClassSet) ([]doctree.Annotation, int) {
	kept := Filter(c, func(a doctree.Annotation) bool {
		return classes.Has(a.ElementClass)
	})
	return kept, len(c.Annotations) - len(kept)
}

// CollectClasses unions the class tokens of the composition narrative and
// every section narrative at any depth. malformed counts fragments that
// could not be read and so contributed nothing.
func CollectClasses(c *doctree.Composition) (classes markup.ClassSet, malformed int) {
	classes = make(markup.ClassSet)
	doctree.Walk(c, func(v *doctree.Visit) {
		div := v.Fragment()
		if div == "" {
			return
		}
		frag, err := markup.Parse(div)
		if err != nil {
			malformed++
			return
		}
		classes.Union(frag.Classes())
	})
	return classes, malformed
}

// Usage compares annotated classes with the classes used in the narrative.
type Usage struct {
	HTMLClasses       []string `json:"html_classes"`
	AnnotatedClasses  []string `json:"annotated_classes"`
	Used              []string `json:"used"`               // annotated and present
	UnusedAnnotations []string `json:"unused_annotations"` // annotated, absent from the narrative
	Unlinked          []string `json:"unlinked"`           // present, not annotated
}

// Analyze reports how the composition's annotations line up with classes.
func Analyze(c *doctree.Composition, classes markup.ClassSet) Usage {
	annotated := markup.NewClassSet(ElementClasses(c)...)
	u := Usage{
		HTMLClasses:       classes.Sorted(),
		AnnotatedClasses:  annotated.Sorted(),
		Used:              []string{},
		UnusedAnnotations: []string{},
		Unlinked:          []string{},
	}
	for _, cls := range u.AnnotatedClasses {
		if classes.Has(cls) {
			u.Used = append(u.Used, cls)
		} else {
			u.UnusedAnnotations = append(u.UnusedAnnotations, cls)
		}
	}
	for _, cls := range u.HTMLClasses {
		if !annotated.Has(cls) {
			u.Unlinked = append(u.Unlinked, cls)
		}
	}
	return u
}
