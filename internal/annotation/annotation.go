// Package annotation manages the HtmlElementLink annotations of a
// composition: the records linking a narrative class to a coded concept.
package annotation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/epiprep/internal/doctree"
)

// StructureDefinitionURL identifies HtmlElementLink extensions.
const StructureDefinitionURL = "http://hl7.eu/fhir/ig/gravitate-health/StructureDefinition/HtmlElementLink"

var (
	ErrInvalidClass = errors.New("element class must be a single non-empty class token")
	ErrExists       = errors.New("annotation already exists for element class")
	ErrNotFound     = errors.New("no annotation for element class")
)

// List returns a copy of the composition's annotations in document order.
func List(c *doctree.Composition) []doctree.Annotation {
	if c == nil || len(c.Annotations) == 0 {
		return []doctree.Annotation{}
	}
	out := make([]doctree.Annotation, len(c.Annotations))
	copy(out, c.Annotations)
	return out
}

// Get returns the first annotation for class.
func Get(c *doctree.Composition, class string) (doctree.Annotation, error) {
	for _, a := range c.Annotations {
		if a.ElementClass == class {
			return a, nil
		}
	}
	return doctree.Annotation{}, fmt.Errorf("%w: %q", ErrNotFound, class)
}

// Add appends an annotation for class. When one already exists it is
// replaced if replace is set, otherwise ErrExists is returned.
func Add(c *doctree.Composition, class string, concept []doctree.Coding, replace bool) error {
	if err := ValidateClass(class); err != nil {
		return err
	}
	if _, err := Get(c, class); err == nil {
		if !replace {
			return fmt.Errorf("%w: %q", ErrExists, class)
		}
		Remove(c, class)
	}
	c.Annotations = append(c.Annotations, doctree.Annotation{
		ElementClass: class,
		Concept:      append([]doctree.Coding(nil), concept...),
	})
	return nil
}

// Remove drops every annotation for class and reports whether any existed.
func Remove(c *doctree.Composition, class string) bool {
	kept := Filter(c, func(a doctree.Annotation) bool { return a.ElementClass != class })
	removed := len(kept) < len(c.Annotations)
	c.Annotations = kept
	return removed
}

// RemoveAll clears the annotations and returns how many there were.
func RemoveAll(c *doctree.Composition) int {
	n := len(c.Annotations)
	c.Annotations = nil
	return n
}

// Filter returns the annotations for which keep is true. A nil keep
// returns them all. The composition is not modified.
func Filter(c *doctree.Composition, keep func(doctree.Annotation) bool) []doctree.Annotation {
	out := make([]doctree.Annotation, 0, len(c.Annotations))
	for _, a := range c.Annotations {
		if keep == nil || keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// ElementClasses lists the non-empty element classes in document order.
func ElementClasses(c *doctree.Composition) []string {
	var out []string
	for _, a := range c.Annotations {
		if a.ElementClass != "" {
			out = append(out, a.ElementClass)
		}
	}
	return out
}

// ConceptsFor returns the codings of the first annotation for class.
func ConceptsFor(c *doctree.Composition, class string) []doctree.Coding {
	a, err := Get(c, class)
	if err != nil {
		return nil
	}
	return a.Concept
}

// ValidateClass checks that class can appear as a token of a class attribute.
func ValidateClass(class string) error {
	if class == "" || strings.TrimSpace(class) != class || len(strings.Fields(class)) != 1 {
		return fmt.Errorf("%w: %q", ErrInvalidClass, class)
	}
	return nil
}
