package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/epiprep/internal/doctree"
	"github.com/dgallion1/epiprep/internal/markup"
)

var snomedPregnancy = []doctree.Coding{{System: "http://snomed.info/sct", Code: "77386006", Display: "Pregnancy"}}

func composition(classes ...string) *doctree.Composition {
	c := &doctree.Composition{}
	for _, cls := range classes {
		c.Annotations = append(c.Annotations, doctree.Annotation{ElementClass: cls})
	}
	return c
}

func TestAdd(t *testing.T) {
	c := composition()
	require.NoError(t, Add(c, "pregnancyCategory", snomedPregnancy, false))
	err := Add(c, "pregnancyCategory", nil, false)
	assert.ErrorIs(t, err, ErrExists)

	require.NoError(t, Add(c, "pregnancyCategory", nil, true))
	require.Len(t, c.Annotations, 1)
	assert.Empty(t, c.Annotations[0].Concept)
}

func TestAdd_RejectsBadClass(t *testing.T) {
	c := composition()
	for _, cls := range []string{"", " lead", "two words", "tab\tbed"} {
		assert.ErrorIs(t, Add(c, cls, nil, false), ErrInvalidClass, "class %q", cls)
	}
	assert.Empty(t, c.Annotations)
}

func TestGetAndConcepts(t *testing.T) {
	c := composition()
	require.NoError(t, Add(c, "pregnancyCategory", snomedPregnancy, false))

	a, err := Get(c, "pregnancyCategory")
	require.NoError(t, err)
	assert.Equal(t, snomedPregnancy, a.Concept)
	assert.Equal(t, snomedPregnancy, ConceptsFor(c, "pregnancyCategory"))

	_, err = Get(c, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, ConceptsFor(c, "missing"))
}

func TestRemove(t *testing.T) {
	c := composition("a", "b", "a", "c")
	assert.True(t, Remove(c, "a"))
	assert.False(t, Remove(c, "a"))
	assert.Equal(t, []string{"b", "c"}, ElementClasses(c))
	assert.Equal(t, 2, RemoveAll(c))
	assert.Empty(t, List(c))
}

func TestList_ReturnsCopy(t *testing.T) {
	c := composition("a")
	got := List(c)
	got[0].ElementClass = "mutated"
	assert.Equal(t, "a", c.Annotations[0].ElementClass)
	assert.NotNil(t, List(nil))
}

func TestFilter(t *testing.T) {
	c := composition("liver", "lactose", "pregnancyCategory")
	got := Filter(c, func(a doctree.Annotation) bool { return a.ElementClass[0] == 'l' })
	require.Len(t, got, 2)
	assert.Len(t, Filter(c, nil), 3)
}

func TestElementClasses_SkipsEmpty(t *testing.T) {
	c := composition("a", "", "b")
	assert.Equal(t, []string{"a", "b"}, ElementClasses(c))
}

func TestValidateClass(t *testing.T) {
	assert.NoError(t, ValidateClass("pregnancyCategory"))
	assert.Error(t, ValidateClass("a b"))
}

func TestAnalyze(t *testing.T) {
	c := composition("used", "stale")
	u := Analyze(c, markup.NewClassSet("used", "plain"))
	assert.Equal(t, []string{"used"}, u.Used)
	assert.Equal(t, []string{"stale"}, u.UnusedAnnotations)
	assert.Equal(t, []string{"plain"}, u.Unlinked)
	assert.Equal(t, []string{"plain", "used"}, u.HTMLClasses)
	assert.Equal(t, []string{"stale", "used"}, u.AnnotatedClasses)
}
