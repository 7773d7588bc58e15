package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "nested same type merges classes",
			in:   `<p class="c1"><p class="c2">T</p></p>`,
			want: `<p class="c1 c2">T</p>`,
		},
		{
			name: "empty tag removed",
			in:   `<div><span></span><p>T</p></div>`,
			want: `<div><p>T</p></div>`,
		},
		{
			name: "attribute bearing empty tag kept",
			in:   `<div><span class="marker"></span></div>`,
			want: `<div><span class="marker"></span></div>`,
		},
		{
			name: "wrapper chain collapses",
			in:   `<span class="a"><span><span class="b a">x</span></span></span>`,
			want: `<span class="a b">x</span>`,
		},
		{
			name: "emptied ancestors removed",
			in:   `<div><div><span><b></b></span></div></div><p>T</p>`,
			want: `<p>T</p>`,
		},
		{
			name: "mixed children never merge",
			in:   `<p>a<p>b</p></p>`,
			want: `<p>a<p>b</p></p>`,
		},
		{
			name: "different tags never merge",
			in:   `<div><p>T</p></div>`,
			want: `<div><p>T</p></div>`,
		},
		{
			name: "whitespace around sole child moves out of the merge",
			in:   "<div id=\"x\">\n  <div class=\"y\">T</div>\n</div>",
			want: "\n  <div id=\"x\" class=\"y\">T</div>\n",
		},
		{
			name: "word separators survive a merge",
			in:   `<p>Dose<b> <b>5 mg</b> </b>daily</p>`,
			want: `<p>Dose <b>5 mg</b> daily</p>`,
		},
		{
			name: "separator before a merged sibling survives",
			in:   `<p><span>Take</span><span> <span class="drug">aspirin</span></span></p>`,
			want: `<p><span>Take</span> <span class="drug">aspirin</span></p>`,
		},
		{
			name: "inner value wins for non-class attributes",
			in:   `<div id="outer" title="t"><div id="inner">T</div></div>`,
			want: `<div id="inner" title="t">T</div>`,
		},
		{
			name: "void elements survive",
			in:   `<p>a<br>b</p><span></span>`,
			want: `<p>a<br/>b</p>`,
		},
		{
			name: "structural tags are left alone",
			in:   `<table><tr><td></td><td>x</td></tr></table>`,
			want: `<table><tr><td></td><td>x</td></tr></table>`,
		},
		{
			name: "whitespace-only span is content",
			in:   `a<span> </span>b`,
			want: `a<span> </span>b`,
		},
		{
			name: "empty input",
			in:   ``,
			want: ``,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Optimize(tt.in))
		})
	}
}

func TestOptimize_Idempotent(t *testing.T) {
	inputs := []string{
		`<p class="c1"><p class="c2">T</p></p>`,
		`<div><span></span><p>T</p></div>`,
		`<div xmlns="http://www.w3.org/1999/xhtml"><div><div class="a"><span>x &amp; y</span></div></div></div>`,
		`a<span></span>b<i><i></i></i>c`,
		"<div>\n <p><b><b>bold</b></b></p>\n</div>",
		`<p>unclosed <b>bold`,
		`<ul><li><span></span>item</li></ul>`,
	}
	for _, in := range inputs {
		once := Optimize(in)
		assert.Equal(t, once, Optimize(once), "input %q", in)
	}
}

func TestOptimize_PreservesContent(t *testing.T) {
	inputs := []string{
		`<div><div class="a"><span>Hello</span> <b>World</b></div></div>`,
		`<p>x<span></span>y</p>`,
		`<h1><h1 class="t">Title</h1></h1><p>&lt;tag&gt; &amp; more</p>`,
		`<script>if (a < b) { x(); }</script><div><div>after</div></div>`,
		`<p>Dose<b> <b>5 mg</b> </b>daily</p>`,
		"<p><i>a</i><i>\n\t<i>b</i>\n</i>c</p>",
	}
	for _, in := range inputs {
		out := Optimize(in)
		assert.True(t, Validate(in, out), "input %q produced %q", in, out)
	}
}

func TestSimplify_Counters(t *testing.T) {
	res := Simplify(`<section><span></span><em></em><div class="a"><div>T</div></div></section>`)
	require.False(t, res.Rejected)
	assert.True(t, res.Changed)
	assert.Equal(t, 2, res.Removed)
	assert.Equal(t, 1, res.Merged)
	assert.Equal(t, `<section><div class="a">T</div></section>`, res.Text)
}

func TestSimplify_UnchangedReturnsInputBytes(t *testing.T) {
	in := `<div   class='x'>T</div>`
	res := Simplify(in)
	assert.False(t, res.Changed)
	assert.Equal(t, in, res.Text)
}

func TestMergeAttrs_OrderAndUnion(t *testing.T) {
	outer := &Element{Tag: "p", Attrs: []Attr{{"class", "c1 c2"}, {"lang", "en"}}}
	inner := &Element{Tag: "p", Attrs: []Attr{{"id", "i"}, {"class", "c2 c3"}, {"lang", "pt"}}}
	mergeAttrs(outer, inner)
	assert.Equal(t, []Attr{{"class", "c1 c2 c3"}, {"lang", "pt"}, {"id", "i"}}, inner.Attrs)
}

func TestOptimize_KeepsWordSeparators(t *testing.T) {
	in := `<p>Dose<b> <b>5 mg</b> </b>daily</p>`
	before, err := Parse(in)
	require.NoError(t, err)
	after, err := Parse(Optimize(in))
	require.NoError(t, err)
	assert.Equal(t, "Dose 5 mg daily", before.TextContent())
	assert.Equal(t, before.TextContent(), after.TextContent())
}
