package markup

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ErrMalformed marks markup the tokenizer could not read.
var ErrMalformed = errors.New("malformed markup")

// MaxTokenBytes bounds a single token (one tag or one run of text). A
// longer token makes the fragment malformed.
var MaxTokenBytes = 4 << 20

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "keygen": true, "link": true,
	"meta": true, "param": true, "source": true, "track": true, "wbr": true,
}

// Parse builds a tag tree from a markup fragment.
//
// The tree follows the nesting as written: no HTML5 tree-construction
// repairs are applied, so <p><p>x</p></p> stays nested. End tags with no
// matching open element are dropped and elements still open at the end
// of input are closed there. On a read failure Parse returns an empty
// fragment together with an error wrapping ErrMalformed; the fragment is
// always non-nil.
func Parse(s string) (*Fragment, error) {
	frag := &Fragment{}
	if strings.TrimSpace(s) == "" {
		return frag, nil
	}

	z := html.NewTokenizer(strings.NewReader(s))
	z.SetMaxBuf(MaxTokenBytes)
	var open []*Element

	appendNode := func(n Node) {
		if len(open) == 0 {
			frag.Nodes = appendMerged(frag.Nodes, n)
			return
		}
		top := open[len(open)-1]
		top.Children = appendMerged(top.Children, n)
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return &Fragment{}, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			return frag, nil

		case html.TextToken:
			appendNode(&Text{Data: z.Token().Data})

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			el := &Element{Tag: tok.Data, Attrs: dedupeAttrs(tok.Attr)}
			if tt == html.SelfClosingTagToken || voidElements[tok.Data] {
				el.SelfClosing = true
				appendNode(el)
				continue
			}
			appendNode(el)
			open = append(open, el)

		case html.EndTagToken:
			name := z.Token().Data
			for i := len(open) - 1; i >= 0; i-- {
				if open[i].Tag == name {
					open = open[:i]
					break
				}
			}

		case html.CommentToken:
			appendNode(&Comment{Data: z.Token().Data})

		case html.DoctypeToken:
			appendNode(&Directive{Data: z.Token().Data})
		}
	}
}

// appendMerged appends n, joining it onto a trailing text leaf when both are text.
func appendMerged(nodes []Node, n Node) []Node {
	if t, ok := n.(*Text); ok && len(nodes) > 0 {
		if prev, ok := nodes[len(nodes)-1].(*Text); ok {
			nodes[len(nodes)-1] = &Text{Data: prev.Data + t.Data}
			return nodes
		}
	}
	return append(nodes, n)
}

func dedupeAttrs(in []html.Attribute) []Attr {
	if len(in) == 0 {
		return nil
	}
	out := make([]Attr, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, a := range in {
		key := a.Key
		if a.Namespace != "" {
			key = a.Namespace + ":" + a.Key
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Attr{Key: key, Val: a.Val})
	}
	return out
}
