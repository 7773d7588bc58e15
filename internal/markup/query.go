package markup

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ElementInfo is a read-only view of one element found by a query.
type ElementInfo struct {
	Tag     string            `json:"tag"`
	ID      string            `json:"id,omitempty"`
	Classes []string          `json:"classes,omitempty"`
	Text    string            `json:"text"`
	Attrs   map[string]string `json:"attributes,omitempty"`
}

// Summary describes the structure of a fragment for diagnostics.
type Summary struct {
	Elements   int            `json:"elements"`
	Tags       map[string]int `json:"tags"`
	Classes    []string       `json:"classes"`
	TextLength int            `json:"text_length"`
	MaxDepth   int            `json:"max_depth"`
}

func loadDocument(text string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("load fragment: %w", err)
	}
	return doc.Find("body *"), nil
}

// FindByClass returns every element carrying the class token, in document order.
func FindByClass(text, class string) ([]ElementInfo, error) {
	all, err := loadDocument(text)
	if err != nil {
		return nil, err
	}
	return collect(all.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.HasClass(class)
	})), nil
}

// FindByTag returns every element with the given tag name, in document order.
func FindByTag(text, tag string) ([]ElementInfo, error) {
	all, err := loadDocument(text)
	if err != nil {
		return nil, err
	}
	tag = strings.ToLower(tag)
	return collect(all.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return goquery.NodeName(s) == tag
	})), nil
}

// Summarize counts elements, tags and classes in a fragment.
func Summarize(text string) (Summary, error) {
	all, err := loadDocument(text)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Tags: make(map[string]int)}
	classes := make(ClassSet)
	all.Each(func(_ int, s *goquery.Selection) {
		sum.Elements++
		sum.Tags[goquery.NodeName(s)]++
		for _, c := range strings.Fields(s.AttrOr("class", "")) {
			classes.Add(c)
		}
		if d := s.ParentsUntil("body").Length() + 1; d > sum.MaxDepth {
			sum.MaxDepth = d
		}
	})
	sum.Classes = classes.Sorted()
	frag, _ := Parse(text)
	sum.TextLength = len([]rune(frag.TextContent()))
	return sum, nil
}

func collect(sel *goquery.Selection) []ElementInfo {
	out := make([]ElementInfo, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		info := ElementInfo{
			Tag:     goquery.NodeName(s),
			ID:      s.AttrOr("id", ""),
			Classes: strings.Fields(s.AttrOr("class", "")),
			Text:    strings.TrimSpace(s.Text()),
		}
		for _, a := range s.Nodes[0].Attr {
			if a.Key == "id" || a.Key == "class" {
				continue
			}
			if info.Attrs == nil {
				info.Attrs = make(map[string]string)
			}
			info.Attrs[a.Key] = a.Val
		}
		out = append(out, info)
	})
	return out
}
