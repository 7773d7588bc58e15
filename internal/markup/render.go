package markup

import "strings"

var rawTextElements = map[string]bool{
	"script": true, "style": true, "xmp": true, "iframe": true,
	"noembed": true, "noframes": true, "noscript": true, "plaintext": true,
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", `"`, "&quot;", "<", "&lt;", ">", "&gt;")
)

// Render serializes a fragment back to markup text. Void and self-closing
// elements are written in XHTML form (<br/>).
func Render(f *Fragment) string {
	if f.Empty() {
		return ""
	}
	var sb strings.Builder
	for _, n := range f.Nodes {
		writeNode(&sb, n, false)
	}
	return sb.String()
}

func writeNode(sb *strings.Builder, n Node, raw bool) {
	switch v := n.(type) {
	case *Text:
		if raw {
			sb.WriteString(v.Data)
		} else {
			textEscaper.WriteString(sb, v.Data)
		}
	case *Comment:
		sb.WriteString("<!--")
		sb.WriteString(v.Data)
		sb.WriteString("-->")
	case *Directive:
		sb.WriteString("<!DOCTYPE ")
		sb.WriteString(v.Data)
		sb.WriteString(">")
	case *Element:
		sb.WriteByte('<')
		sb.WriteString(v.Tag)
		for _, a := range v.Attrs {
			sb.WriteByte(' ')
			sb.WriteString(a.Key)
			sb.WriteString(`="`)
			attrEscaper.WriteString(sb, a.Val)
			sb.WriteByte('"')
		}
		if v.SelfClosing {
			sb.WriteString("/>")
			return
		}
		sb.WriteByte('>')
		childRaw := rawTextElements[v.Tag]
		for _, c := range v.Children {
			writeNode(sb, c, childRaw)
		}
		sb.WriteString("</")
		sb.WriteString(v.Tag)
		sb.WriteByte('>')
	}
}
