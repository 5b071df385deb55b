package xmltree

import (
	"strings"

	Text "github.com/linkdotnet/golang-stringbuilder"

	"github.com/sderkacs/xpvm/core"
)

// Serialize renders n back to XML text. It supports the subset of
// serialization xpvm needs: element/attribute/namespace/text/comment/
// processing-instruction nodes and documents, with XML-required
// escaping of text and attribute content. It is not a conformant
// implementation of the full XSLT/XQuery serialization parameter set
// (no indentation, encoding, or doctype parameters).
func Serialize(n core.Node) string {
	var b Text.StringBuilder
	writeNode(&b, n)
	return b.ToString()
}

func writeNode(b *Text.StringBuilder, n core.Node) {
	switch t := n.(type) {
	case *Document:
		for _, k := range t.kids {
			writeNode(b, k)
		}
	case *Element:
		writeElement(b, t)
	case *Attribute:
		b.Append(t.name.String())
		b.Append(`="`)
		b.Append(escapeAttr(t.value))
		b.Append(`"`)
	case *Namespace:
		if t.prefix == "" {
			b.Append("xmlns")
		} else {
			b.Append("xmlns:")
			b.Append(t.prefix)
		}
		b.Append(`="`)
		b.Append(escapeAttr(t.uri))
		b.Append(`"`)
	case *Text:
		b.Append(escapeText(t.value))
	case *Comment:
		b.Append("<!--")
		b.Append(t.value)
		b.Append("-->")
	case *ProcessingInstruction:
		b.Append("<?")
		b.Append(t.target)
		if t.data != "" {
			b.Append(" ")
			b.Append(t.data)
		}
		b.Append("?>")
	}
}

func writeElement(b *Text.StringBuilder, e *Element) {
	b.Append("<")
	b.Append(e.name.String())
	for _, ns := range e.nsps {
		b.Append(" ")
		writeNode(b, ns)
	}
	for _, a := range e.attrs {
		b.Append(" ")
		writeNode(b, a)
	}
	if len(e.kids) == 0 {
		b.Append("/>")
		return
	}
	b.Append(">")
	for _, k := range e.kids {
		writeNode(b, k)
	}
	b.Append("</")
	b.Append(e.name.String())
	b.Append(">")
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func escapeAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "\n", "&#10;", "\t", "&#9;")
	return r.Replace(s)
}
