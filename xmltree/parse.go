package xmltree

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/sderkacs/xpvm/core"
	"github.com/sderkacs/xpvm/utils"
)

// builderFrame is one open element's accumulation state while the
// token loop descends and ascends the tree, mirroring the
// accumulate-then-flush shape of the teacher's SAX decoder: attributes
// and namespace declarations land on the frame as StartElement is
// seen, children accumulate as nested tokens are read, and the whole
// thing is flushed into an *Element the moment the matching EndElement
// arrives.
type builderFrame struct {
	name core.Name
	el   *Element
	kids []core.Node
}

// Parse reads one XML document from r and returns its tree. baseURI is
// recorded on the returned Document and is otherwise not interpreted;
// pass "" if the source has none.
//
// encoding/xml.Decoder already resolves element and attribute names
// against in-scope xmlns bindings as it tokenizes, so StartElement's
// Name.Space arrives as an expanded namespace URI, not a lexical
// prefix; the original prefix text is not recoverable and is left
// blank on the resulting core.Name (Name equality never depends on
// Prefix).
func Parse(r io.Reader, baseURI string) (*Document, error) {
	dec := xml.NewDecoder(r)
	doc := newDocument(baseURI)

	var stack []*builderFrame

	flushInto := func(parentKids *[]core.Node, n core.Node) {
		*parentKids = append(*parentKids, n)
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmltree: parse: %w", err)
		}

		var curKids *[]core.Node
		if len(stack) > 0 {
			curKids = &stack[len(stack)-1].kids
		} else {
			curKids = &doc.kids
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := core.NewName(t.Name.Space, t.Name.Local)
			frame := &builderFrame{name: name}

			el := newElement(doc, nil, name)
			for _, a := range t.Attr {
				if isNamespaceDecl(a.Name) {
					el.nsps = append(el.nsps, newNamespace(doc, el, namespacePrefix(a.Name), a.Value))
					continue
				}
				aname := core.NewName(a.Name.Space, a.Name.Local)
				el.attrs = append(el.attrs, newAttribute(doc, el, aname, a.Value))
			}
			frame.el = el
			stack = append(stack, frame)

		case xml.EndElement:
			frame := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			el := frame.el
			el.kids = frame.kids
			for _, k := range el.kids {
				setParent(k, el)
			}
			attachSiblings(el.kids)

			if len(stack) > 0 {
				parentKids := &stack[len(stack)-1].kids
				flushInto(parentKids, el)
			} else {
				el.parent = doc
				flushInto(&doc.kids, el)
			}

		case xml.CharData:
			s := string(t)
			if len(stack) == 0 && (s == "" || utils.IsWhiteSpaceOnly(s)) {
				// Whitespace outside the document element carries no
				// meaning in the data model; drop it rather than
				// attaching it to the Document.
				continue
			}
			flushInto(curKids, newText(doc, topParent(stack, doc), s))

		case xml.Comment:
			flushInto(curKids, newComment(doc, topParent(stack, doc), string(t)))

		case xml.ProcInst:
			flushInto(curKids, newProcessingInstruction(doc, topParent(stack, doc), t.Target, string(t.Inst)))
		}
	}

	attachSiblings(doc.kids)
	return doc, nil
}

// isNamespaceDecl reports whether an attribute name is an xmlns or
// xmlns:prefix namespace declaration rather than an ordinary attribute.
func isNamespaceDecl(name xml.Name) bool {
	return name.Space == "xmlns" || (name.Space == "" && name.Local == "xmlns")
}

// namespacePrefix returns the declared prefix for an xmlns/xmlns:prefix
// attribute name, "" for the default-namespace form.
func namespacePrefix(name xml.Name) string {
	if name.Space == "xmlns" {
		return name.Local
	}
	return ""
}

// setParent fixes up the parent pointer of a child node once its
// enclosing Element is flushed (text/comment/PI nodes and child
// elements, all collected while their parent frame was still
// accumulating children); attribute and namespace nodes get their
// parent when they are created.
func setParent(n core.Node, parent core.Node) {
	switch t := n.(type) {
	case *Text:
		t.parent = parent
	case *Comment:
		t.parent = parent
	case *ProcessingInstruction:
		t.parent = parent
	case *Element:
		t.parent = parent
	}
}

// topParent is the node a leaf token encountered right now should be
// parented under: the innermost open element, or the document itself
// between/around the root element.
func topParent(stack []*builderFrame, doc *Document) core.Node {
	if len(stack) == 0 {
		return doc
	}
	return stack[len(stack)-1].el
}

// ParseString is Parse over an in-memory XML document.
func ParseString(s string, baseURI string) (*Document, error) {
	return Parse(strings.NewReader(s), baseURI)
}
