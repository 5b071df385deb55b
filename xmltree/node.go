// Package xmltree is the in-memory, immutable-after-parse XML document
// tree: the sole implementer of core.Node, giving path steps and axis
// navigation something concrete to walk.
package xmltree

import (
	Text "github.com/linkdotnet/golang-stringbuilder"

	"github.com/sderkacs/xpvm/core"
)

// nodeBase is the common state every node kind carries: the document it
// belongs to (for SameNode's identity check), its parent, a document-
// order position assigned once at parse time, and (for nodes that have
// siblings at all) the shared child list of its parent plus its own
// index into it. Concrete types embed nodeBase and set self to
// themselves in their constructor, the same "abstract base embeds its
// own interface" shape core/ir.go's AbstractIR uses so the shared base
// can call back into Kind-specific behavior (StringValue) without a
// type switch here.
type nodeBase struct {
	self      core.Node
	doc       *Document
	parent    core.Node
	order     uint64
	siblings  []core.Node
	selfIndex int
}

func (b *nodeBase) ItemKind() core.ItemTypeKind { return core.ItemKindNode }
func (b *nodeBase) String() string              { return b.self.StringValue() }
func (b *nodeBase) DocumentOrderKey() uint64    { return b.order }

// xmlDoc exists only so SameNode can compare document identity across
// any pair of xmltree node types without a type switch.
func (b *nodeBase) xmlDoc() *Document { return b.doc }

func (b *nodeBase) SameNode(other core.Node) bool {
	o, ok := other.(interface{ xmlDoc() *Document })
	if !ok {
		return false
	}
	return o.xmlDoc() == b.doc && other.DocumentOrderKey() == b.order
}

func (b *nodeBase) Parent() (core.Node, bool) {
	if b.parent == nil {
		return nil, false
	}
	return b.parent, true
}

func (b *nodeBase) Children() []core.Node   { return nil }
func (b *nodeBase) Attributes() []core.Node { return nil }
func (b *nodeBase) Namespaces() []core.Node { return nil }

func (b *nodeBase) FollowingSiblings() []core.Node {
	if b.siblings == nil {
		return nil
	}
	return append([]core.Node(nil), b.siblings[b.selfIndex+1:]...)
}

// PrecedingSiblings is returned nearest-first (reverse document order),
// the axis's defined iteration order.
func (b *nodeBase) PrecedingSiblings() []core.Node {
	if b.siblings == nil {
		return nil
	}
	out := make([]core.Node, 0, b.selfIndex)
	for i := b.selfIndex - 1; i >= 0; i-- {
		out = append(out, b.siblings[i])
	}
	return out
}

// Owner returns the Document a node belongs to, for callers (such as
// xslt's pattern matcher) that need to re-run an XPath expression
// rooted at the whole tree a candidate node came from.
func Owner(n core.Node) (*Document, bool) {
	d, ok := n.(interface{ xmlDoc() *Document })
	if !ok {
		return nil, false
	}
	return d.xmlDoc(), true
}

func attachSiblings(siblings []core.Node) {
	for i, n := range siblings {
		switch t := n.(type) {
		case *Element:
			t.siblings, t.selfIndex = siblings, i
		case *Text:
			t.siblings, t.selfIndex = siblings, i
		case *Comment:
			t.siblings, t.selfIndex = siblings, i
		case *ProcessingInstruction:
			t.siblings, t.selfIndex = siblings, i
		}
	}
}

// Document is the root of one parsed XML tree: the unit fn:root walks
// up to. Its children are whatever appears at the top level of the
// source (exactly one element, plus any top-level comments/PIs).
type Document struct {
	nodeBase
	baseURI string
	next    uint64
	kids    []core.Node
}

func newDocument(baseURI string) *Document {
	d := &Document{baseURI: baseURI}
	d.self = d
	d.doc = d
	d.order = d.nextOrder()
	return d
}

func (d *Document) nextOrder() uint64 {
	o := d.next
	d.next++
	return o
}

// BaseURI returns the URI the document was parsed from, empty if none
// was given to Parse/ParseString.
func (d *Document) BaseURI() string { return d.baseURI }

// DocumentElement returns the document's single root element, if any.
func (d *Document) DocumentElement() (*Element, bool) {
	for _, c := range d.kids {
		if el, ok := c.(*Element); ok {
			return el, true
		}
	}
	return nil, false
}

func (d *Document) Kind() core.NodeKind   { return core.NodeDocument }
func (d *Document) NodeName() core.Name   { return core.Name{} }
func (d *Document) Children() []core.Node { return d.kids }

func (d *Document) StringValue() string {
	var b Text.StringBuilder
	writeStringValue(&b, d.kids)
	return b.ToString()
}

func (d *Document) TypedValue() core.Sequence {
	return core.Singleton(core.NewAtomic(core.UntypedAtomicValue(d.StringValue())))
}

// Element is an element node: a name, its attributes, its in-scope
// namespace declarations, and its ordered children (elements, text,
// comments, processing instructions).
type Element struct {
	nodeBase
	name  core.Name
	attrs []*Attribute
	nsps  []*Namespace
	kids  []core.Node
}

func (e *Element) Kind() core.NodeKind   { return core.NodeElement }
func (e *Element) NodeName() core.Name   { return e.name }
func (e *Element) Children() []core.Node { return e.kids }

func (e *Element) Attributes() []core.Node {
	out := make([]core.Node, len(e.attrs))
	for i, a := range e.attrs {
		out[i] = a
	}
	return out
}

func (e *Element) Namespaces() []core.Node {
	out := make([]core.Node, len(e.nsps))
	for i, n := range e.nsps {
		out[i] = n
	}
	return out
}

// Attr looks up an unprefixed (no-namespace) attribute by local name,
// the form every xsl: instruction attribute (match, select, test,
// name, mode, ...) takes.
func (e *Element) Attr(local string) (string, bool) {
	for _, a := range e.attrs {
		if a.name.URI == "" && a.name.Local == local {
			return a.value, true
		}
	}
	return "", false
}

func (e *Element) StringValue() string {
	var b Text.StringBuilder
	writeStringValue(&b, e.kids)
	return b.ToString()
}

func (e *Element) TypedValue() core.Sequence {
	return core.Singleton(core.NewAtomic(core.UntypedAtomicValue(e.StringValue())))
}

// writeStringValue implements the XDM string-value of a non-text node:
// the concatenation, in document order, of every descendant text
// node's value, skipping comments and processing instructions.
func writeStringValue(b *Text.StringBuilder, kids []core.Node) {
	for _, k := range kids {
		switch t := k.(type) {
		case *Text:
			b.Append(t.value)
		case *Element:
			writeStringValue(b, t.kids)
		}
	}
}

// Attribute is an attribute node. Attributes carry no sibling axis of
// their own (the attribute axis is unordered relative to other
// attributes in the data model); FollowingSiblings/PrecedingSiblings
// are inherited from nodeBase as nil.
type Attribute struct {
	nodeBase
	name  core.Name
	value string
}

func (a *Attribute) Kind() core.NodeKind { return core.NodeAttribute }
func (a *Attribute) NodeName() core.Name { return a.name }
func (a *Attribute) StringValue() string { return a.value }

func (a *Attribute) TypedValue() core.Sequence {
	return core.Singleton(core.NewAtomic(core.UntypedAtomicValue(a.value)))
}

// Namespace is a namespace node: prefix ("" for the default namespace)
// bound to a URI, exposed on the element that declares it.
type Namespace struct {
	nodeBase
	prefix string
	uri    string
}

func (n *Namespace) Kind() core.NodeKind { return core.NodeNamespace }
func (n *Namespace) NodeName() core.Name { return core.Name{Local: n.prefix} }
func (n *Namespace) StringValue() string { return n.uri }

func (n *Namespace) TypedValue() core.Sequence {
	return core.Singleton(core.NewAtomic(core.StringValue(n.uri)))
}

// Text is a text node.
type Text struct {
	nodeBase
	value string
}

func (t *Text) Kind() core.NodeKind { return core.NodeText }
func (t *Text) NodeName() core.Name { return core.Name{} }
func (t *Text) StringValue() string { return t.value }

func (t *Text) TypedValue() core.Sequence {
	return core.Singleton(core.NewAtomic(core.UntypedAtomicValue(t.value)))
}

// Comment is a comment node; per the data model its typed value is
// xs:string, not xs:untypedAtomic.
type Comment struct {
	nodeBase
	value string
}

func (c *Comment) Kind() core.NodeKind { return core.NodeComment }
func (c *Comment) NodeName() core.Name { return core.Name{} }
func (c *Comment) StringValue() string { return c.value }

func (c *Comment) TypedValue() core.Sequence {
	return core.Singleton(core.NewAtomic(core.StringValue(c.value)))
}

// ProcessingInstruction is a PI node; NodeName's local part is the PI
// target, StringValue is its data.
type ProcessingInstruction struct {
	nodeBase
	target string
	data   string
}

func (p *ProcessingInstruction) Kind() core.NodeKind { return core.NodeProcessingInstruction }
func (p *ProcessingInstruction) NodeName() core.Name { return core.Name{Local: p.target} }
func (p *ProcessingInstruction) StringValue() string { return p.data }

func (p *ProcessingInstruction) TypedValue() core.Sequence {
	return core.Singleton(core.NewAtomic(core.StringValue(p.data)))
}

func newElement(doc *Document, parent core.Node, name core.Name) *Element {
	e := &Element{name: name}
	e.self = e
	e.doc = doc
	e.parent = parent
	e.order = doc.nextOrder()
	return e
}

func newAttribute(doc *Document, parent core.Node, name core.Name, value string) *Attribute {
	a := &Attribute{name: name, value: value}
	a.self = a
	a.doc = doc
	a.parent = parent
	a.order = doc.nextOrder()
	return a
}

func newNamespace(doc *Document, parent core.Node, prefix, uri string) *Namespace {
	n := &Namespace{prefix: prefix, uri: uri}
	n.self = n
	n.doc = doc
	n.parent = parent
	n.order = doc.nextOrder()
	return n
}

func newText(doc *Document, parent core.Node, value string) *Text {
	t := &Text{value: value}
	t.self = t
	t.doc = doc
	t.parent = parent
	t.order = doc.nextOrder()
	return t
}

func newComment(doc *Document, parent core.Node, value string) *Comment {
	c := &Comment{value: value}
	c.self = c
	c.doc = doc
	c.parent = parent
	c.order = doc.nextOrder()
	return c
}

func newProcessingInstruction(doc *Document, parent core.Node, target, data string) *ProcessingInstruction {
	p := &ProcessingInstruction{target: target, data: data}
	p.self = p
	p.doc = doc
	p.parent = parent
	p.order = doc.nextOrder()
	return p
}
