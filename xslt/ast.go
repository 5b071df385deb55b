// Package xslt builds a declaration list (named templates, their
// sequence constructors) from the XSLT element tree, consuming
// xmltree nodes and keeping every match/select/test attribute as XPath
// source text, which xslt/eval.go compiles when it runs. It implements the minimal instruction
// set named in the surrounding specification: xsl:template,
// xsl:value-of, xsl:for-each, xsl:if, xsl:choose/xsl:when/
// xsl:otherwise, xsl:apply-templates, xsl:call-template,
// xsl:variable, xsl:sequence.
package xslt

import (
	"fmt"

	"github.com/sderkacs/xpvm/core"
	"github.com/sderkacs/xpvm/xmltree"
)

// NSXSL is the XSLT instruction namespace.
const NSXSL = core.NSXSL

// Instr is one sequence-constructor instruction.
type Instr interface{ isInstr() }

// ValueOf is xsl:value-of: the string value of evaluating Select,
// written to the result as a single text node's worth of content.
type ValueOf struct{ Select string }

// ForEach is xsl:for-each: Body is run once per item of Select, with
// that item as the context item.
type ForEach struct {
	Select string
	Body   []Instr
}

// If is xsl:if: Body runs iff Test's effective boolean value is true.
type If struct {
	Test string
	Body []Instr
}

// When is one xsl:when branch of a Choose.
type When struct {
	Test string
	Body []Instr
}

// Choose is xsl:choose: the first When whose Test is true runs; if
// none match and Otherwise is non-nil, it runs instead.
type Choose struct {
	Whens     []When
	Otherwise []Instr
}

// ApplyTemplates is xsl:apply-templates: Select (default
// "child::node()") is evaluated against the current context item, and
// the best-matching template for Mode is invoked on each result node
// in turn.
type ApplyTemplates struct {
	Select string
	Mode   string
}

// CallTemplate is xsl:call-template: invoke the named template's body
// directly, without changing the context item.
type CallTemplate struct{ Name string }

// Variable is xsl:variable: bind Name either to Select's value (if
// present) or to the sequence produced by running Body, visible to
// every instruction lexically after it in the same sequence
// constructor.
type Variable struct {
	Name   string
	Select string
	Body   []Instr
}

// Sequence is xsl:sequence: Select's value is appended to the result
// as-is (unlike xsl:value-of, which atomizes to a single string).
type Sequence struct{ Select string }

func (ValueOf) isInstr()        {}
func (ForEach) isInstr()        {}
func (If) isInstr()             {}
func (Choose) isInstr()         {}
func (ApplyTemplates) isInstr() {}
func (CallTemplate) isInstr()   {}
func (Variable) isInstr()       {}
func (Sequence) isInstr()       {}

// Template is one xsl:template declaration: either a match-pattern
// template (applied by xsl:apply-templates) or a named template
// (invoked by xsl:call-template), or both.
type Template struct {
	Match    string
	Name     string
	Mode     string
	Priority float64
	Body     []Instr
}

// Stylesheet is a parsed xsl:stylesheet/xsl:transform document: every
// top-level xsl:template, indexed both by declaration order (for
// priority/document-order tiebreaks) and by name.
type Stylesheet struct {
	Templates []*Template
	byName    map[string]*Template
}

// ByName looks up a named template.
func (ss *Stylesheet) ByName(name string) (*Template, bool) {
	t, ok := ss.byName[name]
	return t, ok
}

// Parse builds a Stylesheet from a parsed XSLT document. The document
// element must be xsl:stylesheet or xsl:transform (XSLT treats the
// names as synonyms); only direct-child xsl:template elements are
// recognized, matching the instruction set this package implements.
func Parse(doc *xmltree.Document) (*Stylesheet, error) {
	root, ok := doc.DocumentElement()
	if !ok {
		return nil, fmt.Errorf("xslt: empty document")
	}
	name := root.NodeName()
	if name.URI != NSXSL || (name.Local != "stylesheet" && name.Local != "transform") {
		return nil, fmt.Errorf("xslt: document element is %s, want xsl:stylesheet or xsl:transform", name)
	}

	ss := &Stylesheet{byName: make(map[string]*Template)}
	for _, k := range root.Children() {
		el, ok := k.(*xmltree.Element)
		if !ok || el.NodeName().URI != NSXSL || el.NodeName().Local != "template" {
			continue
		}
		t, err := parseTemplate(el)
		if err != nil {
			return nil, err
		}
		ss.Templates = append(ss.Templates, t)
		if t.Name != "" {
			ss.byName[t.Name] = t
		}
	}
	return ss, nil
}

func parseTemplate(el *xmltree.Element) (*Template, error) {
	t := &Template{}
	t.Match, _ = el.Attr("match")
	t.Name, _ = el.Attr("name")
	t.Mode, _ = el.Attr("mode")
	if p, ok := el.Attr("priority"); ok {
		fmt.Sscanf(p, "%g", &t.Priority)
	}
	if t.Match == "" && t.Name == "" {
		return nil, fmt.Errorf("xslt: xsl:template needs match or name")
	}
	body, err := parseBody(el.Children())
	if err != nil {
		return nil, err
	}
	t.Body = body
	return t, nil
}

// parseBody walks an element's children, turning every recognized
// xsl: child into an Instr; non-xsl:* children (literal result
// elements) and whitespace-only text nodes are skipped, since literal
// result element copying is outside this package's instruction set.
func parseBody(kids []core.Node) ([]Instr, error) {
	var out []Instr
	for _, k := range kids {
		el, ok := k.(*xmltree.Element)
		if !ok {
			// Non-element children (whitespace-only text between
			// instructions, comments, PIs) carry no instruction to
			// parse; a non-whitespace text child would be a literal
			// result-element text node, also outside this package's
			// instruction set.
			continue
		}
		if el.NodeName().URI != NSXSL {
			continue
		}
		instr, err := parseInstr(el)
		if err != nil {
			return nil, err
		}
		if instr != nil {
			out = append(out, instr)
		}
	}
	return out, nil
}

func parseInstr(el *xmltree.Element) (Instr, error) {
	switch el.NodeName().Local {
	case "value-of":
		sel, ok := el.Attr("select")
		if !ok {
			return nil, fmt.Errorf("xslt: xsl:value-of needs select")
		}
		return ValueOf{Select: sel}, nil

	case "sequence":
		sel, ok := el.Attr("select")
		if !ok {
			return nil, fmt.Errorf("xslt: xsl:sequence needs select")
		}
		return Sequence{Select: sel}, nil

	case "for-each":
		sel, ok := el.Attr("select")
		if !ok {
			return nil, fmt.Errorf("xslt: xsl:for-each needs select")
		}
		body, err := parseBody(el.Children())
		if err != nil {
			return nil, err
		}
		return ForEach{Select: sel, Body: body}, nil

	case "if":
		test, ok := el.Attr("test")
		if !ok {
			return nil, fmt.Errorf("xslt: xsl:if needs test")
		}
		body, err := parseBody(el.Children())
		if err != nil {
			return nil, err
		}
		return If{Test: test, Body: body}, nil

	case "choose":
		var ch Choose
		for _, k := range el.Children() {
			branch, ok := k.(*xmltree.Element)
			if !ok || branch.NodeName().URI != NSXSL {
				continue
			}
			switch branch.NodeName().Local {
			case "when":
				test, ok := branch.Attr("test")
				if !ok {
					return nil, fmt.Errorf("xslt: xsl:when needs test")
				}
				body, err := parseBody(branch.Children())
				if err != nil {
					return nil, err
				}
				ch.Whens = append(ch.Whens, When{Test: test, Body: body})
			case "otherwise":
				body, err := parseBody(branch.Children())
				if err != nil {
					return nil, err
				}
				ch.Otherwise = body
			}
		}
		return ch, nil

	case "apply-templates":
		sel, _ := el.Attr("select")
		mode, _ := el.Attr("mode")
		return ApplyTemplates{Select: sel, Mode: mode}, nil

	case "call-template":
		name, ok := el.Attr("name")
		if !ok {
			return nil, fmt.Errorf("xslt: xsl:call-template needs name")
		}
		return CallTemplate{Name: name}, nil

	case "variable":
		name, ok := el.Attr("name")
		if !ok {
			return nil, fmt.Errorf("xslt: xsl:variable needs name")
		}
		sel, hasSel := el.Attr("select")
		v := Variable{Name: name}
		if hasSel {
			v.Select = sel
			return v, nil
		}
		body, err := parseBody(el.Children())
		if err != nil {
			return nil, err
		}
		v.Body = body
		return v, nil

	default:
		// An unrecognized xsl: instruction is a structural error under
		// strict XSLT processing, but this engine only implements the
		// instruction set named above; anything else is silently
		// skipped rather than rejecting the whole stylesheet.
		return nil, nil
	}
}
