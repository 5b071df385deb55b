package core

import (
	"strconv"
	"strings"

	"github.com/sderkacs/xpvm/xpath"
)

// nameScope resolves a source-level variable name (as written in an
// xpath.Expr) to the fresh, globally-unique IR variable name actually
// bound for it. Every Let/For/quantified/inline-function binding gets a
// fresh name from irBuilder.fresh rather than reusing the source
// spelling, so two unrelated bindings that happen to share a source
// name (shadowing, or sibling `for`s both using `$x`) never collide in
// core/lower.go's funcScope, which never un-declares a name once a
// binding introduces it.
type nameScope struct {
	parent *nameScope
	names  map[string]string
}

func newNameScope(parent *nameScope) *nameScope {
	return &nameScope{parent: parent, names: make(map[string]string)}
}

func (s *nameScope) resolve(name string) (string, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if ir, ok := cur.names[name]; ok {
			return ir, true
		}
	}
	return "", false
}

// irBuilder turns a parsed xpath.Expr into ANF IR, continuation-passing
// style: build(e, k) lowers e, let-binds its result to a fresh variable,
// and calls k with that variable's name to produce the rest of the
// chain, so every subexpression ends up named before being consumed.
type irBuilder struct {
	static *StaticContext
	source string
	tmp    int
	scope  *nameScope
}

// Build compiles a parsed XPath expression into the IR Lower consumes.
// source is the name recorded on every Span for diagnostics.
func Build(e xpath.Expr, static *StaticContext, source string) (IRNode, error) {
	b := &irBuilder{static: static, source: source, scope: newNameScope(nil)}
	return b.build(e, func(v string) (IRNode, error) {
		return NewReturn(NewVarRefAtom(v, Span{}), Span{}), nil
	})
}

// Compile parses src as an XPath expression and lowers it all the way
// to a ready-to-run Program against static.
func Compile(src string, static *StaticContext) (*Program, error) {
	ast, err := xpath.Parse(src)
	if err != nil {
		return nil, Errorf(ErrXPST0003, Span{Source: src}, "%s", err)
	}
	ir, err := Build(ast, static, src)
	if err != nil {
		return nil, err
	}
	return Lower(static, ir)
}

func (b *irBuilder) span(p xpath.Pos) Span {
	return Span{Source: b.source, Start: p.Start, End: p.End}
}

func (b *irBuilder) fresh(prefix string) string {
	b.tmp++
	return prefix + strconv.Itoa(b.tmp)
}

func (b *irBuilder) pushScope() { b.scope = newNameScope(b.scope) }
func (b *irBuilder) popScope()  { b.scope = b.scope.parent }
func (b *irBuilder) declare(src string) string {
	v := b.fresh("v")
	b.scope.names[src] = v
	return v
}

// bind let-binds atom under a fresh temporary and continues with k.
func (b *irBuilder) bind(atom Atom, span Span, k func(string) (IRNode, error)) (IRNode, error) {
	v := b.fresh("t")
	body, err := k(v)
	if err != nil {
		return nil, err
	}
	return NewLet(v, atom, body, span), nil
}

// buildAll threads build across a slice of expressions in order,
// accumulating their bound variable names before calling k; the common
// shape behind argument lists, sequence items, and array members.
func (b *irBuilder) buildAll(exprs []xpath.Expr, k func([]string) (IRNode, error)) (IRNode, error) {
	var rec func(i int, acc []string) (IRNode, error)
	rec = func(i int, acc []string) (IRNode, error) {
		if i == len(exprs) {
			return k(acc)
		}
		return b.build(exprs[i], func(v string) (IRNode, error) {
			return rec(i+1, append(acc, v))
		})
	}
	return rec(0, make([]string, 0, len(exprs)))
}

// build is the CPS workhorse: lower e, and invoke k with the name of
// the IR variable now holding its value.
func (b *irBuilder) build(e xpath.Expr, k func(string) (IRNode, error)) (IRNode, error) {
	span := b.span(xpath.ExprPos(e))

	// FilterExpr ("source[predicate]") is an unexported xpath AST type,
	// so it can never match a case in the type-switch below; detect it
	// through the accessor instead.
	if src, pred, ok := xpath.FilterParts(e); ok {
		return b.buildFilter(src, pred, span, k)
	}

	switch n := e.(type) {
	case *xpath.SequenceExpr:
		return b.buildAll(n.Items, func(vars []string) (IRNode, error) {
			return b.bind(&SequenceConstructAtom{Items: vars}, span, k)
		})

	case *xpath.Literal:
		item, err := b.literalItem(n)
		if err != nil {
			return nil, err
		}
		return b.bind(NewConstAtomItem(item), span, k)

	case *xpath.VarRef:
		name := n.Name.Local
		if n.Name.Prefix != "" {
			name = n.Name.Prefix + ":" + n.Name.Local
		}
		ir, ok := b.scope.resolve(name)
		if !ok {
			return nil, Errorf(ErrXPST0008, span, "unbound variable $%s", name)
		}
		return k(ir)

	case *xpath.ContextItemExpr:
		return b.bind(NewContextItemAtom(span), span, k)

	case *xpath.ParenExpr:
		if n.Inner == nil {
			return b.bind(&SequenceConstructAtom{}, span, k)
		}
		return b.build(n.Inner, k)

	case *xpath.ForExpr:
		return b.buildForBindings(n.Bindings, n.Return, k)

	case *xpath.LetExpr:
		return b.buildLetBindings(n.Bindings, n.Return, k)

	case *xpath.QuantifiedExpr:
		return b.buildQuantified(n, k)

	case *xpath.IfExpr:
		return b.build(n.Cond, func(cv string) (IRNode, error) {
			thenBody, err := b.build(n.Then, func(v string) (IRNode, error) {
				return NewReturn(NewVarRefAtom(v, span), span), nil
			})
			if err != nil {
				return nil, err
			}
			elseBody, err := b.build(n.Else, func(v string) (IRNode, error) {
				return NewReturn(NewVarRefAtom(v, span), span), nil
			})
			if err != nil {
				return nil, err
			}
			return b.bind(&IfAtom{Cond: cv, Then: thenBody, Else: elseBody}, span, k)
		})

	case *xpath.BinaryExpr:
		return b.buildBinary(n, span, k)

	case *xpath.UnaryExpr:
		return b.build(n.Operand, func(v string) (IRNode, error) {
			kind := UnaryNeg
			if n.Op == "not" {
				kind = UnaryNot
			}
			return b.bind(&UnaryOpAtom{Kind: kind, Operand: v}, span, k)
		})

	case *xpath.InstanceOfExpr:
		return b.buildInstanceOf(n, span, k)

	case *xpath.FunctionCallExpr:
		return b.buildAll(n.Args, func(vars []string) (IRNode, error) {
			name, err := b.resolveFunctionName(n.Name, span)
			if err != nil {
				return nil, err
			}
			return b.bind(&CallAtom{Name: name.Local, URI: name.URI, Args: vars}, span, k)
		})

	case *xpath.NamedFunctionRefExpr:
		name, err := b.resolveFunctionName(n.Name, span)
		if err != nil {
			return nil, err
		}
		return b.bind(&NamedFuncRefAtom{Name: name.Local, URI: name.URI, Arity: n.Arity}, span, k)

	case *xpath.InlineFunctionExpr:
		return b.buildInlineFunc(n, span, k)

	case *xpath.ArgumentListExpr:
		return b.buildArgumentList(n, span, k)

	case *xpath.MapConstructorExpr:
		return b.buildMapConstructor(n, span, k)

	case *xpath.ArrayConstructorExpr:
		return b.buildAll(n.Members, func(vars []string) (IRNode, error) {
			return b.bind(&ArrayConstructAtom{Members: vars}, span, k)
		})

	case *xpath.LookupExpr:
		return b.buildLookup(n, span, k)

	case *xpath.PathExpr:
		return b.buildPath(n, span, k)

	case *xpath.StepExpr:
		// A bare StepExpr reached directly (rather than through a
		// PathExpr) is a single-step relative path rooted at the
		// context item, e.g. "@id" or "child::x" used on its own.
		return b.buildPath(&xpath.PathExpr{Steps: []xpath.Expr{n}}, span, k)
	}

	return nil, Errorf(ErrXPST0003, span, "irbuild: unsupported expression %T", e)
}

// buildFilter lowers a FilterExpr ("source[predicate]") to a FilterAtom:
// source is built once, predicate is built in a sub-scope with "." bound
// to the reserved IR name ".", matching buildPredicates' convention for
// path-step predicates so lowerFilter and lowerPathStep share the same
// capture-slot analysis.
func (b *irBuilder) buildFilter(source, predicate xpath.Expr, span Span, k func(string) (IRNode, error)) (IRNode, error) {
	return b.build(source, func(srcVar string) (IRNode, error) {
		b.pushScope()
		b.scope.names["."] = "."
		body, err := b.build(predicate, func(v string) (IRNode, error) {
			pspan := b.span(xpath.ExprPos(predicate))
			return NewReturn(NewVarRefAtom(v, pspan), pspan), nil
		})
		b.popScope()
		if err != nil {
			return nil, err
		}
		return b.bind(&FilterAtom{Source: srcVar, Predicate: body}, span, k)
	})
}

// --- literals ---

func (b *irBuilder) literalItem(n *xpath.Literal) (Item, error) {
	if n.IsString {
		return NewAtomic(StringValue(n.String)), nil
	}
	s := n.Number
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, Errorf(ErrFOCA0002, Span{}, "invalid numeric literal %q", s)
		}
		return NewAtomic(DoubleValue(f)), nil
	}
	if strings.Contains(s, ".") {
		d, err := DecimalValueParseString(s)
		if err != nil {
			return nil, Errorf(ErrFOCA0002, Span{}, "invalid numeric literal %q", s)
		}
		return NewAtomic(d), nil
	}
	iv, err := IntegerValueParse(s)
	if err != nil {
		return nil, Errorf(ErrFOCA0002, Span{}, "invalid numeric literal %q", s)
	}
	return NewAtomic(iv), nil
}

// NewConstAtomItem is a thin alias kept next to literalItem so every
// ConstAtom construction in this file reads the same way regardless of
// whether the item came from a parsed literal or was synthesized.
func NewConstAtomItem(it Item) *ConstAtom { return NewConstAtom(it, Span{}) }

// --- for / let / quantified ---

func (b *irBuilder) buildForBindings(bindings []xpath.ForBinding, ret xpath.Expr, k func(string) (IRNode, error)) (IRNode, error) {
	if len(bindings) == 0 {
		return b.build(ret, k)
	}
	bind := bindings[0]
	span := b.span(xpath.ExprPos(bind.In))
	return b.build(bind.In, func(seqVar string) (IRNode, error) {
		b.pushScope()
		irVar := b.declare(bind.Var)
		innerBody, err := b.buildForBindings(bindings[1:], ret, func(v string) (IRNode, error) {
			return NewReturn(NewVarRefAtom(v, span), span), nil
		})
		b.popScope()
		if err != nil {
			return nil, err
		}
		return b.bind(&ForAtom{Var: irVar, Seq: seqVar, Body: innerBody}, span, k)
	})
}

func (b *irBuilder) buildLetBindings(bindings []xpath.LetBinding, ret xpath.Expr, k func(string) (IRNode, error)) (IRNode, error) {
	if len(bindings) == 0 {
		return b.build(ret, k)
	}
	bind := bindings[0]
	return b.build(bind.Value, func(valVar string) (IRNode, error) {
		b.pushScope()
		irVar := b.declare(bind.Var)
		rest, err := b.buildLetBindings(bindings[1:], ret, k)
		b.popScope()
		if err != nil {
			return nil, err
		}
		// bind.Value is already let-bound to valVar; alias irVar to it so
		// later references resolve without re-evaluating the expression.
		valSpan := b.span(xpath.ExprPos(bind.Value))
		return NewLet(irVar, NewVarRefAtom(valVar, valSpan), rest, valSpan), nil
	})
}

func (b *irBuilder) buildQuantified(n *xpath.QuantifiedExpr, k func(string) (IRNode, error)) (IRNode, error) {
	span := b.span(xpath.ExprPos(n))
	return b.buildQuantifiedBindings(n.Kind, n.Bindings, n.Test, span, k)
}

func (b *irBuilder) buildQuantifiedBindings(kind xpath.QuantKind, bindings []xpath.ForBinding, test xpath.Expr, span Span, k func(string) (IRNode, error)) (IRNode, error) {
	if len(bindings) == 0 {
		return b.build(test, func(v string) (IRNode, error) {
			return NewReturn(NewVarRefAtom(v, span), span), nil
		})
	}
	bind := bindings[0]
	return b.build(bind.In, func(seqVar string) (IRNode, error) {
		b.pushScope()
		irVar := b.declare(bind.Var)
		innerBody, err := b.buildQuantifiedBindings(kind, bindings[1:], test, span, func(v string) (IRNode, error) {
			return NewReturn(NewVarRefAtom(v, span), span), nil
		})
		b.popScope()
		if err != nil {
			return nil, err
		}
		qk := QuantSome
		if kind == xpath.QuantEvery {
			qk = QuantEvery
		}
		return b.bind(&QuantifiedAtom{Kind: qk, Var: irVar, Seq: seqVar, Test: innerBody}, span, k)
	})
}

// --- binary operators ---

func (b *irBuilder) buildBinary(n *xpath.BinaryExpr, span Span, k func(string) (IRNode, error)) (IRNode, error) {
	return b.build(n.Left, func(lv string) (IRNode, error) {
		return b.build(n.Right, func(rv string) (IRNode, error) {
			kind, ok := binOpKind(n.Op)
			if !ok {
				return nil, Errorf(ErrXPST0003, span, "unknown operator %q", n.Op)
			}
			return b.bind(&BinOpAtom{Kind: kind, Op: n.Op, Left: lv, Right: rv}, span, k)
		})
	})
}

func binOpKind(op string) (BinOpKind, bool) {
	switch op {
	case "+", "-", "*", "div", "idiv", "mod":
		return BinArith, true
	case "eq", "ne", "lt", "le", "gt", "ge":
		return BinValueCompare, true
	case "=", "!=", "<", "<=", ">", ">=":
		return BinGeneralCompare, true
	case "is", "<<", ">>":
		return BinNodeCompare, true
	case "||":
		return BinStringConcat, true
	case "to":
		return BinRange, true
	case "|", "union":
		return BinUnion, true
	case "intersect":
		return BinIntersect, true
	case "except":
		return BinExcept, true
	case "and":
		return BinAnd, true
	case "or":
		return BinOr, true
	}
	return 0, false
}

// --- instance of / treat as / castable as / cast as ---

func (b *irBuilder) buildInstanceOf(n *xpath.InstanceOfExpr, span Span, k func(string) (IRNode, error)) (IRNode, error) {
	return b.build(n.Operand, func(v string) (IRNode, error) {
		var st SequenceType
		var err error
		if n.IsSingle {
			st, err = b.singleType(n.Single)
		} else {
			st, err = b.sequenceType(n.Type)
		}
		if err != nil {
			return nil, err
		}
		var kind ConversionKind
		switch n.Kind {
		case xpath.ConvInstanceOf:
			kind = ConvInstanceOf
		case xpath.ConvTreatAs:
			kind = ConvTreatAs
		case xpath.ConvCastableAs:
			kind = ConvCastableAs
		case xpath.ConvCastAs:
			kind = ConvCastAs
		}
		return b.bind(&ConvertAtom{Kind: kind, Operand: v, Target: st}, span, k)
	})
}

func (b *irBuilder) singleType(st xpath.SingleType) (SequenceType, error) {
	at, err := b.resolveAtomicType(st.Name)
	if err != nil {
		return SequenceType{}, err
	}
	occ := OccurExactlyOne
	if st.Optional {
		occ = OccurOptional
	}
	return AtomicSequenceType(at, occ), nil
}

func (b *irBuilder) sequenceType(n xpath.SequenceTypeNode) (SequenceType, error) {
	if n.EmptySequence {
		return SequenceType{Item: ItemType{Kind: AtomicKindPair{ItemKind: ItemKindEmptySequence}}, Occurrence: OccurExactlyOne}, nil
	}
	occ := OccurExactlyOne
	switch n.Occurrence {
	case xpath.OccurOpt:
		occ = OccurOptional
	case xpath.OccurStar:
		occ = OccurZeroOrMore
	case xpath.OccurPlus:
		occ = OccurOneOrMore
	}
	it, err := b.itemType(n.ItemTest)
	if err != nil {
		return SequenceType{}, err
	}
	return SequenceType{Item: it, Occurrence: occ}, nil
}

func (b *irBuilder) itemType(n xpath.ItemTestExpr) (ItemType, error) {
	if n.AnyItem {
		return ItemType{Kind: AtomicKindPair{ItemKind: ItemKindAny}}, nil
	}
	if n.AtomicName != nil {
		at, err := b.resolveAtomicType(*n.AtomicName)
		if err != nil {
			return ItemType{}, err
		}
		return ItemType{Kind: AtomicKindPair{ItemKind: ItemKindAtomic, Atomic: at}}, nil
	}
	if n.Kind != nil {
		nk, name := nodeTestKindOf(*n.Kind)
		var namePtr *Name
		if n.Kind.Name != nil {
			qn, err := b.resolveElementName(*n.Kind.Name)
			if err != nil {
				return ItemType{}, err
			}
			namePtr = &qn
		}
		_ = name
		if n.Kind.Kind == xpath.KindAnyNode {
			return ItemType{Kind: AtomicKindPair{ItemKind: ItemKindNode}}, nil
		}
		return ItemType{Kind: AtomicKindPair{ItemKind: ItemKindNode, NodeKind: nk, NodeName: namePtr}}, nil
	}
	return ItemType{Kind: AtomicKindPair{ItemKind: ItemKindAny}}, nil
}

func nodeTestKindOf(k xpath.KindTestExpr) (NodeKind, string) {
	switch k.Kind {
	case xpath.KindDocument:
		return NodeDocument, "document-node"
	case xpath.KindElement:
		return NodeElement, "element"
	case xpath.KindAttribute:
		return NodeAttribute, "attribute"
	case xpath.KindText:
		return NodeText, "text"
	case xpath.KindComment:
		return NodeComment, "comment"
	case xpath.KindProcessingInstruction:
		return NodeProcessingInstruction, "processing-instruction"
	case xpath.KindNamespace:
		return NodeNamespace, "namespace"
	}
	return NodeElement, "node"
}

// --- function/QName resolution ---

// atomicTypeByLocal is the reverse of atomicTypeNames, keyed by the bare
// local name (without the "xs:" prefix every entry carries).
var atomicTypeByLocal = func() map[string]AtomicType {
	m := make(map[string]AtomicType, len(atomicTypeNames))
	for t, name := range atomicTypeNames {
		m[strings.TrimPrefix(name, "xs:")] = t
	}
	return m
}()

func (b *irBuilder) resolveAtomicType(q xpath.QName) (AtomicType, error) {
	at, ok := atomicTypeByLocal[q.Local]
	if !ok {
		return 0, Errorf(ErrXPST0080, Span{}, "unknown atomic type %s", q.Local)
	}
	return at, nil
}

func (b *irBuilder) resolveFunctionName(q xpath.QName, span Span) (Name, error) {
	uri := b.static.DefaultFunctionNS
	if q.Prefix != "" {
		var ok bool
		uri, ok = b.static.Namespaces.Resolve(q.Prefix)
		if !ok {
			return Name{}, Errorf(ErrXPST0081, span, "unresolvable namespace prefix %q", q.Prefix)
		}
	}
	return b.static.Names.Intern(uri, q.Local, q.Prefix), nil
}

func (b *irBuilder) resolveElementName(q xpath.QName) (Name, error) {
	uri := b.static.DefaultElementNS
	if q.Prefix != "" {
		var ok bool
		uri, ok = b.static.Namespaces.Resolve(q.Prefix)
		if !ok {
			return Name{}, Errorf(ErrXPST0081, Span{}, "unresolvable namespace prefix %q", q.Prefix)
		}
	}
	return b.static.Names.Intern(uri, q.Local, q.Prefix), nil
}

// --- inline functions, dynamic calls, partial application ---

func (b *irBuilder) buildInlineFunc(n *xpath.InlineFunctionExpr, span Span, k func(string) (IRNode, error)) (IRNode, error) {
	b.pushScope()
	params := make([]string, len(n.Params))
	paramTypes := make([]SequenceType, len(n.Params))
	for i, p := range n.Params {
		params[i] = b.declare(p.Name)
		if p.Type != nil {
			st, err := b.sequenceType(*p.Type)
			if err != nil {
				b.popScope()
				return nil, err
			}
			paramTypes[i] = st
		} else {
			paramTypes[i] = AnyItemSequenceType(OccurZeroOrMore)
		}
	}
	body, err := b.build(n.Body, func(v string) (IRNode, error) {
		return NewReturn(NewVarRefAtom(v, span), span), nil
	})
	b.popScope()
	if err != nil {
		return nil, err
	}
	ret := AnyItemSequenceType(OccurZeroOrMore)
	if n.Return != nil {
		ret, err = b.sequenceType(*n.Return)
		if err != nil {
			return nil, err
		}
	}
	atom := &InlineFuncAtom{Params: params, ParamTypes: paramTypes, Return: ret, Body: body}
	// FreeVars is computed as a side effect of freeVarsOf walking Body,
	// mutating atom.FreeVars directly; see core/irfreevars.go. The atom
	// is wrapped in a Return because freeVarsOf only visits atoms held
	// by a Let or Return node.
	freeVarsOf(NewReturn(atom, span))
	return b.bind(atom, span, k)
}

func (b *irBuilder) buildArgumentList(n *xpath.ArgumentListExpr, span Span, k func(string) (IRNode, error)) (IRNode, error) {
	return b.build(n.Target, func(fv string) (IRNode, error) {
		hasHole := false
		for _, a := range n.Args {
			if a.IsHole {
				hasHole = true
				break
			}
		}
		if !hasHole {
			exprs := make([]xpath.Expr, len(n.Args))
			for i, a := range n.Args {
				exprs[i] = a.Expr
			}
			return b.buildAll(exprs, func(vars []string) (IRNode, error) {
				return b.bind(&DynamicCallAtom{Func: fv, Args: vars}, span, k)
			})
		}
		return b.buildPartialArgs(n.Args, 0, fv, span, nil, k)
	})
}

func (b *irBuilder) buildPartialArgs(args []xpath.PartialArg, i int, fv string, span Span, acc []*string, k func(string) (IRNode, error)) (IRNode, error) {
	if i == len(args) {
		return b.bind(&PartialApplyAtom{Func: fv, Args: acc}, span, k)
	}
	if args[i].IsHole {
		return b.buildPartialArgs(args, i+1, fv, span, append(acc, nil), k)
	}
	return b.build(args[i].Expr, func(v string) (IRNode, error) {
		return b.buildPartialArgs(args, i+1, fv, span, append(acc, &v), k)
	})
}

// --- maps, arrays, lookup ---

func (b *irBuilder) buildMapConstructor(n *xpath.MapConstructorExpr, span Span, k func(string) (IRNode, error)) (IRNode, error) {
	keys := make([]xpath.Expr, len(n.Entries))
	for i, e := range n.Entries {
		keys[i] = e.Key
	}
	return b.buildAll(keys, func(keyVars []string) (IRNode, error) {
		values := make([]xpath.Expr, len(n.Entries))
		for i, e := range n.Entries {
			values[i] = e.Value
		}
		return b.buildAll(values, func(valVars []string) (IRNode, error) {
			return b.bind(&MapConstructAtom{Keys: keyVars, Values: valVars}, span, k)
		})
	})
}

func (b *irBuilder) buildLookup(n *xpath.LookupExpr, span Span, k func(string) (IRNode, error)) (IRNode, error) {
	return b.build(n.Target, func(tv string) (IRNode, error) {
		if n.Star {
			// "?*" (all values): desugar to a call against the
			// map:/array: stdlib so the lowerer doesn't need a dedicated
			// wildcard-lookup opcode.
			return b.bind(&CallAtom{Name: "lookup-wildcard", URI: NSLocal, Args: []string{tv}}, span, k)
		}
		return b.build(n.Key, func(kv string) (IRNode, error) {
			// The "?" lookup operator is defined uniformly over maps and
			// arrays; since MapLookupAtom/ArrayLookupAtom commit to one
			// or the other statically and nothing upstream of here knows
			// which, route through a small runtime-dispatching stdlib
			// function instead (see registerLocalFunctions).
			return b.bind(&CallAtom{Name: "lookup", URI: NSLocal, Args: []string{tv, kv}}, span, k)
		})
	})
}

// --- path expressions ---

func (b *irBuilder) buildPath(n *xpath.PathExpr, span Span, k func(string) (IRNode, error)) (IRNode, error) {
	return b.buildPathStart(n, span, k)
}

func (b *irBuilder) buildPathStart(n *xpath.PathExpr, span Span, k func(string) (IRNode, error)) (IRNode, error) {
	var seed Atom
	if n.Rooted {
		seed = &CallAtom{Name: "root", URI: NSFn, Args: nil}
	} else {
		seed = NewContextItemAtom(span)
	}
	return b.bind(seed, span, func(startVar string) (IRNode, error) {
		cur := startVar
		return b.buildSteps(n, 0, cur, span, k)
	})
}

func (b *irBuilder) buildSteps(n *xpath.PathExpr, i int, cur string, span Span, k func(string) (IRNode, error)) (IRNode, error) {
	if i == len(n.Steps) {
		return k(cur)
	}
	doubleSlash := i < len(n.DoubleSlash) && n.DoubleSlash[i]
	if doubleSlash {
		return b.bind(&PathStepAtom{Context: cur, Axis: AxisDescendantOrSelf, TestKind: ItemKindAny}, span, func(dsVar string) (IRNode, error) {
			return b.buildOneStep(n.Steps[i], dsVar, span, func(v string) (IRNode, error) {
				return b.buildSteps(n, i+1, v, span, k)
			})
		})
	}
	return b.buildOneStep(n.Steps[i], cur, span, func(v string) (IRNode, error) {
		return b.buildSteps(n, i+1, v, span, k)
	})
}

// buildOneStep lowers a single path step, which may be a genuine
// StepExpr (axis::test[predicates]) or, for the first position in a
// PathExpr, any PostfixExpr-shaped primary expression (the parser
// allows e.g. "$x/a" where "$x" is not a StepExpr at all).
func (b *irBuilder) buildOneStep(e xpath.Expr, cur string, span Span, k func(string) (IRNode, error)) (IRNode, error) {
	step, ok := e.(*xpath.StepExpr)
	if !ok {
		// A non-step first item: evaluate it (it does not consume cur as
		// an axis context — it replaces the path's start value entirely,
		// e.g. "$seq/a" starts from $seq), ignoring cur.
		return b.build(e, k)
	}

	axis := coreAxisOf(step.Axis)
	testKind, testNode, testName, err := b.nodeTest(step.Test, axis)
	if err != nil {
		return nil, err
	}

	preds, err := b.buildPredicates(step.Predicates)
	if err != nil {
		return nil, err
	}

	return b.bind(&PathStepAtom{
		Context:    cur,
		Axis:       axis,
		TestKind:   testKind,
		TestName:   testName,
		TestNode:   testNode,
		Predicates: preds,
	}, span, k)
}

// buildPredicates lowers each predicate to its own IR chain, in a
// nameScope where "." resolves to the reserved IR name ".", matching
// core/lower.go's lowerPathStep, which declares "." at the predicate
// function's slot 0.
func (b *irBuilder) buildPredicates(preds []xpath.Expr) ([]IRNode, error) {
	out := make([]IRNode, 0, len(preds))
	for _, p := range preds {
		b.pushScope()
		b.scope.names["."] = "."
		body, err := b.build(p, func(v string) (IRNode, error) {
			span := b.span(xpath.ExprPos(p))
			return NewReturn(NewVarRefAtom(v, span), span), nil
		})
		b.popScope()
		if err != nil {
			return nil, err
		}
		out = append(out, body)
	}
	return out, nil
}

func coreAxisOf(a xpath.Axis) Axis {
	switch a {
	case xpath.AxisChild:
		return AxisChild
	case xpath.AxisDescendant:
		return AxisDescendant
	case xpath.AxisAttribute:
		return AxisAttribute
	case xpath.AxisSelf:
		return AxisSelf
	case xpath.AxisDescendantOrSelf:
		return AxisDescendantOrSelf
	case xpath.AxisFollowingSibling:
		return AxisFollowingSibling
	case xpath.AxisFollowing:
		return AxisFollowing
	case xpath.AxisNamespace:
		return AxisNamespace
	case xpath.AxisParent:
		return AxisParent
	case xpath.AxisAncestor:
		return AxisAncestor
	case xpath.AxisPrecedingSibling:
		return AxisPrecedingSibling
	case xpath.AxisPreceding:
		return AxisPreceding
	case xpath.AxisAncestorOrSelf:
		return AxisAncestorOrSelf
	}
	return AxisChild
}

// principalNodeKind is the node kind a bare name test or wildcard "*"
// implies on a given axis: element for child/descendant-like axes,
// attribute for the attribute axis, namespace for the namespace axis.
func principalNodeKind(axis Axis) NodeKind {
	switch axis {
	case AxisAttribute:
		return NodeAttribute
	case AxisNamespace:
		return NodeNamespace
	}
	return NodeElement
}

// nodeTest lowers a step's ItemTestExpr to the (TestKind, TestNode,
// TestName) triple nodeTestMatches expects. A true wildcard (item(),
// node(), "*", "prefix:*") carries ItemKindAny so it matches any node
// regardless of kind or name; a genuine kind test (element(), etc.) or
// a specific name test instead carries ItemKindNode with a concrete
// NodeKind, defaulting an unqualified name test's implied kind to
// axis's principal node kind.
func (b *irBuilder) nodeTest(t xpath.ItemTestExpr, axis Axis) (ItemTypeKind, NodeKind, *Name, error) {
	if t.AnyItem {
		return ItemKindAny, 0, nil, nil
	}
	if t.Kind != nil {
		if t.Kind.Kind == xpath.KindAnyNode {
			return ItemKindAny, 0, nil, nil
		}
		nk, _ := nodeTestKindOf(*t.Kind)
		var namePtr *Name
		if t.Kind.Name != nil {
			name, err := b.resolveElementName(*t.Kind.Name)
			if err != nil {
				return 0, 0, nil, err
			}
			namePtr = &name
		}
		return ItemKindNode, nk, namePtr, nil
	}
	if t.AtomicName != nil {
		if t.AtomicName.IsStar || t.AtomicName.StarOnly {
			return ItemKindAny, 0, nil, nil
		}
		// A bare (non-wildcard) name test: "child::foo", "@foo", "foo".
		name, err := b.resolveElementName(*t.AtomicName)
		if err != nil {
			return 0, 0, nil, err
		}
		return ItemKindNode, principalNodeKind(axis), &name, nil
	}
	return ItemKindAny, 0, nil, nil
}
