package core

import (
	"math"
	"strings"
)

// registerNodeFunctions binds the fn: functions that inspect node
// identity and position (root, local-name, namespace-uri, name, lang),
// grounded on the Node interface in core/values.go the same way
// core/lower.go's path-step lowering walks Parent/Children rather than
// a separate tree-walking package.
func registerNodeFunctions(r *FunctionRegistry) {
	nodeArg := AnyItemSequenceType(OccurOptional)

	reg(r, "root", NSFn, nil, nodeArg, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		return rootOf(ctx.ContextItem)
	})
	reg(r, "root", NSFn, params(nodeArg), nodeArg, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		if args[0].IsEmpty() {
			return EmptySequence(), nil
		}
		return rootOf(args[0][0])
	})

	reg(r, "local-name", NSFn, nil, stringReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		return localNameOf(ctx.ContextItem)
	})
	reg(r, "local-name", NSFn, params(nodeArg), stringReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		if args[0].IsEmpty() {
			return Singleton(NewAtomic(StringValue(""))), nil
		}
		return localNameOf(args[0][0])
	})

	reg(r, "namespace-uri", NSFn, nil, AtomicSequenceType(TAnyURI, OccurExactlyOne), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		return namespaceURIOf(ctx.ContextItem)
	})
	reg(r, "namespace-uri", NSFn, params(nodeArg), AtomicSequenceType(TAnyURI, OccurExactlyOne), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		if args[0].IsEmpty() {
			return Singleton(NewAtomic(AnyURIValue(""))), nil
		}
		return namespaceURIOf(args[0][0])
	})

	reg(r, "name", NSFn, nil, stringReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		return nameOf(ctx.ContextItem)
	})
	reg(r, "name", NSFn, params(nodeArg), stringReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		if args[0].IsEmpty() {
			return Singleton(NewAtomic(StringValue(""))), nil
		}
		return nameOf(args[0][0])
	})

	reg(r, "number", NSFn, nil, AtomicSequenceType(TDouble, OccurExactlyOne), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		return Singleton(NewAtomic(numberOf(ctx.ContextItem))), nil
	})
	reg(r, "number", NSFn, params(AnyItemSequenceType(OccurOptional)), AtomicSequenceType(TDouble, OccurExactlyOne), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		if args[0].IsEmpty() {
			return Singleton(NewAtomic(DoubleValue(0))), nil
		}
		return Singleton(NewAtomic(numberOf(args[0][0]))), nil
	})

	reg(r, "lang", NSFn, params(optString()), booleanReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		return Singleton(NewAtomic(BooleanValue(langMatches(ctx.ContextItem, mustString(args, 0))))), nil
	})
	reg(r, "lang", NSFn, params(optString(), nodeArg), booleanReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		var n Item
		if !args[1].IsEmpty() {
			n = args[1][0]
		}
		return Singleton(NewAtomic(BooleanValue(langMatches(n, mustString(args, 0))))), nil
	})
}

func rootOf(it Item) (Sequence, error) {
	n, ok := it.(Node)
	if !ok {
		return nil, Errorf(ErrXPTY0004, Span{}, "fn:root() argument is not a node")
	}
	for {
		p, ok := n.Parent()
		if !ok {
			return Singleton(n), nil
		}
		n = p
	}
}

func localNameOf(it Item) (Sequence, error) {
	n, ok := it.(Node)
	if !ok {
		return nil, Errorf(ErrXPTY0004, Span{}, "fn:local-name() argument is not a node")
	}
	return Singleton(NewAtomic(StringValue(n.NodeName().Local))), nil
}

func namespaceURIOf(it Item) (Sequence, error) {
	n, ok := it.(Node)
	if !ok {
		return nil, Errorf(ErrXPTY0004, Span{}, "fn:namespace-uri() argument is not a node")
	}
	return Singleton(NewAtomic(AnyURIValue(n.NodeName().URI))), nil
}

func nameOf(it Item) (Sequence, error) {
	n, ok := it.(Node)
	if !ok {
		return nil, Errorf(ErrXPTY0004, Span{}, "fn:name() argument is not a node")
	}
	return Singleton(NewAtomic(StringValue(n.NodeName().String()))), nil
}

// numberOf implements fn:number's lenient coercion: a failed cast to
// xs:double yields NaN rather than an error.
func numberOf(it Item) AtomicValue {
	if it == nil {
		return DoubleValue(0)
	}
	a, ok := it.(Atomic)
	if !ok {
		if n, ok := it.(Node); ok {
			a = Atomic{Value: UntypedAtomicValue(n.StringValue())}
		} else {
			return DoubleValue(math.NaN())
		}
	}
	f, err := atomicToFloat64(a.Value, a.Value.String(), Span{})
	if err != nil {
		return DoubleValue(math.NaN())
	}
	return DoubleValue(f)
}

// langMatches walks from n (or the context item if n is nil) up through
// Parent looking for an xml:lang attribute, comparing testLang against
// it case-insensitively and allowing testLang to match a language
// sub-tag prefix ("en" matches "en-US"), per fn:lang's rule.
func langMatches(n Item, testLang string) bool {
	node, ok := n.(Node)
	if !ok {
		return false
	}
	testLang = strings.ToLower(testLang)
	for cur := node; ; {
		for _, a := range cur.Attributes() {
			name := a.NodeName()
			if name.URI == NSXML && name.Local == "lang" {
				v := strings.ToLower(a.StringValue())
				return v == testLang || strings.HasPrefix(v, testLang+"-")
			}
		}
		p, ok := cur.Parent()
		if !ok {
			return false
		}
		pn, ok := p.(Node)
		if !ok {
			return false
		}
		cur = pn
	}
}

func mustString(args []Sequence, i int) string {
	s, _ := argString(args, i)
	return s
}
