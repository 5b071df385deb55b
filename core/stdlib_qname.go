package core

import "strings"

// registerQNameFunctions binds fn:QName and its inspection/resolution
// counterparts, built directly on the Name/QNameValue types in
// core/names.go and core/values.go rather than introducing a parallel
// QName representation.
func registerQNameFunctions(r *FunctionRegistry) {
	qnameOpt := AtomicSequenceType(TQName, OccurOptional)
	qnameOne := AtomicSequenceType(TQName, OccurExactlyOne)
	ncNameOpt := AtomicSequenceType(TString, OccurOptional)
	anyURIOpt := AtomicSequenceType(TAnyURI, OccurOptional)
	elementArg := AnyItemSequenceType(OccurExactlyOne)

	reg(r, "QName", NSFn, params(optString(), oneString()), qnameOne, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		uri, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		lex, err := argString(args, 1)
		if err != nil {
			return nil, err
		}
		prefix, local := splitQName(lex)
		if prefix != "" && uri == "" {
			return nil, Errorf(ErrFOCA0002, Span{}, "fn:QName: prefixed name %q with no namespace URI", lex)
		}
		return Singleton(NewAtomic(QNameValue{Name: Name{URI: uri, Local: local, Prefix: prefix}})), nil
	})

	reg(r, "local-name-from-QName", NSFn, params(qnameOpt), ncNameOpt, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		q, ok, err := argQName(args, 0)
		if err != nil || !ok {
			return EmptySequence(), err
		}
		return Singleton(NewAtomic(StringValue(q.Local))), nil
	})

	reg(r, "namespace-uri-from-QName", NSFn, params(qnameOpt), anyURIOpt, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		q, ok, err := argQName(args, 0)
		if err != nil || !ok {
			return EmptySequence(), err
		}
		return Singleton(NewAtomic(AnyURIValue(q.URI))), nil
	})

	reg(r, "prefix-from-QName", NSFn, params(qnameOpt), ncNameOpt, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		q, ok, err := argQName(args, 0)
		if err != nil || !ok || q.Prefix == "" {
			return EmptySequence(), err
		}
		return Singleton(NewAtomic(StringValue(q.Prefix))), nil
	})

	reg(r, "resolve-QName", NSFn, params(optString(), elementArg), qnameOpt, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		lex, err := argString(args, 0)
		if err != nil || lex == "" {
			return EmptySequence(), err
		}
		el, ok := args[1][0].(Node)
		if !ok {
			return nil, Errorf(ErrXPTY0004, Span{}, "fn:resolve-QName element argument is not a node")
		}
		prefix, local := splitQName(lex)
		uri, ok := resolvePrefixOnNode(el, prefix)
		if !ok {
			if prefix == "" {
				return Singleton(NewAtomic(QNameValue{Name: Name{Local: local}})), nil
			}
			return nil, Errorf(ErrXPST0081, Span{}, "fn:resolve-QName: prefix %q has no in-scope binding", prefix)
		}
		return Singleton(NewAtomic(QNameValue{Name: Name{URI: uri, Local: local, Prefix: prefix}})), nil
	})

	reg(r, "namespace-uri-for-prefix", NSFn, params(optString(), elementArg), anyURIOpt, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		prefix, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		el, ok := args[1][0].(Node)
		if !ok {
			return nil, Errorf(ErrXPTY0004, Span{}, "fn:namespace-uri-for-prefix element argument is not a node")
		}
		uri, ok := resolvePrefixOnNode(el, prefix)
		if !ok {
			return EmptySequence(), nil
		}
		return Singleton(NewAtomic(AnyURIValue(uri))), nil
	})
}

func splitQName(lex string) (prefix, local string) {
	if idx := strings.IndexByte(lex, ':'); idx >= 0 {
		return lex[:idx], lex[idx+1:]
	}
	return "", lex
}

func argQName(args []Sequence, i int) (Name, bool, error) {
	if i >= len(args) || args[i].IsEmpty() {
		return Name{}, false, nil
	}
	a, ok := args[i][0].(Atomic)
	if !ok {
		return Name{}, false, Errorf(ErrXPTY0004, Span{}, "argument %d is not an xs:QName", i)
	}
	q, ok := a.Value.(QNameValue)
	if !ok {
		return Name{}, false, Errorf(ErrXPTY0004, Span{}, "argument %d is not an xs:QName", i)
	}
	return q.Name, true, nil
}

// resolvePrefixOnNode walks a node's own namespace-node list, the way an
// xmltree element exposes its in-scope bindings (including inherited
// ones) through Namespaces(), to find the URI bound to prefix.
func resolvePrefixOnNode(n Node, prefix string) (string, bool) {
	for _, ns := range n.Namespaces() {
		name := ns.NodeName()
		if name.Local == prefix {
			return ns.StringValue(), true
		}
	}
	switch prefix {
	case "xml":
		return NSXML, true
	}
	return "", false
}
