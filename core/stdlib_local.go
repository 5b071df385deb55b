package core

// registerLocalFunctions binds two small dispatch helpers core/irbuild.go
// desugars the unified "?" lookup operator into: unlike map:get/array:get,
// "?" is defined identically over maps and arrays and only core/irbuild.go
// knows which syntax produced the lookup, not which runtime type the
// target will turn out to be, so the choice between MapValue and
// ArrayValue semantics has to happen here, at call time.
func registerLocalFunctions(r *FunctionRegistry) {
	anyStar := anyItemStar()
	targetArg := AnyItemSequenceType(OccurExactlyOne)
	keyArg := AtomicSequenceType(TAnyAtomicType, OccurExactlyOne)

	reg(r, "lookup", NSLocal, params(targetArg, keyArg), anyStar, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		if args[0].IsEmpty() {
			return nil, Errorf(ErrXPTY0004, Span{}, "lookup target is the empty sequence")
		}
		switch t := args[0][0].(type) {
		case *MapValue:
			k, err := argAtomic(args, 1)
			if err != nil {
				return nil, err
			}
			v, _ := t.Get(k)
			return v, nil
		case *ArrayValue:
			idx, _, err := argInteger(args, 1)
			if err != nil {
				return nil, err
			}
			return t.Get(int(idx))
		default:
			return nil, Errorf(ErrXPTY0004, Span{}, "lookup target is neither a map nor an array")
		}
	})

	reg(r, "lookup-wildcard", NSLocal, params(targetArg), anyStar, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		if args[0].IsEmpty() {
			return nil, Errorf(ErrXPTY0004, Span{}, "lookup target is the empty sequence")
		}
		switch t := args[0][0].(type) {
		case *MapValue:
			var out Sequence
			for _, k := range t.Keys() {
				v, _ := t.Get(k)
				out = append(out, v...)
			}
			return out, nil
		case *ArrayValue:
			var out Sequence
			for _, m := range t.Members {
				out = append(out, m...)
			}
			return out, nil
		default:
			return nil, Errorf(ErrXPTY0004, Span{}, "lookup target is neither a map nor an array")
		}
	})
}
