package core

// registerMapArrayFunctions binds the map: and array: namespace
// functions, thin NativeFunc wrappers over the MapValue/ArrayValue
// methods in core/values.go the same way core/stdlib_sequences.go wraps
// Sequence operations.
func registerMapArrayFunctions(r *FunctionRegistry) {
	anyStar := anyItemStar()
	mapType := ItemType{Kind: AtomicKindPair{ItemKind: ItemKindMap}}
	mapArg := SequenceType{Item: mapType, Occurrence: OccurExactlyOne}
	arrayType := ItemType{Kind: AtomicKindPair{ItemKind: ItemKindArray}}
	arrayArg := SequenceType{Item: arrayType, Occurrence: OccurExactlyOne}
	keyType := AtomicSequenceType(TAnyAtomicType, OccurExactlyOne)
	fnItemParam := AnyItemSequenceType(OccurExactlyOne)

	reg(r, "merge", NSMap, params(AnyItemSequenceType(OccurZeroOrMore)), mapArg, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		out := NewMapValue()
		for _, it := range args[0] {
			m, ok := it.(*MapValue)
			if !ok {
				return nil, Errorf(ErrXPTY0004, Span{}, "map:merge argument is not a map")
			}
			m.ForEach(func(k AtomicValue, v Sequence) { out = out.Put(k, v) })
		}
		return Singleton(out), nil
	})
	reg(r, "get", NSMap, params(mapArg, keyType), anyStar, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		m, err := argMap(args, 0)
		if err != nil {
			return nil, err
		}
		k, err := argAtomic(args, 1)
		if err != nil {
			return nil, err
		}
		v, _ := m.Get(k)
		return v, nil
	})
	reg(r, "contains", NSMap, params(mapArg, keyType), booleanReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		m, err := argMap(args, 0)
		if err != nil {
			return nil, err
		}
		k, err := argAtomic(args, 1)
		if err != nil {
			return nil, err
		}
		_, ok := m.Get(k)
		return Singleton(NewAtomic(BooleanValue(ok))), nil
	})
	reg(r, "put", NSMap, params(mapArg, keyType, anyStar), mapArg, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		m, err := argMap(args, 0)
		if err != nil {
			return nil, err
		}
		k, err := argAtomic(args, 1)
		if err != nil {
			return nil, err
		}
		return Singleton(m.Put(k, args[2])), nil
	})
	reg(r, "remove", NSMap, params(mapArg, AtomicSequenceType(TAnyAtomicType, OccurZeroOrMore)), mapArg, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		m, err := argMap(args, 0)
		if err != nil {
			return nil, err
		}
		out := NewMapValue()
		remove := make(map[string]bool, len(args[1]))
		for _, it := range args[1] {
			a, ok := it.(Atomic)
			if !ok {
				return nil, Errorf(ErrXPTY0004, Span{}, "map:remove key is not atomic")
			}
			remove[atomicKeyString(a.Value)] = true
		}
		m.ForEach(func(k AtomicValue, v Sequence) {
			if !remove[atomicKeyString(k)] {
				out = out.Put(k, v)
			}
		})
		return Singleton(out), nil
	})
	reg(r, "size", NSMap, params(mapArg), integerReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		m, err := argMap(args, 0)
		if err != nil {
			return nil, err
		}
		return Singleton(NewAtomic(IntegerValueOfInt64(int64(m.Size())))), nil
	})
	reg(r, "keys", NSMap, params(mapArg), AtomicSequenceType(TAnyAtomicType, OccurZeroOrMore), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		m, err := argMap(args, 0)
		if err != nil {
			return nil, err
		}
		keys := m.Keys()
		out := make(Sequence, len(keys))
		for i, k := range keys {
			out[i] = NewAtomic(k)
		}
		return out, nil
	})
	reg(r, "for-each", NSMap, params(mapArg, fnItemParam), anyStar, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		m, err := argMap(args, 0)
		if err != nil {
			return nil, err
		}
		f, err := argFunction(args, 1)
		if err != nil {
			return nil, err
		}
		var out Sequence
		var callErr error
		m.ForEach(func(k AtomicValue, v Sequence) {
			if callErr != nil {
				return
			}
			res, err := ctx.Invoke(f, []Sequence{Singleton(NewAtomic(k)), v})
			if err != nil {
				callErr = err
				return
			}
			out = append(out, res...)
		})
		if callErr != nil {
			return nil, callErr
		}
		return out, nil
	})

	reg(r, "size", NSArray, params(arrayArg), integerReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		a, err := argArray(args, 0)
		if err != nil {
			return nil, err
		}
		return Singleton(NewAtomic(IntegerValueOfInt64(int64(a.Size())))), nil
	})
	reg(r, "get", NSArray, params(arrayArg, AtomicSequenceType(TInteger, OccurExactlyOne)), anyStar, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		a, err := argArray(args, 0)
		if err != nil {
			return nil, err
		}
		idx, _, err := argInteger(args, 1)
		if err != nil {
			return nil, err
		}
		return a.Get(int(idx))
	})
	reg(r, "put", NSArray, params(arrayArg, AtomicSequenceType(TInteger, OccurExactlyOne), anyStar), arrayArg, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		a, err := argArray(args, 0)
		if err != nil {
			return nil, err
		}
		idx, _, err := argInteger(args, 1)
		if err != nil {
			return nil, err
		}
		if idx < 1 || int(idx) > len(a.Members) {
			return nil, Errorf("FOAY0001", Span{}, "array:put index %d out of bounds [1, %d]", idx, len(a.Members))
		}
		out := &ArrayValue{Members: append([]Sequence{}, a.Members...)}
		out.Members[idx-1] = args[2]
		return Singleton(out), nil
	})
	reg(r, "append", NSArray, params(arrayArg, anyStar), arrayArg, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		a, err := argArray(args, 0)
		if err != nil {
			return nil, err
		}
		out := &ArrayValue{Members: append(append([]Sequence{}, a.Members...), args[1])}
		return Singleton(out), nil
	})
	reg(r, "subarray", NSArray, params(arrayArg, AtomicSequenceType(TInteger, OccurExactlyOne), AtomicSequenceType(TInteger, OccurOptional)), arrayArg,
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
			a, err := argArray(args, 0)
			if err != nil {
				return nil, err
			}
			start, _, err := argInteger(args, 1)
			if err != nil {
				return nil, err
			}
			length := int64(len(a.Members)) - start + 1
			if len(args) > 2 && !args[2].IsEmpty() {
				length, _, err = argInteger(args, 2)
				if err != nil {
					return nil, err
				}
			}
			if start < 1 || length < 0 || int(start+length-1) > len(a.Members) {
				return nil, Errorf("FOAY0001", Span{}, "array:subarray range out of bounds")
			}
			out := &ArrayValue{Members: append([]Sequence{}, a.Members[start-1:start-1+length]...)}
			return Singleton(out), nil
		})
	reg(r, "flatten", NSArray, params(anyStar), anyStar, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		var out Sequence
		var walk func(Sequence)
		walk = func(seq Sequence) {
			for _, it := range seq {
				if a, ok := it.(*ArrayValue); ok {
					for _, m := range a.Members {
						walk(m)
					}
					continue
				}
				out = append(out, it)
			}
		}
		walk(args[0])
		return out, nil
	})
	reg(r, "for-each", NSArray, params(arrayArg, fnItemParam), arrayArg, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		a, err := argArray(args, 0)
		if err != nil {
			return nil, err
		}
		f, err := argFunction(args, 1)
		if err != nil {
			return nil, err
		}
		out := &ArrayValue{Members: make([]Sequence, len(a.Members))}
		for i, m := range a.Members {
			res, err := ctx.Invoke(f, []Sequence{m})
			if err != nil {
				return nil, err
			}
			out.Members[i] = res
		}
		return Singleton(out), nil
	})
}

func argMap(args []Sequence, i int) (*MapValue, error) {
	if i >= len(args) || args[i].IsEmpty() {
		return nil, Errorf(ErrXPTY0004, Span{}, "argument %d is not a map", i)
	}
	m, ok := args[i][0].(*MapValue)
	if !ok {
		return nil, Errorf(ErrXPTY0004, Span{}, "argument %d is not a map", i)
	}
	return m, nil
}

func argArray(args []Sequence, i int) (*ArrayValue, error) {
	if i >= len(args) || args[i].IsEmpty() {
		return nil, Errorf(ErrXPTY0004, Span{}, "argument %d is not an array", i)
	}
	a, ok := args[i][0].(*ArrayValue)
	if !ok {
		return nil, Errorf(ErrXPTY0004, Span{}, "argument %d is not an array", i)
	}
	return a, nil
}

func argAtomic(args []Sequence, i int) (AtomicValue, error) {
	if i >= len(args) || args[i].IsEmpty() {
		return nil, Errorf(ErrXPTY0004, Span{}, "argument %d is not atomic", i)
	}
	a, ok := args[i][0].(Atomic)
	if !ok {
		return nil, Errorf(ErrXPTY0004, Span{}, "argument %d is not atomic", i)
	}
	return a.Value, nil
}
