package core

// registerSequenceFunctions binds the general sequence-processing
// functions, including the higher-order ones (fn:for-each, fn:filter,
// fn:fold-left) that call back into the engine through
// DynamicContext.Invoke rather than re-implementing call dispatch here.
func registerSequenceFunctions(r *FunctionRegistry) {
	anyStar := anyItemStar()
	oneFn := AnyItemSequenceType(OccurExactlyOne) // function-item params are checked at call time, not here

	reg(r, "empty", NSFn, params(anyStar), booleanReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		return Singleton(NewAtomic(BooleanValue(args[0].IsEmpty()))), nil
	})
	reg(r, "exists", NSFn, params(anyStar), booleanReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		return Singleton(NewAtomic(BooleanValue(!args[0].IsEmpty()))), nil
	})
	reg(r, "count", NSFn, params(anyStar), integerReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		return Singleton(NewAtomic(IntegerValueOfInt64(int64(len(args[0]))))), nil
	})
	reg(r, "reverse", NSFn, params(anyStar), anyStar, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		in := args[0]
		out := make(Sequence, len(in))
		for i, it := range in {
			out[len(in)-1-i] = it
		}
		return out, nil
	})
	reg(r, "head", NSFn, params(anyStar), AnyItemSequenceType(OccurOptional), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		if args[0].IsEmpty() {
			return EmptySequence(), nil
		}
		return Singleton(args[0][0]), nil
	})
	reg(r, "tail", NSFn, params(anyStar), anyStar, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		if len(args[0]) <= 1 {
			return EmptySequence(), nil
		}
		return args[0][1:], nil
	})
	reg(r, "subsequence", NSFn, params(anyStar, AtomicSequenceType(TDouble, OccurExactlyOne)), anyStar,
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) { return subsequenceImpl(args) })
	reg(r, "insert-before", NSFn, params(anyStar, AtomicSequenceType(TInteger, OccurExactlyOne), anyStar), anyStar,
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
			in := args[0]
			pos, _, err := argInteger(args, 1)
			if err != nil {
				return nil, err
			}
			idx := int(pos) - 1
			if idx < 0 {
				idx = 0
			}
			if idx > len(in) {
				idx = len(in)
			}
			out := make(Sequence, 0, len(in)+len(args[2]))
			out = append(out, in[:idx]...)
			out = append(out, args[2]...)
			out = append(out, in[idx:]...)
			return out, nil
		})
	reg(r, "remove", NSFn, params(anyStar, AtomicSequenceType(TInteger, OccurExactlyOne)), anyStar,
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
			in := args[0]
			pos, _, err := argInteger(args, 1)
			if err != nil {
				return nil, err
			}
			idx := int(pos) - 1
			if idx < 0 || idx >= len(in) {
				return append(Sequence{}, in...), nil
			}
			out := make(Sequence, 0, len(in)-1)
			out = append(out, in[:idx]...)
			out = append(out, in[idx+1:]...)
			return out, nil
		})
	reg(r, "distinct-values", NSFn, params(anyStar), AtomicSequenceType(TAnyAtomicType, OccurZeroOrMore),
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
			atomized, err := Atomize(args[0])
			if err != nil {
				return nil, err
			}
			seen := make(map[string]bool, len(atomized))
			out := make(Sequence, 0, len(atomized))
			for _, it := range atomized {
				a := it.(Atomic)
				key := atomicKeyString(a.Value)
				if !seen[key] {
					seen[key] = true
					out = append(out, a)
				}
			}
			return out, nil
		})
	reg(r, "zero-or-one", NSFn, params(anyStar), AnyItemSequenceType(OccurOptional), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		if len(args[0]) > 1 {
			return nil, Errorf(ErrFORG0006, Span{}, "fn:zero-or-one called with a sequence of length %d", len(args[0]))
		}
		return args[0], nil
	})
	reg(r, "one-or-more", NSFn, params(anyStar), AnyItemSequenceType(OccurOneOrMore), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		if len(args[0]) == 0 {
			return nil, Errorf(ErrFORG0006, Span{}, "fn:one-or-more called with an empty sequence")
		}
		return args[0], nil
	})
	reg(r, "exactly-one", NSFn, params(anyStar), oneFn, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		if len(args[0]) != 1 {
			return nil, Errorf(ErrFORG0006, Span{}, "fn:exactly-one called with a sequence of length %d", len(args[0]))
		}
		return args[0], nil
	})

	fnItemParam := AnyItemSequenceType(OccurExactlyOne)
	reg(r, "for-each", NSFn, params(anyStar, fnItemParam), anyStar, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		f, err := argFunction(args, 1)
		if err != nil {
			return nil, err
		}
		var out Sequence
		for _, it := range args[0] {
			res, err := ctx.Invoke(f, []Sequence{Singleton(it)})
			if err != nil {
				return nil, err
			}
			out = append(out, res...)
		}
		return out, nil
	})
	reg(r, "filter", NSFn, params(anyStar, fnItemParam), anyStar, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		f, err := argFunction(args, 1)
		if err != nil {
			return nil, err
		}
		var out Sequence
		for _, it := range args[0] {
			res, err := ctx.Invoke(f, []Sequence{Singleton(it)})
			if err != nil {
				return nil, err
			}
			keep, err := EffectiveBooleanValue(res)
			if err != nil {
				return nil, err
			}
			if keep {
				out = append(out, it)
			}
		}
		return out, nil
	})
	reg(r, "fold-left", NSFn, params(anyStar, AnyItemSequenceType(OccurZeroOrMore), fnItemParam), AnyItemSequenceType(OccurZeroOrMore),
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
			f, err := argFunction(args, 2)
			if err != nil {
				return nil, err
			}
			acc := args[1]
			for _, it := range args[0] {
				acc, err = ctx.Invoke(f, []Sequence{acc, Singleton(it)})
				if err != nil {
					return nil, err
				}
			}
			return acc, nil
		})
	reg(r, "sort", NSFn, params(anyStar), anyStar, func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		return sortSequence(args[0])
	})
}

func argFunction(args []Sequence, i int) (*FunctionValue, error) {
	if i >= len(args) || args[i].IsEmpty() {
		return nil, Errorf(ErrXPTY0004, Span{}, "argument %d is not a function item", i)
	}
	f, ok := args[i][0].(*FunctionValue)
	if !ok {
		return nil, Errorf(ErrXPTY0004, Span{}, "argument %d is not a function item", i)
	}
	return f, nil
}

func subsequenceImpl(args []Sequence) (Sequence, error) {
	in := args[0]
	startF, err := argDouble(args, 1)
	if err != nil {
		return nil, err
	}
	length := float64(len(in)) - startF + 1
	if len(args) > 2 {
		length, err = argDouble(args, 2)
		if err != nil {
			return nil, err
		}
	}
	start := roundHalfToEven(startF)
	end := start + roundHalfToEven(length)
	lo := maxInt(1, start)
	hi := minInt(len(in)+1, end)
	if hi <= lo {
		return EmptySequence(), nil
	}
	return append(Sequence{}, in[lo-1:hi-1]...), nil
}

// sortSequence implements the default-collation, no-key-function form of
// fn:sort: stable order by each item's atomized value under the
// engine's general-comparison less-than rule.
func sortSequence(seq Sequence) (Sequence, error) {
	var sortErr error
	out := SortStableBy(seq, func(a, b Item) bool {
		less, err := itemLess(a, b)
		if err != nil {
			sortErr = err
		}
		return less
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return out, nil
}

func itemLess(a, b Item) (bool, error) {
	av, aok := a.(Atomic)
	bv, bok := b.(Atomic)
	if !aok || !bok {
		return false, Errorf(ErrFORG0006, Span{}, "fn:sort requires atomizable items without a key function")
	}
	if IsNumeric(av.Value.AtomicType()) && IsNumeric(bv.Value.AtomicType()) {
		fa, err := atomicToFloat64(av.Value, av.Value.String(), Span{})
		if err != nil {
			return false, err
		}
		fb, err := atomicToFloat64(bv.Value, bv.Value.String(), Span{})
		if err != nil {
			return false, err
		}
		return fa < fb, nil
	}
	return av.Value.String() < bv.Value.String(), nil
}
