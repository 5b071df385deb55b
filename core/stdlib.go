package core

// RegisterStdlib materializes the built-in function library into
// registry through one declarative surface rather than scattering ad
// hoc globals. Individual function groups live in core/stdlib_*.go;
// this file only owns the registration entry point and the small
// adapter helpers they share.
func RegisterStdlib(registry *FunctionRegistry) {
	registerAccessorFunctions(registry)
	registerNumericFunctions(registry)
	registerStringFunctions(registry)
	registerSequenceFunctions(registry)
	registerNodeFunctions(registry)
	registerMapArrayFunctions(registry)
	registerQNameFunctions(registry)
	registerLocalFunctions(registry)
}

// reg builds and registers one FunctionDescriptor in a single call, the
// adapter-procedure entry point every stdlib_*.go file funnels through:
// the registry stores Params/Return only for introspection and
// argument conversion (core/vm.go's execCall calls ConvertArgument
// before Impl runs), while Impl always receives already-converted
// arguments.
func reg(registry *FunctionRegistry, local string, uri string, params []SequenceType, ret SequenceType, impl NativeFunc) {
	registry.Register(&FunctionDescriptor{
		Signature: FunctionSignature{
			Name:   Name{URI: uri, Local: local},
			Params: params,
			Return: ret,
		},
		Impl: impl,
	})
}

func fn(local string, params []SequenceType, ret SequenceType, impl NativeFunc) func(*FunctionRegistry) {
	return func(r *FunctionRegistry) { reg(r, local, NSFn, params, ret, impl) }
}

// str1 is the common shape of unary string-in/string-out functions
// (upper-case, lower-case, normalize-space, ...): atomize/cast the sole
// argument to xs:string, delegate to body, wrap the result.
func str1(body func(s string) (string, error)) NativeFunc {
	return func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		s, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		out, err := body(s)
		if err != nil {
			return nil, err
		}
		return Singleton(NewAtomic(StringValue(out))), nil
	}
}

func argString(args []Sequence, i int) (string, error) {
	if i >= len(args) || args[i].IsEmpty() {
		return "", nil
	}
	a, ok := args[i][0].(Atomic)
	if !ok {
		return "", Errorf(ErrXPTY0004, Span{}, "argument %d is not atomic", i)
	}
	return a.Value.String(), nil
}

func argInteger(args []Sequence, i int) (int64, bool, error) {
	if i >= len(args) || args[i].IsEmpty() {
		return 0, false, nil
	}
	a, ok := args[i][0].(Atomic)
	if !ok {
		return 0, false, Errorf(ErrXPTY0004, Span{}, "argument %d is not atomic", i)
	}
	iv, ok := a.Value.(IntegerValue)
	if !ok {
		f, err := atomicToFloat64(a.Value, a.Value.String(), Span{})
		if err != nil {
			return 0, false, err
		}
		return int64(f), true, nil
	}
	n, _ := iv.Int64()
	return n, true, nil
}

func argBoolean(args []Sequence, i int, dflt bool) (bool, error) {
	if i >= len(args) || args[i].IsEmpty() {
		return dflt, nil
	}
	return EffectiveBooleanValue(args[i])
}

func oneString() SequenceType                  { return AtomicSequenceType(TString, OccurExactlyOne) }
func optString() SequenceType                  { return AtomicSequenceType(TString, OccurOptional) }
func params(ts ...SequenceType) []SequenceType { return ts }

func stringReturn() SequenceType  { return AtomicSequenceType(TString, OccurExactlyOne) }
func booleanReturn() SequenceType { return AtomicSequenceType(TBoolean, OccurExactlyOne) }
func integerReturn() SequenceType { return AtomicSequenceType(TInteger, OccurExactlyOne) }
func anyItemStar() SequenceType   { return AnyItemSequenceType(OccurZeroOrMore) }
func anyItemOpt() SequenceType    { return AnyItemSequenceType(OccurOptional) }
