package core

// registerAccessorFunctions binds the fn: accessor functions that pull a
// scalar facet off a node or item (name, string value, numeric
// position helpers), grounded the same way core/convert.go's Atomize
// centralizes node-to-atomic-value coercion.
func registerAccessorFunctions(r *FunctionRegistry) {
	reg(r, "node-name", NSFn, params(AnyItemSequenceType(OccurOptional)), AtomicSequenceType(TQName, OccurOptional),
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
			if len(args) == 0 || args[0].IsEmpty() {
				return EmptySequence(), nil
			}
			n, ok := args[0][0].(Node)
			if !ok {
				return nil, Errorf(ErrXPTY0004, Span{}, "node-name argument is not a node")
			}
			name := n.NodeName()
			if name.IsZero() {
				return EmptySequence(), nil
			}
			return Singleton(NewAtomic(QNameValue{Name: name})), nil
		})
	reg(r, "string", NSFn, params(AnyItemSequenceType(OccurOptional)), stringReturn(),
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
			if len(args) == 0 || args[0].IsEmpty() {
				if ctx.ContextItem == nil {
					return nil, Errorf(ErrXPST0003, Span{}, "fn:string() has no context item")
				}
				return Singleton(NewAtomic(StringValue(ctx.ContextItem.String()))), nil
			}
			return Singleton(NewAtomic(StringValue(args[0][0].String()))), nil
		})
	reg(r, "data", NSFn, params(AnyItemSequenceType(OccurZeroOrMore)), AtomicSequenceType(TAnyAtomicType, OccurZeroOrMore),
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) { return Atomize(args[0]) })
	reg(r, "string-length", NSFn, nil, integerReturn(),
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
			if ctx.ContextItem == nil {
				return nil, Errorf(ErrXPST0003, Span{}, "fn:string-length() has no context item")
			}
			return Singleton(NewAtomic(IntegerValueOfInt64(int64(len([]rune(ctx.ContextItem.String())))))), nil
		})
	reg(r, "boolean", NSFn, params(AnyItemSequenceType(OccurZeroOrMore)), booleanReturn(),
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
			b, err := EffectiveBooleanValue(args[0])
			if err != nil {
				return nil, err
			}
			return Singleton(NewAtomic(BooleanValue(b))), nil
		})
	reg(r, "not", NSFn, params(AnyItemSequenceType(OccurZeroOrMore)), booleanReturn(),
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
			b, err := EffectiveBooleanValue(args[0])
			if err != nil {
				return nil, err
			}
			return Singleton(NewAtomic(BooleanValue(!b))), nil
		})
	reg(r, "position", NSFn, nil, integerReturn(),
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
			return Singleton(NewAtomic(IntegerValueOfInt64(int64(ctx.ContextPosition)))), nil
		})
	reg(r, "last", NSFn, nil, integerReturn(),
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
			return Singleton(NewAtomic(IntegerValueOfInt64(int64(ctx.ContextSize)))), nil
		})
}
