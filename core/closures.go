package core

// makeClosure builds an inline-function item from a CompiledFunction and
// the captured free-variable values popped off the value stack by the
// VM, in capture order (see core/lower.go's lowerInlineFunc, which
// pushes free variables immediately before emitting MAKE_CLOSURE).
func makeClosure(fn *CompiledFunction, captured []Sequence) *FunctionValue {
	return &FunctionValue{
		Kind:     FuncInline,
		Arity:    fn.NumParams,
		Entry:    fn.Entry,
		Captured: captured,
	}
}

// makeNamedFunc builds a named-function-reference item (e.g. the
// `upper-case#1` literal of scenario 1). The reference is resolved
// against the static function registry at lowering time and stored in
// the constant pool as a descriptor; OpMakeNamedFunc calls this at run
// time to build the item.
func makeNamedFunc(name Name, arity int) *FunctionValue {
	return &FunctionValue{Kind: FuncNamed, Name: name, Arity: arity}
}

// applyPartial constructs a new function item from f with the given
// argument slots bound; holeMask marks which of the *new* function's
// parameter positions remain open. args must have the same length as
// holeMask, with zero-value entries at hole positions (ignored).
func applyPartial(f *FunctionValue, args []Sequence, holeMask []bool) *FunctionValue {
	bound := make([]Sequence, len(args))
	copy(bound, args)
	return &FunctionValue{
		Kind:       FuncPartial,
		Arity:      countHoles(holeMask),
		Underlying: f,
		HoleMask:   holeMask,
		Bound:      bound,
	}
}

func countHoles(mask []bool) int {
	n := 0
	for _, h := range mask {
		if h {
			n++
		}
	}
	return n
}

// resolveCall fills in the holes of a (possibly chained) partial
// application with the supplied arguments, in hole order, returning the
// fully-applied underlying named or inline function plus its complete
// argument list ready for invocation.
func resolveCall(f *FunctionValue, args []Sequence) (*FunctionValue, []Sequence) {
	if f.Kind != FuncPartial {
		return f, args
	}
	full := make([]Sequence, len(f.HoleMask))
	copy(full, f.Bound)
	next := 0
	for i, hole := range f.HoleMask {
		if hole {
			full[i] = args[next]
			next++
		}
	}
	return resolveCall(f.Underlying, full)
}
