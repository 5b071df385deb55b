package core

import "fmt"

// frame is one activation record on the VM's call stack: a function's
// local-variable slots plus its saved program counter. Every local is a
// Sequence (never a bare Item) since every XDM value is itself a
// sequence, singleton or otherwise.
type frame struct {
	fn     *CompiledFunction
	locals []Sequence
	pc     int
}

// catchEntry records one installed try/catch handler: where to resume
// if Body raises, and how far to unwind the value/frame/iterator stacks
// first so a handler never sees partial state left over from the failed
// attempt.
type catchEntry struct {
	handlerPC  int
	frameDepth int
	stackDepth int
	iterDepth  int
}

// VM executes a single Program. A VM is not safe for concurrent use by
// multiple goroutines, but a Program is immutable and may be executed by
// any number of independent VMs concurrently.
type VM struct {
	prog      *Program
	stack     []Sequence
	frames    []*frame
	iters     []*Iterator
	catches   []catchEntry
	dctx      *DynamicContext
	steps     int
	stepLimit int // 0 means unlimited
}

// NewVM constructs a VM bound to prog and dctx. stepLimit caps the
// number of dispatched instructions before execution fails with an
// EngineError of code ErrEngineCancelled (0 disables the cap,
// relying solely on dctx's context.Context for cancellation).
func NewVM(prog *Program, dctx *DynamicContext, stepLimit int) *VM {
	vm := &VM{prog: prog, dctx: dctx, stepLimit: stepLimit}
	dctx.Invoke = vm.callFunction
	return vm
}

// Run executes the program's entry function to completion and returns
// its result sequence.
func (vm *VM) Run() (Sequence, error) {
	entryFn := vm.prog.Functions[vm.prog.EntryFunc]
	vm.pushFrame(entryFn, nil)
	return vm.exec()
}

func (vm *VM) pushFrame(fn *CompiledFunction, args []Sequence) *frame {
	locals := make([]Sequence, fn.NumLocals)
	copy(locals, args)
	fr := &frame{fn: fn, locals: locals, pc: fn.Entry}
	vm.frames = append(vm.frames, fr)
	return fr
}

func (vm *VM) top() *frame { return vm.frames[len(vm.frames)-1] }

func (vm *VM) push(s Sequence) { vm.stack = append(vm.stack, s) }

func (vm *VM) pop() Sequence {
	n := len(vm.stack) - 1
	s := vm.stack[n]
	vm.stack = vm.stack[:n]
	return s
}

func (vm *VM) popN(n int) []Sequence {
	out := make([]Sequence, n)
	copy(out, vm.stack[len(vm.stack)-n:])
	vm.stack = vm.stack[:len(vm.stack)-n]
	return out
}

func (vm *VM) peek() Sequence { return vm.stack[len(vm.stack)-1] }

// exec is the central dispatch loop: it runs until the outermost frame
// returns, an unhandled error propagates out, or the step budget or the
// dynamic context's Go context is exceeded. Errors raised mid-execution
// first try to unwind to the nearest installed catch frame before being returned to the caller.
func (vm *VM) exec() (Sequence, error) {
	baseDepth := len(vm.frames) - 1
	for {
		if len(vm.frames)-1 < baseDepth {
			// entry frame returned: the single remaining stack value is
			// the whole program's result.
			return vm.pop(), nil
		}
		result, err := vm.step()
		if err != nil {
			if handled := vm.tryUnwindToCatch(err); handled {
				continue
			}
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
}

// step dispatches exactly one instruction in the current top frame.
// When the top frame performs OPReturn and there is no caller below
// baseDepth, result carries the program's final value instead of nil.
func (vm *VM) step() (Sequence, error) {
	fr := vm.top()
	if vm.stepLimit > 0 {
		vm.steps++
		if vm.steps > vm.stepLimit {
			return nil, NewError(ErrEngineCancelled, fr.ins(vm.prog).Span, "step budget exceeded")
		}
	}
	if err := vm.dctx.CheckCancelled(); err != nil {
		return nil, err
	}

	ins := fr.ins(vm.prog)
	fr.pc++

	switch ins.Op {
	case OpConst:
		if c := vm.prog.Constants[ins.A]; c != nil {
			vm.push(Singleton(c))
		} else {
			vm.push(EmptySequence())
		}

	case OpPop:
		vm.pop()
	case OpDup:
		vm.push(vm.peek())
	case OpSwap:
		a := vm.pop()
		b := vm.pop()
		vm.push(a)
		vm.push(b)

	case OpSeqConcat:
		parts := vm.popN(ins.A)
		vm.push(Concat(parts...))
	case OpEmptySeq:
		vm.push(EmptySequence())

	case OpContextItem:
		if vm.dctx.ContextItem == nil {
			return nil, NewError(ErrXPDY0002, ins.Span, "context item is undefined")
		}
		vm.push(Singleton(vm.dctx.ContextItem))

	case OpAdd, OpSub, OpMul, OpDiv, OpIDiv, OpMod:
		if err := vm.execArith(ins); err != nil {
			return nil, err
		}
	case OpNeg:
		if err := vm.execNegate(ins); err != nil {
			return nil, err
		}

	case OpValueCmp:
		if err := vm.execValueCmp(CompareOp(ins.B), ins.Span); err != nil {
			return nil, err
		}
	case OpGeneralCmp:
		if err := vm.execGeneralCmp(CompareOp(ins.B), ins.Span); err != nil {
			return nil, err
		}
	case OpNodeIs, OpNodeBefore, OpNodeAfter:
		if err := vm.execNodeCmp(ins); err != nil {
			return nil, err
		}

	case OpNot:
		v := vm.pop()
		b, err := EffectiveBooleanValue(v)
		if err != nil {
			return nil, WrapError(ErrFORG0006, ins.Span, err)
		}
		vm.push(Singleton(NewAtomic(BooleanValue(!b))))
	case OpAnd, OpOr:
		if err := vm.execAndOr(ins); err != nil {
			return nil, err
		}

	case OpStringConcat:
		r := vm.pop()
		l := vm.pop()
		ls, err := atomicString(l, ins.Span)
		if err != nil {
			return nil, err
		}
		rs, err := atomicString(r, ins.Span)
		if err != nil {
			return nil, err
		}
		vm.push(Singleton(NewAtomic(StringValue(ls + rs))))

	case OpRange:
		if err := vm.execRange(ins); err != nil {
			return nil, err
		}
	case OpUnion, OpIntersect, OpExcept:
		if err := vm.execNodeSetOp(ins); err != nil {
			return nil, err
		}

	case OpJump:
		fr.pc = ins.A
	case OpJumpIfFalse:
		b, err := EffectiveBooleanValue(vm.pop())
		if err != nil {
			return nil, WrapError(ErrFORG0006, ins.Span, err)
		}
		if !b {
			fr.pc = ins.A
		}
	case OpJumpIfTrue:
		b, err := EffectiveBooleanValue(vm.pop())
		if err != nil {
			return nil, WrapError(ErrFORG0006, ins.Span, err)
		}
		if b {
			fr.pc = ins.A
		}

	case OpGetLocal:
		vm.push(fr.locals[ins.A])
	case OpSetLocal:
		fr.locals[ins.A] = vm.pop()

	case OpMakeClosure:
		fn := vm.prog.Functions[ins.A]
		captured := vm.popN(ins.B)
		vm.push(Singleton(makeClosure(fn, captured)))
	case OpMakeNamedFunc:
		c := vm.prog.Constants[ins.A].(functionDescriptorConst)
		vm.push(Singleton(makeNamedFunc(c.D.Signature.Name, len(c.D.Signature.Params))))
	case OpPartialApply:
		if err := vm.execPartialApply(ins); err != nil {
			return nil, err
		}
	case OpCall:
		if err := vm.execCall(ins); err != nil {
			return nil, err
		}
	case OpCallDynamic:
		if err := vm.execCallDynamic(ins); err != nil {
			return nil, err
		}
	case OpReturn:
		retVal := vm.pop()
		vm.frames = vm.frames[:len(vm.frames)-1]
		if len(vm.frames) == 0 {
			return retVal, nil
		}
		vm.push(retVal)

	case OpIterStart:
		vm.iters = append(vm.iters, NewIterator(vm.pop()))
	case OpIterNext:
		// On success leaves (item, true): JUMP_IF_FALSE consumes the
		// flag and, not taken, leaves the item for the following
		// SET_LOCAL. On exhaustion leaves just (false); JUMP_IF_FALSE
		// consumes it and the jump is taken, so SET_LOCAL never runs.
		it := vm.iters[len(vm.iters)-1]
		item, ok := it.Next()
		if !ok {
			vm.push(Singleton(NewAtomic(BooleanValue(false))))
			break
		}
		vm.push(Singleton(item))
		vm.push(Singleton(NewAtomic(BooleanValue(true))))
	case OpIterClose:
		vm.iters = vm.iters[:len(vm.iters)-1]

	case OpAtomize:
		v := vm.pop()
		a, err := Atomize(v)
		if err != nil {
			return nil, err
		}
		vm.push(a)
	case OpCastAs:
		if err := vm.execCastAs(ins, false); err != nil {
			return nil, err
		}
	case OpCastableAs:
		if err := vm.execCastableAs(ins); err != nil {
			return nil, err
		}
	case OpTreatAs:
		if err := vm.execTreatAs(ins); err != nil {
			return nil, err
		}
	case OpInstanceOf:
		if err := vm.execInstanceOf(ins); err != nil {
			return nil, err
		}

	case OpAxisStep:
		if err := vm.execAxisStep(ins); err != nil {
			return nil, err
		}
	case OpFilter:
		if err := vm.execFilter(ins); err != nil {
			return nil, err
		}
	case OpNodeTest, OpPredicateBegin, OpPredicateEnd:
		// Reserved for a future bytecode-level predicate encoding;
		// OpAxisStep currently applies node tests and predicates itself
		// via PredicateFuncs, so these never appear in emitted code.
		return nil, Errorf(ErrXPST0003, ins.Span, "opcode %s not reachable from the lowerer", ins.Op)

	case OpMakeMap:
		vm.push(Singleton(NewMapValue()))
	case OpMapPut:
		val := vm.pop()
		key := vm.pop()
		mv := vm.pop()
		m := mv[0].(*MapValue)
		keyAtom, err := singletonAtomic(key, ins.Span)
		if err != nil {
			return nil, err
		}
		vm.push(Singleton(m.Put(keyAtom, val)))
	case OpMapGet:
		key := vm.pop()
		mv := vm.pop()
		m := mv[0].(*MapValue)
		keyAtom, err := singletonAtomic(key, ins.Span)
		if err != nil {
			return nil, err
		}
		v, ok := m.Get(keyAtom)
		if !ok {
			vm.push(EmptySequence())
		} else {
			vm.push(v)
		}
	case OpMakeArray:
		members := vm.popN(ins.A)
		vm.push(Singleton(&ArrayValue{Members: members}))
	case OpArrayGet:
		idxSeq := vm.pop()
		av := vm.pop()
		a := av[0].(*ArrayValue)
		idxAtom, err := singletonAtomic(idxSeq, ins.Span)
		if err != nil {
			return nil, err
		}
		iv, ok := idxAtom.(IntegerValue)
		if !ok {
			return nil, Errorf(ErrFOTY0013, ins.Span, "array index must be xs:integer")
		}
		n, _ := iv.Int64()
		v, err := a.Get(int(n))
		if err != nil {
			return nil, err
		}
		vm.push(v)

	case OpPushCatch:
		vm.catches = append(vm.catches, catchEntry{
			handlerPC:  ins.A,
			frameDepth: len(vm.frames),
			stackDepth: len(vm.stack),
			iterDepth:  len(vm.iters),
		})
	case OpPopCatch:
		vm.catches = vm.catches[:len(vm.catches)-1]
	case OpRaise:
		v := vm.pop()
		code, _ := atomicString(v, ins.Span)
		if ins.B == 1 {
			// Re-raise: the stack value is an error code falling through
			// a try/catch with no matching clause (core/lower.go's
			// defensive trailer in lowerTryCatch).
			return nil, NewError(code, ins.Span, "unhandled error "+code)
		}
		return nil, NewError(ErrFOER0000, ins.Span, code)

	case OpCodeMatch:
		v := vm.pop()
		code, _ := atomicString(v, ins.Span)
		cc := vm.prog.Constants[ins.A].(codesConst)
		vm.push(Singleton(NewAtomic(BooleanValue(codeMatches(code, cc.Codes)))))

	case OpTrace:
		v := vm.peek()
		vm.dctx.log().Trace("fn:trace", "value", v.String())
	case OpHalt:
		return nil, NewError(ErrEngineCancelled, ins.Span, "halted")

	default:
		return nil, Errorf(ErrXPST0003, ins.Span, "unimplemented opcode %s", ins.Op)
	}
	return nil, nil
}

func (fr *frame) ins(prog *Program) Instruction { return prog.Instructions[fr.pc] }

// tryUnwindToCatch pops the innermost installed catch frame, restores
// the stacks to the depth recorded when that frame was pushed, pushes
// the caught error's code as an xs:string, and resumes execution at the
// handler. Clause-code matching is not done here: the handler code
// emitted by core/lower.go's lowerTryCatch tests the pushed code with
// OpCodeMatch, binds it via SET_LOCAL, and re-raises it if no clause
// matches.
func (vm *VM) tryUnwindToCatch(err error) bool {
	if len(vm.catches) == 0 {
		return false
	}
	ee, ok := err.(*EngineError)
	if !ok {
		return false
	}
	c := vm.catches[len(vm.catches)-1]
	vm.catches = vm.catches[:len(vm.catches)-1]
	vm.frames = vm.frames[:c.frameDepth]
	vm.stack = vm.stack[:c.stackDepth]
	vm.iters = vm.iters[:c.iterDepth]
	vm.top().pc = c.handlerPC
	vm.push(Singleton(NewAtomic(StringValue(ee.Code))))
	return true
}

func codeMatches(code string, codes []string) bool {
	for _, c := range codes {
		if c == "*" || c == code {
			return true
		}
	}
	return false
}

func singletonAtomic(s Sequence, span Span) (AtomicValue, error) {
	if len(s) != 1 {
		return nil, Errorf(ErrXPTY0004, span, "expected a single atomic value, got sequence of length %d", len(s))
	}
	a, ok := s[0].(Atomic)
	if !ok {
		return nil, Errorf(ErrXPTY0004, span, "expected an atomic value, got %s", s[0])
	}
	return a.Value, nil
}

func atomicString(s Sequence, span Span) (string, error) {
	atomized, err := Atomize(s)
	if err != nil {
		return "", err
	}
	if len(atomized) == 0 {
		return "", nil
	}
	a, err := singletonAtomic(atomized, span)
	if err != nil {
		return "", err
	}
	return a.String(), nil
}

func (vm *VM) execArith(ins Instruction) error {
	r := vm.pop()
	l := vm.pop()
	la, err := Atomize(l)
	if err != nil {
		return err
	}
	ra, err := Atomize(r)
	if err != nil {
		return err
	}
	if la.IsEmpty() || ra.IsEmpty() {
		vm.push(EmptySequence())
		return nil
	}
	lv, err := singletonAtomic(la, ins.Span)
	if err != nil {
		return err
	}
	rv, err := singletonAtomic(ra, ins.Span)
	if err != nil {
		return err
	}
	result, err := arith(ins.Op, lv, rv, ins.Span)
	if err != nil {
		return err
	}
	vm.push(Singleton(NewAtomic(result)))
	return nil
}

// arith promotes lv/rv to their common numeric type and dispatches to the matching typed operation.
func arith(op Opcode, lv, rv AtomicValue, span Span) (AtomicValue, error) {
	lt, rt := lv.AtomicType(), rv.AtomicType()
	if !IsNumeric(lt) || !IsNumeric(rt) {
		return nil, Errorf(ErrXPTY0004, span, "arithmetic operand is not numeric")
	}
	target := PromoteNumeric(lt, rt)
	lp, err := convertOneAtomic(lv, target, span)
	if err != nil {
		return nil, err
	}
	rp, err := convertOneAtomic(rv, target, span)
	if err != nil {
		return nil, err
	}
	switch target {
	case TInteger:
		a, b := lp.(IntegerValue), rp.(IntegerValue)
		switch op {
		case OpAdd:
			return a.Add(b), nil
		case OpSub:
			return a.Sub(b), nil
		case OpMul:
			return a.Mul(b), nil
		case OpDiv:
			return DecimalValueOfInteger(a).Div(DecimalValueOfInteger(b))
		case OpIDiv:
			return a.IDiv(b)
		case OpMod:
			return a.Mod(b)
		}
	case TDecimal:
		a, b := lp.(DecimalValue), rp.(DecimalValue)
		switch op {
		case OpAdd:
			return a.Add(b)
		case OpSub:
			return a.Sub(b)
		case OpMul:
			return a.Mul(b)
		case OpDiv:
			return a.Div(b)
		case OpIDiv:
			q, err := a.Div(b)
			if err != nil {
				return nil, err
			}
			return IntegerValueOfBig(truncateDecimalToBigInt(q)), nil
		case OpMod:
			q, err := a.Div(b)
			if err != nil {
				return nil, err
			}
			qi := IntegerValueOfBig(truncateDecimalToBigInt(q))
			prod, err := DecimalValueOfInteger(qi).Mul(b)
			if err != nil {
				return nil, err
			}
			return a.Sub(prod)
		}
	case TFloat:
		a, b := float32(lp.(FloatValue)), float32(rp.(FloatValue))
		return floatArith(op, a, b, span)
	case TDouble:
		a, b := float64(lp.(DoubleValue)), float64(rp.(DoubleValue))
		return doubleArith(op, a, b, span)
	}
	return nil, Errorf(ErrXPTY0004, span, "unsupported numeric promotion target")
}

func floatArith(op Opcode, a, b float32, span Span) (AtomicValue, error) {
	switch op {
	case OpAdd:
		return FloatValue(a + b), nil
	case OpSub:
		return FloatValue(a - b), nil
	case OpMul:
		return FloatValue(a * b), nil
	case OpDiv:
		return FloatValue(a / b), nil
	case OpIDiv:
		if b == 0 {
			return nil, Errorf(ErrFOAR0001, span, "integer division by zero")
		}
		return IntegerValueOfInt64(int64(a / b)), nil
	case OpMod:
		return FloatValue(float32(int64(a)%int64(b)) + (a - float32(int64(a/b))*b)), nil
	}
	return nil, Errorf(ErrXPTY0004, span, "unsupported xs:float operator")
}

func doubleArith(op Opcode, a, b float64, span Span) (AtomicValue, error) {
	switch op {
	case OpAdd:
		return DoubleValue(a + b), nil
	case OpSub:
		return DoubleValue(a - b), nil
	case OpMul:
		return DoubleValue(a * b), nil
	case OpDiv:
		return DoubleValue(a / b), nil
	case OpIDiv:
		if b == 0 {
			return nil, Errorf(ErrFOAR0001, span, "integer division by zero")
		}
		return IntegerValueOfInt64(int64(a / b)), nil
	case OpMod:
		return DoubleValue(a - b*float64(int64(a/b))), nil
	}
	return nil, Errorf(ErrXPTY0004, span, "unsupported xs:double operator")
}

func (vm *VM) execNegate(ins Instruction) error {
	v := vm.pop()
	a, err := Atomize(v)
	if err != nil {
		return err
	}
	if a.IsEmpty() {
		vm.push(EmptySequence())
		return nil
	}
	av, err := singletonAtomic(a, ins.Span)
	if err != nil {
		return err
	}
	switch n := av.(type) {
	case IntegerValue:
		vm.push(Singleton(NewAtomic(n.Negate())))
	case DecimalValue:
		neg, err := DecimalValueOfInt64(0).Sub(n)
		if err != nil {
			return err
		}
		vm.push(Singleton(NewAtomic(neg)))
	case FloatValue:
		vm.push(Singleton(NewAtomic(FloatValue(-n))))
	case DoubleValue:
		vm.push(Singleton(NewAtomic(DoubleValue(-n))))
	default:
		return Errorf(ErrXPTY0004, ins.Span, "unary minus requires a numeric operand")
	}
	return nil
}

func (vm *VM) execValueCmp(op CompareOp, span Span) error {
	r := vm.pop()
	l := vm.pop()
	la, err := Atomize(l)
	if err != nil {
		return err
	}
	ra, err := Atomize(r)
	if err != nil {
		return err
	}
	if la.IsEmpty() || ra.IsEmpty() {
		vm.push(EmptySequence())
		return nil
	}
	lv, err := singletonAtomic(la, span)
	if err != nil {
		return err
	}
	rv, err := singletonAtomic(ra, span)
	if err != nil {
		return err
	}
	cmp, err := compareAtomics(lv, rv, span)
	if err != nil {
		return err
	}
	vm.push(Singleton(NewAtomic(BooleanValue(matchCompare(op, cmp)))))
	return nil
}

// execGeneralCmp implements existential sequence comparison: true iff
// some pair of (atomized) operands from either side satisfies op,
// applying untyped-atomic-to-the-other-side's-type coercion per the
// general-comparison rules.
func (vm *VM) execGeneralCmp(op CompareOp, span Span) error {
	r := vm.pop()
	l := vm.pop()
	la, err := Atomize(l)
	if err != nil {
		return err
	}
	ra, err := Atomize(r)
	if err != nil {
		return err
	}
	for _, li := range la {
		lv := li.(Atomic).Value
		for _, ri := range ra {
			rv := ri.(Atomic).Value
			cmp, err := compareAtomics(lv, rv, span)
			if err != nil {
				continue
			}
			if matchCompare(op, cmp) {
				vm.push(Singleton(NewAtomic(BooleanValue(true))))
				return nil
			}
		}
	}
	vm.push(Singleton(NewAtomic(BooleanValue(false))))
	return nil
}

func matchCompare(op CompareOp, cmp int) bool {
	switch op {
	case CmpEq:
		return cmp == 0
	case CmpNe:
		return cmp != 0
	case CmpLt:
		return cmp < 0
	case CmpLe:
		return cmp <= 0
	case CmpGt:
		return cmp > 0
	case CmpGe:
		return cmp >= 0
	}
	return false
}

// compareAtomics orders two atomic values, promoting untypedAtomic to
// the other operand's type and numerics to their common type, the way
// specifies for both value and general comparison.
func compareAtomics(lv, rv AtomicValue, span Span) (int, error) {
	if u, ok := lv.(UntypedAtomicValue); ok {
		if !IsNumeric(rv.AtomicType()) {
			lv2, err := CastAtomic(u, rv.AtomicType(), span)
			if err != nil {
				return 0, err
			}
			lv = lv2
		} else {
			lv2, err := castToDouble(u, string(u), span)
			if err != nil {
				return 0, err
			}
			lv = lv2
		}
	}
	if u, ok := rv.(UntypedAtomicValue); ok {
		if !IsNumeric(lv.AtomicType()) {
			rv2, err := CastAtomic(u, lv.AtomicType(), span)
			if err != nil {
				return 0, err
			}
			rv = rv2
		} else {
			rv2, err := castToDouble(u, string(u), span)
			if err != nil {
				return 0, err
			}
			rv = rv2
		}
	}
	if IsNumeric(lv.AtomicType()) && IsNumeric(rv.AtomicType()) {
		target := PromoteNumeric(lv.AtomicType(), rv.AtomicType())
		lp, err := convertOneAtomic(lv, target, span)
		if err != nil {
			return 0, err
		}
		rp, err := convertOneAtomic(rv, target, span)
		if err != nil {
			return 0, err
		}
		switch target {
		case TInteger:
			return lp.(IntegerValue).Cmp(rp.(IntegerValue)), nil
		case TDecimal:
			return lp.(DecimalValue).Cmp(rp.(DecimalValue)), nil
		case TFloat:
			return cmpFloat64(float64(lp.(FloatValue)), float64(rp.(FloatValue))), nil
		case TDouble:
			return cmpFloat64(float64(lp.(DoubleValue)), float64(rp.(DoubleValue))), nil
		}
	}
	switch a := lv.(type) {
	case StringValue:
		b := rv.(StringValue)
		return cmpString(string(a), string(b)), nil
	case BooleanValue:
		b := rv.(BooleanValue)
		return cmpBool(bool(a), bool(b)), nil
	case AnyURIValue:
		b := rv.(AnyURIValue)
		return cmpString(string(a), string(b)), nil
	}
	return 0, Errorf(ErrXPTY0004, span, "values are not comparable: %s vs %s", lv, rv)
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (vm *VM) execNodeCmp(ins Instruction) error {
	r := vm.pop()
	l := vm.pop()
	if l.IsEmpty() || r.IsEmpty() {
		vm.push(EmptySequence())
		return nil
	}
	ln, ok := l[0].(Node)
	if !ok {
		return Errorf(ErrXPTY0004, ins.Span, "node comparison operand is not a node")
	}
	rn, ok := r[0].(Node)
	if !ok {
		return Errorf(ErrXPTY0004, ins.Span, "node comparison operand is not a node")
	}
	var result bool
	switch ins.Op {
	case OpNodeIs:
		result = ln.SameNode(rn)
	case OpNodeBefore:
		result = ln.DocumentOrderKey() < rn.DocumentOrderKey()
	case OpNodeAfter:
		result = ln.DocumentOrderKey() > rn.DocumentOrderKey()
	}
	vm.push(Singleton(NewAtomic(BooleanValue(result))))
	return nil
}

func (vm *VM) execAndOr(ins Instruction) error {
	r := vm.pop()
	l := vm.pop()
	lb, err := EffectiveBooleanValue(l)
	if err != nil {
		return WrapError(ErrFORG0006, ins.Span, err)
	}
	rb, err := EffectiveBooleanValue(r)
	if err != nil {
		return WrapError(ErrFORG0006, ins.Span, err)
	}
	var result bool
	if ins.Op == OpAnd {
		result = lb && rb
	} else {
		result = lb || rb
	}
	vm.push(Singleton(NewAtomic(BooleanValue(result))))
	return nil
}

func (vm *VM) execRange(ins Instruction) error {
	r := vm.pop()
	l := vm.pop()
	lv, err := singletonAtomic(l, ins.Span)
	if err != nil {
		return err
	}
	rv, err := singletonAtomic(r, ins.Span)
	if err != nil {
		return err
	}
	li, ok := lv.(IntegerValue)
	if !ok {
		return Errorf(ErrXPTY0004, ins.Span, "`to` operands must be xs:integer")
	}
	ri, ok := rv.(IntegerValue)
	if !ok {
		return Errorf(ErrXPTY0004, ins.Span, "`to` operands must be xs:integer")
	}
	lo, _ := li.Int64()
	hi, _ := ri.Int64()
	var out Sequence
	for n := lo; n <= hi; n++ {
		out = append(out, NewAtomic(IntegerValueOfInt64(n)))
	}
	vm.push(out)
	return nil
}

func (vm *VM) execNodeSetOp(ins Instruction) error {
	r := vm.pop()
	l := vm.pop()
	seen := make(map[uint64]Item)
	order := func(s Sequence) []Node {
		out := make([]Node, 0, len(s))
		for _, it := range s {
			if n, ok := it.(Node); ok {
				out = append(out, n)
			}
		}
		return out
	}
	ln, rn := order(l), order(r)
	switch ins.Op {
	case OpUnion:
		for _, n := range ln {
			seen[n.DocumentOrderKey()] = n
		}
		for _, n := range rn {
			seen[n.DocumentOrderKey()] = n
		}
	case OpIntersect:
		rset := make(map[uint64]bool, len(rn))
		for _, n := range rn {
			rset[n.DocumentOrderKey()] = true
		}
		for _, n := range ln {
			if rset[n.DocumentOrderKey()] {
				seen[n.DocumentOrderKey()] = n
			}
		}
	case OpExcept:
		rset := make(map[uint64]bool, len(rn))
		for _, n := range rn {
			rset[n.DocumentOrderKey()] = true
		}
		for _, n := range ln {
			if !rset[n.DocumentOrderKey()] {
				seen[n.DocumentOrderKey()] = n
			}
		}
	}
	keys := make([]uint64, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sortUint64s(keys)
	out := make(Sequence, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	vm.push(out)
	return nil
}

func sortUint64s(keys []uint64) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}

func (vm *VM) execCastAs(ins Instruction, castable bool) error {
	v := vm.pop()
	tc := vm.prog.Constants[ins.A].(sequenceTypeConst)
	av, err := Atomize(v)
	if err != nil {
		return err
	}
	if av.IsEmpty() {
		if tc.T.Occurrence == OccurOptional || tc.T.Occurrence == OccurZeroOrMore {
			vm.push(EmptySequence())
			return nil
		}
		return Errorf(ErrXPTY0004, ins.Span, "cannot cast empty sequence to %s", tc.T.Item.Kind.Atomic)
	}
	a, err := singletonAtomic(av, ins.Span)
	if err != nil {
		return err
	}
	cast, err := CastAtomic(a, tc.T.Item.Kind.Atomic, ins.Span)
	if err != nil {
		return err
	}
	vm.push(Singleton(NewAtomic(cast)))
	return nil
}

func (vm *VM) execCastableAs(ins Instruction) error {
	v := vm.pop()
	tc := vm.prog.Constants[ins.A].(sequenceTypeConst)
	av, err := Atomize(v)
	if err != nil {
		vm.push(Singleton(NewAtomic(BooleanValue(false))))
		return nil
	}
	if av.IsEmpty() {
		ok := tc.T.Occurrence == OccurOptional || tc.T.Occurrence == OccurZeroOrMore
		vm.push(Singleton(NewAtomic(BooleanValue(ok))))
		return nil
	}
	a, err := singletonAtomic(av, ins.Span)
	if err != nil {
		vm.push(Singleton(NewAtomic(BooleanValue(false))))
		return nil
	}
	_, err = CastAtomic(a, tc.T.Item.Kind.Atomic, ins.Span)
	vm.push(Singleton(NewAtomic(BooleanValue(err == nil))))
	return nil
}

func (vm *VM) execTreatAs(ins Instruction) error {
	v := vm.pop()
	tc := vm.prog.Constants[ins.A].(sequenceTypeConst)
	if !tc.T.MatchesLength(len(v)) {
		return Errorf(ErrXTTE0570, ins.Span, "treat as: sequence length %d does not match %s", len(v), tc.T.Occurrence)
	}
	vm.push(v)
	return nil
}

func (vm *VM) execInstanceOf(ins Instruction) error {
	v := vm.pop()
	tc := vm.prog.Constants[ins.A].(sequenceTypeConst)
	result := instanceOfMatches(v, tc.T)
	vm.push(Singleton(NewAtomic(BooleanValue(result))))
	return nil
}

func instanceOfMatches(v Sequence, t SequenceType) bool {
	if !t.MatchesLength(len(v)) {
		return false
	}
	for _, it := range v {
		switch t.Item.Kind.ItemKind {
		case ItemKindAny:
			continue
		case ItemKindAtomic:
			a, ok := it.(Atomic)
			if !ok || !IsSubtype(a.Value.AtomicType(), t.Item.Kind.Atomic) {
				return false
			}
		case ItemKindNode:
			if _, ok := it.(Node); !ok {
				return false
			}
		case ItemKindFunction:
			if _, ok := it.(*FunctionValue); !ok {
				return false
			}
		case ItemKindMap:
			if _, ok := it.(*MapValue); !ok {
				return false
			}
		case ItemKindArray:
			if _, ok := it.(*ArrayValue); !ok {
				return false
			}
		}
	}
	return true
}

func (vm *VM) execPartialApply(ins Instruction) error {
	hc := vm.prog.Constants[ins.A].(holeMaskConst)
	bound := vm.popN(ins.B)
	fnSeq := vm.pop()
	f, ok := fnSeq[0].(*FunctionValue)
	if !ok {
		return Errorf(ErrXPTY0004, ins.Span, "partial application target is not a function item")
	}
	args := make([]Sequence, len(hc.Mask))
	bi := 0
	for i, hole := range hc.Mask {
		if !hole {
			args[i] = bound[bi]
			bi++
		}
	}
	vm.push(Singleton(applyPartial(f, args, hc.Mask)))
	return nil
}

func (vm *VM) execCall(ins Instruction) error {
	c := vm.prog.Constants[ins.A].(functionDescriptorConst)
	args := vm.popN(ins.B)
	converted := make([]Sequence, len(args))
	for i, a := range args {
		cv, err := ConvertArgument(a, c.D.Signature.Params[i], ins.Span)
		if err != nil {
			return err
		}
		converted[i] = cv
	}
	result, err := c.D.Impl(vm.dctx, converted)
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}

func (vm *VM) execCallDynamic(ins Instruction) error {
	args := vm.popN(ins.B)
	fnSeq := vm.pop()
	if a, ok := fnSeq[0].(*ArrayValue); ok && len(args) == 1 {
		idx, _, err := argInteger(args, 0)
		if err != nil {
			return err
		}
		v, err := a.Get(int(idx))
		if err != nil {
			return err
		}
		vm.push(v)
		return nil
	}
	f, ok := fnSeq[0].(*FunctionValue)
	if !ok {
		return Errorf(ErrXPTY0004, ins.Span, "attempt to call a non-function item")
	}
	result, err := vm.callFunction(f, args)
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}

// callFunction resolves and invokes a function item (named, inline, or
// partial), independent of any particular bytecode instruction. It backs
// both OpCallDynamic and DynamicContext.Invoke, the hook stdlib functions
// taking a function-item argument (fn:for-each, fn:filter, fn:fold-left, ...)
// call back through.
func (vm *VM) callFunction(f *FunctionValue, args []Sequence) (Sequence, error) {
	resolved, fullArgs := resolveCall(f, args)
	switch resolved.Kind {
	case FuncNamed:
		desc, ok := vm.prog.Static.Functions.Lookup(resolved.Name, len(fullArgs))
		if !ok {
			return nil, Errorf(ErrXPST0017, Span{}, "unknown function %s#%d", resolved.Name, len(fullArgs))
		}
		return desc.Impl(vm.dctx, fullArgs)
	case FuncInline:
		fn := &CompiledFunction{Entry: resolved.Entry, NumParams: resolved.Arity}
		allLocals := append(append([]Sequence{}, fullArgs...), resolved.Captured...)
		fn.NumLocals = len(allLocals)
		vm.pushFrame(fn, allLocals)
		return vm.exec()
	default:
		return nil, fmt.Errorf("unresolved function kind %v after resolveCall", resolved.Kind)
	}
}

// execAxisStep evaluates one axis::test[predicates] step over the
// context sequence's nodes, applying each compiled predicate function
// natively per candidate rather than through further bytecode, per
// core/lower.go's lowerPathStep design note.
func (vm *VM) execAxisStep(ins Instruction) error {
	ctxSeq := vm.pop()
	// Predicate capture values are read out of the frame that is
	// current right now (the step's own enclosing function), before any
	// predicate call pushes further frames on top of it.
	callerLocals := vm.top().locals
	var out Sequence
	axis := Axis(ins.A)
	for _, ctxItem := range ctxSeq {
		ctxNode, ok := ctxItem.(Node)
		if !ok {
			return Errorf(ErrXPTY0004, ins.Span, "axis step requires a node context item")
		}
		candidates := axisNodes(ctxNode, axis)
		filtered := make([]Node, 0, len(candidates))
		for _, n := range candidates {
			if nodeTestMatches(n, ins.NodeTestKind, ins.NodeTestName, ins.NodeKindWant) {
				filtered = append(filtered, n)
			}
		}
		for i, predFn := range ins.PredicateFuncs {
			var captured []int
			if i < len(ins.PredicateCaptureSlots) {
				captured = ins.PredicateCaptureSlots[i]
			}
			filtered = vm.applyPredicate(filtered, predFn, captured, callerLocals, ins.Span)
		}
		for _, n := range filtered {
			out = append(out, n)
		}
	}
	vm.push(out)
	return nil
}

// execFilter applies a FilterExpr's predicate to each item of the
// popped sequence in turn, over arbitrary items rather than only nodes
// (see core/lower.go's lowerFilter); the keep/discard rule is shared
// with path-step predicates via predicateKeeps.
func (vm *VM) execFilter(ins Instruction) error {
	items := vm.pop()
	fnIndex := ins.PredicateFuncs[0]
	captureSlots := ins.PredicateCaptureSlots[0]
	fn := vm.prog.Functions[fnIndex]
	callerLocals := vm.top().locals
	captured := make([]Sequence, len(captureSlots))
	for i, slot := range captureSlots {
		captured[i] = callerLocals[slot]
	}

	size := len(items)
	savedItem, savedPos, savedSize := vm.dctx.ContextItem, vm.dctx.ContextPosition, vm.dctx.ContextSize
	defer func() {
		vm.dctx.ContextItem, vm.dctx.ContextPosition, vm.dctx.ContextSize = savedItem, savedPos, savedSize
	}()

	var out Sequence
	for i, it := range items {
		vm.dctx.ContextItem = it
		vm.dctx.ContextPosition = i + 1
		vm.dctx.ContextSize = size
		locals := make([]Sequence, 0, 1+len(captured))
		locals = append(locals, Singleton(it))
		locals = append(locals, captured...)
		callFn := &CompiledFunction{Entry: fn.Entry, NumParams: 1, NumLocals: fn.NumLocals}
		vm.pushFrame(callFn, locals)
		result, err := vm.exec()
		if err != nil {
			return err
		}
		keep, err := predicateKeeps(result, i+1)
		if err != nil {
			return err
		}
		if keep {
			out = append(out, it)
		}
	}
	vm.push(out)
	return nil
}

func (vm *VM) applyPredicate(candidates []Node, fnIndex int, captureSlots []int, callerLocals []Sequence, span Span) []Node {
	fn := vm.prog.Functions[fnIndex]
	var survivors []Node
	size := len(candidates)
	savedItem, savedPos, savedSize := vm.dctx.ContextItem, vm.dctx.ContextPosition, vm.dctx.ContextSize
	defer func() {
		vm.dctx.ContextItem, vm.dctx.ContextPosition, vm.dctx.ContextSize = savedItem, savedPos, savedSize
	}()
	captured := make([]Sequence, len(captureSlots))
	for i, slot := range captureSlots {
		captured[i] = callerLocals[slot]
	}
	for i, n := range candidates {
		vm.dctx.ContextItem = n
		vm.dctx.ContextPosition = i + 1
		vm.dctx.ContextSize = size
		locals := make([]Sequence, 0, 1+len(captured))
		locals = append(locals, Singleton(n))
		locals = append(locals, captured...)
		callFn := &CompiledFunction{Entry: fn.Entry, NumParams: 1, NumLocals: fn.NumLocals}
		vm.pushFrame(callFn, locals)
		result, err := vm.exec()
		if err != nil {
			continue
		}
		keep, err := predicateKeeps(result, i+1)
		if err != nil || !keep {
			continue
		}
		survivors = append(survivors, n)
	}
	return survivors
}

// predicateKeeps implements predicate-truth rule: a numeric
// result is compared to the 1-based candidate position, anything else
// is coerced to its effective boolean value.
func predicateKeeps(result Sequence, position int) (bool, error) {
	atomized, err := Atomize(result)
	if err != nil {
		return false, err
	}
	if len(atomized) == 1 {
		if a, ok := atomized[0].(Atomic); ok && IsNumeric(a.Value.AtomicType()) {
			n, err := atomicToFloat64(a.Value, a.Value.String(), Span{})
			if err != nil {
				return false, err
			}
			return int(n) == position && float64(int(n)) == n, nil
		}
	}
	return EffectiveBooleanValue(atomized)
}

// nodeTestMatches applies one path step's node test. ItemKindAny is a
// bare wildcard (`node()` or `*`) matching any node regardless of kind
// or name; ItemKindNode means the step names a specific node kind
// (TestNode, which may legitimately be NodeDocument's zero value) and
// optionally a name test on top of it.
func nodeTestMatches(n Node, kind ItemTypeKind, name *Name, nodeKind NodeKind) bool {
	if kind == ItemKindAny {
		return true
	}
	if n.Kind() != nodeKind {
		return false
	}
	if name != nil && !n.NodeName().Equal(*name) {
		return false
	}
	return true
}

// axisNodes materializes one axis's candidate set from a context node.
// Document-order-dependent axes (following/preceding) are approximated
// here via the sibling/ancestor accessors Node already exposes; a full
// document-order walk belongs to the xmltree package that implements
// Node, not to the VM.
func axisNodes(n Node, axis Axis) []Node {
	switch axis {
	case AxisSelf:
		return []Node{n}
	case AxisChild:
		return n.Children()
	case AxisAttribute:
		return n.Attributes()
	case AxisNamespace:
		return n.Namespaces()
	case AxisParent:
		if p, ok := n.Parent(); ok {
			return []Node{p}
		}
		return nil
	case AxisFollowingSibling:
		return n.FollowingSiblings()
	case AxisPrecedingSibling:
		return n.PrecedingSiblings()
	case AxisDescendant:
		return descendants(n, false)
	case AxisDescendantOrSelf:
		return descendants(n, true)
	case AxisAncestor:
		return ancestors(n, false)
	case AxisAncestorOrSelf:
		return ancestors(n, true)
	case AxisFollowing:
		var out []Node
		for _, s := range n.FollowingSiblings() {
			out = append(out, s)
			out = append(out, descendants(s, false)...)
		}
		return out
	case AxisPreceding:
		var out []Node
		for _, s := range n.PrecedingSiblings() {
			out = append(out, s)
			out = append(out, descendants(s, false)...)
		}
		return out
	}
	return nil
}

func descendants(n Node, includeSelf bool) []Node {
	var out []Node
	if includeSelf {
		out = append(out, n)
	}
	for _, c := range n.Children() {
		out = append(out, descendants(c, true)...)
	}
	return out
}

func ancestors(n Node, includeSelf bool) []Node {
	var out []Node
	if includeSelf {
		out = append(out, n)
	}
	for p, ok := n.Parent(); ok; p, ok = p.Parent() {
		out = append(out, p)
	}
	return out
}
