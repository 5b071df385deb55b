package core

// emitter accumulates the single flat instruction stream shared by every
// compiled function in a Program. Function entry offsets are known as
// soon as each function finishes compiling, since functions compile
// strictly one at a time and control never jumps between them except
// via OpCall.
type emitter struct {
	prog *Program
}

func (e *emitter) emit(ins Instruction) int {
	e.prog.Instructions = append(e.prog.Instructions, ins)
	return len(e.prog.Instructions) - 1
}

func (e *emitter) here() int { return len(e.prog.Instructions) }

func (e *emitter) patchTarget(at int, target int) {
	e.prog.Instructions[at].A = target
}

// funcScope tracks local-slot allocation for one CompiledFunction being
// lowered. Slots 0..NumParams-1 are parameters (in declaration order);
// slots NumParams..NumParams+len(FreeVars)-1 are captured free
// variables (in capture order, populated from the closure's Captured
// slice at call time); every further let-bound variable gets the next
// free slot as its binding is lowered.
type funcScope struct {
	parent *funcScope
	slots  map[string]int
	next   int
}

func newFuncScope(parent *funcScope) *funcScope {
	return &funcScope{parent: parent, slots: make(map[string]int)}
}

func (s *funcScope) declare(name string) int {
	slot := s.next
	s.slots[name] = slot
	s.next++
	return slot
}

func (s *funcScope) resolve(name string) (int, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if slot, ok := cur.slots[name]; ok {
			return slot, true
		}
	}
	return 0, false
}

// Lower compiles an IR tree (as produced by core/irbuild.go) into a
// Program ready for the VM. body is the top-level query body; static is
// the compile-time context it was built against.
func Lower(static *StaticContext, body IRNode) (*Program, error) {
	prog := &Program{Static: static}
	e := &emitter{prog: prog}

	fn := &CompiledFunction{Entry: 0}
	prog.Functions = append(prog.Functions, fn)
	prog.EntryFunc = 0

	sc := newFuncScope(nil)
	if err := lowerExprBody(body, sc, e, prog); err != nil {
		return nil, err
	}
	e.emit(Instruction{Op: OpReturn})
	fn.NumLocals = sc.next

	return prog, nil
}

// lowerExprBody lowers a Let/Return chain so that exactly one Sequence
// is left on the VM value stack, without emitting a Return instruction;
// callers that are compiling a whole function body append OpReturn
// themselves (see Lower and compileFunction).
func lowerExprBody(node IRNode, sc *funcScope, e *emitter, prog *Program) error {
	switch n := node.(type) {
	case *Let:
		if err := lowerAtom(n.Bind, sc, e, prog); err != nil {
			return err
		}
		slot := sc.declare(n.Var)
		e.emit(Instruction{Op: OpSetLocal, A: slot, Span: n.Span_})
		return lowerExprBody(n.Body, sc, e, prog)
	case *Return:
		return lowerAtom(n.Value, sc, e, prog)
	default:
		return Errorf(ErrXPST0003, node.SourceSpan(), "malformed IR: expected let/return chain, got %T", node)
	}
}

func lowerVar(name string, sc *funcScope, e *emitter, span Span) error {
	slot, ok := sc.resolve(name)
	if !ok {
		return Errorf(ErrXPST0008, span, "unbound variable $%s", name)
	}
	e.emit(Instruction{Op: OpGetLocal, A: slot, Span: span})
	return nil
}

func lowerAtom(a Atom, sc *funcScope, e *emitter, prog *Program) error {
	switch n := a.(type) {
	case *ConstAtom:
		idx := prog.addConst(n.Value)
		e.emit(Instruction{Op: OpConst, A: idx, Span: n.Span_})
		return nil

	case *VarRefAtom:
		return lowerVar(n.Name, sc, e, n.Span_)

	case *ContextItemAtom:
		e.emit(Instruction{Op: OpContextItem, Span: n.Span_})
		return nil

	case *BinOpAtom:
		if err := lowerVar(n.Left, sc, e, n.Span_); err != nil {
			return err
		}
		if err := lowerVar(n.Right, sc, e, n.Span_); err != nil {
			return err
		}
		return emitBinOp(n, e)

	case *UnaryOpAtom:
		if err := lowerVar(n.Operand, sc, e, n.Span_); err != nil {
			return err
		}
		switch n.Kind {
		case UnaryNeg:
			e.emit(Instruction{Op: OpNeg, Span: n.Span_})
		case UnaryNot:
			e.emit(Instruction{Op: OpNot, Span: n.Span_})
		}
		return nil

	case *IfAtom:
		if err := lowerVar(n.Cond, sc, e, n.Span_); err != nil {
			return err
		}
		jmpElse := e.emit(Instruction{Op: OpJumpIfFalse, Span: n.Span_})
		if err := lowerExprBody(n.Then, sc, e, prog); err != nil {
			return err
		}
		jmpEnd := e.emit(Instruction{Op: OpJump, Span: n.Span_})
		e.patchTarget(jmpElse, e.here())
		if err := lowerExprBody(n.Else, sc, e, prog); err != nil {
			return err
		}
		e.patchTarget(jmpEnd, e.here())
		return nil

	case *ForAtom:
		if err := lowerVar(n.Seq, sc, e, n.Span_); err != nil {
			return err
		}
		e.emit(Instruction{Op: OpIterStart, Span: n.Span_})
		e.emit(Instruction{Op: OpEmptySeq, Span: n.Span_}) // accumulator, concatenated into on each iteration
		loopTop := e.here()
		e.emit(Instruction{Op: OpIterNext, Span: n.Span_})
		jmpDone := e.emit(Instruction{Op: OpJumpIfFalse, Span: n.Span_})
		slot := sc.declare(n.Var)
		e.emit(Instruction{Op: OpSetLocal, A: slot, Span: n.Span_})
		if err := lowerExprBody(n.Body, sc, e, prog); err != nil {
			return err
		}
		// The accumulator pushed before the loop and the body's result
		// sit as the two top stack values here; concatenate them into
		// the new accumulator before looping back.
		e.emit(Instruction{Op: OpSeqConcat, A: 2, Span: n.Span_})
		e.emit(Instruction{Op: OpJump, A: loopTop, Span: n.Span_})
		e.patchTarget(jmpDone, e.here())
		e.emit(Instruction{Op: OpIterClose, Span: n.Span_})
		return nil

	case *QuantifiedAtom:
		return lowerQuantified(n, sc, e, prog)

	case *ConvertAtom:
		if err := lowerVar(n.Operand, sc, e, n.Span_); err != nil {
			return err
		}
		idx := prog.addConst(sequenceTypeConst{n.Target})
		switch n.Kind {
		case ConvCastAs:
			e.emit(Instruction{Op: OpCastAs, A: idx, Span: n.Span_})
		case ConvCastableAs:
			e.emit(Instruction{Op: OpCastableAs, A: idx, Span: n.Span_})
		case ConvTreatAs:
			e.emit(Instruction{Op: OpTreatAs, A: idx, Span: n.Span_})
		case ConvInstanceOf:
			e.emit(Instruction{Op: OpInstanceOf, A: idx, Span: n.Span_})
		}
		return nil

	case *CallAtom:
		for _, arg := range n.Args {
			if err := lowerVar(arg, sc, e, n.Span_); err != nil {
				return err
			}
		}
		name := Name{URI: n.URI, Local: n.Name}
		desc, ok := prog.Static.Functions.Lookup(name, len(n.Args))
		if !ok {
			return Errorf(ErrXPST0017, n.Span_, "unknown function %s#%d", name, len(n.Args))
		}
		idx := prog.addConst(functionDescriptorConst{desc})
		e.emit(Instruction{Op: OpCall, A: idx, B: len(n.Args), Span: n.Span_})
		return nil

	case *NamedFuncRefAtom:
		name := Name{URI: n.URI, Local: n.Name}
		desc, ok := prog.Static.Functions.Lookup(name, n.Arity)
		if !ok {
			return Errorf(ErrXPST0017, n.Span_, "unknown function %s#%d", name, n.Arity)
		}
		idx := prog.addConst(functionDescriptorConst{desc})
		e.emit(Instruction{Op: OpMakeNamedFunc, A: idx, Span: n.Span_})
		return nil

	case *DynamicCallAtom:
		if err := lowerVar(n.Func, sc, e, n.Span_); err != nil {
			return err
		}
		for _, arg := range n.Args {
			if err := lowerVar(arg, sc, e, n.Span_); err != nil {
				return err
			}
		}
		e.emit(Instruction{Op: OpCallDynamic, B: len(n.Args), Span: n.Span_})
		return nil

	case *PartialApplyAtom:
		if err := lowerVar(n.Func, sc, e, n.Span_); err != nil {
			return err
		}
		holeMask := make([]bool, len(n.Args))
		pushed := 0
		for i, arg := range n.Args {
			if arg == nil {
				holeMask[i] = true
				continue
			}
			if err := lowerVar(*arg, sc, e, n.Span_); err != nil {
				return err
			}
			pushed++
		}
		idx := prog.addConst(holeMaskConst{holeMask})
		e.emit(Instruction{Op: OpPartialApply, A: idx, B: pushed, Span: n.Span_})
		return nil

	case *InlineFuncAtom:
		return lowerInlineFunc(n, sc, e, prog)

	case *SequenceConstructAtom:
		for _, item := range n.Items {
			if err := lowerVar(item, sc, e, n.Span_); err != nil {
				return err
			}
		}
		e.emit(Instruction{Op: OpSeqConcat, A: len(n.Items), Span: n.Span_})
		return nil

	case *MapConstructAtom:
		e.emit(Instruction{Op: OpMakeMap, Span: n.Span_})
		for i := range n.Keys {
			if err := lowerVar(n.Keys[i], sc, e, n.Span_); err != nil {
				return err
			}
			if err := lowerVar(n.Values[i], sc, e, n.Span_); err != nil {
				return err
			}
			e.emit(Instruction{Op: OpMapPut, Span: n.Span_})
		}
		return nil

	case *ArrayConstructAtom:
		for _, m := range n.Members {
			if err := lowerVar(m, sc, e, n.Span_); err != nil {
				return err
			}
		}
		e.emit(Instruction{Op: OpMakeArray, A: len(n.Members), Span: n.Span_})
		return nil

	case *MapLookupAtom:
		if err := lowerVar(n.Map, sc, e, n.Span_); err != nil {
			return err
		}
		if err := lowerVar(n.Key, sc, e, n.Span_); err != nil {
			return err
		}
		e.emit(Instruction{Op: OpMapGet, Span: n.Span_})
		return nil

	case *ArrayLookupAtom:
		if err := lowerVar(n.Array, sc, e, n.Span_); err != nil {
			return err
		}
		if err := lowerVar(n.Index, sc, e, n.Span_); err != nil {
			return err
		}
		e.emit(Instruction{Op: OpArrayGet, Span: n.Span_})
		return nil

	case *PathStepAtom:
		return lowerPathStep(n, sc, e, prog)

	case *FilterAtom:
		return lowerFilter(n, sc, e, prog)

	case *TryCatchAtom:
		return lowerTryCatch(n, sc, e, prog)

	default:
		return Errorf(ErrXPST0003, a.SourceSpan(), "lowering not implemented for atom %T", a)
	}
}

// sequenceTypeConst and functionDescriptorConst let CastAs/Call carry a
// non-Item payload through the constant pool without widening Item's
// interface; the VM type-switches on them only at the handful of sites
// that need them.
type sequenceTypeConst struct{ T SequenceType }

func (sequenceTypeConst) ItemKind() ItemTypeKind { return ItemKindAny }
func (s sequenceTypeConst) String() string       { return "sequence-type" }

type functionDescriptorConst struct{ D *FunctionDescriptor }

func (functionDescriptorConst) ItemKind() ItemTypeKind { return ItemKindAny }
func (f functionDescriptorConst) String() string       { return f.D.Signature.Name.String() }

// holeMaskConst records, for one PartialApplyAtom, which argument
// positions are holes; computed statically at lowering time since
// PartialApplyAtom.Args already marks holes with nil entries, so there
// is no need to re-derive it from runtime stack values.
type holeMaskConst struct{ Mask []bool }

func (holeMaskConst) ItemKind() ItemTypeKind { return ItemKindAny }
func (holeMaskConst) String() string         { return "hole-mask" }

// codesConst carries one catch clause's static list of error codes for
// OpCodeMatch; an empty Codes list is never stored this way (catch-all
// clauses skip matching entirely, see lowerTryCatch).
type codesConst struct{ Codes []string }

func (codesConst) ItemKind() ItemTypeKind { return ItemKindAny }
func (codesConst) String() string         { return "catch-codes" }

func emitBinOp(n *BinOpAtom, e *emitter) error {
	span := n.Span_
	switch n.Kind {
	case BinArith:
		switch n.Op {
		case "+":
			e.emit(Instruction{Op: OpAdd, Span: span})
		case "-":
			e.emit(Instruction{Op: OpSub, Span: span})
		case "*":
			e.emit(Instruction{Op: OpMul, Span: span})
		case "div":
			e.emit(Instruction{Op: OpDiv, Span: span})
		case "idiv":
			e.emit(Instruction{Op: OpIDiv, Span: span})
		case "mod":
			e.emit(Instruction{Op: OpMod, Span: span})
		default:
			return Errorf(ErrXPST0003, span, "unknown arithmetic operator %q", n.Op)
		}
	case BinValueCompare, BinGeneralCompare:
		op, err := compareOpOf(n.Op)
		if err != nil {
			return err
		}
		kind := OpValueCmp
		if n.Kind == BinGeneralCompare {
			kind = OpGeneralCmp
		}
		e.emit(Instruction{Op: kind, B: int(op), Span: span})
	case BinNodeCompare:
		switch n.Op {
		case "is":
			e.emit(Instruction{Op: OpNodeIs, Span: span})
		case "<<":
			e.emit(Instruction{Op: OpNodeBefore, Span: span})
		case ">>":
			e.emit(Instruction{Op: OpNodeAfter, Span: span})
		}
	case BinAnd:
		// Operands are already ANF-bound atoms by the time a BinOpAtom is
		// reached, so true lazy short-circuiting isn't observable here
		// except for error suppression, which XPath's `and`/`or` never
		// guarantee anyway; OpAnd/OpOr simply EBV-collapse both sides.
		e.emit(Instruction{Op: OpAnd, Span: span})
	case BinOr:
		e.emit(Instruction{Op: OpOr, Span: span})
	case BinStringConcat:
		e.emit(Instruction{Op: OpStringConcat, Span: span})
	case BinRange:
		e.emit(Instruction{Op: OpRange, Span: span})
	case BinUnion:
		e.emit(Instruction{Op: OpUnion, Span: span})
	case BinIntersect:
		e.emit(Instruction{Op: OpIntersect, Span: span})
	case BinExcept:
		e.emit(Instruction{Op: OpExcept, Span: span})
	}
	return nil
}

func compareOpOf(op string) (CompareOp, error) {
	switch op {
	case "eq", "=":
		return CmpEq, nil
	case "ne", "!=":
		return CmpNe, nil
	case "lt", "<":
		return CmpLt, nil
	case "le", "<=":
		return CmpLe, nil
	case "gt", ">":
		return CmpGt, nil
	case "ge", ">=":
		return CmpGe, nil
	}
	return 0, Errorf(ErrXPST0003, Span{}, "unknown comparison operator %q", op)
}

// lowerQuantified lowers `some`/`every $v in seq satisfies test` using
// the same iterate-and-accumulate shape as ForAtom, but short-circuiting
// on the first item whose test value (coerced to boolean) matches the
// quantifier's stopping condition (true for `some`, false for `every`),
// and folding to the quantifier's identity (false for `some`, true for
// `every`) if the input sequence is exhausted first.
func lowerQuantified(n *QuantifiedAtom, sc *funcScope, e *emitter, prog *Program) error {
	span := n.Span_

	if err := lowerVar(n.Seq, sc, e, span); err != nil {
		return err
	}
	e.emit(Instruction{Op: OpIterStart, Span: span})
	loopTop := e.here()
	e.emit(Instruction{Op: OpIterNext, Span: span})
	jmpExhausted := e.emit(Instruction{Op: OpJumpIfFalse, Span: span})
	slot := sc.declare(n.Var)
	e.emit(Instruction{Op: OpSetLocal, A: slot, Span: span})
	if err := lowerExprBody(n.Test, sc, e, prog); err != nil {
		return err
	}
	// The test body's result is not normalized by the IR builder; the
	// conditional jumps below take its effective boolean value
	// themselves (core/vm.go's OpJumpIfTrue/OpJumpIfFalse), so no
	// explicit cast is emitted.
	var stopJmp int
	if n.Kind == QuantSome {
		// `some`: a true test short-circuits the whole quantifier to true.
		stopJmp = e.emit(Instruction{Op: OpJumpIfTrue, Span: span})
	} else {
		// `every`: a false test short-circuits the whole quantifier to false.
		stopJmp = e.emit(Instruction{Op: OpJumpIfFalse, Span: span})
	}
	e.emit(Instruction{Op: OpJump, A: loopTop, Span: span})

	e.patchTarget(stopJmp, e.here())
	e.emit(Instruction{Op: OpIterClose, Span: span})
	shortCircuitIdx := prog.addConst(NewAtomic(BooleanValue(n.Kind == QuantSome)))
	e.emit(Instruction{Op: OpConst, A: shortCircuitIdx, Span: span})
	jmpEnd := e.emit(Instruction{Op: OpJump, Span: span})

	e.patchTarget(jmpExhausted, e.here())
	e.emit(Instruction{Op: OpIterClose, Span: span})
	identityIdx := prog.addConst(NewAtomic(BooleanValue(n.Kind == QuantEvery)))
	e.emit(Instruction{Op: OpConst, A: identityIdx, Span: span})

	e.patchTarget(jmpEnd, e.here())
	return nil
}

// lowerInlineFunc compiles the body as a fresh CompiledFunction and
// leaves a closure-construction instruction that captures FreeVars from
// the enclosing scope by value.
func lowerInlineFunc(n *InlineFuncAtom, sc *funcScope, e *emitter, prog *Program) error {
	for _, fv := range n.FreeVars {
		if err := lowerVar(fv, sc, e, n.Span_); err != nil {
			return err
		}
	}

	fn := &CompiledFunction{IsInline: true, NumParams: len(n.Params), FreeVars: n.FreeVars}
	prog.Functions = append(prog.Functions, fn)
	fnIndex := len(prog.Functions) - 1

	// The function's own code is appended after the instruction that
	// references it; a leading jump skips over it during normal
	// sequential execution of the enclosing function.
	skip := e.emit(Instruction{Op: OpJump, Span: n.Span_})
	fn.Entry = e.here()

	inner := newFuncScope(nil)
	for _, p := range n.Params {
		inner.declare(p)
	}
	for _, fv := range n.FreeVars {
		inner.declare(fv)
	}
	if err := lowerExprBody(n.Body, inner, e, prog); err != nil {
		return err
	}
	e.emit(Instruction{Op: OpReturn, Span: n.Span_})
	fn.NumLocals = inner.next

	e.patchTarget(skip, e.here())
	e.emit(Instruction{Op: OpMakeClosure, A: fnIndex, B: len(n.FreeVars), Span: n.Span_})
	return nil
}

// lowerPathStep compiles each predicate body as its own zero-parameter
// CompiledFunction recorded by index on the OpAxisStep instruction; the
// VM applies them natively per candidate node (core/vm.go's
// execAxisStep), setting the dynamic context's ContextItem/Position/
// Size before each predicate call. A predicate frame does not chain to
// the enclosing frame the way an inline-function closure does: any
// outer variable it references (e.g. `book[price gt $threshold]`) is
// instead copied in by slot number, computed here via freeVarsOf and
// recorded as PredicateCaptureSlots so the VM can fetch the values out
// of the frame that is current when OpAxisStep executes.
func lowerPathStep(n *PathStepAtom, sc *funcScope, e *emitter, prog *Program) error {
	if err := lowerVar(n.Context, sc, e, n.Span_); err != nil {
		return err
	}

	predFuncs := make([]int, 0, len(n.Predicates))
	captureSlots := make([][]int, 0, len(n.Predicates))
	for _, pred := range n.Predicates {
		skip := e.emit(Instruction{Op: OpJump, Span: n.Span_})
		fn := &CompiledFunction{IsInline: true}
		prog.Functions = append(prog.Functions, fn)
		predFuncs = append(predFuncs, len(prog.Functions)-1)
		fn.Entry = e.here()

		var free []string
		for _, v := range freeVarsOf(pred) {
			if v != "." {
				free = append(free, v)
			}
		}
		slots := make([]int, 0, len(free))
		for _, v := range free {
			slot, ok := sc.resolve(v)
			if !ok {
				return Errorf(ErrXPST0008, n.Span_, "unbound variable $%s in predicate", v)
			}
			slots = append(slots, slot)
		}
		captureSlots = append(captureSlots, slots)

		inner := newFuncScope(nil)
		// Slot 0 is reserved for the per-candidate context item; the VM
		// pre-populates it before invoking a predicate function. Captured
		// outer variables follow, in the same order as this predicate's
		// entry in PredicateCaptureSlots.
		inner.declare(".")
		for _, v := range free {
			inner.declare(v)
		}
		if err := lowerExprBody(pred, inner, e, prog); err != nil {
			return err
		}
		e.emit(Instruction{Op: OpReturn, Span: n.Span_})
		fn.NumLocals = inner.next
		e.patchTarget(skip, e.here())
	}

	e.emit(Instruction{
		Op:                    OpAxisStep,
		A:                     int(n.Axis),
		NodeTestName:          n.TestName,
		NodeTestKind:          n.TestKind,
		NodeKindWant:          n.TestNode,
		PredicateFuncs:        predFuncs,
		PredicateCaptureSlots: captureSlots,
		Span:                  n.Span_,
	})
	return nil
}

// lowerFilter compiles a FilterExpr's predicate as its own zero-param
// CompiledFunction, the same capture-by-slot mechanism lowerPathStep
// uses for axis-step predicates, reused here since a bare "." inside
// the predicate plays the same role (the candidate item, slot 0).
func lowerFilter(n *FilterAtom, sc *funcScope, e *emitter, prog *Program) error {
	if err := lowerVar(n.Source, sc, e, n.Span_); err != nil {
		return err
	}

	skip := e.emit(Instruction{Op: OpJump, Span: n.Span_})
	fn := &CompiledFunction{IsInline: true}
	prog.Functions = append(prog.Functions, fn)
	fnIndex := len(prog.Functions) - 1
	fn.Entry = e.here()

	var free []string
	for _, v := range freeVarsOf(n.Predicate) {
		if v != "." {
			free = append(free, v)
		}
	}
	slots := make([]int, 0, len(free))
	for _, v := range free {
		slot, ok := sc.resolve(v)
		if !ok {
			return Errorf(ErrXPST0008, n.Span_, "unbound variable $%s in filter predicate", v)
		}
		slots = append(slots, slot)
	}

	inner := newFuncScope(nil)
	inner.declare(".")
	for _, v := range free {
		inner.declare(v)
	}
	if err := lowerExprBody(n.Predicate, inner, e, prog); err != nil {
		return err
	}
	e.emit(Instruction{Op: OpReturn, Span: n.Span_})
	fn.NumLocals = inner.next
	e.patchTarget(skip, e.here())

	e.emit(Instruction{
		Op:                    OpFilter,
		PredicateFuncs:        []int{fnIndex},
		PredicateCaptureSlots: [][]int{slots},
		Span:                  n.Span_,
	})
	return nil
}

// lowerTryCatch installs a catch frame around Body via PUSH_CATCH/
// POP_CATCH; each clause's handler is compiled inline (not as a separate
// function) since it runs in the same scope as the try, consistent with
// XPath/XSLT try/catch not introducing a new variable scope boundary
// apart from the error-code binding itself.
func lowerTryCatch(n *TryCatchAtom, sc *funcScope, e *emitter, prog *Program) error {
	span := n.Span_
	pushAt := e.emit(Instruction{Op: OpPushCatch, Span: span})
	if err := lowerExprBody(n.Body, sc, e, prog); err != nil {
		return err
	}
	e.emit(Instruction{Op: OpPopCatch, Span: span})
	jmpEnd := e.emit(Instruction{Op: OpJump, Span: span})
	handlerStart := e.here()
	e.patchTarget(pushAt, handlerStart)

	// On entry here the stack holds exactly one value: the raised
	// error's code as an xs:string singleton (pushed by the VM's
	// tryUnwindToCatch). Each clause with an explicit code list
	// duplicates it, tests membership, and either binds+runs its
	// handler or falls through (leaving the original copy for the next
	// clause) to the next clause's check.
	var jmpsToEnd []int
	for _, clause := range n.Catches {
		var jmpNext int
		hasCheck := len(clause.Codes) > 0
		if hasCheck {
			e.emit(Instruction{Op: OpDup, Span: span})
			idx := prog.addConst(codesConst{clause.Codes})
			e.emit(Instruction{Op: OpCodeMatch, A: idx, Span: span})
			jmpNext = e.emit(Instruction{Op: OpJumpIfFalse, Span: span})
		}
		slot := sc.declare(clause.ErrVar)
		e.emit(Instruction{Op: OpSetLocal, A: slot, Span: span})
		if err := lowerExprBody(clause.Handler, sc, e, prog); err != nil {
			return err
		}
		jmpsToEnd = append(jmpsToEnd, e.emit(Instruction{Op: OpJump, Span: span}))
		if hasCheck {
			e.patchTarget(jmpNext, e.here())
		}
	}
	// Control reaches here only when no clause matched (a catch-all
	// clause, one with no codes, never falls through); the error code
	// is still on the stack and is re-raised.
	e.emit(Instruction{Op: OpRaise, B: 1, Span: span})

	for _, j := range jmpsToEnd {
		e.patchTarget(j, e.here())
	}
	e.patchTarget(jmpEnd, e.here())
	return nil
}
