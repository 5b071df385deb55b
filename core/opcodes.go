package core

// Opcode is a single bytecode VM instruction: a flat byte enum plus a
// name table for disassembly/tracing.
type Opcode byte

const (
	// Stack manipulation
	OpConst Opcode = iota
	OpPop
	OpDup
	OpSwap

	// Sequence construction
	OpSeqConcat // pop n, push their concatenation (the `,` operator)
	OpEmptySeq  // push the empty sequence

	// Arithmetic (core/vm.go's execArith atomizes and promotes both
	// operands; an empty operand gives the empty sequence)
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpIDiv
	OpMod
	OpNeg

	// Value comparison (eq, ne, lt, le, gt, ge) and general comparison
	// (=, !=, <, <=, >, >=) share opcodes; the lowerer selects which
	// semantics by emitting OpValueCmp vs OpGeneralCmp with a comparator
	// operand baked into the instruction's immediate.
	OpValueCmp
	OpGeneralCmp
	OpNodeIs
	OpNodeBefore
	OpNodeAfter

	// Logical
	OpNot
	OpAnd // pop two, push effective-boolean-value AND
	OpOr  // pop two, push effective-boolean-value OR

	// Sequence/string/node operators
	OpStringConcat
	OpRange // `to`
	OpUnion
	OpIntersect
	OpExcept

	// Control flow
	OpJump
	OpJumpIfFalse
	OpJumpIfTrue

	// Variables
	OpGetLocal
	OpSetLocal

	// Functions, closures, calls
	OpMakeClosure
	OpMakeNamedFunc
	OpPartialApply
	OpCall
	OpCallDynamic
	OpReturn

	// Iteration (`for`, path steps, quantified expressions)
	OpIterStart
	OpIterNext // push next item and true, or push false if exhausted
	OpIterClose

	// Atomization / conversion
	OpAtomize
	OpCastAs
	OpCastableAs
	OpTreatAs
	OpInstanceOf

	// Path navigation
	OpAxisStep
	OpNodeTest
	OpPredicateBegin
	OpPredicateEnd

	// Maps and arrays
	OpMakeMap
	OpMapPut
	OpMapGet
	OpMakeArray
	OpArrayGet

	// Error handling
	OpPushCatch
	OpPopCatch
	OpRaise

	// OpFilter pops a sequence and applies the single predicate function
	// named by PredicateFuncs[0] (capture slots in
	// PredicateCaptureSlots[0]) to each item, keeping items the same way
	// OpAxisStep's predicates do (see core/vm.go's predicateKeeps), over
	// arbitrary items rather than only nodes.
	OpFilter

	// OpContextItem pushes the dynamic context's current context item as
	// a singleton, or raises ErrXPDY0002 if none is defined; this is how
	// every bare "." reaches the VM, including one inside a predicate,
	// where the VM has set the context item to the current candidate.
	OpContextItem

	OpTrace
	OpHalt

	// OpCodeMatch pops a singleton xs:string (an error code) and pushes
	// a boolean reporting whether it's a member of the code list named
	// by the constant at A; used only by compiled try/catch dispatch.
	OpCodeMatch
)

var opcodeNames = map[Opcode]string{
	OpConst:          "CONST",
	OpPop:            "POP",
	OpDup:            "DUP",
	OpSwap:           "SWAP",
	OpSeqConcat:      "SEQ_CONCAT",
	OpEmptySeq:       "EMPTY_SEQ",
	OpAdd:            "ADD",
	OpSub:            "SUB",
	OpMul:            "MUL",
	OpDiv:            "DIV",
	OpIDiv:           "IDIV",
	OpMod:            "MOD",
	OpNeg:            "NEG",
	OpValueCmp:       "VALUE_CMP",
	OpGeneralCmp:     "GENERAL_CMP",
	OpNodeIs:         "NODE_IS",
	OpNodeBefore:     "NODE_BEFORE",
	OpNodeAfter:      "NODE_AFTER",
	OpNot:            "NOT",
	OpAnd:            "AND",
	OpOr:             "OR",
	OpStringConcat:   "STRING_CONCAT",
	OpRange:          "RANGE",
	OpUnion:          "UNION",
	OpIntersect:      "INTERSECT",
	OpExcept:         "EXCEPT",
	OpJump:           "JUMP",
	OpJumpIfFalse:    "JUMP_IF_FALSE",
	OpJumpIfTrue:     "JUMP_IF_TRUE",
	OpGetLocal:       "GET_LOCAL",
	OpSetLocal:       "SET_LOCAL",
	OpMakeClosure:    "MAKE_CLOSURE",
	OpMakeNamedFunc:  "MAKE_NAMED_FUNC",
	OpPartialApply:   "PARTIAL_APPLY",
	OpCall:           "CALL",
	OpCallDynamic:    "CALL_DYNAMIC",
	OpReturn:         "RETURN",
	OpIterStart:      "ITER_START",
	OpIterNext:       "ITER_NEXT",
	OpIterClose:      "ITER_CLOSE",
	OpAtomize:        "ATOMIZE",
	OpCastAs:         "CAST_AS",
	OpCastableAs:     "CASTABLE_AS",
	OpTreatAs:        "TREAT_AS",
	OpInstanceOf:     "INSTANCE_OF",
	OpAxisStep:       "AXIS_STEP",
	OpNodeTest:       "NODE_TEST",
	OpPredicateBegin: "PREDICATE_BEGIN",
	OpPredicateEnd:   "PREDICATE_END",
	OpMakeMap:        "MAKE_MAP",
	OpMapPut:         "MAP_PUT",
	OpMapGet:         "MAP_GET",
	OpMakeArray:      "MAKE_ARRAY",
	OpArrayGet:       "ARRAY_GET",
	OpPushCatch:      "PUSH_CATCH",
	OpPopCatch:       "POP_CATCH",
	OpRaise:          "RAISE",
	OpFilter:         "FILTER",
	OpContextItem:    "CONTEXT_ITEM",
	OpTrace:          "TRACE",
	OpHalt:           "HALT",
	OpCodeMatch:      "CODE_MATCH",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return "UNKNOWN"
}

// Axis enumerates the thirteen XPath axes; the xpath/ package builds node
// tests against one of these.
type Axis int

const (
	AxisChild Axis = iota
	AxisDescendant
	AxisParent
	AxisAncestor
	AxisFollowingSibling
	AxisPrecedingSibling
	AxisFollowing
	AxisPreceding
	AxisAttribute
	AxisNamespace
	AxisSelf
	AxisDescendantOrSelf
	AxisAncestorOrSelf
)

// CompareOp parameterizes OpValueCmp/OpGeneralCmp.
type CompareOp int

const (
	CmpEq CompareOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// Instruction is one bytecode instruction: an opcode plus the immediate
// operands its semantics need. Most opcodes use only A (and sometimes
// B); a handful of structurally richer instructions (axis navigation,
// node tests) carry a few more named fields rather than forcing every
// instruction through a single packed-int encoding. No on-disk bytecode
// format is specified, so a readable, heterogeneous instruction record
// is preferable to bit-packing.
type Instruction struct {
	Op Opcode
	A  int // primary immediate: const index / jump target / slot / arity
	B  int // secondary immediate: e.g. CompareOp, Axis

	NodeTestName *Name        // OpNodeTest: nil means wildcard
	NodeTestKind ItemTypeKind // OpNodeTest
	NodeKindWant NodeKind     // OpNodeTest, when NodeTestKind == ItemKindNode

	PredicateFuncs []int // OpAxisStep: indices into Program.Functions, one per predicate, applied in order

	// PredicateCaptureSlots mirrors PredicateFuncs: for each predicate,
	// the slot indices in the *currently executing* frame (the one
	// lowering this OpAxisStep, i.e. the step's enclosing scope) whose
	// values must be copied into the predicate's own fresh frame so it
	// can see outer variables (e.g. `book[price gt $threshold]`).
	// Predicate frames don't chain to the enclosing frame the way
	// inline-function closures do (see core/lower.go's lowerPathStep),
	// so this is a direct slot-to-slot copy rather than a capture list
	// resolved through FreeVars.
	PredicateCaptureSlots [][]int

	Span Span
}
