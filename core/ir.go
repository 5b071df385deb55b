package core

// IRNode is the common interface of every administrative-normal-form
// node. Concrete node types embed an IRNode field and reassign it to
// themselves in their constructor, an "abstract base embeds its own
// interface" polymorphism that lets a shared base (here AbstractIR,
// carrying the source Span) participate in dispatch without every leaf
// type re-declaring common accessors.
type IRNode interface {
	irNode()
	SourceSpan() Span
}

// AbstractIR is embedded by every concrete IR node, holding the common
// state (the source Span) while IRNode is the self-reference used for
// any future virtual dispatch.
type AbstractIR struct {
	Self  IRNode
	Span_ Span
}

func (a *AbstractIR) irNode()          {}
func (a *AbstractIR) SourceSpan() Span { return a.Span_ }

// Atom is the sub-interface of IRNode for the trivially-evaluable
// expression forms. Every non-atomic subexpression is named by a Let
// before being consumed, which is what makes the IR administrative
// normal form.
type Atom interface {
	IRNode
	atom()
}

// Let is `let v = atom in body`: the single binding form of the IR.
type Let struct {
	AbstractIR
	Var  string
	Bind Atom
	Body IRNode
}

func NewLet(v string, bind Atom, body IRNode, span Span) *Let {
	n := &Let{Var: v, Bind: bind, Body: body}
	n.Self = n
	n.Span_ = span
	return n
}

// Return is a leaf IR node: the final value of a Let chain, always a
// variable reference or a constant (themselves Atoms, but Return exists
// so a body can also be "just this atom" without nesting another Let).
type Return struct {
	AbstractIR
	Value Atom
}

func NewReturn(v Atom, span Span) *Return {
	n := &Return{Value: v}
	n.Self = n
	n.Span_ = span
	return n
}

// --- Atoms ---

type ConstAtom struct {
	AbstractIR
	Value Item // nil means the empty sequence
}

func (ConstAtom) atom() {}

func NewConstAtom(v Item, span Span) *ConstAtom {
	n := &ConstAtom{Value: v}
	n.Self = n
	n.Span_ = span
	return n
}

type VarRefAtom struct {
	AbstractIR
	Name string
}

func (VarRefAtom) atom() {}

func NewVarRefAtom(name string, span Span) *VarRefAtom {
	n := &VarRefAtom{Name: name}
	n.Self = n
	n.Span_ = span
	return n
}

// ContextItemAtom is a bare "." read, inside or outside a predicate: it
// reads the dynamic context's context item, which core/vm.go sets to
// each candidate before calling a predicate function.
type ContextItemAtom struct {
	AbstractIR
}

func (ContextItemAtom) atom() {}

func NewContextItemAtom(span Span) *ContextItemAtom {
	n := &ContextItemAtom{}
	n.Self = n
	n.Span_ = span
	return n
}

// PathStepAtom is one axis::nodetest[predicates] step, evaluated
// relative to the current context sequence named by Context.
type PathStepAtom struct {
	AbstractIR
	Context    string
	Axis       Axis
	TestKind   ItemTypeKind
	TestName   *Name // nil means a wildcard test
	TestNode   NodeKind
	Predicates []IRNode
}

func (PathStepAtom) atom() {}

// NamedFuncRefAtom is a `name#arity` named function reference, resolved
// against the static context's FunctionRegistry at lowering time (see
// core/lower.go), the same point CallAtom resolves its callee.
type NamedFuncRefAtom struct {
	AbstractIR
	Name  string
	URI   string
	Arity int
}

func (NamedFuncRefAtom) atom() {}

// FilterAtom is a FilterExpr ("source[predicate]") applied to a
// sequence of arbitrary items, as opposed to PathStepAtom's axis
// navigation over nodes; Predicate is evaluated once per item with "."
// bound to it, following the same numeric-position-or-boolean
// predicate-truth rule as a path step's predicates.
type FilterAtom struct {
	AbstractIR
	Source    string
	Predicate IRNode
}

func (FilterAtom) atom() {}

type BinOpKind int

const (
	BinArith BinOpKind = iota
	BinValueCompare
	BinGeneralCompare
	BinNodeCompare
	BinStringConcat
	BinRange
	BinUnion
	BinIntersect
	BinExcept
	BinAnd
	BinOr
)

type BinOpAtom struct {
	AbstractIR
	Kind  BinOpKind
	Op    string // "+","-","*","div","idiv","mod", or a CompareOp name, "is"/"<<"/">>"
	Left  string // variable names, since this is ANF: operands are always already let-bound
	Right string
}

func (BinOpAtom) atom() {}

type UnaryOpKind int

const (
	UnaryNeg UnaryOpKind = iota
	UnaryNot
)

type UnaryOpAtom struct {
	AbstractIR
	Kind    UnaryOpKind
	Operand string
}

func (UnaryOpAtom) atom() {}

// IfAtom is the `if` conditional; Then/Else are full IR bodies (which
// may themselves be Let chains), consistent with ANF allowing control
// constructs to contain further bindings.
type IfAtom struct {
	AbstractIR
	Cond string
	Then IRNode
	Else IRNode
}

func (IfAtom) atom() {}

// ForAtom binds Var to each item of the sequence named by Seq in turn,
// evaluating Body once per binding and concatenating results.
// Multi-variable `for` clauses are desugared into nested ForAtoms by
// the IR builder.
type ForAtom struct {
	AbstractIR
	Var  string
	Seq  string
	Body IRNode
}

func (ForAtom) atom() {}

type QuantKind int

const (
	QuantSome QuantKind = iota
	QuantEvery
)

type QuantifiedAtom struct {
	AbstractIR
	Kind QuantKind
	Var  string
	Seq  string
	Test IRNode
}

func (QuantifiedAtom) atom() {}

type ConversionKind int

const (
	ConvCastAs ConversionKind = iota
	ConvCastableAs
	ConvTreatAs
	ConvInstanceOf
)

type ConvertAtom struct {
	AbstractIR
	Kind    ConversionKind
	Operand string
	Target  SequenceType
}

func (ConvertAtom) atom() {}

// CallAtom is a static function call: every argument is already a
// let-bound variable (ANF), and Name/URI plus len(Args) identify the
// descriptor the lowerer resolves at build time via the static context's
// FunctionRegistry.
type CallAtom struct {
	AbstractIR
	Name string // expanded-name string form, resolved against the static context
	URI  string
	Args []string
}

func (CallAtom) atom() {}

// DynamicCallAtom calls a function item (already let-bound) with
// already let-bound arguments.
type DynamicCallAtom struct {
	AbstractIR
	Func string
	Args []string
}

func (DynamicCallAtom) atom() {}

// PartialApplyAtom constructs a partial application: holes are marked by
// nil entries in Args.
type PartialApplyAtom struct {
	AbstractIR
	Func string
	Args []*string // nil element => hole at this position
}

func (PartialApplyAtom) atom() {}

// InlineFuncAtom is `function($p1, ...) as T { body }`; FreeVars is the
// set of outer variables captured by Body, computed by the IR builder.
type InlineFuncAtom struct {
	AbstractIR
	Params     []string
	ParamTypes []SequenceType
	Return     SequenceType
	Body       IRNode
	FreeVars   []string
}

func (InlineFuncAtom) atom() {}

type SequenceConstructAtom struct {
	AbstractIR
	Items []string // each a let-bound variable holding one operand sequence
}

func (SequenceConstructAtom) atom() {}

type MapConstructAtom struct {
	AbstractIR
	Keys   []string
	Values []string
}

func (MapConstructAtom) atom() {}

type ArrayConstructAtom struct {
	AbstractIR
	Members []string
}

func (ArrayConstructAtom) atom() {}

type MapLookupAtom struct {
	AbstractIR
	Map string
	Key string
}

func (MapLookupAtom) atom() {}

type ArrayLookupAtom struct {
	AbstractIR
	Array string
	Index string
}

func (ArrayLookupAtom) atom() {}

// TryCatchAtom is a try/catch node: Body is evaluated, and if it
// raises an EngineError whose code matches one of Catches, the
// corresponding handler runs with ErrVar bound to the caught error's
// code as an xs:string.
type TryCatchAtom struct {
	AbstractIR
	Body    IRNode
	Catches []CatchClause
}

type CatchClause struct {
	Codes   []string // empty means catch-all ("*")
	ErrVar  string
	Handler IRNode
}

func (TryCatchAtom) atom() {}
