package xpath

// Pos is a half-open offset range into the source string an Expr was
// parsed from; core/irbuild.go widens it into a core.Span by pairing it
// with the source name supplied to Parse.
type Pos struct {
	Start, End int
}

// Expr is the common interface of every AST node. It carries no
// evaluation behavior of its own: core/irbuild.go type-switches over
// the concrete node types to build IR, the same separation of "what was
// written" from "what it means" that keeps core's IR builder the only
// place that has to know both vocabularies.
type Expr interface {
	exprPos() Pos
}

type base struct{ P Pos }

func (b base) exprPos() Pos { return b.P }

// ExprPos exposes an Expr's source position to core/irbuild.go, which
// lives outside this package and so cannot call the unexported
// exprPos method directly.
func ExprPos(e Expr) Pos { return e.exprPos() }

// SequenceExpr is the top-level comma operator: "e1, e2, e3".
type SequenceExpr struct {
	base
	Items []Expr
}

type ForBinding struct {
	Var string
	In  Expr
}

type ForExpr struct {
	base
	Bindings []ForBinding
	Return   Expr
}

type LetBinding struct {
	Var   string
	Value Expr
}

type LetExpr struct {
	base
	Bindings []LetBinding
	Return   Expr
}

type QuantKind int

const (
	QuantSome QuantKind = iota
	QuantEvery
)

type QuantifiedExpr struct {
	base
	Kind     QuantKind
	Bindings []ForBinding
	Test     Expr
}

type IfExpr struct {
	base
	Cond Expr
	Then Expr
	Else Expr
}

// BinaryExpr covers every left-associative infix operator: arithmetic,
// comparisons, string concatenation, set operators, "to", and the
// boolean connectives. Op holds the operator's exact lexical spelling
// ("+", "eq", "instance of" never appears here - InstanceOf/Treat/
// Castable/Cast get their own node types since their right operand is a
// SequenceType/SingleType, not an Expr).
type BinaryExpr struct {
	base
	Op          string
	Left, Right Expr
}

type UnaryExpr struct {
	base
	Op      string // "+" or "-"
	Operand Expr
}

// SingleType and SequenceType mirror the grammar productions of the same
// name: a QName plus, for SequenceType, an occurrence indicator
// ("?","*","+", or none) and, for the "empty-sequence()" special form, a
// flag rather than a name.
type SingleType struct {
	Name     QName
	Optional bool
}

type OccurrenceMark int

const (
	OccurNone OccurrenceMark = iota
	OccurOpt
	OccurStar
	OccurPlus
)

type SequenceTypeNode struct {
	EmptySequence bool
	ItemTest      ItemTestExpr // nil-ish zero value when EmptySequence
	Occurrence    OccurrenceMark
}

// ItemTestExpr is either a KindTest ("node()", "element(foo)", ...) or
// an atomic/union type name ("xs:integer"). AnyItem marks "item()".
type ItemTestExpr struct {
	AnyItem    bool
	AtomicName *QName
	Kind       *KindTestExpr
	// FunctionTest / MapTest / ArrayTest are left unparsed: the grammar
	// for them is rarely exercised in hand-written expressions and
	// irbuild.go's SequenceType resolution falls back to ItemKindAny
	// when none of the above is set, rather than failing the parse.
}

type KindTestExpr struct {
	Kind NodeTestKind
	Name *QName // nil means unqualified kind test ("element()")
}

type NodeTestKind int

const (
	KindAnyNode NodeTestKind = iota
	KindDocument
	KindElement
	KindAttribute
	KindText
	KindComment
	KindProcessingInstruction
	KindNamespace
)

type ConvKind int

const (
	ConvInstanceOf ConvKind = iota
	ConvTreatAs
	ConvCastableAs
	ConvCastAs
)

// InstanceOfExpr covers "instance of" and "treat as" (Type is a
// SequenceTypeNode) as well as "castable as" and "cast as" (Type.Single
// is populated instead, per the grammar's SingleType restriction on
// those two operators).
type InstanceOfExpr struct {
	base
	Kind     ConvKind
	Operand  Expr
	Type     SequenceTypeNode
	Single   SingleType
	IsSingle bool
}

// QName is an unresolved, lexically-scoped qualified name as written in
// source; core/irbuild.go resolves Prefix against the static context's
// namespace bindings to produce a core.Name.
type QName struct {
	Prefix string // "" means no prefix (and for element/function names,
	// subject to the default namespace, resolved at IR-build time)
	Local    string
	IsStar   bool // "*" or "prefix:*" name test
	StarOnly bool // "*" with no local part at all
}

type Literal struct {
	base
	IsString bool
	String   string
	Number   string // unparsed digits; irbuild decides integer vs decimal vs double
}

type VarRef struct {
	base
	Name QName
}

type ContextItemExpr struct{ base }

type ParenExpr struct {
	base
	Inner Expr // nil means "()", the empty sequence literal
}

type FunctionCallExpr struct {
	base
	Name QName
	Args []Expr
}

type NamedFunctionRefExpr struct {
	base
	Name  QName
	Arity int
}

type InlineFunctionParam struct {
	Name string
	Type *SequenceTypeNode
}

type InlineFunctionExpr struct {
	base
	Params []InlineFunctionParam
	Return *SequenceTypeNode
	Body   Expr
}

type PartialArg struct {
	Expr   Expr // nil means this position is "?" (a hole)
	IsHole bool
}

type ArgumentListExpr struct {
	base
	Target Expr
	Args   []PartialArg
}

type MapEntry struct {
	Key   Expr
	Value Expr
}

type MapConstructorExpr struct {
	base
	Entries []MapEntry
}

type ArrayConstructorExpr struct {
	base
	// SquareForm records whether "[ e1, e2 ]" or "array { expr }" was
	// written; irbuild.go does not look at it. The parser splits the
	// braced form's expr on its top-level commas, one member per
	// operand, so both forms end up as the same Members list.
	SquareForm bool
	Members    []Expr
}

type LookupExpr struct {
	base
	Target Expr
	// KeySpecifier is one of: "*" (AnyKey), an integer Literal, a
	// parenthesized Expr, or an NCName; Star distinguishes the wildcard
	// form since it has no accompanying Expr.
	Star bool
	Key  Expr
}

// Axis enumerates the thirteen XPath axes by name, independent of
// core.Axis so this package never has to import core.
type Axis int

const (
	AxisChild Axis = iota
	AxisDescendant
	AxisAttribute
	AxisSelf
	AxisDescendantOrSelf
	AxisFollowingSibling
	AxisFollowing
	AxisNamespace
	AxisParent
	AxisAncestor
	AxisPrecedingSibling
	AxisPreceding
	AxisAncestorOrSelf
)

// StepExpr is one "axis::nodetest[predicates]" location step. A leading
// "/" or "//" RelativePathExpr separator is recorded on the PathExpr
// that owns the step list, not on the step itself.
type StepExpr struct {
	base
	Axis       Axis
	Test       ItemTestExpr
	Predicates []Expr
}

// PathExpr is a sequence of steps connected by "/" or "//"; Rooted marks
// a leading "/", and Steps[i] is preceded by a "//" descendant-or-self
// separator when DoubleSlash[i] is true (DoubleSlash[0] describes the
// separator before Steps[0], meaningful only when Rooted is false, since
// a rooted "//" is handled by synthesizing a descendant-or-self::node()
// step instead).
type PathExpr struct {
	base
	Rooted      bool
	Steps       []Expr // StepExpr, or any PostfixExpr-shaped primary for the first step
	DoubleSlash []bool
}
