package core

// AtomicType enumerates the closed set of XML Schema primitive and
// XPath-defined atomic types the engine understands: a flat integer
// enum plus lookup tables for name and base-type lookup.
type AtomicType int

const (
	TUntypedAtomic AtomicType = iota
	TAnyAtomicType
	TString
	TBoolean
	TDecimal
	TFloat
	TDouble
	TInteger
	TNonNegativeInteger
	TPositiveInteger
	TNonPositiveInteger
	TNegativeInteger
	TLong
	TInt
	TShort
	TByte
	TUnsignedLong
	TUnsignedInt
	TUnsignedShort
	TUnsignedByte
	TAnyURI
	TQName
	TNotation
	THexBinary
	TBase64Binary
	TDuration
	TDayTimeDuration
	TYearMonthDuration
	TDateTime
	TDate
	TTime
	TGYearMonth
	TGYear
	TGMonthDay
	TGDay
	TGMonth

	// TNumeric is the synthetic union type used by arithmetic operator
	// signatures; it is never the runtime tag of a value.
	TNumeric
)

var atomicTypeNames = map[AtomicType]string{
	TUntypedAtomic:      "xs:untypedAtomic",
	TAnyAtomicType:      "xs:anyAtomicType",
	TString:             "xs:string",
	TBoolean:            "xs:boolean",
	TDecimal:            "xs:decimal",
	TFloat:              "xs:float",
	TDouble:             "xs:double",
	TInteger:            "xs:integer",
	TNonNegativeInteger: "xs:nonNegativeInteger",
	TPositiveInteger:    "xs:positiveInteger",
	TNonPositiveInteger: "xs:nonPositiveInteger",
	TNegativeInteger:    "xs:negativeInteger",
	TLong:               "xs:long",
	TInt:                "xs:int",
	TShort:              "xs:short",
	TByte:               "xs:byte",
	TUnsignedLong:       "xs:unsignedLong",
	TUnsignedInt:        "xs:unsignedInt",
	TUnsignedShort:      "xs:unsignedShort",
	TUnsignedByte:       "xs:unsignedByte",
	TAnyURI:             "xs:anyURI",
	TQName:              "xs:QName",
	TNotation:           "xs:NOTATION",
	THexBinary:          "xs:hexBinary",
	TBase64Binary:       "xs:base64Binary",
	TDuration:           "xs:duration",
	TDayTimeDuration:    "xs:dayTimeDuration",
	TYearMonthDuration:  "xs:yearMonthDuration",
	TDateTime:           "xs:dateTime",
	TDate:               "xs:date",
	TTime:               "xs:time",
	TGYearMonth:         "xs:gYearMonth",
	TGYear:              "xs:gYear",
	TGMonthDay:          "xs:gMonthDay",
	TGDay:               "xs:gDay",
	TGMonth:             "xs:gMonth",
	TNumeric:            "xs:numeric",
}

func (t AtomicType) String() string {
	if s, ok := atomicTypeNames[t]; ok {
		return s
	}
	return "xs:anyAtomicType"
}

// baseOf records the direct base of every derived type. TAnyAtomicType
// has no base (it is the lattice root among atomics).
var baseOf = map[AtomicType]AtomicType{
	TString:             TAnyAtomicType,
	TUntypedAtomic:      TAnyAtomicType,
	TBoolean:            TAnyAtomicType,
	TDecimal:            TAnyAtomicType,
	TFloat:              TAnyAtomicType,
	TDouble:             TAnyAtomicType,
	TAnyURI:             TAnyAtomicType,
	TQName:              TAnyAtomicType,
	TNotation:           TAnyAtomicType,
	THexBinary:          TAnyAtomicType,
	TBase64Binary:       TAnyAtomicType,
	TDuration:           TAnyAtomicType,
	TDateTime:           TAnyAtomicType,
	TDate:               TAnyAtomicType,
	TTime:               TAnyAtomicType,
	TGYearMonth:         TAnyAtomicType,
	TGYear:              TAnyAtomicType,
	TGMonthDay:          TAnyAtomicType,
	TGDay:               TAnyAtomicType,
	TGMonth:             TAnyAtomicType,
	TDayTimeDuration:    TDuration,
	TYearMonthDuration:  TDuration,
	TInteger:            TDecimal,
	TNonNegativeInteger: TInteger,
	TNonPositiveInteger: TInteger,
	TPositiveInteger:    TNonNegativeInteger,
	TNegativeInteger:    TNonPositiveInteger,
	TLong:               TInteger,
	TInt:                TLong,
	TShort:              TInt,
	TByte:               TShort,
	TUnsignedLong:       TNonNegativeInteger,
	TUnsignedInt:        TUnsignedLong,
	TUnsignedShort:      TUnsignedInt,
	TUnsignedByte:       TUnsignedShort,
}

// IsSubtype reports whether a is a (reflexive) subtype of b by walking
// the base-type chain. The chain length is bounded (< 10) so this is
// effectively constant time.
func IsSubtype(a, b AtomicType) bool {
	if b == TAnyAtomicType {
		return true
	}
	if b == TNumeric {
		switch a {
		case TInteger, TDecimal, TFloat, TDouble, TNonNegativeInteger, TPositiveInteger,
			TNonPositiveInteger, TNegativeInteger, TLong, TInt, TShort, TByte,
			TUnsignedLong, TUnsignedInt, TUnsignedShort, TUnsignedByte:
			return true
		}
		return false
	}
	for cur := a; ; {
		if cur == b {
			return true
		}
		parent, ok := baseOf[cur]
		if !ok {
			return false
		}
		cur = parent
	}
}

func IsNumeric(t AtomicType) bool {
	return IsSubtype(t, TNumeric)
}

// PromoteNumeric returns the least upper bound of two numeric types on
// the integer -> decimal -> float -> double chain.
func PromoteNumeric(a, b AtomicType) AtomicType {
	rank := func(t AtomicType) int {
		switch {
		case t == TDouble:
			return 3
		case t == TFloat:
			return 2
		case t == TDecimal:
			return 1
		case IsSubtype(t, TInteger):
			return 0
		}
		return 0
	}
	if rank(a) >= rank(b) {
		switch rank(a) {
		case 0:
			return TInteger
		case 1:
			return TDecimal
		case 2:
			return TFloat
		default:
			return TDouble
		}
	}
	switch rank(b) {
	case 0:
		return TInteger
	case 1:
		return TDecimal
	case 2:
		return TFloat
	default:
		return TDouble
	}
}

// Occurrence is the cardinality part of a SequenceType.
type Occurrence int

const (
	OccurExactlyOne Occurrence = iota
	OccurOptional
	OccurZeroOrMore
	OccurOneOrMore
)

// ItemTypeKind distinguishes the item-type variants of sequence
// type grammar.
type ItemTypeKind int

const (
	ItemKindAny ItemTypeKind = iota
	ItemKindAtomic
	ItemKindNode
	ItemKindFunction
	ItemKindMap
	ItemKindArray
	ItemKindEmptySequence
)

// NodeKind enumerates the seven XDM node kinds.
type NodeKind int

const (
	NodeDocument NodeKind = iota
	NodeElement
	NodeAttribute
	NodeText
	NodeComment
	NodeProcessingInstruction
	NodeNamespace
)

func (k NodeKind) String() string {
	switch k {
	case NodeDocument:
		return "document-node"
	case NodeElement:
		return "element"
	case NodeAttribute:
		return "attribute"
	case NodeText:
		return "text"
	case NodeComment:
		return "comment"
	case NodeProcessingInstruction:
		return "processing-instruction"
	case NodeNamespace:
		return "namespace"
	}
	return "node"
}

// ItemType describes the shape one item of a sequence must have; it is
// the non-occurrence half of a SequenceType.
type ItemType struct {
	Kind AtomicKindPair
}

// AtomicKindPair avoids a premature sum-type abstraction: a plain struct
// with the fields relevant to each Kind, unused fields left zero.
type AtomicKindPair struct {
	ItemKind ItemTypeKind
	Atomic   AtomicType
	NodeKind NodeKind
	NodeName *Name
	Params   []SequenceType
	Return   *SequenceType
	MapKey   AtomicType
	MapValue *SequenceType
	ArrayOf  *SequenceType
}

// SequenceType is (item-type, occurrence-indicator).
type SequenceType struct {
	Item       ItemType
	Occurrence Occurrence
}

func AtomicSequenceType(t AtomicType, occ Occurrence) SequenceType {
	return SequenceType{Item: ItemType{Kind: AtomicKindPair{ItemKind: ItemKindAtomic, Atomic: t}}, Occurrence: occ}
}

func AnyItemSequenceType(occ Occurrence) SequenceType {
	return SequenceType{Item: ItemType{Kind: AtomicKindPair{ItemKind: ItemKindAny}}, Occurrence: occ}
}

// MatchesLength reports whether a sequence of the given length satisfies
// this type's occurrence indicator, the cheap half of SequenceType
// matching; item-by-item type checking is done in convert.go.
func (st SequenceType) MatchesLength(n int) bool {
	switch st.Occurrence {
	case OccurExactlyOne:
		return n == 1
	case OccurOptional:
		return n <= 1
	case OccurOneOrMore:
		return n >= 1
	default: // OccurZeroOrMore
		return true
	}
}
