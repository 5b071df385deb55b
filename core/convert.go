package core

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Atomize implements atomization procedure: nodes contribute
// their typed value, atomics pass through, arrays atomize element-wise,
// functions and maps are a type error.
func Atomize(seq Sequence) (Sequence, error) {
	out := make(Sequence, 0, len(seq))
	for _, it := range seq {
		switch v := it.(type) {
		case Atomic:
			out = append(out, v)
		case Node:
			out = append(out, v.TypedValue()...)
		case *ArrayValue:
			for _, member := range v.Members {
				atomized, err := Atomize(member)
				if err != nil {
					return nil, err
				}
				out = append(out, atomized...)
			}
		case *MapValue, *FunctionValue, FunctionValue:
			return nil, NewError(ErrFOTY0013, "a function or map cannot be atomized", Span{})
		default:
			return nil, Errorf(ErrXPTY0004, Span{}, "cannot atomize item of unknown kind %T", it)
		}
	}
	return out, nil
}

// EffectiveBooleanValue implements fn:boolean coercion rules used
// by if-conditions and predicates.
func EffectiveBooleanValue(seq Sequence) (bool, error) {
	if len(seq) == 0 {
		return false, nil
	}
	if _, ok := seq[0].(Node); ok {
		return true, nil
	}
	if len(seq) > 1 {
		return false, Errorf(ErrFORG0006, Span{}, "effective boolean value of a sequence of length %d with a non-node first item", len(seq))
	}
	at, ok := seq[0].(Atomic)
	if !ok {
		return false, Errorf(ErrFORG0006, Span{}, "effective boolean value undefined for item of type %T", seq[0])
	}
	switch v := at.Value.(type) {
	case BooleanValue:
		return bool(v), nil
	case StringValue:
		return len(v) > 0, nil
	case UntypedAtomicValue:
		return len(v) > 0, nil
	case AnyURIValue:
		return len(v) > 0, nil
	case IntegerValue:
		return v.Sign() != 0, nil
	case DecimalValue:
		return v.Sign() != 0, nil
	case DoubleValue:
		return !v.IsNaN() && float64(v) != 0, nil
	case FloatValue:
		return !v.IsNaN() && float32(v) != 0, nil
	default:
		return false, Errorf(ErrFORG0006, Span{}, "effective boolean value undefined for atomic type %s", at.Value.AtomicType())
	}
}

// CastAtomic implements the subset of the XPath `cast as` table this
// engine supports: casting between the primitive
// numeric/string/boolean/URI/QName types and untypedAtomic. Unsupported
// target types raise XPST0080 rather than silently succeeding.
func CastAtomic(v AtomicValue, target AtomicType, span Span) (AtomicValue, error) {
	// Casting to the source's own type is always the identity; check
	// this fast path before doing any real conversion work.
	if v.AtomicType() == target {
		return v, nil
	}
	lexical := v.String()
	switch target {
	case TString, TUntypedAtomic:
		if target == TUntypedAtomic {
			return UntypedAtomicValue(lexical), nil
		}
		return StringValue(lexical), nil
	case TBoolean:
		return castToBoolean(v, lexical, span)
	case TInteger, TNonNegativeInteger, TPositiveInteger, TNonPositiveInteger, TNegativeInteger,
		TLong, TInt, TShort, TByte, TUnsignedLong, TUnsignedInt, TUnsignedShort, TUnsignedByte:
		return castToInteger(v, lexical, target, span)
	case TDecimal:
		return castToDecimal(v, lexical, span)
	case TFloat:
		return castToFloat(v, lexical, span)
	case TDouble:
		return castToDouble(v, lexical, span)
	case TAnyURI:
		return AnyURIValue(lexical), nil
	case TQName:
		if q, ok := v.(QNameValue); ok {
			return q, nil
		}
		return nil, Errorf(ErrXPST0080, span, "cannot cast %s to xs:QName by lexical conversion", v.AtomicType())
	default:
		return nil, Errorf(ErrXPST0080, span, "cast target type %s is not supported", target)
	}
}

func castToBoolean(v AtomicValue, lexical string, span Span) (AtomicValue, error) {
	switch vv := v.(type) {
	case BooleanValue:
		return vv, nil
	case IntegerValue:
		return BooleanValue(vv.Sign() != 0), nil
	case DecimalValue:
		return BooleanValue(vv.Sign() != 0), nil
	case DoubleValue:
		return BooleanValue(!vv.IsNaN() && float64(vv) != 0), nil
	case FloatValue:
		return BooleanValue(!vv.IsNaN() && float32(vv) != 0), nil
	}
	switch strings.TrimSpace(lexical) {
	case "true", "1":
		return BooleanValue(true), nil
	case "false", "0":
		return BooleanValue(false), nil
	}
	return nil, Errorf(ErrFORG0001, span, "invalid xs:boolean lexical value %q", lexical)
}

func castToInteger(v AtomicValue, lexical string, target AtomicType, span Span) (AtomicValue, error) {
	var iv IntegerValue
	var err error
	switch vv := v.(type) {
	case IntegerValue:
		iv = vv
	case DecimalValue:
		iv = IntegerValueOfBig(truncateDecimalToBigInt(vv))
	case DoubleValue:
		iv, err = integerFromFloat64(float64(vv), span)
	case FloatValue:
		iv, err = integerFromFloat64(float64(vv), span)
	case BooleanValue:
		if vv {
			iv = IntegerValueOfInt64(1)
		} else {
			iv = IntegerValueOfInt64(0)
		}
	default:
		iv, err = IntegerValueParse(strings.TrimSpace(lexical))
	}
	if err != nil {
		return nil, err
	}
	if err := checkDerivedIntegerRange(iv, target, span); err != nil {
		return nil, err
	}
	return iv, nil
}

func checkDerivedIntegerRange(iv IntegerValue, target AtomicType, span Span) error {
	sign := iv.Sign()
	switch target {
	case TNonNegativeInteger, TUnsignedLong, TUnsignedInt, TUnsignedShort, TUnsignedByte:
		if sign < 0 {
			return Errorf(ErrFORG0001, span, "value %s out of range for %s", iv, target)
		}
	case TPositiveInteger:
		if sign <= 0 {
			return Errorf(ErrFORG0001, span, "value %s out of range for %s", iv, target)
		}
	case TNonPositiveInteger:
		if sign > 0 {
			return Errorf(ErrFORG0001, span, "value %s out of range for %s", iv, target)
		}
	case TNegativeInteger:
		if sign >= 0 {
			return Errorf(ErrFORG0001, span, "value %s out of range for %s", iv, target)
		}
	}
	return nil
}

func integerFromFloat64(f float64, span Span) (IntegerValue, error) {
	if f != f || f > 1e300 || f < -1e300 {
		return IntegerValue{}, Errorf(ErrFOCA0003, span, "cannot convert %v to xs:integer", f)
	}
	return IntegerValueParse(strconv.FormatFloat(f, 'f', 0, 64))
}

// truncateDecimalToBigInt truncates a decimal toward zero to its integer
// part, via its canonical fixed-point text form to avoid depending on
// apd's internal coefficient representation.
func truncateDecimalToBigInt(d DecimalValue) *big.Int {
	text := d.Decimal().Text('f')
	if idx := strings.IndexByte(text, '.'); idx >= 0 {
		text = text[:idx]
	}
	if text == "" || text == "-" {
		text = "0"
	}
	bi, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return big.NewInt(0)
	}
	return bi
}

func castToDecimal(v AtomicValue, lexical string, span Span) (AtomicValue, error) {
	switch vv := v.(type) {
	case IntegerValue:
		return DecimalValueOfInteger(vv), nil
	case DecimalValue:
		return vv, nil
	case DoubleValue:
		return DecimalValueParseString(strconv.FormatFloat(float64(vv), 'f', -1, 64))
	case FloatValue:
		return DecimalValueParseString(strconv.FormatFloat(float64(vv), 'f', -1, 32))
	case BooleanValue:
		if vv {
			return DecimalValueOfInt64(1), nil
		}
		return DecimalValueOfInt64(0), nil
	}
	return DecimalValueParseString(strings.TrimSpace(lexical))
}

func castToFloat(v AtomicValue, lexical string, span Span) (AtomicValue, error) {
	f, err := atomicToFloat64(v, lexical, span)
	if err != nil {
		return nil, err
	}
	return FloatValue(float32(f)), nil
}

func castToDouble(v AtomicValue, lexical string, span Span) (AtomicValue, error) {
	f, err := atomicToFloat64(v, lexical, span)
	if err != nil {
		return nil, err
	}
	return DoubleValue(f), nil
}

func atomicToFloat64(v AtomicValue, lexical string, span Span) (float64, error) {
	switch vv := v.(type) {
	case IntegerValue:
		return vv.Float64(), nil
	case DecimalValue:
		return vv.Float64(), nil
	case DoubleValue:
		return float64(vv), nil
	case FloatValue:
		return float64(vv), nil
	case BooleanValue:
		if vv {
			return 1, nil
		}
		return 0, nil
	}
	t := strings.TrimSpace(lexical)
	switch t {
	case "NaN":
		return math.NaN(), nil
	case "INF", "+INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, Errorf(ErrFORG0001, span, "invalid numeric lexical value %q", lexical)
	}
	return f, nil
}

// ConvertArgument applies the function conversion rules of to a
// single argument sequence against its declared parameter type.
func ConvertArgument(arg Sequence, param SequenceType, span Span) (Sequence, error) {
	if param.Item.Kind.ItemKind == ItemKindAtomic {
		atomized, err := Atomize(arg)
		if err != nil {
			return nil, err
		}
		arg = atomized
	}
	if !param.MatchesLength(len(arg)) {
		return nil, Errorf(ErrXPTY0004, span, "expected %s, got sequence of length %d", occurrenceLabel(param.Occurrence), len(arg))
	}
	if param.Item.Kind.ItemKind != ItemKindAtomic {
		return arg, nil
	}
	out := make(Sequence, len(arg))
	for i, it := range arg {
		at := it.(Atomic)
		converted, err := convertOneAtomic(at.Value, param.Item.Kind.Atomic, span)
		if err != nil {
			return nil, err
		}
		out[i] = Atomic{Value: converted}
	}
	return out, nil
}

func convertOneAtomic(v AtomicValue, target AtomicType, span Span) (AtomicValue, error) {
	if v.AtomicType() == TUntypedAtomic {
		switch {
		case target == TString:
			return StringValue(v.String()), nil
		case IsNumeric(target) || target == TNumeric:
			return CastAtomic(v, TDouble, span)
		default:
			return CastAtomic(v, target, span)
		}
	}
	if IsSubtype(v.AtomicType(), target) {
		return v, nil
	}
	if IsNumeric(v.AtomicType()) && (IsNumeric(target) || target == TNumeric) {
		promoted := target
		if target == TNumeric {
			promoted = v.AtomicType()
		}
		return promoteNumericValue(v, promoted, span)
	}
	if v.AtomicType() == TAnyURI && target == TString {
		return StringValue(v.String()), nil
	}
	return nil, Errorf(ErrXPTY0004, span, "cannot convert value of type %s to %s", v.AtomicType(), target)
}

func promoteNumericValue(v AtomicValue, target AtomicType, span Span) (AtomicValue, error) {
	if IsSubtype(v.AtomicType(), target) {
		return v, nil
	}
	switch target {
	case TDecimal:
		if iv, ok := v.(IntegerValue); ok {
			return DecimalValueOfInteger(iv), nil
		}
	case TFloat:
		return castToFloat(v, v.String(), span)
	case TDouble:
		return castToDouble(v, v.String(), span)
	}
	if IsSubtype(v.AtomicType(), TInteger) && IsSubtype(target, TInteger) {
		return v, nil
	}
	return nil, Errorf(ErrXPTY0004, span, "cannot promote %s to %s", v.AtomicType(), target)
}

func occurrenceLabel(o Occurrence) string {
	switch o {
	case OccurExactlyOne:
		return "exactly one item"
	case OccurOptional:
		return "zero or one item"
	case OccurOneOrMore:
		return "one or more items"
	default:
		return "zero or more items"
	}
}
