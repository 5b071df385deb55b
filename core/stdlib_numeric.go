package core

import (
	"math"
	"strconv"
)

// registerNumericFunctions binds fn:abs/ceiling/floor/round and the
// math: namespace's transcendental functions, all normalized through
// atomicToFloat64/numeric promotion the way core/convert.go already
// does for cast and comparison.
func registerNumericFunctions(r *FunctionRegistry) {
	numericType := AtomicSequenceType(TNumeric, OccurOptional)
	numericReturn := AtomicSequenceType(TNumeric, OccurOptional)

	reg(r, "abs", NSFn, params(numericType), numericReturn, numeric1(func(v AtomicValue) (AtomicValue, error) {
		switch n := v.(type) {
		case IntegerValue:
			if n.Sign() < 0 {
				return n.Negate(), nil
			}
			return n, nil
		case DecimalValue:
			if n.Sign() < 0 {
				return n.Negate(), nil
			}
			return n, nil
		case DoubleValue:
			return DoubleValue(math.Abs(float64(n))), nil
		case FloatValue:
			return FloatValue(math.Abs(float32(n))), nil
		}
		return v, nil
	}))
	reg(r, "ceiling", NSFn, params(numericType), numericReturn, numeric1(roundFunc(math.Ceil)))
	reg(r, "floor", NSFn, params(numericType), numericReturn, numeric1(roundFunc(math.Floor)))
	reg(r, "round", NSFn, params(numericType), numericReturn, numeric1(roundFunc(func(f float64) float64 {
		return math.Floor(f + 0.5)
	})))

	reg(r, "sqrt", NSMath, params(AtomicSequenceType(TDouble, OccurOptional)), AtomicSequenceType(TDouble, OccurOptional), mathFn(math.Sqrt))
	reg(r, "sin", NSMath, params(AtomicSequenceType(TDouble, OccurOptional)), AtomicSequenceType(TDouble, OccurOptional), mathFn(math.Sin))
	reg(r, "cos", NSMath, params(AtomicSequenceType(TDouble, OccurOptional)), AtomicSequenceType(TDouble, OccurOptional), mathFn(math.Cos))
	reg(r, "tan", NSMath, params(AtomicSequenceType(TDouble, OccurOptional)), AtomicSequenceType(TDouble, OccurOptional), mathFn(math.Tan))
	reg(r, "exp", NSMath, params(AtomicSequenceType(TDouble, OccurOptional)), AtomicSequenceType(TDouble, OccurOptional), mathFn(math.Exp))
	reg(r, "log", NSMath, params(AtomicSequenceType(TDouble, OccurOptional)), AtomicSequenceType(TDouble, OccurOptional), mathFn(math.Log))
	reg(r, "pow", NSMath, params(AtomicSequenceType(TDouble, OccurOptional), AtomicSequenceType(TDouble, OccurExactlyOne)),
		AtomicSequenceType(TDouble, OccurOptional), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
			if args[0].IsEmpty() {
				return EmptySequence(), nil
			}
			base, err := argDouble(args, 0)
			if err != nil {
				return nil, err
			}
			exp, err := argDouble(args, 1)
			if err != nil {
				return nil, err
			}
			return Singleton(NewAtomic(DoubleValue(math.Pow(base, exp)))), nil
		})
	reg(r, "pi", NSMath, nil, AtomicSequenceType(TDouble, OccurExactlyOne),
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
			return Singleton(NewAtomic(DoubleValue(math.Pi))), nil
		})
}

// numeric1 adapts a unary AtomicValue transform into a NativeFunc that
// atomizes, empty-propagates, and rewraps per the XPath numeric-function
// convention (empty sequence in, empty sequence out).
func numeric1(body func(v AtomicValue) (AtomicValue, error)) NativeFunc {
	return func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		if args[0].IsEmpty() {
			return EmptySequence(), nil
		}
		a, ok := args[0][0].(Atomic)
		if !ok {
			return nil, Errorf(ErrXPTY0004, Span{}, "numeric function argument is not atomic")
		}
		out, err := body(a.Value)
		if err != nil {
			return nil, err
		}
		return Singleton(NewAtomic(out)), nil
	}
}

// roundFunc lifts a float64 rounding rule to every numeric atomic type,
// preserving the operand's own type per fn:ceiling/floor/round's
// return-type rule (xs:integer stays xs:integer, untouched).
func roundFunc(op func(float64) float64) func(AtomicValue) (AtomicValue, error) {
	return func(v AtomicValue) (AtomicValue, error) {
		switch n := v.(type) {
		case IntegerValue:
			return n, nil
		case DecimalValue:
			return DecimalValueParseString(strconv.FormatFloat(op(n.Float64()), 'f', -1, 64))
		case DoubleValue:
			return DoubleValue(op(float64(n))), nil
		case FloatValue:
			return FloatValue(op(float64(n))), nil
		}
		return v, nil
	}
}

func mathFn(op func(float64) float64) NativeFunc {
	return func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		if args[0].IsEmpty() {
			return EmptySequence(), nil
		}
		f, err := argDouble(args, 0)
		if err != nil {
			return nil, err
		}
		return Singleton(NewAtomic(DoubleValue(op(f)))), nil
	}
}
