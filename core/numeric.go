package core

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// IntegerValue is xs:integer: arbitrary precision, represented in one of
// two tiers (a native int64 fast path, falling back to *big.Int). The
// smallest tier that fits is always chosen by the IntegerValueOfXxx
// constructors so that equality and hashing never have to normalize
// across tiers at use time.
type IntegerValue struct {
	small int64
	big   *big.Int // non-nil only when the value does not fit in int64
	isBig bool
}

func IntegerValueOfInt64(v int64) IntegerValue {
	return IntegerValue{small: v}
}

func IntegerValueOfBig(v *big.Int) IntegerValue {
	if v.IsInt64() {
		return IntegerValue{small: v.Int64()}
	}
	return IntegerValue{big: new(big.Int).Set(v), isBig: true}
}

// IntegerValueParse parses an xs:integer lexical value: optional sign,
// digits, no fractional part, leading zeros permitted and stripped
// (xs:integer("00123") == 123).
func IntegerValueParse(s string) (IntegerValue, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return IntegerValue{}, Errorf(ErrFORG0001, Span{}, "invalid xs:integer lexical value %q", s)
	}
	neg := false
	digits := t
	if digits[0] == '+' || digits[0] == '-' {
		neg = digits[0] == '-'
		digits = digits[1:]
	}
	if digits == "" {
		return IntegerValue{}, Errorf(ErrFORG0001, Span{}, "invalid xs:integer lexical value %q", s)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return IntegerValue{}, Errorf(ErrFORG0001, Span{}, "invalid xs:integer lexical value %q", s)
		}
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		digits = "0"
	}
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
		if neg {
			n = -n
		}
		return IntegerValue{small: n}, nil
	}
	bi, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return IntegerValue{}, Errorf(ErrFORG0001, Span{}, "invalid xs:integer lexical value %q", s)
	}
	if neg {
		bi.Neg(bi)
	}
	return IntegerValueOfBig(bi), nil
}

func (v IntegerValue) BigInt() *big.Int {
	if v.isBig {
		return v.big
	}
	return big.NewInt(v.small)
}

func (v IntegerValue) Int64() (int64, bool) {
	if v.isBig {
		return 0, false
	}
	return v.small, true
}

func (v IntegerValue) Float64() float64 {
	if !v.isBig {
		return float64(v.small)
	}
	f := new(big.Float).SetInt(v.big)
	out, _ := f.Float64()
	return out
}

func (v IntegerValue) String() string {
	if v.isBig {
		return v.big.String()
	}
	return strconv.FormatInt(v.small, 10)
}

func (v IntegerValue) Sign() int {
	if v.isBig {
		return v.big.Sign()
	}
	switch {
	case v.small > 0:
		return 1
	case v.small < 0:
		return -1
	default:
		return 0
	}
}

func (v IntegerValue) Equal(o IntegerValue) bool {
	if !v.isBig && !o.isBig {
		return v.small == o.small
	}
	return v.BigInt().Cmp(o.BigInt()) == 0
}

func (v IntegerValue) Cmp(o IntegerValue) int {
	if !v.isBig && !o.isBig {
		switch {
		case v.small < o.small:
			return -1
		case v.small > o.small:
			return 1
		default:
			return 0
		}
	}
	return v.BigInt().Cmp(o.BigInt())
}

func (v IntegerValue) Add(o IntegerValue) IntegerValue {
	if !v.isBig && !o.isBig {
		sum := v.small + o.small
		// overflow check: signs of operands equal but differ from result
		if (v.small > 0 && o.small > 0 && sum < 0) || (v.small < 0 && o.small < 0 && sum > 0) {
			return IntegerValueOfBig(new(big.Int).Add(v.BigInt(), o.BigInt()))
		}
		return IntegerValue{small: sum}
	}
	return IntegerValueOfBig(new(big.Int).Add(v.BigInt(), o.BigInt()))
}

func (v IntegerValue) Sub(o IntegerValue) IntegerValue {
	return v.Add(o.Negate())
}

func (v IntegerValue) Negate() IntegerValue {
	if !v.isBig && v.small != math.MinInt64 {
		return IntegerValue{small: -v.small}
	}
	return IntegerValueOfBig(new(big.Int).Neg(v.BigInt()))
}

func (v IntegerValue) Mul(o IntegerValue) IntegerValue {
	return IntegerValueOfBig(new(big.Int).Mul(v.BigInt(), o.BigInt()))
}

// IDiv implements XPath integer division truncating toward zero; it
// raises FOAR0001 on division by zero.
func (v IntegerValue) IDiv(o IntegerValue) (IntegerValue, error) {
	if o.Sign() == 0 {
		return IntegerValue{}, NewError(ErrFOAR0001, "integer division by zero", Span{})
	}
	return IntegerValueOfBig(new(big.Int).Quo(v.BigInt(), o.BigInt())), nil
}

func (v IntegerValue) Mod(o IntegerValue) (IntegerValue, error) {
	if o.Sign() == 0 {
		return IntegerValue{}, NewError(ErrFOAR0001, "integer modulo by zero", Span{})
	}
	return IntegerValueOfBig(new(big.Int).Rem(v.BigInt(), o.BigInt())), nil
}

var apdContext = apd.BaseContext.WithPrecision(50)

// DecimalValue is xs:decimal: arbitrary precision fixed point, backed by
// cockroachdb/apd. This is the runtime XDM value, not a serialized wire
// form.
type DecimalValue struct {
	d apd.Decimal
}

func DecimalValueOf(d *apd.Decimal) DecimalValue {
	var v DecimalValue
	v.d.Set(d)
	return v
}

func DecimalValueOfInt64(i int64) DecimalValue {
	var v DecimalValue
	v.d.SetInt64(i)
	return v
}

func DecimalValueOfInteger(i IntegerValue) DecimalValue {
	var v DecimalValue
	v.d.Coeff.Set(i.BigInt())
	if v.d.Coeff.Sign() < 0 {
		v.d.Coeff.Neg(&v.d.Coeff)
		v.d.Negative = true
	}
	return v
}

func DecimalValueParseString(s string) (DecimalValue, error) {
	var v DecimalValue
	t := strings.TrimSpace(s)
	if t == "" {
		return v, NewError(ErrFORG0001, "invalid xs:decimal lexical value", Span{})
	}
	_, _, err := apdContext.SetString(&v.d, t)
	if err != nil {
		return v, Errorf(ErrFORG0001, Span{}, "invalid xs:decimal lexical value %q: %v", s, err)
	}
	return v, nil
}

func (v DecimalValue) Decimal() *apd.Decimal {
	return &v.d
}

func (v DecimalValue) String() string {
	return v.d.Text('f')
}

func (v DecimalValue) Float64() float64 {
	f, _ := v.d.Float64()
	return f
}

func (v DecimalValue) Sign() int {
	return v.d.Sign()
}

func (v DecimalValue) Negate() DecimalValue {
	var out DecimalValue
	out.d.Set(&v.d)
	if out.d.Sign() != 0 {
		out.d.Negative = !out.d.Negative
	}
	return out
}

func (v DecimalValue) Equal(o DecimalValue) bool {
	return v.d.Cmp(&o.d) == 0
}

func (v DecimalValue) Cmp(o DecimalValue) int {
	return v.d.Cmp(&o.d)
}

func decimalOp(a, b DecimalValue, fn func(c *apd.Context, result, a, b *apd.Decimal) (apd.Condition, error)) (DecimalValue, error) {
	var out DecimalValue
	_, err := fn(apdContext, &out.d, &a.d, &b.d)
	if err != nil {
		return DecimalValue{}, WrapError(ErrFOAR0002, Span{}, err)
	}
	return out, nil
}

func (v DecimalValue) Add(o DecimalValue) (DecimalValue, error) {
	return decimalOp(v, o, apdContext.Add)
}

func (v DecimalValue) Sub(o DecimalValue) (DecimalValue, error) {
	return decimalOp(v, o, apdContext.Sub)
}

func (v DecimalValue) Mul(o DecimalValue) (DecimalValue, error) {
	return decimalOp(v, o, apdContext.Mul)
}

func (v DecimalValue) Div(o DecimalValue) (DecimalValue, error) {
	if o.Sign() == 0 {
		return DecimalValue{}, NewError(ErrFOAR0001, "decimal division by zero", Span{})
	}
	return decimalOp(v, o, apdContext.Quo)
}

// DoubleValue is xs:double, IEEE 754 binary64, with NaN/Infinity and
// signed-zero semantics handled explicitly rather than relying on Go's
// float64 defaults matching XPath's in every case.
type DoubleValue float64

func (v DoubleValue) IsNaN() bool { return math.IsNaN(float64(v)) }

// Equal implements eq: NaN is unequal to everything including itself,
// and -0.0 equals +0.0 (the default Go == already has this property for
// float64, but we spell it out since it is a load-bearing spec rule).
func (v DoubleValue) Equal(o DoubleValue) bool {
	if v.IsNaN() || o.IsNaN() {
		return false
	}
	return float64(v) == float64(o)
}

func (v DoubleValue) String() string {
	switch {
	case math.IsNaN(float64(v)):
		return "NaN"
	case math.IsInf(float64(v), 1):
		return "INF"
	case math.IsInf(float64(v), -1):
		return "-INF"
	}
	return strconv.FormatFloat(float64(v), 'g', -1, 64)
}

// FloatValue is xs:float, IEEE 754 binary32; it is stored natively as a
// float32 rather than widened to float64, so arithmetic keeps true
// 32-bit precision and rounding behavior throughout.
type FloatValue float32

func (v FloatValue) IsNaN() bool { return math.IsNaN(float64(v)) }

func (v FloatValue) Equal(o FloatValue) bool {
	if v.IsNaN() || o.IsNaN() {
		return false
	}
	return float32(v) == float32(o)
}

func (v FloatValue) String() string {
	switch {
	case math.IsNaN(float64(v)):
		return "NaN"
	case math.IsInf(float64(v), 1):
		return "INF"
	case math.IsInf(float64(v), -1):
		return "-INF"
	}
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
