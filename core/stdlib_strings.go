package core

import (
	"strings"

	Text "github.com/linkdotnet/golang-stringbuilder"

	"github.com/sderkacs/xpvm/utils"
)

// registerStringFunctions binds the fn: string functions, built in the
// same character-buffer style as the rest of this package via
// golang-stringbuilder rather than raw strings.Builder.
func registerStringFunctions(r *FunctionRegistry) {
	reg(r, "upper-case", NSFn, params(oneString()), stringReturn(), str1(func(s string) (string, error) {
		var b Text.StringBuilder
		b.Append(strings.ToUpper(s))
		return b.ToString(), nil
	}))
	reg(r, "lower-case", NSFn, params(oneString()), stringReturn(), str1(func(s string) (string, error) {
		var b Text.StringBuilder
		b.Append(strings.ToLower(s))
		return b.ToString(), nil
	}))
	reg(r, "normalize-space", NSFn, params(optString()), stringReturn(), str1(func(s string) (string, error) {
		return strings.Join(strings.Fields(s), " "), nil
	}))
	reg(r, "string-length", NSFn, params(optString()), integerReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		s, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		n, err := utils.CodePointCount(s, 0, len(s))
		if err != nil {
			return nil, WrapError(ErrFORG0006, Span{}, err)
		}
		return Singleton(NewAtomic(IntegerValueOfInt64(int64(n)))), nil
	})
	reg(r, "concat", NSFn, nil, stringReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		var b Text.StringBuilder
		for i := range args {
			s, err := argString(args, i)
			if err != nil {
				return nil, err
			}
			b.Append(s)
		}
		return Singleton(NewAtomic(StringValue(b.ToString()))), nil
	})
	reg(r, "contains", NSFn, params(optString(), optString()), booleanReturn(), str2bool(strings.Contains))
	reg(r, "starts-with", NSFn, params(optString(), optString()), booleanReturn(), str2bool(strings.HasPrefix))
	reg(r, "ends-with", NSFn, params(optString(), optString()), booleanReturn(), str2bool(strings.HasSuffix))
	reg(r, "substring", NSFn, params(optString(), AtomicSequenceType(TDouble, OccurExactlyOne)), stringReturn(),
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) { return substringImpl(args) })
	reg(r, "substring", NSFn, params(optString(), AtomicSequenceType(TDouble, OccurExactlyOne), AtomicSequenceType(TDouble, OccurExactlyOne)), stringReturn(),
		func(ctx *DynamicContext, args []Sequence) (Sequence, error) { return substringImpl(args) })
	reg(r, "substring-before", NSFn, params(optString(), optString()), stringReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		a, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		b, err := argString(args, 1)
		if err != nil {
			return nil, err
		}
		if idx := strings.Index(a, b); idx >= 0 && b != "" {
			return Singleton(NewAtomic(StringValue(a[:idx]))), nil
		}
		return Singleton(NewAtomic(StringValue(""))), nil
	})
	reg(r, "substring-after", NSFn, params(optString(), optString()), stringReturn(), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		a, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		b, err := argString(args, 1)
		if err != nil {
			return nil, err
		}
		if idx := strings.Index(a, b); idx >= 0 && b != "" {
			return Singleton(NewAtomic(StringValue(a[idx+len(b):]))), nil
		}
		return Singleton(NewAtomic(StringValue(""))), nil
	})
	reg(r, "tokenize", NSFn, params(optString(), oneString()), AtomicSequenceType(TString, OccurZeroOrMore), func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		s, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		pattern, err := argString(args, 1)
		if err != nil {
			return nil, err
		}
		var parts []string
		if pattern == " " || pattern == "" {
			parts = strings.Fields(s)
		} else {
			parts = strings.Split(s, pattern)
		}
		out := make(Sequence, 0, len(parts))
		for _, p := range parts {
			out = append(out, NewAtomic(StringValue(p)))
		}
		return out, nil
	})
}

// str2bool adapts a (string, string) bool Go stdlib predicate into a
// two-argument NativeFunc.
func str2bool(pred func(a, b string) bool) NativeFunc {
	return func(ctx *DynamicContext, args []Sequence) (Sequence, error) {
		a, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		b, err := argString(args, 1)
		if err != nil {
			return nil, err
		}
		return Singleton(NewAtomic(BooleanValue(pred(a, b)))), nil
	}
}

// substringImpl rounds start/length to the nearest integer and clips to
// the string's bounds, per xs:double rounding rules for fn:substring.
func substringImpl(args []Sequence) (Sequence, error) {
	s, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	startF, err := argDouble(args, 1)
	if err != nil {
		return nil, err
	}
	length := float64(len(runes)) - startF + 1
	if len(args) > 2 {
		length, err = argDouble(args, 2)
		if err != nil {
			return nil, err
		}
	}
	start := roundHalfToEven(startF)
	end := start + roundHalfToEven(length)
	lo := maxInt(1, start)
	hi := minInt(len(runes)+1, end)
	if hi <= lo {
		return Singleton(NewAtomic(StringValue(""))), nil
	}
	return Singleton(NewAtomic(StringValue(string(runes[lo-1 : hi-1])))), nil
}

func argDouble(args []Sequence, i int) (float64, error) {
	if i >= len(args) || args[i].IsEmpty() {
		return 0, nil
	}
	a, ok := args[i][0].(Atomic)
	if !ok {
		return 0, Errorf(ErrXPTY0004, Span{}, "argument %d is not atomic", i)
	}
	return atomicToFloat64(a.Value, a.Value.String(), Span{})
}

func roundHalfToEven(f float64) int { return int(f + 0.5) }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
