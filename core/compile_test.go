package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, src string) Sequence {
	t.Helper()
	static := NewStaticContext()
	prog, err := Compile(src, static)
	require.NoError(t, err, "compile %q", src)
	dctx := NewDynamicContext(static, NewDocumentSet())
	vm := NewVM(prog, dctx, 10000)
	seq, err := vm.Run()
	require.NoError(t, err, "run %q", src)
	return seq
}

func TestCompileArithmetic(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"1 + 2", "3"},
		{"(2 + 3) * 4", "20"},
		{"10 idiv 3", "3"},
		{"10 mod 3", "1"},
		{"-5", "-5"},
	}
	for _, c := range cases {
		seq := run(t, c.src)
		require.Equal(t, 1, seq.Len(), "src %q", c.src)
		assert.Equal(t, c.want, seq.String(), "src %q", c.src)
	}
}

func TestCompileStrings(t *testing.T) {
	seq := run(t, `concat('foo', '-', 'bar')`)
	require.Equal(t, 1, seq.Len())
	assert.Equal(t, "foo-bar", seq.String())

	seq = run(t, `upper-case('abc')`)
	assert.Equal(t, "ABC", seq.String())
}

func TestCompileSequenceConstruction(t *testing.T) {
	seq := run(t, `(1, 2, 3)`)
	require.Equal(t, 3, seq.Len())
	assert.Equal(t, "1 2 3", seq.String())
}

func TestCompileLetAndFor(t *testing.T) {
	seq := run(t, `let $x := 5 return $x + 1`)
	require.Equal(t, 1, seq.Len())
	assert.Equal(t, "6", seq.String())

	seq = run(t, `for $x in (1, 2, 3) return $x * 2`)
	require.Equal(t, 3, seq.Len())
	assert.Equal(t, "2 4 6", seq.String())
}

func TestCompileIfAndComparisons(t *testing.T) {
	seq := run(t, `if (1 < 2) then 'yes' else 'no'`)
	assert.Equal(t, "yes", seq.String())

	seq = run(t, `if (2 < 1) then 'yes' else 'no'`)
	assert.Equal(t, "no", seq.String())
}

func TestCompileFilterExpr(t *testing.T) {
	seq := run(t, `(1, 2, 3, 4, 5)[. mod 2 = 0]`)
	require.Equal(t, 2, seq.Len())
	assert.Equal(t, "2 4", seq.String())
}

func TestCompileQuantified(t *testing.T) {
	seq := run(t, `some $x in (1, 2, 3) satisfies $x = 2`)
	assert.Equal(t, "true", seq.String())

	seq = run(t, `every $x in (1, 2, 3) satisfies $x > 0`)
	assert.Equal(t, "true", seq.String())
}

func TestCompileMapLookupAndArrayCall(t *testing.T) {
	seq := run(t, `map{ "a": 1, "b": 2 }?a`)
	assert.Equal(t, "1", seq.String())

	seq = run(t, `array{1, 2, 3}(2)`)
	assert.Equal(t, "2", seq.String())
}

func TestCompileUnboundVariableIsStaticError(t *testing.T) {
	static := NewStaticContext()
	_, err := Compile(`$nope`, static)
	require.Error(t, err)
}
