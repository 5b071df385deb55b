package xpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAcceptsWellFormedExpressions(t *testing.T) {
	cases := []string{
		`1 + 2 * 3`,
		`child::book[@id = '1']`,
		`//book/title`,
		`let $x := 1 return $x + 1`,
		`for $x in (1, 2, 3) return $x`,
		`if (1 < 2) then 'a' else 'b'`,
		`some $x in (1, 2) satisfies $x = 1`,
		`map{ "a": 1 }`,
		`array{1, 2, 3}`,
		`.//*[1]`,
	}
	for _, src := range cases {
		_, err := Parse(src)
		assert.NoError(t, err, "src %q", src)
	}
}

func TestParseRejectsMalformedExpressions(t *testing.T) {
	cases := []string{
		`(1 + `,
		`child::[@id]`,
		`let $x := return $x`,
		``,
	}
	for _, src := range cases {
		_, err := Parse(src)
		assert.Error(t, err, "src %q", src)
	}
}

func TestParseProducesPathExprForSteps(t *testing.T) {
	expr, err := Parse(`child::book`)
	require.NoError(t, err)
	_, ok := expr.(*PathExpr)
	assert.True(t, ok, "expected a PathExpr for an axis step")
}
