package printer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sderkacs/xpvm/core"
)

func TestSequenceRendersOneLinePerItemWithKindTag(t *testing.T) {
	seq := core.Sequence{
		core.NewAtomic(core.IntegerValueOfInt64(1)),
		core.NewAtomic(core.StringValue("hi")),
	}
	out := Sequence(seq)
	assert.Equal(t, "[0] atomic: 1\n[1] atomic: hi", out)
}

func TestSequenceEmpty(t *testing.T) {
	assert.Equal(t, "", Sequence(nil))
}

func TestProgramListsFunctionsAndInstructions(t *testing.T) {
	static := core.NewStaticContext()
	prog, err := core.Compile(`1 + 2`, static)
	require.NoError(t, err)

	out := Program(prog)
	require.NotEmpty(t, prog.Functions)
	require.NotEmpty(t, prog.Instructions)

	assert.Contains(t, out, "func ")
	assert.Contains(t, out, "entry=")

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, len(prog.Functions)+len(prog.Instructions), len(lines))
}
