package main

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// everything written to it, the way the teacher's CLI tests observe
// cobra command output without wiring an explicit io.Writer through
// every RunE.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestCompileCommandPrintsBytecode(t *testing.T) {
	rootCmd.SetArgs([]string{"compile", "1 + 2"})
	out := captureStdout(t, func() {
		err := rootCmd.Execute()
		assert.NoError(t, err)
	})
	assert.Contains(t, out, "func ")
	assert.NotEmpty(t, out)
}

func TestIntrospectCommandListsFunctions(t *testing.T) {
	rootCmd.SetArgs([]string{"introspect"})
	out := captureStdout(t, func() {
		err := rootCmd.Execute()
		assert.NoError(t, err)
	})
	assert.Contains(t, out, "function(s)")
}

func TestEvalCommandEvaluatesExpression(t *testing.T) {
	rootCmd.SetArgs([]string{"eval", "1 + 1"})
	out := captureStdout(t, func() {
		err := rootCmd.Execute()
		assert.NoError(t, err)
	})
	assert.Contains(t, out, "2")
}

func TestCompileCommandReportsStaticErrors(t *testing.T) {
	rootCmd.SetArgs([]string{"compile", "$unbound"})
	err := rootCmd.Execute()
	assert.Error(t, err)
}
