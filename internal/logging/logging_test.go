package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/sderkacs/xpvm/core"
)

func TestNewWritesMessageToGivenWriter(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.DebugLevel, &buf)

	l.Debug("compiling", "expr", "1+1")

	out := buf.String()
	assert.Contains(t, out, "compiling")
	assert.Contains(t, out, "1+1")
}

func TestNewDefaultsToStderrWithoutPanicking(t *testing.T) {
	l := New(zerolog.WarnLevel, nil)
	assert.NotPanics(t, func() { l.Warn("no sink given") })
}

func TestLoggerSatisfiesCoreLogger(t *testing.T) {
	var _ core.Logger = New(zerolog.InfoLevel, &bytes.Buffer{})
}

func TestEventIgnoresMalformedTrailingPair(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.TraceLevel, &buf)
	assert.NotPanics(t, func() { l.Trace("odd pair", "onlykey") })
	assert.Contains(t, buf.String(), "odd pair")
}
