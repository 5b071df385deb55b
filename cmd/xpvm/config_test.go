package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagCmd(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("collation", "http://www.w3.org/2005/xpath-functions/collation/codepoint", "")
	cmd.Flags().Int("step-limit", 0, "")
	return cmd
}

func TestCollationFlagPrefersExplicitFlag(t *testing.T) {
	defer viper.Reset()
	viper.Set("default_collation", "urn:xpvm:collation:de")

	cmd := newFlagCmd(t)
	require.NoError(t, cmd.Flags().Set("collation", "urn:xpvm:collation:fr"))

	assert.Equal(t, "urn:xpvm:collation:fr", collationFlag(cmd))
}

func TestCollationFlagFallsBackToViper(t *testing.T) {
	defer viper.Reset()
	viper.Set("default_collation", "urn:xpvm:collation:sv")

	cmd := newFlagCmd(t)
	assert.Equal(t, "urn:xpvm:collation:sv", collationFlag(cmd))
}

func TestCollationFlagFallsBackToFlagDefault(t *testing.T) {
	defer viper.Reset()

	cmd := newFlagCmd(t)
	assert.Equal(t, "http://www.w3.org/2005/xpath-functions/collation/codepoint", collationFlag(cmd))
}

func TestStepLimitFlagPrefersExplicitFlag(t *testing.T) {
	defer viper.Reset()
	viper.Set("step_limit", 500)

	cmd := newFlagCmd(t)
	require.NoError(t, cmd.Flags().Set("step-limit", "100"))

	assert.Equal(t, 100, stepLimitFlag(cmd))
}

func TestStepLimitFlagFallsBackToViper(t *testing.T) {
	defer viper.Reset()
	viper.Set("step_limit", 250)

	cmd := newFlagCmd(t)
	assert.Equal(t, 250, stepLimitFlag(cmd))
}
