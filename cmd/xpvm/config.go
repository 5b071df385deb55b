package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// collationFlag resolves the effective default collation URI: the
// --collation flag if the user set it, else whatever viper picked up
// from a config file or XPVM_DEFAULT_COLLATION.
func collationFlag(cmd *cobra.Command) string {
	if v, err := cmd.Flags().GetString("collation"); err == nil && cmd.Flags().Changed("collation") {
		return v
	}
	if s := viper.GetString("default_collation"); s != "" {
		return s
	}
	v, _ := cmd.Flags().GetString("collation")
	return v
}

// stepLimitFlag resolves the effective VM step budget the same way.
func stepLimitFlag(cmd *cobra.Command) int {
	if cmd.Flags().Changed("step-limit") {
		v, _ := cmd.Flags().GetInt("step-limit")
		return v
	}
	if viper.IsSet("step_limit") {
		return viper.GetInt("step_limit")
	}
	v, _ := cmd.Flags().GetInt("step-limit")
	return v
}
