package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sderkacs/xpvm/core"
)

var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "List built-in function signatures",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		static := core.NewStaticContext()
		sigs := static.Functions.Functions()
		for _, sig := range sigs {
			tag := ""
			if sig.ContextFirst {
				tag = " (context-first)"
			}
			fmt.Printf("%s#%d%s\n", sig.Name, len(sig.Params), tag)
		}
		fmt.Printf("%d function(s)\n", len(sigs))
		return nil
	},
}
