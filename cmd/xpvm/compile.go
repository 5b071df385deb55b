package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sderkacs/xpvm/core"
	"github.com/sderkacs/xpvm/internal/printer"
)

var compileCmd = &cobra.Command{
	Use:   "compile <expression>",
	Short: "Parse and lower an XPath expression, printing its bytecode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		static := core.NewStaticContext()
		static.DefaultCollation = collationFlag(cmd)

		prog, err := core.Compile(args[0], static)
		if err != nil {
			return fmt.Errorf("static error: %w", err)
		}
		log.Debug("compiled program", "instructions", len(prog.Instructions), "functions", len(prog.Functions))
		fmt.Print(printer.Program(prog))
		return nil
	},
}
