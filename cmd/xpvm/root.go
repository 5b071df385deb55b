package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sderkacs/xpvm/internal/logging"
)

var (
	cfgFile string
	debug   bool
	log     logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "xpvm",
	Short: "Compile and run XPath 3.1 expressions against XML documents",
	Long: `xpvm compiles an XPath 3.1 expression into a stack-based bytecode
program and, optionally, executes it against one or more XML documents,
producing an XDM sequence.`,
}

// Execute runs rootCmd, whose subcommands are attached in init. Called
// once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .xpvm.yaml in the working directory)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug-level logging")
	rootCmd.PersistentFlags().String("collation", "http://www.w3.org/2005/xpath-functions/collation/codepoint", "default collation URI")
	rootCmd.PersistentFlags().Int("step-limit", 0, "abort evaluation after this many VM steps (0: unlimited)")
	_ = viper.BindPFlag("default_collation", rootCmd.PersistentFlags().Lookup("collation"))
	_ = viper.BindPFlag("step_limit", rootCmd.PersistentFlags().Lookup("step-limit"))

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if debug || viper.GetBool("debug") {
			level = zerolog.DebugLevel
		}
		log = logging.New(level, os.Stderr)
	}

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(introspectCmd)
}

// initConfig loads a .env file (ignored if absent, so a bare checkout
// still runs), then a .xpvm config file via viper, then environment
// variables prefixed XPVM_.
func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "xpvm: .env:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".xpvm")
	}
	viper.SetEnvPrefix("XPVM")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "xpvm: using config file:", viper.ConfigFileUsed())
	}
}
