package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	cfgPath string
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:          "fedwatch",
	Short:        "Federal Register monitoring and notification service",
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default $FEDWATCH_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(serveCmd, syncCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
