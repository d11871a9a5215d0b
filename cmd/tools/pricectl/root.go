// pricectl runs price resolutions and name lookups against the configured
// store without going through Zeebe.
//
// Usage:
//
//	pricectl resolve --commodity=Cotton --market=Adoni --date=2025-10-22
//	pricectl resolve --question="onion rate in kurnool today"
//	pricectl match --kind=market --state="Andhra Pradesh" Ravulapalem
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootFlags struct {
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:   "pricectl",
	Short: "Operator tool for mandi price resolution",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
