// Package cli wires the exploration engine up as a command-line tool:
// run an algorithm against a dataset and cost CSVs, verify a saved trace,
// or print a diagnostic entropy report. Modeled on the teacher's
// package-level root command with subcommands registered from init().
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fpselect",
	Short: "Select a browser-fingerprint attribute subset under a sensitivity budget",
	Long: `fpselect searches the lattice of candidate browser-fingerprint
attributes for a subset that keeps attacker-impersonation sensitivity below
a threshold while minimizing usability cost.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(verifyTraceCmd)
	rootCmd.AddCommand(measureCmd)
}

// Run executes the CLI.
func Run() error {
	return rootCmd.Execute()
}
