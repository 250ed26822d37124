// Command fpselect runs the browser-fingerprint attribute selection engine:
// choosing a subset of attributes that keeps attacker-impersonation
// sensitivity under a threshold while minimizing collection cost.
package main

import (
	"fmt"
	"os"

	"github.com/tandriamil/BrFAST/internal/cli"
)

func main() {
	if err := cli.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
