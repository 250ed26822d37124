package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tandriamil/BrFAST/internal/trace"
)

var verifyTraceCmd = &cobra.Command{
	Use:   "verify-trace",
	Short: "Verify the structural invariants of a saved trace file",
	RunE:  runVerifyTrace,
}

func init() {
	verifyTraceCmd.Flags().String("trace", "", "path to the trace JSON file (required)")
}

func runVerifyTrace(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("trace")
	if path == "" {
		return fmt.Errorf("--trace is required")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	t, err := trace.Load(f)
	if err != nil {
		return err
	}

	if offender := trace.Verify(t); offender != "" {
		return fmt.Errorf("invalid trace: offending field %s", offender)
	}
	cmd.Printf("trace %s is valid: %d exploration entries, solution %v\n",
		path, len(t.Exploration), t.Result.Solution)
	return nil
}
