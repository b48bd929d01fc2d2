package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Fail jobs and enhancements stuck past the timeout",
	Long: `Marks every non-terminal job and in-progress enhancement older than the
configured ceiling as failed. The scheduler runs this periodically; use the
command after a crash to clear stale work immediately.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	if timeoutSupervisor == nil {
		return errors.New("timeout supervisor not configured")
	}

	result, err := timeoutSupervisor.Sweep(cmd.Context())
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	cmd.Printf("Expired %d job(s) and %d enhancement(s)\n", result.JobsExpired, result.EnhancementsExpired)
	return nil
}
