package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

var detectJSON bool

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "List documents that changed since the last analysis",
	Long: `Compares every document of the project against the fingerprint recorded
by the last successful analysis and lists the ones that need reanalysis.`,
	Args: cobra.NoArgs,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, _ []string) error {
	if stalenessDetector == nil {
		return errors.New("staleness detector not configured")
	}
	project, err := projectID()
	if err != nil {
		return err
	}

	report, err := stalenessDetector.Detect(cmd.Context(), project)
	if err != nil {
		return fmt.Errorf("detect failed: %w", err)
	}

	if detectJSON {
		return printJSON(cmd, report)
	}

	if report.Status == domain.StalenessUnknown {
		cmd.Printf("Staleness unknown: %s\n", report.Reason)
		return nil
	}
	if report.Count == 0 {
		cmd.Println("All documents are up to date.")
		return nil
	}
	cmd.Printf("%d document(s) need analysis:\n", report.Count)
	for _, id := range report.DocumentIDs {
		cmd.Printf("  %s\n", id)
	}
	return nil
}

// printJSON writes v as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
