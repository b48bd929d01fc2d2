package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

var (
	enhanceJSON    bool
	applyOutput    string
	changesPending bool
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance <document-id>",
	Short: "Ask the LLM to polish a document and record its edits",
	Long: `Sends the document to the configured LLM for a prose pass and records
every difference between the original and the rewrite as a reviewable change.

Review the changes with 'lorekeeper changes', accept or reject them with
'lorekeeper decide', then produce the final text with 'lorekeeper apply'.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnhance,
}

var changesCmd = &cobra.Command{
	Use:     "changes <enhancement-id>",
	Aliases: []string{"diff"},
	Short:   "List the changes of an enhancement",
	Args:    cobra.ExactArgs(1),
	RunE:    runChanges,
}

var decideCmd = &cobra.Command{
	Use:   "decide <change-id> <accept|reject|pending>",
	Short: "Accept or reject a change",
	Args:  cobra.ExactArgs(2),
	RunE:  runDecide,
}

var applyCmd = &cobra.Command{
	Use:   "apply <enhancement-id>",
	Short: "Print the enhanced text with rejected changes reverted",
	Long: `Produces the final text of an enhancement: accepted and undecided changes
are kept, rejected ones are reverted to the original wording.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	enhanceCmd.Flags().BoolVar(&enhanceJSON, "json", false, "output changes as JSON")
	changesCmd.Flags().BoolVar(&enhanceJSON, "json", false, "output changes as JSON")
	changesCmd.Flags().BoolVar(&changesPending, "pending", false, "only show undecided changes")
	applyCmd.Flags().StringVarP(&applyOutput, "output", "o", "", "write the text to a file instead of stdout")

	rootCmd.AddCommand(enhanceCmd)
	rootCmd.AddCommand(changesCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(applyCmd)
}

func runEnhance(cmd *cobra.Command, args []string) error {
	if enhancementService == nil {
		return errors.New("enhancement service not configured")
	}

	enh, changes, err := enhancementService.Enhance(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("enhance failed: %w", err)
	}

	if enhanceJSON {
		return printJSON(cmd, changes)
	}
	cmd.Printf("Enhancement %s: %d change(s)\n", enh.ID, len(changes))
	printChanges(cmd, changes)
	return nil
}

func runChanges(cmd *cobra.Command, args []string) error {
	if enhancementService == nil {
		return errors.New("enhancement service not configured")
	}

	changes, err := enhancementService.Changes(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("listing changes: %w", err)
	}

	if changesPending {
		pending := changes[:0:0]
		for _, c := range changes {
			if c.Decision == domain.DecisionPending {
				pending = append(pending, c)
			}
		}
		changes = pending
	}

	if enhanceJSON {
		return printJSON(cmd, changes)
	}
	if len(changes) == 0 {
		cmd.Println("No changes.")
		return nil
	}
	printChanges(cmd, changes)
	return nil
}

func runDecide(cmd *cobra.Command, args []string) error {
	if enhancementService == nil {
		return errors.New("enhancement service not configured")
	}

	decision, err := parseDecision(args[1])
	if err != nil {
		return err
	}
	if err := enhancementService.Decide(cmd.Context(), args[0], decision); err != nil {
		return fmt.Errorf("recording decision: %w", err)
	}
	cmd.Printf("Change %s %s\n", args[0], decision)
	return nil
}

func runApply(cmd *cobra.Command, args []string) error {
	if enhancementService == nil {
		return errors.New("enhancement service not configured")
	}

	text, err := enhancementService.Finalize(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("applying decisions: %w", err)
	}

	if applyOutput == "" {
		cmd.Print(text)
		if !strings.HasSuffix(text, "\n") {
			cmd.Println()
		}
		return nil
	}
	if err := os.WriteFile(applyOutput, []byte(text), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", applyOutput, err)
	}
	cmd.Printf("Wrote %s\n", applyOutput)
	return nil
}

func parseDecision(s string) (domain.UserDecision, error) {
	switch strings.ToLower(s) {
	case "accept", "accepted", "a", "y":
		return domain.DecisionAccepted, nil
	case "reject", "rejected", "r", "n":
		return domain.DecisionRejected, nil
	case "pending", "reset":
		return domain.DecisionPending, nil
	}
	return "", fmt.Errorf("%w: decision must be accept, reject or pending", domain.ErrInvalidInput)
}

func printChanges(cmd *cobra.Command, changes []domain.ChangeRecord) {
	for _, c := range changes {
		cmd.Printf("%s  %-14s %-8s [%d:%d]\n", c.ID, c.Type, c.Decision, c.Original.Start, c.Original.End)
		if c.OriginalText != "" {
			cmd.Printf("    - %s\n", oneLine(c.OriginalText, 72))
		}
		if c.EnhancedText != "" {
			cmd.Printf("    + %s\n", oneLine(c.EnhancedText, 72))
		}
	}
}

// oneLine flattens whitespace and truncates to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}
