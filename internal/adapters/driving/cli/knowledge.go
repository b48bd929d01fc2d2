package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

var (
	knowledgeJSON        bool
	knowledgeCategory    string
	knowledgeFlagged     bool
	knowledgeBelow       float64
	knowledgeDescription string
	knowledgeUnflag      bool
	knowledgeLimit       int

	editName        string
	editDescription string
	editCategory    string
	editEvidence    string
)

var knowledgeCmd = &cobra.Command{
	Use:     "knowledge",
	Aliases: []string{"kb"},
	Short:   "Review and correct extracted story knowledge",
	Long: `Lists, edits and verifies the characters, relationships, plot threads and
timeline events extracted from the manuscript. Edited or verified items are
owned by you: later analyses never overwrite them.`,
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge items",
	Args:  cobra.NoArgs,
	RunE:  runKnowledgeList,
}

var knowledgeShowCmd = &cobra.Command{
	Use:   "show <item-id>",
	Short: "Show one knowledge item",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeShow,
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add <category> <name>",
	Short: "Add a knowledge item by hand",
	Args:  cobra.ExactArgs(2),
	RunE:  runKnowledgeAdd,
}

var knowledgeEditCmd = &cobra.Command{
	Use:   "edit <item-id>",
	Short: "Correct a knowledge item",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeEdit,
}

var knowledgeVerifyCmd = &cobra.Command{
	Use:   "verify <item-id>",
	Short: "Confirm a knowledge item",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeVerify,
}

var knowledgeFlagCmd = &cobra.Command{
	Use:   "flag <item-id>",
	Short: "Flag a knowledge item for review",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeFlag,
}

var knowledgeDeleteCmd = &cobra.Command{
	Use:   "delete <item-id>",
	Short: "Delete a knowledge item",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeDelete,
}

var knowledgeDecisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "List recent merge decisions",
	Args:  cobra.NoArgs,
	RunE:  runKnowledgeDecisions,
}

func init() {
	knowledgeCmd.PersistentFlags().BoolVar(&knowledgeJSON, "json", false, "output as JSON")

	knowledgeListCmd.Flags().StringVarP(&knowledgeCategory, "category", "c", "", "only items of this category")
	knowledgeListCmd.Flags().BoolVar(&knowledgeFlagged, "flagged", false, "only flagged items")
	knowledgeListCmd.Flags().Float64Var(&knowledgeBelow, "below", 0, "only items with confidence below this value")

	knowledgeAddCmd.Flags().StringVarP(&knowledgeDescription, "description", "d", "", "item description")

	knowledgeEditCmd.Flags().StringVar(&editName, "name", "", "new name")
	knowledgeEditCmd.Flags().StringVar(&editDescription, "description", "", "new description")
	knowledgeEditCmd.Flags().StringVar(&editCategory, "category", "", "new category")
	knowledgeEditCmd.Flags().StringVar(&editEvidence, "evidence", "", "new evidence")

	knowledgeFlagCmd.Flags().BoolVar(&knowledgeUnflag, "off", false, "clear the flag instead")

	knowledgeDecisionsCmd.Flags().IntVarP(&knowledgeLimit, "limit", "n", 20, "maximum number of decisions")

	knowledgeCmd.AddCommand(knowledgeListCmd)
	knowledgeCmd.AddCommand(knowledgeShowCmd)
	knowledgeCmd.AddCommand(knowledgeAddCmd)
	knowledgeCmd.AddCommand(knowledgeEditCmd)
	knowledgeCmd.AddCommand(knowledgeVerifyCmd)
	knowledgeCmd.AddCommand(knowledgeFlagCmd)
	knowledgeCmd.AddCommand(knowledgeDeleteCmd)
	knowledgeCmd.AddCommand(knowledgeDecisionsCmd)
	rootCmd.AddCommand(knowledgeCmd)
}

func requireKnowledge() error {
	if knowledgeService == nil {
		return errors.New("knowledge service not configured")
	}
	return nil
}

func runKnowledgeList(cmd *cobra.Command, _ []string) error {
	if err := requireKnowledge(); err != nil {
		return err
	}
	project, err := projectID()
	if err != nil {
		return err
	}

	filter := driven.KnowledgeFilter{
		FlaggedOnly:   knowledgeFlagged,
		MaxConfidence: knowledgeBelow,
	}
	if knowledgeCategory != "" {
		cat, err := parseCategory(knowledgeCategory)
		if err != nil {
			return err
		}
		filter.Category = cat
	}

	items, err := knowledgeService.List(cmd.Context(), project, filter)
	if err != nil {
		return fmt.Errorf("listing knowledge: %w", err)
	}

	if knowledgeJSON {
		return printJSON(cmd, items)
	}
	if len(items) == 0 {
		cmd.Println("No knowledge items.")
		return nil
	}
	for i := range items {
		printItemLine(cmd, &items[i])
	}
	return nil
}

func runKnowledgeShow(cmd *cobra.Command, args []string) error {
	if err := requireKnowledge(); err != nil {
		return err
	}
	item, err := knowledgeService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("getting item: %w", err)
	}
	return printItem(cmd, item)
}

func runKnowledgeAdd(cmd *cobra.Command, args []string) error {
	if err := requireKnowledge(); err != nil {
		return err
	}
	project, err := projectID()
	if err != nil {
		return err
	}
	cat, err := parseCategory(args[0])
	if err != nil {
		return err
	}

	item, err := knowledgeService.Create(cmd.Context(), project, cat, args[1], knowledgeDescription)
	if err != nil {
		return fmt.Errorf("creating item: %w", err)
	}
	cmd.Printf("Created %s\n", item.ID)
	return nil
}

func runKnowledgeEdit(cmd *cobra.Command, args []string) error {
	if err := requireKnowledge(); err != nil {
		return err
	}

	var edit domain.KnowledgeEdit
	flags := cmd.Flags()
	if flags.Changed("name") {
		edit.Name = &editName
	}
	if flags.Changed("description") {
		edit.Description = &editDescription
	}
	if flags.Changed("evidence") {
		edit.Evidence = &editEvidence
	}
	if flags.Changed("category") {
		cat, err := parseCategory(editCategory)
		if err != nil {
			return err
		}
		edit.Category = &cat
	}
	if edit.Name == nil && edit.Description == nil && edit.Evidence == nil && edit.Category == nil {
		return errors.New("nothing to edit: pass --name, --description, --category or --evidence")
	}

	item, err := knowledgeService.Edit(cmd.Context(), args[0], edit)
	if err != nil {
		return fmt.Errorf("editing item: %w", err)
	}
	return printItem(cmd, item)
}

func runKnowledgeVerify(cmd *cobra.Command, args []string) error {
	if err := requireKnowledge(); err != nil {
		return err
	}
	item, err := knowledgeService.Verify(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("verifying item: %w", err)
	}
	cmd.Printf("Verified %s (%s)\n", item.Name, item.ID)
	return nil
}

func runKnowledgeFlag(cmd *cobra.Command, args []string) error {
	if err := requireKnowledge(); err != nil {
		return err
	}
	item, err := knowledgeService.Flag(cmd.Context(), args[0], !knowledgeUnflag)
	if err != nil {
		return fmt.Errorf("flagging item: %w", err)
	}
	if item.IsFlagged {
		cmd.Printf("Flagged %s (%s)\n", item.Name, item.ID)
	} else {
		cmd.Printf("Cleared flag on %s (%s)\n", item.Name, item.ID)
	}
	return nil
}

func runKnowledgeDelete(cmd *cobra.Command, args []string) error {
	if err := requireKnowledge(); err != nil {
		return err
	}
	if err := knowledgeService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	cmd.Printf("Deleted %s\n", args[0])
	return nil
}

func runKnowledgeDecisions(cmd *cobra.Command, _ []string) error {
	if err := requireKnowledge(); err != nil {
		return err
	}
	project, err := projectID()
	if err != nil {
		return err
	}

	entries, err := knowledgeService.Decisions(cmd.Context(), project, knowledgeLimit)
	if err != nil {
		return fmt.Errorf("listing decisions: %w", err)
	}
	if knowledgeJSON {
		return printJSON(cmd, entries)
	}
	if len(entries) == 0 {
		cmd.Println("No merge decisions recorded.")
		return nil
	}
	for _, e := range entries {
		source := "llm"
		if e.Fallback {
			source = "fallback"
		}
		cmd.Printf("%s  %-14s %-30s %-13s %.2f %s\n",
			e.DecidedAt.Local().Format(time.DateTime), e.Category, oneLine(e.CandidateName, 30),
			e.Action, e.Confidence, source)
		if e.Reason != "" {
			cmd.Printf("    %s\n", oneLine(e.Reason, 76))
		}
	}
	return nil
}

func parseCategory(s string) (domain.Category, error) {
	cat := domain.Category(strings.ToLower(strings.ReplaceAll(s, "-", "_")))
	if !cat.IsValid() {
		names := make([]string, 0, len(domain.AllCategories()))
		for _, c := range domain.AllCategories() {
			names = append(names, string(c))
		}
		return "", fmt.Errorf("%w: unknown category %q (one of %s)", domain.ErrInvalidInput, s, strings.Join(names, ", "))
	}
	return cat, nil
}

func printItemLine(cmd *cobra.Command, item *domain.KnowledgeItem) {
	marks := ""
	if item.IsVerified {
		marks += "✓"
	}
	if item.IsFlagged {
		marks += "!"
	}
	cmd.Printf("%s  %-14s %-30s %.2f %s\n", item.ID, item.Category, oneLine(item.Name, 30), item.Confidence, marks)
}

func printItem(cmd *cobra.Command, item *domain.KnowledgeItem) error {
	if knowledgeJSON {
		return printJSON(cmd, item)
	}
	cmd.Printf("ID:          %s\n", item.ID)
	cmd.Printf("Category:    %s\n", item.Category)
	cmd.Printf("Name:        %s\n", item.Name)
	if item.Description != "" {
		cmd.Printf("Description: %s\n", item.Description)
	}
	if item.Evidence != "" {
		cmd.Printf("Evidence:    %s\n", item.Evidence)
	}
	cmd.Printf("Confidence:  %.2f\n", item.Confidence)
	cmd.Printf("Method:      %s\n", item.ExtractionMethod)
	cmd.Printf("Verified:    %t\n", item.IsVerified)
	cmd.Printf("Flagged:     %t\n", item.IsFlagged)
	cmd.Printf("Updated:     %s\n", item.UpdatedAt.Local().Format(time.DateTime))
	return nil
}
