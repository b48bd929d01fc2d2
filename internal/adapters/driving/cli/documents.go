package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	documentsJSON    bool
	documentsContent bool
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Browse imported documents",
	Long: `Lists the project's documents with their analysis state:
  new      never analysed
  stale    changed since the last analysis
  current  covered by the last analysis
  empty    no text to analyse`,
	Args: cobra.NoArgs,
	RunE: runDocumentsList,
}

var documentsShowCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Show a document's details",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsShow,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document (extracted knowledge is kept)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

var documentsOpenCmd = &cobra.Command{
	Use:   "open <document-id>",
	Short: "Open the imported file in the default application",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsOpen,
}

func init() {
	documentsCmd.PersistentFlags().BoolVar(&documentsJSON, "json", false, "output as JSON")
	documentsShowCmd.Flags().BoolVar(&documentsContent, "content", false, "print the full text")

	documentsCmd.AddCommand(documentsShowCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	documentsCmd.AddCommand(documentsOpenCmd)
	rootCmd.AddCommand(documentsCmd)
}

func requireDocuments() error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	return nil
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}
	project, err := projectID()
	if err != nil {
		return err
	}

	docs, err := documentService.List(cmd.Context(), project)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	if documentsJSON {
		return printJSON(cmd, docs)
	}
	if len(docs) == 0 {
		cmd.Println("No documents. Run 'lorekeeper import <directory>' first.")
		return nil
	}
	for _, d := range docs {
		cmd.Printf("%s  %-8s %6d words  %s\n", d.ID, d.State, d.Words, oneLine(d.Title, 48))
	}
	return nil
}

func runDocumentsShow(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	if documentsContent {
		doc, err := documentService.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("getting document: %w", err)
		}
		if documentsJSON {
			return printJSON(cmd, doc)
		}
		cmd.Println(doc.Content)
		return nil
	}

	d, err := documentService.Details(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("getting document: %w", err)
	}
	if documentsJSON {
		return printJSON(cmd, d)
	}

	cmd.Printf("ID:       %s\n", d.ID)
	cmd.Printf("Title:    %s\n", d.Title)
	if d.URI != "" {
		cmd.Printf("File:     %s\n", d.URI)
	}
	cmd.Printf("Words:    %d\n", d.Words)
	cmd.Printf("State:    %s\n", d.State)
	cmd.Printf("Hash:     %s\n", d.Hash)
	if d.AnalysedAt != nil {
		cmd.Printf("Analysed: %s (job %s)\n", d.AnalysedAt.Local().Format(time.DateTime), d.AnalysedBy)
	}
	cmd.Printf("Updated:  %s\n", d.UpdatedAt.Local().Format(time.DateTime))
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}
	if err := documentService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	cmd.Printf("Deleted %s\n", args[0])
	return nil
}

func runDocumentsOpen(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}
	if err := documentService.Open(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("opening document: %w", err)
	}
	return nil
}
