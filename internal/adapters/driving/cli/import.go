package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lorekeeper/internal/logger"
)

var importWatch bool

var importCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Import manuscript files as project documents",
	Long: `Reads every supported file (.md, .txt, .html) below the directory and
stores it as a document of the project. Files are matched by path, so a
re-import updates changed chapters in place.

With --watch the directory is monitored and edits are imported as they happen.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVarP(&importWatch, "watch", "w", false, "keep importing changes until interrupted")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if openManuscript == nil {
		return errors.New("manuscript import not configured")
	}
	project, err := projectID()
	if err != nil {
		return err
	}

	svc, closeSource, err := openManuscript(project, args[0])
	if err != nil {
		return fmt.Errorf("opening manuscript: %w", err)
	}
	defer func() {
		if closeSource == nil {
			return
		}
		if err := closeSource(); err != nil {
			logger.Warn("closing manuscript source: %v", err)
		}
	}()

	result, err := svc.Import(cmd.Context(), project)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	cmd.Printf("Imported %s: %d created, %d updated, %d unchanged, %d skipped\n",
		args[0], result.Created, result.Updated, result.Unchanged, result.Skipped)

	if !importWatch {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Println("Watching for changes. Press Ctrl+C to stop.")
	if err := svc.Watch(ctx, project); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}
