package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

var (
	statusJSON    bool
	statusWatch   bool
	statusHistory int
	statusPlain   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the project's processing status",
	Long: `Shows whether a job is running, when the project was last analysed,
how many chapters changed since then and how many facts need review.

With --watch, job state changes are followed live. On a terminal this opens
an interactive view; otherwise events are printed one per line.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output the report as JSON")
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "follow job state changes")
	statusCmd.Flags().BoolVar(&statusPlain, "plain", false, "never open the interactive view")
	statusCmd.Flags().IntVarP(&statusHistory, "history", "n", 0, "also list the last n jobs")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if jobService == nil {
		return errors.New("job service not configured")
	}
	project, err := projectID()
	if err != nil {
		return err
	}

	if statusWatch {
		return watchStatus(cmd, project)
	}

	report, err := jobService.Status(cmd.Context(), project)
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	var history []domain.ProcessingJob
	if statusHistory > 0 {
		history, err = jobService.History(cmd.Context(), project, statusHistory)
		if err != nil {
			return fmt.Errorf("loading history: %w", err)
		}
	}

	if statusJSON {
		return printJSON(cmd, struct {
			*domain.StatusReport
			History []domain.ProcessingJob `json:"history,omitempty"`
		}{report, history})
	}

	printStatusReport(cmd, report)
	if len(history) > 0 {
		cmd.Println()
		cmd.Println("Recent jobs:")
		for _, j := range history {
			cmd.Printf("  %s  %-12s %-10s %s\n", j.CreatedAt.Format(time.DateTime), j.Type, j.State, j.ID)
		}
	}
	return nil
}

func printStatusReport(cmd *cobra.Command, r *domain.StatusReport) {
	cmd.Printf("Project: %s\n", r.ProjectID)
	if r.CurrentJob != nil && r.IsProcessing {
		cmd.Printf("  Processing:     %s (job %s)\n", r.CurrentJob.State, r.CurrentJob.ID)
	} else {
		cmd.Println("  Processing:     idle")
	}
	if r.LastProcessedAt != nil {
		cmd.Printf("  Last analysed:  %s\n", r.LastProcessedAt.Local().Format(time.DateTime))
	} else {
		cmd.Println("  Last analysed:  never")
	}
	switch {
	case r.StalenessUnknown:
		cmd.Println("  Unanalysed:     unknown")
	case r.HasUnanalyzedContent:
		cmd.Printf("  Unanalysed:     %d chapter(s)\n", r.UnanalyzedChapterCount)
	default:
		cmd.Println("  Unanalysed:     none")
	}
	cmd.Printf("  Low confidence: %d\n", r.LowConfidenceFactsCount)
	if r.HasErrors {
		cmd.Printf("  Errors:         %d\n", r.ErrorCount)
	}
}

func watchStatus(cmd *cobra.Command, project string) error {
	if statusSource == nil {
		return errors.New("status source not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !statusPlain && isTerminal(os.Stdout) {
		model, err := tui.NewApp(&tui.Ports{
			Jobs:      jobService,
			Knowledge: knowledgeService,
			Status:    statusSource,
		}, project)
		if err != nil {
			return fmt.Errorf("failed to create TUI: %w", err)
		}
		model.WithContext(ctx)
		if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil &&
			!errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	}

	events, unsubscribe, err := statusSource.Subscribe(ctx, project)
	if err != nil {
		return fmt.Errorf("subscribing to status: %w", err)
	}
	defer unsubscribe()

	for ev := range events {
		line := fmt.Sprintf("%s  %s  %s", ev.At.Local().Format(time.TimeOnly), ev.JobID, ev.State)
		if ev.Previous != "" {
			line = fmt.Sprintf("%s  %s  %s -> %s", ev.At.Local().Format(time.TimeOnly), ev.JobID, ev.Previous, ev.State)
		}
		if ev.Error != "" {
			line += "  (" + ev.Error + ")"
		}
		cmd.Println(line)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
