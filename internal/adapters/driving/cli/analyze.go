package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

var (
	analyzeFull    bool
	analyzeOptions map[string]string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Extract story knowledge from changed documents",
	Long: `Starts a processing job for the project and runs it to completion.

By default only documents whose content changed since the last successful
run are analysed. Use --full to reanalyse the whole project. A project runs
at most one job at a time; a second request fails while one is active.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeFull, "full", false, "analyse every document, not only changed ones")
	analyzeCmd.Flags().StringToStringVar(&analyzeOptions, "option", nil, "job option as key=value (repeatable)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	if jobService == nil {
		return errors.New("job service not configured")
	}
	project, err := projectID()
	if err != nil {
		return err
	}

	jobType := domain.JobTypeIncremental
	if analyzeFull {
		jobType = domain.JobTypeFullProject
	}

	ctx := cmd.Context()
	job, err := jobService.Start(ctx, project, jobType, analyzeOptions)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyActive) {
			return fmt.Errorf("project %s already has a job in progress", project)
		}
		return fmt.Errorf("starting job: %w", err)
	}
	cmd.Printf("Started %s job %s\n", job.Type, job.ID)

	stopProgress := followProgress(ctx, cmd, project)
	final, err := jobService.Run(ctx, job.ID)
	stopProgress()
	if err != nil {
		return fmt.Errorf("job %s: %w", job.ID, err)
	}

	printJobResult(cmd, final)
	if final.State == domain.JobStateFailed {
		return fmt.Errorf("job %s failed", final.ID)
	}
	return nil
}

// followProgress prints stage changes while a job runs. Nothing else may
// write to cmd until the returned stop function has returned.
func followProgress(ctx context.Context, cmd *cobra.Command, project string) func() {
	if statusSource == nil {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	events, unsubscribe, err := statusSource.Subscribe(ctx, project)
	if err != nil {
		logger.Debug("progress unavailable: %v", err)
		cancel()
		return func() {}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			if ev.State == domain.JobStatePending || ev.State.IsTerminal() {
				continue
			}
			cmd.Printf("  %s\n", ev.State)
		}
	}()

	return func() {
		unsubscribe()
		cancel()
		wg.Wait()
	}
}

func printJobResult(cmd *cobra.Command, job *domain.ProcessingJob) {
	if job.State == domain.JobStateFailed {
		cmd.Printf("Job %s failed: %s\n", job.ID, job.ErrorDetails)
		return
	}

	cmd.Printf("Job %s %s\n", job.ID, job.State)
	s := job.ResultsSummary
	if s == nil {
		return
	}
	cmd.Printf("  Documents:   %d\n", s.DocumentsProcessed)
	cmd.Printf("  Chunks:      %d\n", s.ChunksProcessed)
	cmd.Printf("  Extractions: %d (avg confidence %.2f)\n", s.ExtractionsFound, s.ConfidenceAverage)
	cmd.Printf("  Knowledge:   %d created, %d merged, %d discarded\n", s.ItemsCreated, s.ItemsMerged, s.ItemsDiscarded)
	if s.Conflicts > 0 {
		cmd.Printf("  Conflicts:   %d\n", s.Conflicts)
	}
	cmd.Printf("  Duration:    %dms\n", s.DurationMillis)
}
