package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

var (
	tasksRecent int
	tasksJSON   bool
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Show background task state and recent runs",
	Long: `Lists the scheduler's persisted tasks with their cadence, next run and
the outcome of their latest runs. Tasks appear after 'lorekeeper serve' has
started the scheduler at least once.`,
	Args: cobra.NoArgs,
	RunE: runTasks,
}

func init() {
	tasksCmd.Flags().IntVarP(&tasksRecent, "runs", "n", 3, "runs to show per task")
	tasksCmd.Flags().BoolVar(&tasksJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}

	statuses, err := scheduler.Tasks(cmd.Context(), tasksRecent)
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}
	if tasksJSON {
		return printJSON(cmd, statuses)
	}
	if len(statuses) == 0 {
		cmd.Println("No tasks yet. Start the scheduler with 'lorekeeper serve'.")
		return nil
	}

	for i, st := range statuses {
		if i > 0 {
			cmd.Println()
		}
		printTask(cmd, st)
	}
	return nil
}

func printTask(cmd *cobra.Command, st domain.TaskStatus) {
	task := st.Task
	state := "enabled"
	if !task.Enabled {
		state = "disabled"
	}
	cmd.Printf("%s (%s) every %s, %s\n", task.Name, task.ID, task.Interval, state)

	switch {
	case !task.Enabled:
	case task.NextRun.IsZero():
		cmd.Println("  next: at startup")
	default:
		cmd.Printf("  next: %s\n", task.NextRun.Local().Format(time.DateTime))
	}
	if task.LastError != "" {
		cmd.Printf("  last error: %s\n", oneLine(task.LastError, 72))
	}

	for _, run := range st.Runs {
		mark := "ok"
		if !run.OK() {
			mark = "FAILED"
		}
		line := run.Detail
		if !run.OK() {
			line = run.Err
		}
		cmd.Printf("  %s  %-6s %6s  %s\n",
			run.StartedAt.Local().Format(time.DateTime), mark,
			run.Duration().Round(time.Millisecond), oneLine(line, 56))
	}
}
