package domain

import (
	"fmt"
	"time"
)

// Built-in background tasks.
const (
	TaskIDJobTimeoutSweep = "job-timeout-sweep"
	TaskIDAutoAnalysis    = "auto-analysis"
)

// taskNames maps built-in task IDs to display names.
var taskNames = map[string]string{
	TaskIDJobTimeoutSweep: "Job Timeout Sweep",
	TaskIDAutoAnalysis:    "Auto Analysis",
}

// BuiltinTaskIDs lists the tasks the scheduler knows how to run, sweep first.
func BuiltinTaskIDs() []string {
	return []string{TaskIDJobTimeoutSweep, TaskIDAutoAnalysis}
}

// TaskName returns the display name of a task, or the ID when unknown.
func TaskName(id string) string {
	if name, ok := taskNames[id]; ok {
		return name
	}
	return id
}

// ScheduledTask is the persisted state of a recurring task. It survives
// restarts so a crashed process resumes on the same cadence.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	// NextRun is zero when the task is due immediately.
	NextRun     time.Time
	LastRun     time.Time
	LastSuccess time.Time
	LastError   string
}

// Due reports whether an enabled task should run at now.
func (t ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && (t.NextRun.IsZero() || !t.NextRun.After(now))
}

// TaskRun records one execution of a scheduled task.
type TaskRun struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time

	// Affected counts what the run changed: jobs and enhancements expired
	// by the sweep, or jobs completed by auto-analysis.
	Affected int

	// Detail is a short human summary, e.g. "2 jobs, 1 enhancement expired".
	Detail string

	// Err is empty for a successful run.
	Err string
}

// OK reports whether the run finished without error.
func (r TaskRun) OK() bool { return r.Err == "" }

// Duration is how long the run took.
func (r TaskRun) Duration() time.Duration { return r.EndedAt.Sub(r.StartedAt) }

// TaskStatus pairs a task with its most recent runs, newest first.
type TaskStatus struct {
	Task ScheduledTask
	Runs []TaskRun
}

// SchedulerConfig controls which background tasks run and how often.
type SchedulerConfig struct {
	Enabled     bool
	TaskConfigs map[string]TaskConfig
}

// TaskConfig is the configured cadence of one task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// GetTaskConfig returns the config for taskID; unknown tasks are disabled.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig sweeps for timed-out jobs every five minutes.
// Auto-analysis is opt-in.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDJobTimeoutSweep: {Enabled: true, Interval: 5 * time.Minute},
			TaskIDAutoAnalysis:    {Enabled: false, Interval: time.Hour},
		},
	}
}

// SweepDetail summarises a timeout sweep for a TaskRun.
func SweepDetail(jobs, enhancements int) string {
	return fmt.Sprintf("%s, %s expired", plural(jobs, "job"), plural(enhancements, "enhancement"))
}

// AnalysisDetail summarises an auto-analysis pass for a TaskRun.
func AnalysisDetail(stale, completed int) string {
	return fmt.Sprintf("%s stale, %d analysed", plural(stale, "project"), completed)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
