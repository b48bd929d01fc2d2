package cli

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

// execute runs the root command with fresh flag values and returns its output.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(stdin)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

// withServices installs s for the duration of the test.
func withServices(t *testing.T, s *Services) {
	t.Helper()
	SetServices(s)
	t.Cleanup(func() { SetServices(nil) })
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		switch v := f.Value.(type) {
		case pflag.SliceValue:
			_ = v.Replace(nil)
		default:
			if f.Value.Type() != "stringToString" {
				_ = f.Value.Set(f.DefValue)
			}
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

var (
	_ driving.JobService         = (*mockJobService)(nil)
	_ driving.TimeoutSupervisor  = (*mockSupervisor)(nil)
	_ driving.EnhancementService = (*mockEnhancementService)(nil)
	_ StatusSource               = (*mockStatusSource)(nil)
)

type mockJobService struct {
	started   []domain.JobType
	startErr  error
	final     *domain.ProcessingJob
	runErr    error
	report    *domain.StatusReport
	history   []domain.ProcessingJob
	lastLimit int
}

func (m *mockJobService) Start(_ context.Context, projectID string, jobType domain.JobType, options map[string]string) (*domain.ProcessingJob, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.started = append(m.started, jobType)
	return &domain.ProcessingJob{ID: "job-1", ProjectID: projectID, Type: jobType, State: domain.JobStatePending, Options: options}, nil
}

func (m *mockJobService) Advance(context.Context, string) (*domain.ProcessingJob, error) {
	return m.final, m.runErr
}

func (m *mockJobService) Run(context.Context, string) (*domain.ProcessingJob, error) {
	return m.final, m.runErr
}

func (m *mockJobService) Get(context.Context, string) (*domain.ProcessingJob, error) {
	return m.final, nil
}

func (m *mockJobService) Status(context.Context, string) (*domain.StatusReport, error) {
	return m.report, nil
}

func (m *mockJobService) History(_ context.Context, _ string, limit int) ([]domain.ProcessingJob, error) {
	m.lastLimit = limit
	return m.history, nil
}

type mockSupervisor struct {
	result driving.SweepResult
	err    error
	swept  int
}

func (m *mockSupervisor) WatchJob(domain.ProcessingJob)      {}
func (m *mockSupervisor) WatchEnhancement(domain.Enhancement) {}
func (m *mockSupervisor) Stop()                               {}

func (m *mockSupervisor) Sweep(context.Context) (driving.SweepResult, error) {
	m.swept++
	return m.result, m.err
}

type mockEnhancementService struct {
	enhancement *domain.Enhancement
	changes     []domain.ChangeRecord
	final       string
	err         error
	decided     map[string]domain.UserDecision
}

func (m *mockEnhancementService) Enhance(context.Context, string) (*domain.Enhancement, []domain.ChangeRecord, error) {
	return m.enhancement, m.changes, m.err
}

func (m *mockEnhancementService) Get(context.Context, string) (*domain.Enhancement, error) {
	return m.enhancement, m.err
}

func (m *mockEnhancementService) Changes(context.Context, string) ([]domain.ChangeRecord, error) {
	return m.changes, m.err
}

func (m *mockEnhancementService) Decide(_ context.Context, changeID string, decision domain.UserDecision) error {
	if m.decided == nil {
		m.decided = make(map[string]domain.UserDecision)
	}
	m.decided[changeID] = decision
	return m.err
}

func (m *mockEnhancementService) Finalize(context.Context, string) (string, error) {
	return m.final, m.err
}

type mockStatusSource struct {
	events []domain.JobEvent
}

func (m *mockStatusSource) Subscribe(ctx context.Context, _ string) (<-chan domain.JobEvent, func(), error) {
	ch := make(chan domain.JobEvent, len(m.events))
	for _, ev := range m.events {
		ch <- ev
	}
	close(ch)
	return ch, func() {}, nil
}
