package cli

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
	"github.com/custodia-labs/lorekeeper/internal/core/services"
)

func TestCommands_RequireServices(t *testing.T) {
	withServices(t, nil)

	cases := [][]string{
		{"detect"},
		{"analyze"},
		{"status"},
		{"sweep"},
		{"hash", "x"},
		{"enhance", "doc-1"},
		{"knowledge", "list"},
		{"documents"},
		{"tasks"},
		{"import", t.TempDir()},
	}
	for _, args := range cases {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := execute(t, nil, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not configured")
		})
	}
}

func TestNeedsServices(t *testing.T) {
	assert.False(t, needsServices(versionCmd))
	assert.True(t, needsServices(statusCmd))
}

func TestBootstrap_SkippedForVersion(t *testing.T) {
	called := false
	SetBootstrap(func(context.Context, Options) (*Services, func(), error) {
		called = true
		return &Services{}, nil, nil
	})
	t.Cleanup(func() { SetBootstrap(nil) })

	_, err := execute(t, nil, "version")
	require.NoError(t, err)
	assert.False(t, called)
}

func TestBootstrap_InstallsServicesAndCleansUp(t *testing.T) {
	var gotOpts Options
	cleaned := false
	SetBootstrap(func(_ context.Context, opts Options) (*Services, func(), error) {
		gotOpts = opts
		return &Services{Hash: services.NewHashService()}, func() { cleaned = true }, nil
	})
	t.Cleanup(func() {
		SetBootstrap(nil)
		SetServices(nil)
	})

	dir := t.TempDir()
	out, err := execute(t, nil, "--data-dir", dir, "hash", "abc")
	runCleanup()

	require.NoError(t, err)
	assert.Equal(t, dir, gotOpts.DataDir)
	assert.Equal(t, domain.ContentHash("abc")+"\n", out)
	assert.True(t, cleaned)
}

func TestHashCmd(t *testing.T) {
	withServices(t, &Services{Hash: services.NewHashService()})

	t.Run("single argument", func(t *testing.T) {
		out, err := execute(t, nil, "hash", "Chapter one")
		require.NoError(t, err)
		assert.Equal(t, domain.ContentHash("Chapter one"), strings.TrimSpace(out))
	})

	t.Run("batch keeps order", func(t *testing.T) {
		out, err := execute(t, nil, "hash", "a", "b")
		require.NoError(t, err)
		lines := strings.Fields(out)
		assert.Equal(t, []string{domain.ContentHash("a"), domain.ContentHash("b")}, lines)
	})

	t.Run("reads stdin", func(t *testing.T) {
		out, err := execute(t, strings.NewReader("  from stdin \n"), "hash")
		require.NoError(t, err)
		assert.Equal(t, domain.ContentHash("from stdin"), strings.TrimSpace(out))
	})

	t.Run("reads files", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ch1.md")
		require.NoError(t, os.WriteFile(path, []byte("# One"), 0o600))
		out, err := execute(t, nil, "hash", "--file", path)
		require.NoError(t, err)
		assert.Equal(t, domain.ContentHash("# One"), strings.TrimSpace(out))
	})

	t.Run("json output", func(t *testing.T) {
		out, err := execute(t, nil, "hash", "--json", "x")
		require.NoError(t, err)
		assert.Contains(t, out, `"hash":`)
	})
}

func TestDetectCmd(t *testing.T) {
	ctx := context.Background()
	docs := memory.NewDocumentStore()
	fps := memory.NewFingerprintStore()
	require.NoError(t, docs.SaveDocument(ctx, &domain.Document{ID: "d1", ProjectID: DefaultProjectID, Content: "one"}))
	require.NoError(t, docs.SaveDocument(ctx, &domain.Document{ID: "d2", ProjectID: DefaultProjectID, Content: "two"}))
	require.NoError(t, fps.SaveFingerprints(ctx, []domain.Fingerprint{
		{DocumentID: "d1", ProjectID: DefaultProjectID, Hash: domain.ContentHash("one")},
	}))
	withServices(t, &Services{Staleness: services.NewStalenessService(docs, fps)})

	out, err := execute(t, nil, "detect")
	require.NoError(t, err)
	assert.Contains(t, out, "1 document(s) need analysis")
	assert.Contains(t, out, "d2")
	assert.NotContains(t, out, "d1")
}

func TestAnalyzeCmd(t *testing.T) {
	t.Run("incremental by default", func(t *testing.T) {
		jobs := &mockJobService{final: &domain.ProcessingJob{
			ID:    "job-1",
			State: domain.JobStateDone,
			ResultsSummary: &domain.JobSummary{
				DocumentsProcessed: 2,
				ItemsCreated:       5,
				ItemsMerged:        1,
			},
		}}
		withServices(t, &Services{Jobs: jobs})

		out, err := execute(t, nil, "analyze")
		require.NoError(t, err)
		assert.Equal(t, []domain.JobType{domain.JobTypeIncremental}, jobs.started)
		assert.Contains(t, out, "Job job-1 done")
		assert.Contains(t, out, "5 created, 1 merged")
	})

	t.Run("full flag", func(t *testing.T) {
		jobs := &mockJobService{final: &domain.ProcessingJob{ID: "job-1", State: domain.JobStateDone}}
		withServices(t, &Services{Jobs: jobs})

		_, err := execute(t, nil, "analyze", "--full")
		require.NoError(t, err)
		assert.Equal(t, []domain.JobType{domain.JobTypeFullProject}, jobs.started)
	})

	t.Run("active job is rejected", func(t *testing.T) {
		withServices(t, &Services{Jobs: &mockJobService{startErr: domain.ErrJobAlreadyActive}})

		_, err := execute(t, nil, "analyze")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already has a job in progress")
	})

	t.Run("failed job returns error", func(t *testing.T) {
		jobs := &mockJobService{final: &domain.ProcessingJob{ID: "job-1", State: domain.JobStateFailed, ErrorDetails: "gateway unavailable"}}
		withServices(t, &Services{Jobs: jobs})

		out, err := execute(t, nil, "analyze")
		require.Error(t, err)
		assert.Contains(t, out, "gateway unavailable")
	})

	t.Run("prints stage progress", func(t *testing.T) {
		jobs := &mockJobService{final: &domain.ProcessingJob{ID: "job-1", State: domain.JobStateDone}}
		source := &mockStatusSource{events: []domain.JobEvent{
			{JobID: "job-1", State: domain.JobStatePending},
			{JobID: "job-1", State: domain.JobStateThinking},
			{JobID: "job-1", State: domain.JobStateDone},
		}}
		withServices(t, &Services{Jobs: jobs, Status: source})

		out, err := execute(t, nil, "analyze")
		require.NoError(t, err)
		assert.Contains(t, out, "  thinking\n")
		assert.NotContains(t, out, "  pending\n")
	})
}

func TestStatusCmd(t *testing.T) {
	last := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	jobs := &mockJobService{
		report: &domain.StatusReport{
			ProjectID:               DefaultProjectID,
			LastProcessedAt:         &last,
			HasUnanalyzedContent:    true,
			UnanalyzedChapterCount:  3,
			LowConfidenceFactsCount: 2,
		},
		history: []domain.ProcessingJob{{ID: "job-9", Type: domain.JobTypeIncremental, State: domain.JobStateDone}},
	}
	withServices(t, &Services{Jobs: jobs})

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, nil, "status", "-n", "5")
		require.NoError(t, err)
		assert.Contains(t, out, "idle")
		assert.Contains(t, out, "3 chapter(s)")
		assert.Contains(t, out, "Low confidence: 2")
		assert.Contains(t, out, "job-9")
		assert.Equal(t, 5, jobs.lastLimit)
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, nil, "status", "--json")
		require.NoError(t, err)
		assert.Contains(t, out, `"unanalyzedChapterCount": 3`)
	})

	t.Run("plain watch prints events", func(t *testing.T) {
		withServices(t, &Services{Jobs: jobs, Status: &mockStatusSource{events: []domain.JobEvent{
			{JobID: "job-2", State: domain.JobStateThinking, Previous: domain.JobStatePending, At: last},
			{JobID: "job-2", State: domain.JobStateFailed, Previous: domain.JobStateThinking, Error: "timed out", At: last},
		}}})

		out, err := execute(t, nil, "status", "--watch", "--plain")
		require.NoError(t, err)
		assert.Contains(t, out, "job-2  pending -> thinking")
		assert.Contains(t, out, "(timed out)")
	})
}

func TestSweepCmd(t *testing.T) {
	sup := &mockSupervisor{result: driving.SweepResult{JobsExpired: 2, EnhancementsExpired: 1}}
	withServices(t, &Services{Supervisor: sup})

	out, err := execute(t, nil, "sweep")
	require.NoError(t, err)
	assert.Equal(t, 1, sup.swept)
	assert.Contains(t, out, "Expired 2 job(s) and 1 enhancement(s)")
}

func TestEnhancementCmds(t *testing.T) {
	enh := &mockEnhancementService{
		enhancement: &domain.Enhancement{ID: "enh-1"},
		changes: []domain.ChangeRecord{
			{ID: "c1", Type: domain.ChangeReplacement, OriginalText: "said", EnhancedText: "whispered", Decision: domain.DecisionPending},
			{ID: "c2", Type: domain.ChangePunctuation, OriginalText: ",", EnhancedText: ";", Decision: domain.DecisionAccepted},
		},
		final: "The final text.",
	}
	withServices(t, &Services{Enhancement: enh})

	t.Run("enhance lists changes", func(t *testing.T) {
		out, err := execute(t, nil, "enhance", "doc-1")
		require.NoError(t, err)
		assert.Contains(t, out, "Enhancement enh-1: 2 change(s)")
		assert.Contains(t, out, "- said")
		assert.Contains(t, out, "+ whispered")
	})

	t.Run("changes pending only", func(t *testing.T) {
		out, err := execute(t, nil, "changes", "enh-1", "--pending")
		require.NoError(t, err)
		assert.Contains(t, out, "c1")
		assert.NotContains(t, out, "c2")
	})

	t.Run("diff alias", func(t *testing.T) {
		out, err := execute(t, nil, "diff", "enh-1")
		require.NoError(t, err)
		assert.Contains(t, out, "c2")
	})

	t.Run("decide", func(t *testing.T) {
		_, err := execute(t, nil, "decide", "c1", "reject")
		require.NoError(t, err)
		assert.Equal(t, domain.DecisionRejected, enh.decided["c1"])
	})

	t.Run("decide rejects unknown verdict", func(t *testing.T) {
		_, err := execute(t, nil, "decide", "c1", "maybe")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("apply to stdout", func(t *testing.T) {
		out, err := execute(t, nil, "apply", "enh-1")
		require.NoError(t, err)
		assert.Equal(t, "The final text.\n", out)
	})

	t.Run("apply to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.md")
		_, err := execute(t, nil, "apply", "enh-1", "-o", path)
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "The final text.", string(data))
	})
}

func TestKnowledgeCmds(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKnowledgeStore()
	withServices(t, &Services{Knowledge: services.NewKnowledgeService(store, store)})

	_, err := execute(t, nil, "knowledge", "add", "character", "Mara Voss", "-d", "A smuggler")
	require.NoError(t, err)

	items, err := store.ListItems(ctx, DefaultProjectID, driven.KnowledgeFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	id := items[0].ID

	t.Run("list", func(t *testing.T) {
		out, err := execute(t, nil, "knowledge", "list", "--category", "character")
		require.NoError(t, err)
		assert.Contains(t, out, "Mara Voss")
	})

	t.Run("list rejects unknown category", func(t *testing.T) {
		_, err := execute(t, nil, "knowledge", "list", "--category", "weather")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("edit requires a field", func(t *testing.T) {
		_, err := execute(t, nil, "knowledge", "edit", id)
		require.Error(t, err)
	})

	t.Run("edit description", func(t *testing.T) {
		out, err := execute(t, nil, "knowledge", "edit", id, "--description", "A reformed smuggler")
		require.NoError(t, err)
		assert.Contains(t, out, "A reformed smuggler")

		item, err := store.GetItem(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Mara Voss", item.Name)
		assert.Equal(t, "A reformed smuggler", item.Description)
	})

	t.Run("flag and clear", func(t *testing.T) {
		out, err := execute(t, nil, "knowledge", "flag", id)
		require.NoError(t, err)
		assert.Contains(t, out, "Flagged")

		out, err = execute(t, nil, "knowledge", "flag", id, "--off")
		require.NoError(t, err)
		assert.Contains(t, out, "Cleared flag")
	})

	t.Run("verify", func(t *testing.T) {
		_, err := execute(t, nil, "knowledge", "verify", id)
		require.NoError(t, err)
		item, err := store.GetItem(ctx, id)
		require.NoError(t, err)
		assert.True(t, item.IsVerified)
	})

	t.Run("show json", func(t *testing.T) {
		out, err := execute(t, nil, "knowledge", "show", id, "--json")
		require.NoError(t, err)
		assert.Contains(t, out, `"Name": "Mara Voss"`)
	})

	t.Run("delete", func(t *testing.T) {
		_, err := execute(t, nil, "knowledge", "delete", id)
		require.NoError(t, err)
		_, err = store.GetItem(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestParseDecision(t *testing.T) {
	for in, want := range map[string]domain.UserDecision{
		"accept":  domain.DecisionAccepted,
		"A":       domain.DecisionAccepted,
		"reject":  domain.DecisionRejected,
		"pending": domain.DecisionPending,
	} {
		got, err := parseDecision(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseCategory(t *testing.T) {
	got, err := parseCategory("Plot-Thread")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryPlotThread, got)
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\n  b\tc", 20))
	assert.Equal(t, "abcdefg...", oneLine("abcdefghijklmnop", 10))
}

func TestListenFirstFree(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	_, err = listenFirstFree("127.0.0.1", port, port)
	assert.ErrorContains(t, err, "no free port")

	ln, err := listenFirstFree("127.0.0.1", port, port+20)
	if err == nil {
		defer ln.Close()
		assert.Greater(t, ln.Addr().(*net.TCPAddr).Port, port)
	}
}

func TestDocumentsCmd(t *testing.T) {
	ctx := context.Background()
	docs := memory.NewDocumentStore()
	fps := memory.NewFingerprintStore()
	require.NoError(t, docs.SaveDocument(ctx, &domain.Document{ID: "d1", ProjectID: DefaultProjectID, Title: "Opening", Content: "Mara crossed the bridge."}))
	require.NoError(t, docs.SaveDocument(ctx, &domain.Document{ID: "d2", ProjectID: DefaultProjectID, Title: "Storm", Content: "The storm broke."}))
	require.NoError(t, fps.SaveFingerprints(ctx, []domain.Fingerprint{
		{DocumentID: "d1", ProjectID: DefaultProjectID, Hash: domain.ContentHash("Mara crossed the bridge."), JobID: "job-1"},
	}))
	withServices(t, &Services{Documents: services.NewDocumentService(docs, fps)})

	out, err := execute(t, nil, "documents")
	require.NoError(t, err)
	assert.Contains(t, out, "d1  current")
	assert.Contains(t, out, "d2  new")

	out, err = execute(t, nil, "docs", "show", "d1")
	require.NoError(t, err)
	assert.Contains(t, out, "Title:    Opening")
	assert.Contains(t, out, "(job job-1)")

	out, err = execute(t, nil, "docs", "show", "d2", "--content")
	require.NoError(t, err)
	assert.Contains(t, out, "The storm broke.")

	out, err = execute(t, nil, "docs", "delete", "d2")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted d2")

	_, err = execute(t, nil, "docs", "show", "d2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTasksCmd(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSchedulerStore()
	sched := services.NewScheduler(domain.DefaultSchedulerConfig(), store, nil, nil, nil, nil)
	withServices(t, &Services{Scheduler: sched})

	out, err := execute(t, nil, "tasks")
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks yet")

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID: domain.TaskIDJobTimeoutSweep, Name: "Job Timeout Sweep", Interval: 5 * time.Minute, Enabled: true,
	}))
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID: domain.TaskIDAutoAnalysis, Name: "Auto Analysis", Interval: time.Hour, LastError: "llm unavailable",
	}))
	for i := 0; i < 4; i++ {
		run := &domain.TaskRun{
			TaskID:    domain.TaskIDJobTimeoutSweep,
			StartedAt: at.Add(time.Duration(i) * 5 * time.Minute),
			EndedAt:   at.Add(time.Duration(i)*5*time.Minute + 20*time.Millisecond),
			Detail:    domain.SweepDetail(i, 0),
		}
		if i == 3 {
			run.Err = "database is locked"
		}
		require.NoError(t, store.AppendRun(ctx, run))
	}

	out, err = execute(t, nil, "tasks", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Auto Analysis (auto-analysis) every 1h0m0s, disabled")
	assert.Contains(t, out, "last error: llm unavailable")
	assert.Contains(t, out, "Job Timeout Sweep (job-timeout-sweep) every 5m0s, enabled")
	assert.Contains(t, out, "next: at startup")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "database is locked")
	assert.Contains(t, out, "2 jobs, 0 enhancements expired")
	assert.NotContains(t, out, "1 job, 0 enhancements expired", "only two runs requested")

	out, err = execute(t, nil, "tasks", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"Detail": "3 jobs, 0 enhancements expired"`)
}
