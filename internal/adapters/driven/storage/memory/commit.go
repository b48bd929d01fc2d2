package memory

import (
	"context"
	"fmt"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// Ensure RunCommitter implements the interface.
var _ driven.RunCommitter = (*RunCommitter)(nil)

// RunCommitter applies a RunCommit across the in-memory stores while
// holding all of their locks, so readers see all of it or none of it.
type RunCommitter struct {
	jobs         *JobStore
	knowledge    *KnowledgeStore
	fingerprints *FingerprintStore
}

// NewRunCommitter creates a committer over the given stores.
func NewRunCommitter(jobs *JobStore, knowledge *KnowledgeStore, fingerprints *FingerprintStore) *RunCommitter {
	return &RunCommitter{jobs: jobs, knowledge: knowledge, fingerprints: fingerprints}
}

// CommitRun writes knowledge, fingerprints and the job state as one unit.
func (c *RunCommitter) CommitRun(_ context.Context, commit domain.RunCommit) error {
	c.jobs.mu.Lock()
	defer c.jobs.mu.Unlock()
	c.knowledge.mu.Lock()
	defer c.knowledge.mu.Unlock()
	c.fingerprints.mu.Lock()
	defer c.fingerprints.mu.Unlock()

	stored, ok := c.jobs.jobs[commit.Job.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if err := checkTransition(stored.State, commit.ExpectedState, commit.Job.State); err != nil {
		return err
	}
	for _, item := range commit.Update {
		stored, ok := c.knowledge.items[item.ID]
		if !ok {
			return fmt.Errorf("update item %s: %w", item.ID, domain.ErrNotFound)
		}
		if base, ok := commit.Base[item.ID]; ok && !stored.UpdatedAt.Equal(base) {
			return fmt.Errorf("update item %s: %w", item.ID, domain.ErrKnowledgeChanged)
		}
	}

	for _, item := range commit.Create {
		c.knowledge.items[item.ID] = item
	}
	for _, item := range commit.Update {
		c.knowledge.items[item.ID] = item
	}
	c.fingerprints.putLocked(commit.Fingerprints)
	c.jobs.jobs[commit.Job.ID] = cloneJob(commit.Job)
	return nil
}
