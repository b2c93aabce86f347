package rollback

import (
	"context"
	"fmt"

	"rewind/domain"
	"rewind/logging"
	"rewind/storage"
)

// Options controls a rollback request
type Options struct {
	// ReverseTools runs the reversal engine against the source session's
	// ledger suffix after the checkpoint
	ReverseTools bool
	// CopyCheckpoints copies checkpoints taken at or before the branch
	// point into the new branch, so the branch can itself roll back
	CopyCheckpoints bool
}

// Result is the outcome of a successful rollback
type Result struct {
	Branch         *domain.InternalSession
	ReverseResults []domain.ReverseResult
}

// FailedReversals returns the reverse results that did not succeed
func (r *Result) FailedReversals() []domain.ReverseResult {
	var failed []domain.ReverseResult
	for _, result := range r.ReverseResults {
		if !result.Reversed {
			failed = append(failed, result)
		}
	}
	return failed
}

// Coordinator orchestrates a rollback: validate the checkpoint, create a
// branch session seeded from its snapshot, optionally reverse the source
// timeline's tool calls, and return the branch handle. The original session
// is never mutated except for reversed flags set by the engine.
type Coordinator struct {
	store  *storage.Store
	engine *Engine
}

// NewCoordinator creates a rollback coordinator
func NewCoordinator(store *storage.Store, engine *Engine) *Coordinator {
	return &Coordinator{store: store, engine: engine}
}

// Rollback rolls a conversation back to a checkpoint by branching. The
// checkpoint and its owning session are validated before anything is
// created, so a failed validation leaves no partial branch behind.
//
// Reversal acts on the source timeline's side effects, not on the new
// branch: the branch has no ledger entries yet. Reversal failures are
// aggregated in the result, never fatal to the rollback; the caller decides
// whether partial reversal is acceptable.
func (c *Coordinator) Rollback(ctx context.Context, checkpointID int64, opts Options) (*Result, error) {
	checkpoint, err := c.store.Get(ctx, checkpointID)
	if err != nil {
		return nil, err
	}
	source, err := c.store.GetInternalSession(ctx, checkpoint.InternalSessionID)
	if err != nil {
		return nil, err
	}

	branch, err := c.store.CreateInternalSession(ctx,
		source.ExternalSessionID, &source.ID, &checkpoint.ID, checkpoint.StateSnapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to create branch session: %w", err)
	}

	if opts.CopyCheckpoints {
		copied, err := c.store.CopyCheckpoints(ctx, source.ID, branch.ID, checkpoint.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to copy checkpoints to branch: %w", err)
		}
		logging.Logger.Debug("copied checkpoints to branch",
			"branch", branch.ID, "count", copied)
	}

	result := &Result{Branch: branch}
	if opts.ReverseTools {
		reverseResults, err := c.engine.Reverse(ctx, checkpoint)
		if err != nil {
			return nil, fmt.Errorf("reversal aborted: %w", err)
		}
		result.ReverseResults = reverseResults
	}

	logging.Logger.Info("rollback complete",
		"checkpoint", checkpointID, "source", source.ID, "branch", branch.ID,
		"reversed", opts.ReverseTools, "results", len(result.ReverseResults))

	return result, nil
}
