package storage

import (
	"context"
	"sort"

	"rewind/domain"

	"golang.org/x/sync/errgroup"
)

// BranchTree assembles the branch structure of an external session from the
// parent back-pointers. Roots come first by creation time; children are
// ordered the same way.
func (s *Store) BranchTree(ctx context.Context, externalID int64) (*domain.BranchTree, error) {
	if _, err := s.GetExternalSession(ctx, externalID); err != nil {
		return nil, err
	}

	branches, err := s.ListBranches(ctx, externalID)
	if err != nil {
		return nil, err
	}

	sort.Slice(branches, func(i, j int) bool {
		if branches[i].CreatedAt.Equal(branches[j].CreatedAt) {
			return branches[i].ID < branches[j].ID
		}
		return branches[i].CreatedAt.Before(branches[j].CreatedAt)
	})

	nodes := make(map[int64]*domain.BranchNode, len(branches))
	for _, branch := range branches {
		nodes[branch.ID] = &domain.BranchNode{Session: branch}
	}

	tree := &domain.BranchTree{ExternalSessionID: externalID}
	for _, branch := range branches {
		node := nodes[branch.ID]
		if branch.ParentSessionID != nil {
			if parent, ok := nodes[*branch.ParentSessionID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		tree.Roots = append(tree.Roots, node)
	}
	return tree, nil
}

// SessionStatistics summarizes one branch: ledger length and checkpoint
// counts.
type SessionStatistics struct {
	SessionID    int64
	IsCurrent    bool
	IsBranch     bool
	LedgerLength int
	Checkpoints  domain.CheckpointCounts
}

// BranchStatistics gathers statistics for every branch of an external
// session. The per-branch reads are independent, so they run concurrently.
func (s *Store) BranchStatistics(ctx context.Context, externalID int64) (map[int64]SessionStatistics, error) {
	branches, err := s.ListBranches(ctx, externalID)
	if err != nil {
		return nil, err
	}

	stats := make([]SessionStatistics, len(branches))
	g, gctx := errgroup.WithContext(ctx)
	for i, branch := range branches {
		i, branch := i, branch
		g.Go(func() error {
			length, err := s.Length(gctx, branch.ID)
			if err != nil {
				return err
			}
			counts, err := s.Counts(gctx, branch.ID)
			if err != nil {
				return err
			}
			stats[i] = SessionStatistics{
				SessionID:    branch.ID,
				IsCurrent:    branch.IsCurrent,
				IsBranch:     branch.IsBranch(),
				LedgerLength: length,
				Checkpoints:  counts,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[int64]SessionStatistics, len(stats))
	for _, stat := range stats {
		result[stat.SessionID] = stat
	}
	return result, nil
}
