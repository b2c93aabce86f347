package cmd

import (
	"context"
	"fmt"

	"rewind/rollback"
)

// RollbackCmd rolls back to a checkpoint by creating a branch session.
// Tool reversal from the CLI only reports unreversed records: compensating
// functions live in the calling application, not here.
type RollbackCmd struct {
	Checkpoint int64 `arg:"" help:"Checkpoint ID to roll back to"`
	Reverse    bool  `help:"Walk the ledger suffix and report reversal outcomes"`
	Copy       bool  `help:"Copy pre-branch-point checkpoints into the new branch"`
}

// Run executes the rollback command
func (r *RollbackCmd) Run(cli *CLI) error {
	store, err := cli.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	reverse := r.Reverse
	if !reverse && cli.Settings().RollbackTools != nil {
		reverse = *cli.Settings().RollbackTools
	}

	engine := rollback.NewEngine(store, rollback.NewRegistry())
	coordinator := rollback.NewCoordinator(store, engine)

	result, err := coordinator.Rollback(context.Background(), r.Checkpoint, rollback.Options{
		ReverseTools:    reverse,
		CopyCheckpoints: r.Copy,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created branch session %d from checkpoint %d\n",
		result.Branch.ID, r.Checkpoint)
	for _, rr := range result.ReverseResults {
		status := "reversed"
		if !rr.Reversed {
			status = "NOT reversed"
		}
		fmt.Printf("  %s (ordinal %d): %s (%s)\n", rr.ToolName, rr.Ordinal, status, rr.Detail)
	}
	return nil
}
