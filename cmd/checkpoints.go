package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

// CheckpointsCmd groups checkpoint subcommands
type CheckpointsCmd struct {
	List    CheckpointsListCmd    `cmd:"list" help:"List checkpoints of an internal session"`
	Info    CheckpointsInfoCmd    `cmd:"info" help:"Show checkpoint details"`
	Del     CheckpointsDelCmd     `cmd:"del" help:"Delete a checkpoint"`
	Cleanup CheckpointsCleanupCmd `cmd:"cleanup" help:"Prune old auto checkpoints"`
}

// CheckpointsListCmd lists checkpoints
type CheckpointsListCmd struct {
	Session int64  `help:"Internal session ID" required:""`
	Prefix  string `help:"Filter by name prefix"`
}

// Run executes the list command
func (c *CheckpointsListCmd) Run(cli *CLI) error {
	store, err := cli.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	checkpoints, err := store.Search(context.Background(), c.Session, c.Prefix, nil, nil)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tPOSITION\tCREATED")
	for _, cp := range checkpoints {
		kind := "manual"
		if cp.IsAuto {
			kind = "auto"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
			cp.ID, cp.Name, kind, cp.ToolTrackPosition,
			cp.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d checkpoints\n", len(checkpoints))
	return nil
}

// CheckpointsInfoCmd shows one checkpoint
type CheckpointsInfoCmd struct {
	ID int64 `arg:"" help:"Checkpoint ID"`
}

// Run executes the info command
func (c *CheckpointsInfoCmd) Run(cli *CLI) error {
	store, err := cli.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	cp, err := store.Get(context.Background(), c.ID)
	if err != nil {
		return err
	}

	fmt.Println(cp.Summary())
	fmt.Printf("Session: %d\n", cp.InternalSessionID)
	fmt.Printf("Snapshot: %d bytes\n", len(cp.StateSnapshot))
	return nil
}

// CheckpointsDelCmd deletes a checkpoint
type CheckpointsDelCmd struct {
	ID int64 `arg:"" help:"Checkpoint ID"`
}

// Run executes the del command
func (c *CheckpointsDelCmd) Run(cli *CLI) error {
	store, err := cli.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(context.Background(), c.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted checkpoint %d\n", c.ID)
	return nil
}

// CheckpointsCleanupCmd prunes old auto checkpoints
type CheckpointsCleanupCmd struct {
	Session    int64 `help:"Internal session ID" required:""`
	KeepLatest int   `help:"Number of latest auto checkpoints to keep" default:"5"`
}

// Run executes the cleanup command
func (c *CheckpointsCleanupCmd) Run(cli *CLI) error {
	store, err := cli.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	keep := c.KeepLatest
	if keep == 5 && cli.Settings().KeepLatest != nil {
		keep = *cli.Settings().KeepLatest
	}

	deleted, err := store.CleanupAutoCheckpoints(context.Background(), c.Session, keep)
	if err != nil {
		return err
	}
	if deleted == 0 {
		fmt.Println("No automatic checkpoints to clean up")
		return nil
	}
	fmt.Printf("Cleaned up %d automatic checkpoints\n", deleted)
	return nil
}
