package domain

import (
	"fmt"
	"time"
)

// Checkpoint is an immutable snapshot of conversation state plus the ledger
// position it was taken at. Checkpoints are never mutated after creation;
// rollback creates a new internal session instead of rewriting history.
type Checkpoint struct {
	ID                int64
	InternalSessionID int64
	Name              string
	StateSnapshot     []byte
	ToolTrackPosition int // ledger length at commit time
	IsAuto            bool
	Metadata          map[string]any
	CreatedAt         time.Time
}

// Summary returns a one-line human-readable description.
func (c *Checkpoint) Summary() string {
	kind := "manual"
	if c.IsAuto {
		kind = "auto"
	}
	name := c.Name
	if name == "" {
		name = fmt.Sprintf("checkpoint-%d", c.ID)
	}
	return fmt.Sprintf("%s (%s, tools=%d, %s)", name, kind,
		c.ToolTrackPosition, c.CreatedAt.Format("2006-01-02 15:04:05"))
}

// CheckpointCounts holds per-session checkpoint totals.
type CheckpointCounts struct {
	Auto   int
	Manual int
}

// Total returns auto + manual.
func (c CheckpointCounts) Total() int {
	return c.Auto + c.Manual
}
