package domain

import "time"

// ToolInvocation is one entry in a session's tool invocation ledger.
// Ordinals are gapless and strictly increasing per session starting at 0.
// Once written, only Reversed may change.
type ToolInvocation struct {
	SessionID int64
	Ordinal   int
	ToolName  string
	Arguments map[string]any
	Result    any
	Reversed  bool
	CreatedAt time.Time
}

// ReverseResult is the outcome of undoing one ledger entry. It is produced
// per reversal attempt and returned to the caller, never persisted.
type ReverseResult struct {
	ToolName string
	Ordinal  int
	Reversed bool
	Detail   string
}
