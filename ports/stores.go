package ports

import (
	"context"
	"time"

	"rewind/domain"
)

// SessionHierarchy manages external/internal sessions and branch lineage.
// Owner references are resolved to user IDs before this layer; see
// OwnerResolver.
type SessionHierarchy interface {
	CreateExternalSession(ctx context.Context, userID int64, name string) (*domain.ExternalSession, error)
	CreateInternalSession(ctx context.Context, externalID int64, parentID, branchCheckpointID *int64, snapshot []byte) (*domain.InternalSession, error)
	GetInternalSession(ctx context.Context, id int64) (*domain.InternalSession, error)
	ListBranches(ctx context.Context, externalID int64) ([]domain.InternalSession, error)
	ResumeLatest(ctx context.Context, externalID int64) (*domain.InternalSession, error)
}

// Ledger is the append-only per-session tool invocation log.
type Ledger interface {
	Append(ctx context.Context, sessionID int64, toolName string, args map[string]any, result any) (int, error)
	ReadRange(ctx context.Context, sessionID int64, from, to int) ([]domain.ToolInvocation, error)
	Length(ctx context.Context, sessionID int64) (int, error)
	MarkReversed(ctx context.Context, sessionID int64, ordinal int) error
}

// CheckpointOptions controls checkpoint creation.
type CheckpointOptions struct {
	IsAuto   bool
	Metadata map[string]any
}

// CheckpointStore creates, retrieves, searches, and deletes checkpoints.
type CheckpointStore interface {
	Commit(ctx context.Context, sessionID int64, name string, snapshot []byte, opts CheckpointOptions) (*domain.Checkpoint, error)
	Get(ctx context.Context, checkpointID int64) (*domain.Checkpoint, error)
	Search(ctx context.Context, sessionID int64, namePrefix string, after, before *time.Time) ([]domain.Checkpoint, error)
	Delete(ctx context.Context, checkpointID int64) error
	CleanupAutoCheckpoints(ctx context.Context, sessionID int64, keepLatest int) (int, error)
}
