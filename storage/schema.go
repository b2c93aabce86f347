package storage

import (
	"time"
)

// User represents an account that owns external sessions
type User struct {
	ID           int64   `gorm:"primaryKey;autoIncrement"`
	Username     string  `gorm:"uniqueIndex;not null"`
	PasswordHash string  `gorm:"not null"`
	APIKey       *string `gorm:"index:idx_api_key;default:null"`
	IsAdmin      bool    `gorm:"not null;default:false"`
	Preferences  string  `gorm:"not null;default:'{}'"` // JSON blob
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ExternalSession represents a user-visible conversation container
type ExternalSession struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	UserID           int64  `gorm:"not null;index:idx_sessions_user"`
	Name             string `gorm:"not null;default:''"`
	IsActive         bool   `gorm:"not null;default:true"`
	CurrentSessionID *int64 `gorm:"default:null"`
	BranchCount      int    `gorm:"not null;default:0"`
	TotalCheckpoints int    `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// InternalSession represents one branch of conversation state.
// ParentSessionID and BranchCheckpointID are back-references for lineage
// lookup only; they never imply ownership or cascade toward the parent.
type InternalSession struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	ExternalSessionID int64  `gorm:"not null;index:idx_internal_external"`
	RuntimeID         string `gorm:"uniqueIndex;not null"`
	ParentSessionID   *int64 `gorm:"index:idx_internal_parent;default:null"`
	BranchCheckpointID *int64 `gorm:"index:idx_internal_branch_cp;default:null"`
	IsCurrent         bool   `gorm:"not null;default:true"`
	CheckpointCount   int    `gorm:"not null;default:0"`
	ToolCount         int    `gorm:"not null;default:0"`
	StateSnapshot     []byte
	CreatedAt         time.Time
}

// Checkpoint represents an immutable snapshot row. Nothing changes after
// insert; deletion is the only mutation.
type Checkpoint struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	InternalSessionID int64  `gorm:"not null;index:idx_checkpoints_session"`
	Name              string `gorm:"not null;default:''"`
	StateSnapshot     []byte
	ToolTrackPosition int    `gorm:"not null;default:0"`
	IsAuto            bool   `gorm:"not null;default:false"`
	Metadata          string `gorm:"not null;default:'{}'"` // JSON blob
	CreatedAt         time.Time
}

// ToolInvocation represents one ledger entry. The (session, ordinal) pair is
// the primary key; ordinals are gapless and strictly increasing per session.
type ToolInvocation struct {
	SessionID int64  `gorm:"primaryKey;autoIncrement:false"`
	Ordinal   int    `gorm:"primaryKey;autoIncrement:false"`
	ToolName  string `gorm:"not null"`
	Arguments string `gorm:"not null;default:'{}'"` // JSON blob
	Result    string `gorm:"not null;default:'null'"` // JSON blob
	Reversed  bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}
