package domain

import "time"

// ExternalSession is the user-visible conversation container. Each one can
// hold multiple internal sessions created by rollbacks, forming a branching
// timeline.
type ExternalSession struct {
	ID               int64
	UserID           int64
	Name             string
	IsActive         bool
	CurrentSessionID *int64
	BranchCount      int
	TotalCheckpoints int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// InternalSession is one branch of conversation state with its own ledger
// and checkpoints.
type InternalSession struct {
	ID                int64
	ExternalSessionID int64
	RuntimeID         string // opaque runtime session identifier
	ParentSessionID   *int64 // set when this session was branched from another
	BranchCheckpoint  *int64 // checkpoint the branch was created from
	IsCurrent         bool
	CheckpointCount   int
	ToolCount         int
	StateSnapshot     []byte // serialized conversation state, opaque to storage
	CreatedAt         time.Time
}

// IsBranch reports whether this session was created by a rollback.
func (s *InternalSession) IsBranch() bool {
	return s.ParentSessionID != nil
}

// BranchNode is one internal session in a branch tree, with its children.
type BranchNode struct {
	Session  InternalSession
	Children []*BranchNode
}

// BranchTree is the full branch structure of an external session.
type BranchTree struct {
	ExternalSessionID int64
	Roots             []*BranchNode
}
