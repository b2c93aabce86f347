package storage

import "errors"

// Structural and referential errors abort the requested operation and are
// surfaced to the caller. They indicate a usage error, not a transient
// failure, so nothing here is retried.
var (
	// ErrSessionNotFound is returned when a ledger or checkpoint operation
	// targets a session that does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrCheckpointNotFound is returned when a checkpoint lookup fails.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrUserNotFound is returned when a user lookup fails.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidOwner is returned when an owner reference cannot be resolved
	// to a known user.
	ErrInvalidOwner = errors.New("invalid owner")

	// ErrInvalidBranchPoint is returned when a branch-point checkpoint does
	// not belong to the stated parent session.
	ErrInvalidBranchPoint = errors.New("branch point checkpoint does not belong to parent session")

	// ErrCheckpointInUse is returned when deleting a checkpoint that some
	// internal session still references as its branch point. Branch ancestry
	// must remain resolvable, so deletion is refused rather than forced.
	ErrCheckpointInUse = errors.New("checkpoint is referenced as a branch point")

	// ErrSessionHasBranches is returned when deleting an internal session
	// that other sessions were branched from. Deleting it would cascade its
	// checkpoints and orphan the branches' lineage, so it is refused.
	// Deleting the whole external session remains the way to remove a tree.
	ErrSessionHasBranches = errors.New("session has branches")
)
