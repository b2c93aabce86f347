package agent

import (
	"context"
	"fmt"

	"rewind/domain"
	"rewind/logging"
	"rewind/ports"
	"rewind/rollback"
	"rewind/storage"
)

// Options configures the agent service. Zero value means manual
// checkpointing only and no tool reversal on rollback.
type Options struct {
	// AutoCheckpoint commits a checkpoint after every side-effecting tool
	// call
	AutoCheckpoint bool
	// KeepLatest is the retention count used by CleanupAutoCheckpoints
	KeepLatest int
	// RollbackTools runs the reversal engine during Rollback
	RollbackTools bool
	// CopyCheckpoints copies pre-branch-point checkpoints into new branches
	CopyCheckpoints bool
}

// Service ties the session hierarchy, ledger, checkpoint store, and
// rollback coordinator together for a calling application.
type Service struct {
	store       *storage.Store
	resolver    ports.OwnerResolver
	serializer  ports.StateSerializer
	registry    *rollback.Registry
	coordinator *rollback.Coordinator
	opts        Options
}

// NewService creates an agent service. The resolver and serializer are
// caller-supplied collaborators; pass JSONSerializer{} for the default
// snapshot format.
func NewService(store *storage.Store, resolver ports.OwnerResolver, serializer ports.StateSerializer, registry *rollback.Registry, opts Options) *Service {
	engine := rollback.NewEngine(store, registry)
	return &Service{
		store:       store,
		resolver:    resolver,
		serializer:  serializer,
		registry:    registry,
		coordinator: rollback.NewCoordinator(store, engine),
		opts:        opts,
	}
}

// Registry exposes the tool registry for callers to register tool specs
func (s *Service) Registry() *rollback.Registry {
	return s.registry
}

// CreateExternalSession creates a conversation container for the owner.
// The owner reference is resolved through the identity collaborator;
// unresolvable owners fail with storage.ErrInvalidOwner.
func (s *Service) CreateExternalSession(ctx context.Context, ownerRef, name string) (*domain.ExternalSession, error) {
	userID, err := s.resolver.ResolveOwner(ctx, ownerRef)
	if err != nil {
		return nil, err
	}
	return s.store.CreateExternalSession(ctx, userID, name)
}

// StartSession creates a fresh root internal session in an external
// session and returns a runner bound to it.
func (s *Service) StartSession(ctx context.Context, externalID int64) (*Runner, error) {
	state := NewConversationState()
	snapshot, err := s.serializer.Serialize(state)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize initial state: %w", err)
	}

	session, err := s.store.CreateInternalSession(ctx, externalID, nil, nil, snapshot)
	if err != nil {
		return nil, err
	}
	return s.newRunner(session, state), nil
}

// Resume returns a runner for the most recently active internal session of
// an external session.
func (s *Service) Resume(ctx context.Context, externalID int64) (*Runner, error) {
	session, err := s.store.ResumeLatest(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.loadRunner(session)
}

// ListBranches returns all internal sessions of an external session
func (s *Service) ListBranches(ctx context.Context, externalID int64) ([]domain.InternalSession, error) {
	return s.store.ListBranches(ctx, externalID)
}

// ListCheckpoints returns all checkpoints of an internal session, oldest
// first
func (s *Service) ListCheckpoints(ctx context.Context, sessionID int64) ([]domain.Checkpoint, error) {
	return s.store.Search(ctx, sessionID, "", nil, nil)
}

// Rollback rolls back to a checkpoint and returns a runner on the new
// branch. Whether side effects are reversed follows the service options.
func (s *Service) Rollback(ctx context.Context, checkpointID int64) (*Runner, []domain.ReverseResult, error) {
	result, err := s.coordinator.Rollback(ctx, checkpointID, rollback.Options{
		ReverseTools:    s.opts.RollbackTools,
		CopyCheckpoints: s.opts.CopyCheckpoints,
	})
	if err != nil {
		return nil, nil, err
	}

	runner, err := s.loadRunner(result.Branch)
	if err != nil {
		return nil, nil, err
	}
	return runner, result.ReverseResults, nil
}

// CleanupAutoCheckpoints prunes old auto checkpoints of a session using the
// configured retention count
func (s *Service) CleanupAutoCheckpoints(ctx context.Context, sessionID int64) (int, error) {
	return s.store.CleanupAutoCheckpoints(ctx, sessionID, s.opts.KeepLatest)
}

func (s *Service) newRunner(session *domain.InternalSession, state *ConversationState) *Runner {
	return &Runner{
		service: s,
		session: session,
		state:   state,
	}
}

func (s *Service) loadRunner(session *domain.InternalSession) (*Runner, error) {
	state := NewConversationState()
	if err := s.serializer.Deserialize(session.StateSnapshot, state); err != nil {
		logging.Logger.Warn("failed to deserialize session snapshot, starting empty",
			"session", session.ID, "error", err)
		state = NewConversationState()
	}
	return s.newRunner(session, state), nil
}
