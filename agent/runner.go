package agent

import (
	"context"
	"fmt"

	"rewind/domain"
	"rewind/logging"
	"rewind/ports"
	"rewind/rollback"
)

// Model produces the assistant reply for a conversation turn. The language
// model call is a caller concern; the core only defines this boundary.
type Model interface {
	Respond(ctx context.Context, history []Message) (string, error)
}

// Runner drives one internal session: it records tool calls in the ledger,
// auto-checkpoints after side-effecting calls when enabled, and keeps the
// persisted snapshot in step with the working conversation state.
type Runner struct {
	service *Service
	session *domain.InternalSession
	state   *ConversationState
}

// Session returns the internal session this runner is bound to
func (r *Runner) Session() *domain.InternalSession {
	return r.session
}

// State returns the working conversation state
func (r *Runner) State() *ConversationState {
	return r.state
}

// Run executes one conversation turn: append the user message, get the
// model's reply, append it, and persist the updated snapshot.
func (r *Runner) Run(ctx context.Context, model Model, userMessage string) (string, error) {
	r.state.AddMessage("user", userMessage)

	reply, err := model.Respond(ctx, r.state.History)
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}
	r.state.AddMessage("assistant", reply)

	if err := r.Save(ctx); err != nil {
		return "", err
	}
	return reply, nil
}

// InvokeTool executes a registered tool, records the invocation in the
// ledger, and commits an auto checkpoint when configured. Checkpoint
// management tools are recorded but never auto-checkpointed.
func (r *Runner) InvokeTool(ctx context.Context, toolName string, args map[string]any) (any, error) {
	spec, ok := r.service.registry.Lookup(toolName)
	if !ok || spec.Forward == nil {
		return nil, fmt.Errorf("tool %s is not registered", toolName)
	}

	result, err := spec.Forward(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("tool %s failed: %w", toolName, err)
	}

	ordinal, err := r.service.store.Append(ctx, r.session.ID, toolName, args, result)
	if err != nil {
		return nil, err
	}
	logging.Logger.Debug("recorded tool invocation",
		"session", r.session.ID, "tool", toolName, "ordinal", ordinal)

	if r.service.opts.AutoCheckpoint && !rollback.IsCheckpointTool(toolName) {
		name := fmt.Sprintf("After %s", toolName)
		if _, err := r.Checkpoint(ctx, name, true); err != nil {
			// Auto checkpoint failure doesn't undo the tool call; the
			// invocation is already recorded
			logging.Logger.Warn("auto checkpoint failed",
				"session", r.session.ID, "tool", toolName, "error", err)
		}
	}

	return result, nil
}

// Checkpoint commits the current conversation state as a checkpoint
func (r *Runner) Checkpoint(ctx context.Context, name string, isAuto bool) (*domain.Checkpoint, error) {
	snapshot, err := r.service.serializer.Serialize(r.state)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize state: %w", err)
	}
	return r.service.store.Commit(ctx, r.session.ID, name, snapshot, ports.CheckpointOptions{
		IsAuto: isAuto,
	})
}

// Save persists the working conversation state to the session row
func (r *Runner) Save(ctx context.Context) error {
	snapshot, err := r.service.serializer.Serialize(r.state)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	return r.service.store.UpdateSnapshot(ctx, r.session.ID, snapshot)
}
