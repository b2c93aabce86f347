package rollback

import (
	"context"
	"sync"
)

// Reversible undoes one recorded tool invocation. Implementations receive
// the original arguments and result and return a human-readable outcome
// message. Compensation is explicit and caller-provided: tool side effects
// are opaque to this package, so there is no automatic undo.
type Reversible interface {
	Reverse(ctx context.Context, args map[string]any, result any) (string, error)
}

// ReversibleFunc adapts a plain function to the Reversible interface
type ReversibleFunc func(ctx context.Context, args map[string]any, result any) (string, error)

// Reverse implements Reversible
func (f ReversibleFunc) Reverse(ctx context.Context, args map[string]any, result any) (string, error) {
	return f(ctx, args, result)
}

// ForwardFunc executes a tool
type ForwardFunc func(ctx context.Context, args map[string]any) (any, error)

// ToolSpec describes a tool known to the registry. Reverse may be nil for
// tools with no compensating action; their invocations are reported as
// unreversed rather than crashing a rollback.
type ToolSpec struct {
	Name    string
	Forward ForwardFunc
	Reverse Reversible
}

// checkpointTools are the checkpoint-management tool names. They manage the
// timeline itself and are excluded from reversal.
var checkpointTools = map[string]bool{
	"create_checkpoint":        true,
	"list_checkpoints":         true,
	"rollback_to_checkpoint":   true,
	"delete_checkpoint":        true,
	"get_checkpoint_info":      true,
	"cleanup_auto_checkpoints": true,
}

// IsCheckpointTool reports whether a tool name belongs to checkpoint
// management
func IsCheckpointTool(name string) bool {
	return checkpointTools[name]
}

// Registry maps tool names to their specs. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ToolSpec
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]ToolSpec)}
}

// Register adds or replaces a tool spec
func (r *Registry) Register(spec ToolSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[spec.Name] = spec
}

// Lookup returns the spec for a tool name
func (r *Registry) Lookup(name string) (ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.tools[name]
	return spec, ok
}

// Names returns all registered tool names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}
