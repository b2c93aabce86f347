package rollback

import (
	"context"
	"fmt"

	"rewind/domain"
	"rewind/logging"
	"rewind/ports"
)

// Engine replays a ledger suffix in reverse order, invoking registered
// compensating actions. It is a ledger-replay mechanism, not an automatic
// undo system: a record with no registered reverse handler is reported as
// unreversed and the batch continues.
type Engine struct {
	ledger   ports.Ledger
	registry *Registry
}

// NewEngine creates a reversal engine over a ledger and tool registry
func NewEngine(ledger ports.Ledger, registry *Registry) *Engine {
	return &Engine{ledger: ledger, registry: registry}
}

// Reverse undoes the tool invocations recorded after a checkpoint was
// taken, most recent first. Undoing in reverse chronological order is the
// only order guaranteed not to violate dependencies the original sequence
// established.
//
// The ledger length is snapshotted once at the start; appends that land
// after that are out of scope for this reversal. One ReverseResult is
// returned per processed record, in processing order. A failed or missing
// handler produces a failed result and the batch continues.
func (e *Engine) Reverse(ctx context.Context, checkpoint *domain.Checkpoint) ([]domain.ReverseResult, error) {
	sessionID := checkpoint.InternalSessionID

	length, err := e.ledger.Length(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot ledger length: %w", err)
	}

	records, err := e.ledger.ReadRange(ctx, sessionID, checkpoint.ToolTrackPosition, length-1)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger suffix: %w", err)
	}

	logging.Logger.Debug("reversing ledger suffix",
		"session", sessionID, "checkpoint", checkpoint.ID,
		"position", checkpoint.ToolTrackPosition, "records", len(records))

	results := make([]domain.ReverseResult, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		record := records[i]
		if IsCheckpointTool(record.ToolName) {
			continue
		}

		spec, ok := e.registry.Lookup(record.ToolName)
		if !ok || spec.Reverse == nil {
			results = append(results, domain.ReverseResult{
				ToolName: record.ToolName,
				Ordinal:  record.Ordinal,
				Reversed: false,
				Detail:   "no reverse handler registered",
			})
			continue
		}

		detail, err := safeReverse(ctx, spec.Reverse, record)
		if err != nil {
			logging.Logger.Warn("reverse handler failed",
				"tool", record.ToolName, "ordinal", record.Ordinal, "error", err)
			results = append(results, domain.ReverseResult{
				ToolName: record.ToolName,
				Ordinal:  record.Ordinal,
				Reversed: false,
				Detail:   err.Error(),
			})
			continue
		}

		if err := e.ledger.MarkReversed(ctx, sessionID, record.Ordinal); err != nil {
			return results, fmt.Errorf("failed to mark ordinal %d reversed: %w", record.Ordinal, err)
		}
		results = append(results, domain.ReverseResult{
			ToolName: record.ToolName,
			Ordinal:  record.Ordinal,
			Reversed: true,
			Detail:   detail,
		})
	}

	return results, nil
}

// safeReverse invokes a compensating function, converting a panic into an
// error so caller-supplied handlers cannot corrupt ledger state.
func safeReverse(ctx context.Context, reverse Reversible, record domain.ToolInvocation) (detail string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reverse handler panicked: %v", r)
		}
	}()
	return reverse.Reverse(ctx, record.Arguments, record.Result)
}
