package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rewind/domain"

	"gorm.io/gorm"
)

// Append writes a tool invocation to a session's ledger and returns the
// ordinal it was assigned. Ordinals are gapless and strictly increasing per
// session starting at 0.
//
// The assignment is linearizable per session: MAX(ordinal)+1 and the insert
// happen in one transaction, and SQLite allows a single writer at a time,
// so two concurrent appends can never receive the same ordinal. Contention
// shows up as SQLITE_BUSY and is absorbed by the retry loop.
func (s *Store) Append(ctx context.Context, sessionID int64, toolName string, args map[string]any, result any) (int, error) {
	var ordinal int

	err := withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&InternalSession{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("internal session %d: %w", sessionID, ErrSessionNotFound)
			}

			var next sql.NullInt64
			if err := tx.Model(&ToolInvocation{}).
				Where("session_id = ?", sessionID).
				Select("MAX(ordinal) + 1").
				Scan(&next).Error; err != nil {
				return err
			}
			ordinal = 0
			if next.Valid {
				ordinal = int(next.Int64)
			}

			row := ToolInvocation{
				SessionID: sessionID,
				Ordinal:   ordinal,
				ToolName:  toolName,
				Arguments: marshalJSON(args),
				Result:    marshalJSON(result),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}

			return tx.Model(&InternalSession{}).
				Where("id = ?", sessionID).
				Update("tool_count", gorm.Expr("tool_count + 1")).Error
		})
	}, 3)
	if err != nil {
		return 0, err
	}
	return ordinal, nil
}

// ReadRange returns ledger entries with from <= ordinal <= to, in ordinal
// order. An empty range (from > to, or no records) yields an empty slice.
func (s *Store) ReadRange(ctx context.Context, sessionID int64, from, to int) ([]domain.ToolInvocation, error) {
	if from > to {
		return []domain.ToolInvocation{}, nil
	}

	var rows []ToolInvocation
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND ordinal >= ? AND ordinal <= ?", sessionID, from, to).
		Order("ordinal ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]domain.ToolInvocation, len(rows))
	for i, row := range rows {
		result[i] = convertToInvocation(row)
	}
	return result, nil
}

// Length returns the current ledger length of a session (one past the
// highest assigned ordinal).
func (s *Store) Length(ctx context.Context, sessionID int64) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&InternalSession{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, fmt.Errorf("internal session %d: %w", sessionID, ErrSessionNotFound)
	}

	var next sql.NullInt64
	err := s.db.WithContext(ctx).Model(&ToolInvocation{}).
		Where("session_id = ?", sessionID).
		Select("MAX(ordinal) + 1").
		Scan(&next).Error
	if err != nil {
		return 0, err
	}
	if !next.Valid {
		return 0, nil
	}
	return int(next.Int64), nil
}

// MarkReversed flags a ledger entry as reversed. Idempotent: marking an
// already-reversed record is a no-op, not an error.
func (s *Store) MarkReversed(ctx context.Context, sessionID int64, ordinal int) error {
	return withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var row ToolInvocation
			err := tx.Where("session_id = ? AND ordinal = ?", sessionID, ordinal).First(&row).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("ledger entry %d/%d: %w", sessionID, ordinal, ErrSessionNotFound)
			}
			if err != nil {
				return err
			}
			if row.Reversed {
				return nil
			}
			return tx.Model(&ToolInvocation{}).
				Where("session_id = ? AND ordinal = ?", sessionID, ordinal).
				Update("reversed", true).Error
		})
	}, 3)
}
