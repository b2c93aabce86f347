package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rewind/domain"
	"rewind/logging"
	"rewind/ports"

	"gorm.io/gorm"
)

// Commit creates a checkpoint for a session. The session's current ledger
// length is read and the checkpoint inserted in the same transaction, so a
// commit racing with an append either includes the append or doesn't, but
// never records a partial position.
func (s *Store) Commit(ctx context.Context, sessionID int64, name string, snapshot []byte, opts ports.CheckpointOptions) (*domain.Checkpoint, error) {
	var row Checkpoint

	err := withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var session InternalSession
			if err := tx.Where("id = ?", sessionID).First(&session).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("internal session %d: %w", sessionID, ErrSessionNotFound)
				}
				return err
			}

			var next sql.NullInt64
			if err := tx.Model(&ToolInvocation{}).
				Where("session_id = ?", sessionID).
				Select("MAX(ordinal) + 1").
				Scan(&next).Error; err != nil {
				return err
			}
			position := 0
			if next.Valid {
				position = int(next.Int64)
			}

			metadata := map[string]any{}
			for k, v := range opts.Metadata {
				metadata[k] = v
			}
			// Kept redundantly in metadata for lookup by callers that only
			// see the metadata blob
			metadata["tool_track_position"] = position

			row = Checkpoint{
				InternalSessionID: sessionID,
				Name:              name,
				StateSnapshot:     snapshot,
				ToolTrackPosition: position,
				IsAuto:            opts.IsAuto,
				Metadata:          marshalJSON(metadata),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}

			if err := tx.Model(&InternalSession{}).
				Where("id = ?", sessionID).
				Update("checkpoint_count", gorm.Expr("checkpoint_count + 1")).Error; err != nil {
				return err
			}
			return tx.Model(&ExternalSession{}).
				Where("id = ?", session.ExternalSessionID).
				Updates(map[string]interface{}{
					"total_checkpoints": gorm.Expr("total_checkpoints + 1"),
					"updated_at":        time.Now().UTC(),
				}).Error
		})
	}, 3)
	if err != nil {
		return nil, err
	}

	logging.Logger.Debug("committed checkpoint",
		"id", row.ID, "session", sessionID, "name", name,
		"position", row.ToolTrackPosition, "auto", opts.IsAuto)

	result := convertToCheckpoint(row)
	return &result, nil
}

// Get retrieves a checkpoint by ID
func (s *Store) Get(ctx context.Context, checkpointID int64) (*domain.Checkpoint, error) {
	var row Checkpoint
	err := s.db.WithContext(ctx).Where("id = ?", checkpointID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("checkpoint %d: %w", checkpointID, ErrCheckpointNotFound)
	}
	if err != nil {
		return nil, err
	}
	result := convertToCheckpoint(row)
	return &result, nil
}

// Latest returns the most recent checkpoint of a session, or
// ErrCheckpointNotFound if it has none.
func (s *Store) Latest(ctx context.Context, sessionID int64) (*domain.Checkpoint, error) {
	var row Checkpoint
	err := s.db.WithContext(ctx).
		Where("internal_session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("session %d has no checkpoints: %w", sessionID, ErrCheckpointNotFound)
	}
	if err != nil {
		return nil, err
	}
	result := convertToCheckpoint(row)
	return &result, nil
}

// Search returns a session's checkpoints filtered by name prefix and
// creation window, ordered by created_at ascending. No match yields an
// empty slice, not an error.
func (s *Store) Search(ctx context.Context, sessionID int64, namePrefix string, after, before *time.Time) ([]domain.Checkpoint, error) {
	query := s.db.WithContext(ctx).Where("internal_session_id = ?", sessionID)
	if namePrefix != "" {
		query = query.Where("name LIKE ?", namePrefix+"%")
	}
	if after != nil {
		query = query.Where("created_at > ?", *after)
	}
	if before != nil {
		query = query.Where("created_at < ?", *before)
	}

	var rows []Checkpoint
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]domain.Checkpoint, len(rows))
	for i, row := range rows {
		result[i] = convertToCheckpoint(row)
	}
	return result, nil
}

// Counts returns the number of auto and manual checkpoints in a session
func (s *Store) Counts(ctx context.Context, sessionID int64) (domain.CheckpointCounts, error) {
	var counts domain.CheckpointCounts

	var auto, manual int64
	if err := s.db.WithContext(ctx).Model(&Checkpoint{}).
		Where("internal_session_id = ? AND is_auto = ?", sessionID, true).
		Count(&auto).Error; err != nil {
		return counts, err
	}
	if err := s.db.WithContext(ctx).Model(&Checkpoint{}).
		Where("internal_session_id = ? AND is_auto = ?", sessionID, false).
		Count(&manual).Error; err != nil {
		return counts, err
	}

	counts.Auto = int(auto)
	counts.Manual = int(manual)
	return counts, nil
}

// Delete removes a checkpoint. Refused with ErrCheckpointInUse while any
// internal session references it as a branch point, so branch ancestry
// stays resolvable.
func (s *Store) Delete(ctx context.Context, checkpointID int64) error {
	return withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var row Checkpoint
			if err := tx.Where("id = ?", checkpointID).First(&row).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("checkpoint %d: %w", checkpointID, ErrCheckpointNotFound)
				}
				return err
			}

			var refs int64
			if err := tx.Model(&InternalSession{}).
				Where("branch_checkpoint_id = ?", checkpointID).
				Count(&refs).Error; err != nil {
				return err
			}
			if refs > 0 {
				return fmt.Errorf("checkpoint %d: %w", checkpointID, ErrCheckpointInUse)
			}

			if err := tx.Where("id = ?", checkpointID).Delete(&Checkpoint{}).Error; err != nil {
				return err
			}

			var session InternalSession
			if err := tx.Where("id = ?", row.InternalSessionID).First(&session).Error; err != nil {
				return err
			}
			if err := tx.Model(&InternalSession{}).
				Where("id = ?", session.ID).
				Update("checkpoint_count", gorm.Expr("checkpoint_count - 1")).Error; err != nil {
				return err
			}
			return tx.Model(&ExternalSession{}).
				Where("id = ?", session.ExternalSessionID).
				Update("total_checkpoints", gorm.Expr("total_checkpoints - 1")).Error
		})
	}, 3)
}

// CopyCheckpoints duplicates the checkpoints of one session created at or
// before the cutoff into another session, preserving names, snapshots, and
// creation times. Copied checkpoints get tool track position 0: the target
// session's ledger starts empty, so its timeline begins at the copy.
// Returns the number copied.
func (s *Store) CopyCheckpoints(ctx context.Context, fromSessionID, toSessionID int64, upTo time.Time) (int, error) {
	var copied int

	err := withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			copied = 0

			var target InternalSession
			if err := tx.Where("id = ?", toSessionID).First(&target).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("internal session %d: %w", toSessionID, ErrSessionNotFound)
				}
				return err
			}

			var rows []Checkpoint
			if err := tx.Where("internal_session_id = ? AND created_at <= ?", fromSessionID, upTo).
				Order("created_at ASC, id ASC").
				Find(&rows).Error; err != nil {
				return err
			}

			for _, row := range rows {
				duplicate := Checkpoint{
					InternalSessionID: toSessionID,
					Name:              row.Name,
					StateSnapshot:     row.StateSnapshot,
					ToolTrackPosition: 0,
					IsAuto:            row.IsAuto,
					Metadata:          row.Metadata,
					CreatedAt:         row.CreatedAt,
				}
				if err := tx.Create(&duplicate).Error; err != nil {
					return err
				}
				copied++
			}

			if copied > 0 {
				if err := tx.Model(&InternalSession{}).
					Where("id = ?", toSessionID).
					Update("checkpoint_count", gorm.Expr("checkpoint_count + ?", copied)).Error; err != nil {
					return err
				}
				return tx.Model(&ExternalSession{}).
					Where("id = ?", target.ExternalSessionID).
					Update("total_checkpoints", gorm.Expr("total_checkpoints + ?", copied)).Error
			}
			return nil
		})
	}, 3)
	if err != nil {
		return 0, err
	}
	return copied, nil
}

// CleanupAutoCheckpoints deletes all but the keepLatest most recent
// auto-generated checkpoints of a session. Manual checkpoints are never
// touched, and an auto checkpoint still referenced as a branch point
// survives regardless of keepLatest. Returns the number deleted.
func (s *Store) CleanupAutoCheckpoints(ctx context.Context, sessionID int64, keepLatest int) (int, error) {
	if keepLatest < 0 {
		keepLatest = 0
	}

	var deleted int
	err := withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			deleted = 0

			var rows []Checkpoint
			if err := tx.Where("internal_session_id = ? AND is_auto = ?", sessionID, true).
				Order("created_at DESC, id DESC").
				Find(&rows).Error; err != nil {
				return err
			}
			if len(rows) <= keepLatest {
				return nil
			}

			for _, row := range rows[keepLatest:] {
				var refs int64
				if err := tx.Model(&InternalSession{}).
					Where("branch_checkpoint_id = ?", row.ID).
					Count(&refs).Error; err != nil {
					return err
				}
				if refs > 0 {
					continue
				}
				if err := tx.Where("id = ?", row.ID).Delete(&Checkpoint{}).Error; err != nil {
					return err
				}
				deleted++
			}

			if deleted > 0 {
				var session InternalSession
				if err := tx.Where("id = ?", sessionID).First(&session).Error; err != nil {
					return err
				}
				if err := tx.Model(&InternalSession{}).
					Where("id = ?", sessionID).
					Update("checkpoint_count", gorm.Expr("checkpoint_count - ?", deleted)).Error; err != nil {
					return err
				}
				if err := tx.Model(&ExternalSession{}).
					Where("id = ?", session.ExternalSessionID).
					Update("total_checkpoints", gorm.Expr("total_checkpoints - ?", deleted)).Error; err != nil {
					return err
				}
			}
			return nil
		})
	}, 3)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		logging.Logger.Debug("cleaned up auto checkpoints",
			"session", sessionID, "deleted", deleted, "keep", keepLatest)
	}
	return deleted, nil
}
