package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rewind/domain"
	"rewind/logging"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateExternalSession creates a new conversation container for a user
func (s *Store) CreateExternalSession(ctx context.Context, userID int64, name string) (*domain.ExternalSession, error) {
	var row ExternalSession

	err := withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
			}

			row = ExternalSession{
				UserID:   userID,
				Name:     name,
				IsActive: true,
			}
			return tx.Create(&row).Error
		})
	}, 3)
	if err != nil {
		return nil, err
	}

	result := convertToExternalSession(row)
	return &result, nil
}

// GetExternalSession retrieves an external session by ID
func (s *Store) GetExternalSession(ctx context.Context, id int64) (*domain.ExternalSession, error) {
	var row ExternalSession
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("external session %d: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, err
	}
	result := convertToExternalSession(row)
	return &result, nil
}

// ListExternalSessions returns all external sessions owned by a user
func (s *Store) ListExternalSessions(ctx context.Context, userID int64) ([]domain.ExternalSession, error) {
	var rows []ExternalSession
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.ExternalSession, len(rows))
	for i, row := range rows {
		result[i] = convertToExternalSession(row)
	}
	return result, nil
}

// DeleteExternalSession removes an external session. Its internal sessions,
// their checkpoints, and their ledger entries go with it (cascade).
func (s *Store) DeleteExternalSession(ctx context.Context, id int64) error {
	return withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.Where("id = ?", id).Delete(&ExternalSession{})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("external session %d: %w", id, ErrSessionNotFound)
			}
			return nil
		})
	}, 3)
}

// CreateInternalSession creates a new branch of conversation within an
// external session. Root sessions pass nil for both parentID and
// branchCheckpointID. When parentID is set, branchCheckpointID must
// reference a checkpoint owned by that parent.
//
// The new session becomes current; siblings are marked not current. The
// ledger cursor for the new session starts at 0 implicitly (no rows yet).
func (s *Store) CreateInternalSession(ctx context.Context, externalID int64, parentID, branchCheckpointID *int64, snapshot []byte) (*domain.InternalSession, error) {
	var row InternalSession

	err := withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var external ExternalSession
			if err := tx.Where("id = ?", externalID).First(&external).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("external session %d: %w", externalID, ErrSessionNotFound)
				}
				return err
			}

			if parentID != nil {
				if branchCheckpointID == nil {
					return ErrInvalidBranchPoint
				}
				var checkpoint Checkpoint
				if err := tx.Where("id = ?", *branchCheckpointID).First(&checkpoint).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return ErrInvalidBranchPoint
					}
					return err
				}
				if checkpoint.InternalSessionID != *parentID {
					return ErrInvalidBranchPoint
				}
			} else if branchCheckpointID != nil {
				return ErrInvalidBranchPoint
			}

			// Unmark current siblings; the new session takes over
			if err := tx.Model(&InternalSession{}).
				Where("external_session_id = ? AND is_current = ?", externalID, true).
				Update("is_current", false).Error; err != nil {
				return err
			}

			row = InternalSession{
				ExternalSessionID:  externalID,
				RuntimeID:          fmt.Sprintf("sess_%s", uuid.New().String()),
				ParentSessionID:    parentID,
				BranchCheckpointID: branchCheckpointID,
				IsCurrent:          true,
				StateSnapshot:      snapshot,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}

			updates := map[string]interface{}{
				"current_session_id": row.ID,
				"updated_at":         time.Now().UTC(),
			}
			if parentID != nil {
				updates["branch_count"] = gorm.Expr("branch_count + 1")
			}
			return tx.Model(&ExternalSession{}).Where("id = ?", externalID).Updates(updates).Error
		})
	}, 3)
	if err != nil {
		return nil, err
	}

	logging.Logger.Debug("created internal session",
		"id", row.ID, "external", externalID, "branch", parentID != nil)

	result := convertToInternalSession(row)
	return &result, nil
}

// GetInternalSession retrieves an internal session by ID
func (s *Store) GetInternalSession(ctx context.Context, id int64) (*domain.InternalSession, error) {
	var row InternalSession
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("internal session %d: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, err
	}
	result := convertToInternalSession(row)
	return &result, nil
}

// GetInternalSessionByRuntimeID retrieves an internal session by its opaque
// runtime identifier
func (s *Store) GetInternalSessionByRuntimeID(ctx context.Context, runtimeID string) (*domain.InternalSession, error) {
	var row InternalSession
	err := s.db.WithContext(ctx).Where("runtime_id = ?", runtimeID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("internal session %s: %w", runtimeID, ErrSessionNotFound)
	}
	if err != nil {
		return nil, err
	}
	result := convertToInternalSession(row)
	return &result, nil
}

// ListBranches returns all internal sessions of an external session.
// Callers sort by CreatedAt if they need a stable order.
func (s *Store) ListBranches(ctx context.Context, externalID int64) ([]domain.InternalSession, error) {
	var rows []InternalSession
	if err := s.db.WithContext(ctx).Where("external_session_id = ?", externalID).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.InternalSession, len(rows))
	for i, row := range rows {
		result[i] = convertToInternalSession(row)
	}
	return result, nil
}

// ChildSessions returns the sessions branched directly from parentID.
// Children are found via an index query, never a stored child list.
func (s *Store) ChildSessions(ctx context.Context, parentID int64) ([]domain.InternalSession, error) {
	var rows []InternalSession
	if err := s.db.WithContext(ctx).Where("parent_session_id = ?", parentID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.InternalSession, len(rows))
	for i, row := range rows {
		result[i] = convertToInternalSession(row)
	}
	return result, nil
}

// Lineage walks the parent pointers from a session up to its root and
// returns the chain ordered root first.
func (s *Store) Lineage(ctx context.Context, sessionID int64) ([]domain.InternalSession, error) {
	var chain []domain.InternalSession
	id := &sessionID
	for id != nil {
		session, err := s.GetInternalSession(ctx, *id)
		if err != nil {
			return nil, err
		}
		chain = append([]domain.InternalSession{*session}, chain...)
		id = session.ParentSessionID
	}
	return chain, nil
}

// ResumeLatest returns the session to continue in an external session: the
// one marked current, or the most recently created if none is marked.
func (s *Store) ResumeLatest(ctx context.Context, externalID int64) (*domain.InternalSession, error) {
	var row InternalSession
	err := s.db.WithContext(ctx).
		Where("external_session_id = ? AND is_current = ?", externalID, true).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = s.db.WithContext(ctx).
			Where("external_session_id = ?", externalID).
			Order("created_at DESC, id DESC").
			First(&row).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("external session %d has no sessions: %w", externalID, ErrSessionNotFound)
	}
	if err != nil {
		return nil, err
	}
	result := convertToInternalSession(row)
	return &result, nil
}

// SetCurrentSession marks one internal session current and unmarks its
// siblings
func (s *Store) SetCurrentSession(ctx context.Context, sessionID int64) error {
	return withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var session InternalSession
			if err := tx.Where("id = ?", sessionID).First(&session).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("internal session %d: %w", sessionID, ErrSessionNotFound)
				}
				return err
			}

			if err := tx.Model(&InternalSession{}).
				Where("external_session_id = ? AND id != ?", session.ExternalSessionID, sessionID).
				Update("is_current", false).Error; err != nil {
				return err
			}
			if err := tx.Model(&InternalSession{}).
				Where("id = ?", sessionID).
				Update("is_current", true).Error; err != nil {
				return err
			}
			return tx.Model(&ExternalSession{}).
				Where("id = ?", session.ExternalSessionID).
				Updates(map[string]interface{}{
					"current_session_id": sessionID,
					"updated_at":         time.Now().UTC(),
				}).Error
		})
	}, 3)
}

// UpdateSnapshot replaces the working conversation state of a session. This
// is the live session state, not a checkpoint; checkpoints stay immutable.
func (s *Store) UpdateSnapshot(ctx context.Context, sessionID int64, snapshot []byte) error {
	return withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.Model(&InternalSession{}).Where("id = ?", sessionID).Update("state_snapshot", snapshot)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("internal session %d: %w", sessionID, ErrSessionNotFound)
			}
			return nil
		})
	}, 3)
}

// DeleteInternalSession removes one branch along with its checkpoints and
// ledger entries (cascade). Sessions that were branched from it would lose
// their branch-point checkpoints, so deletion is refused while children
// exist.
func (s *Store) DeleteInternalSession(ctx context.Context, id int64) error {
	return withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var children int64
			if err := tx.Model(&InternalSession{}).Where("parent_session_id = ?", id).Count(&children).Error; err != nil {
				return err
			}
			if children > 0 {
				return fmt.Errorf("internal session %d: %w", id, ErrSessionHasBranches)
			}

			result := tx.Where("id = ?", id).Delete(&InternalSession{})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("internal session %d: %w", id, ErrSessionNotFound)
			}
			return nil
		})
	}, 3)
}
