package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rewind/domain"

	"gorm.io/gorm"
)

// CreateUser inserts a new user account
func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	row := User{
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		APIKey:       user.APIKey,
		IsAdmin:      user.IsAdmin,
		Preferences:  marshalJSON(user.Preferences),
	}

	err := withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(&row).Error
		})
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", user.Username, err)
	}

	result := convertToUser(row)
	return &result, nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var row User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, ErrUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	result := convertToUser(row)
	return &result, nil
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var row User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", username, ErrUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	result := convertToUser(row)
	return &result, nil
}

// GetUserByAPIKey retrieves a user by API key
func (s *Store) GetUserByAPIKey(ctx context.Context, apiKey string) (*domain.User, error) {
	var row User
	err := s.db.WithContext(ctx).Where("api_key = ?", apiKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	result := convertToUser(row)
	return &result, nil
}

// UpdateUserPassword replaces a user's password hash
func (s *Store) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	return s.updateUserField(ctx, id, "password_hash", passwordHash)
}

// UpdateUserAPIKey sets or clears a user's API key
func (s *Store) UpdateUserAPIKey(ctx context.Context, id int64, apiKey *string) error {
	return s.updateUserField(ctx, id, "api_key", apiKey)
}

// UpdateUserPreferences replaces a user's preferences blob
func (s *Store) UpdateUserPreferences(ctx context.Context, id int64, preferences map[string]any) error {
	return s.updateUserField(ctx, id, "preferences", marshalJSON(preferences))
}

// TouchLastLogin records a successful login time
func (s *Store) TouchLastLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	return s.updateUserField(ctx, id, "last_login_at", &now)
}

func (s *Store) updateUserField(ctx context.Context, id int64, field string, value interface{}) error {
	return withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.Model(&User{}).Where("id = ?", id).Update(field, value)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("user %d: %w", id, ErrUserNotFound)
			}
			return nil
		})
	}, 3)
}

// DeleteUser removes a user. Their external sessions and everything under
// them cascade.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.Where("id = ?", id).Delete(&User{})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("user %d: %w", id, ErrUserNotFound)
			}
			return nil
		})
	}, 3)
}
