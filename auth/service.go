package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"rewind/domain"
	"rewind/logging"
	"rewind/ports"
	"rewind/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultAdminUsername is the account seeded by Bootstrap
const DefaultAdminUsername = "rootusr"

// Service handles user accounts and identity resolution. It implements
// ports.OwnerResolver for the session hierarchy.
type Service struct {
	store *storage.Store
}

var _ ports.OwnerResolver = (*Service)(nil)

// NewService creates an auth service backed by the store
func NewService(store *storage.Store) *Service {
	return &Service{store: store}
}

// Register creates a new user account with a bcrypt-hashed password
func (s *Service) Register(ctx context.Context, username, password string, isAdmin bool) (*domain.User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("username %s is already taken", username)
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, domain.User{
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      isAdmin,
	})
	if err != nil {
		return nil, err
	}

	logging.Logger.Info("registered user", "username", username, "admin", isAdmin)
	return user, nil
}

// Login authenticates a user by username and password
func (s *Service) Login(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.New("invalid credentials")
	}
	if err := s.store.TouchLastLogin(ctx, user.ID); err != nil {
		logging.Logger.Warn("failed to record login time", "user", user.ID, "error", err)
	}
	return user, nil
}

// LoginWithAPIKey authenticates a user by API key
func (s *Service) LoginWithAPIKey(ctx context.Context, apiKey string) (*domain.User, error) {
	if apiKey == "" {
		return nil, errors.New("invalid credentials")
	}
	user, err := s.store.GetUserByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, errors.New("invalid credentials")
		}
		return nil, err
	}
	if err := s.store.TouchLastLogin(ctx, user.ID); err != nil {
		logging.Logger.Warn("failed to record login time", "user", user.ID, "error", err)
	}
	return user, nil
}

// ChangePassword replaces a user's password after verifying the current one
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return errors.New("current password is incorrect")
	}
	if err := ValidatePassword(next); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.store.UpdateUserPassword(ctx, userID, string(hash))
}

// GenerateAPIKey creates and stores a fresh API key for a user
func (s *Service) GenerateAPIKey(ctx context.Context, userID int64) (string, error) {
	key := fmt.Sprintf("rwk_%s", strings.ReplaceAll(uuid.New().String(), "-", ""))
	if err := s.store.UpdateUserAPIKey(ctx, userID, &key); err != nil {
		return "", err
	}
	return key, nil
}

// RevokeAPIKey clears a user's API key
func (s *Service) RevokeAPIKey(ctx context.Context, userID int64) error {
	return s.store.UpdateUserAPIKey(ctx, userID, nil)
}

// Bootstrap seeds the default admin account. Idempotent: if the account
// already exists nothing happens. Run by the calling application at
// startup, not by the core.
func (s *Service) Bootstrap(ctx context.Context, password string) (*domain.User, error) {
	user, err := s.store.GetUserByUsername(ctx, DefaultAdminUsername)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, err
	}
	return s.Register(ctx, DefaultAdminUsername, password, true)
}

// ResolveOwner resolves an owner reference to a user ID. Accepted forms:
// numeric user ID, username, or API key. Implements ports.OwnerResolver.
func (s *Service) ResolveOwner(ctx context.Context, ownerRef string) (int64, error) {
	ownerRef = strings.TrimSpace(ownerRef)
	if ownerRef == "" {
		return 0, storage.ErrInvalidOwner
	}

	if id, err := strconv.ParseInt(ownerRef, 10, 64); err == nil {
		user, err := s.store.GetUser(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				return 0, fmt.Errorf("%s: %w", ownerRef, storage.ErrInvalidOwner)
			}
			return 0, err
		}
		return user.ID, nil
	}

	if user, err := s.store.GetUserByUsername(ctx, ownerRef); err == nil {
		return user.ID, nil
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return 0, err
	}

	if user, err := s.store.GetUserByAPIKey(ctx, ownerRef); err == nil {
		return user.ID, nil
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return 0, err
	}

	return 0, fmt.Errorf("%s: %w", ownerRef, storage.ErrInvalidOwner)
}
