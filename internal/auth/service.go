package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/atharvakonge/paper-trader/internal/db"
	"github.com/atharvakonge/paper-trader/internal/logger"
	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/shopspring/decimal"
)

// Service handles account registration, login and password changes.
type Service struct {
	store       db.Store
	hasher      Hasher
	initialCash decimal.Decimal
	log         logger.Logger
}

func NewService(store db.Store, hasher Hasher, initialCash decimal.Decimal, log logger.Logger) *Service {
	return &Service{store: store, hasher: hasher, initialCash: initialCash, log: log}
}

// Register creates an account funded with the opening balance. Checks run in order:
// username, password, confirmation, match, length. The storage unique constraint decides
// whether the username is taken.
func (s *Service) Register(ctx context.Context, username, password, confirmation string) (*models.User, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return nil, apperrors.ErrUsernameRequired
	case password == "":
		return nil, apperrors.ErrPasswordRequired
	case confirmation == "":
		return nil, apperrors.ErrConfirmationRequired
	case password != confirmation:
		return nil, apperrors.ErrPasswordMismatch
	case len(password) > MaxPasswordBytes:
		return nil, apperrors.ErrPasswordTooLong
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Username: username, PasswordHash: hash, Cash: s.initialCash}
	opening := &models.CashEvent{
		Kind:         models.CashOpening,
		Amount:       s.initialCash,
		BalanceAfter: s.initialCash,
	}
	if err := s.store.CreateUser(ctx, user, opening); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateUsername) {
			s.log.Info("Registration rejected: username taken", map[string]any{"username": username})
		}
		return nil, err
	}

	s.log.Info("User registered", map[string]any{"user_id": user.ID, "username": username})
	return user, nil
}

// Login verifies credentials. Unknown users and wrong passwords both yield
// apperrors.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.ErrUsernameRequired
	}
	if password == "" {
		return nil, apperrors.ErrPasswordRequired
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		s.log.Info("Login failed", map[string]any{"user_id": user.ID})
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword replaces the hash after checking, in order: current password given,
// current password correct, new password given, confirmation given, match, length.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, password, confirmation string) error {
	if current == "" {
		return apperrors.ErrPasswordRequired
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(user.PasswordHash, current) {
		return apperrors.ErrInvalidPassword
	}

	switch {
	case password == "":
		return apperrors.ErrPasswordRequired
	case confirmation == "":
		return apperrors.ErrConfirmationRequired
	case password != confirmation:
		return apperrors.ErrPasswordMismatch
	case len(password) > MaxPasswordBytes:
		return apperrors.ErrPasswordTooLong
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	s.log.Info("Password changed", map[string]any{"user_id": userID})
	return nil
}
