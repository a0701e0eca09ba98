package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/atharvakonge/paper-trader/internal/db"
	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/google/uuid"
)

// Sessions issues and resolves opaque session tokens stored in the database.
type Sessions struct {
	store db.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewSessions(store db.Store, ttl time.Duration) *Sessions {
	return &Sessions{store: store, ttl: ttl, now: time.Now}
}

// Create starts a session for userID.
func (s *Sessions) Create(ctx context.Context, userID int64) (*models.Session, error) {
	sess := &models.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Resolve returns the user behind token. Unknown and expired tokens yield
// apperrors.ErrUnauthenticated; expired ones are removed.
func (s *Sessions) Resolve(ctx context.Context, token string) (int64, error) {
	if _, err := uuid.Parse(token); err != nil {
		return 0, apperrors.ErrUnauthenticated
	}

	sess, err := s.store.GetSession(ctx, token)
	if errors.Is(err, db.ErrSessionNotFound) {
		return 0, apperrors.ErrUnauthenticated
	}
	if err != nil {
		return 0, fmt.Errorf("resolve session: %w", err)
	}

	if sess.Expired(s.now()) {
		if err := s.store.DeleteSession(ctx, token); err != nil {
			return 0, fmt.Errorf("delete expired session: %w", err)
		}
		return 0, apperrors.ErrUnauthenticated
	}
	return sess.UserID, nil
}

// Destroy ends the session. Destroying an unknown token is not an error.
func (s *Sessions) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, token)
}
