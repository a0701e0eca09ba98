package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/atharvakonge/paper-trader/internal/db"
	"github.com/atharvakonge/paper-trader/internal/logger"
	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockHasher is a mock implementation of Hasher
type MockHasher struct {
	mock.Mock
}

func (m *MockHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockHasher) Verify(hash, password string) bool {
	args := m.Called(hash, password)
	return args.Bool(0)
}

var (
	opening     = decimal.RequireFromString("10000.00")
	longPass    = strings.Repeat("p", MaxPasswordBytes+1)
	longestPass = strings.Repeat("p", MaxPasswordBytes)
)

func newService(t *testing.T) (*Service, *db.MemoryStore) {
	t.Helper()
	store := db.NewMemoryStore()
	return NewService(store, NewBcryptHasher(bcrypt.MinCost), opening, logger.NewNoopLogger()), store
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, h.Verify(hash, "s3cret"))
	assert.False(t, h.Verify(hash, "S3cret"))
	assert.False(t, h.Verify("not-a-hash", "s3cret"))

	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).Cost)
}

func TestBcryptHasherPasswordLength(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash(longestPass)
	require.NoError(t, err)
	assert.True(t, h.Verify(hash, longestPass))

	_, err = h.Hash(longPass)
	assert.ErrorIs(t, err, apperrors.ErrPasswordTooLong)
	assert.Equal(t, apperrors.CategoryValidation, apperrors.CategoryOf(err))
}

func TestRegisterLongestPassword(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "dora", longestPass, longestPass)
	require.NoError(t, err)
	_, err = svc.Login(ctx, "dora", longestPass)
	assert.NoError(t, err)
}

func TestRegisterValidationOrder(t *testing.T) {
	svc, _ := newService(t)
	tests := []struct {
		name                             string
		username, password, confirmation string
		want                             error
	}{
		{"all missing", "", "", "", apperrors.ErrUsernameRequired},
		{"blank username", "   ", "pw", "pw", apperrors.ErrUsernameRequired},
		{"password missing", "alice", "", "", apperrors.ErrPasswordRequired},
		{"confirmation missing", "alice", "pw", "", apperrors.ErrConfirmationRequired},
		{"mismatch", "alice", "pw", "px", apperrors.ErrPasswordMismatch},
		{"too long", "alice", longPass, longPass, apperrors.ErrPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.password, tt.confirmation)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegisterCreatesFundedAccount(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "pw", "pw")
	require.NoError(t, err)
	assert.True(t, u.Cash.Equal(opening))
	assert.NotEqual(t, "pw", u.PasswordHash)

	events, err := store.ListCashEvents(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.CashOpening, events[0].Kind)
	assert.True(t, events[0].Amount.Equal(opening))
}

func TestRegisterDuplicateLeavesFirstAccount(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, "alice", "pw1", "pw1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "pw2", "pw2")
	assert.ErrorIs(t, err, apperrors.ErrDuplicateUsername)

	got, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.PasswordHash, got.PasswordHash)

	_, err = svc.Login(ctx, "alice", "pw1")
	assert.NoError(t, err)
}

func TestRegisterHashFailure(t *testing.T) {
	h := new(MockHasher)
	h.On("Hash", "pw").Return("", errors.New("entropy exhausted"))

	store := db.NewMemoryStore()
	svc := NewService(store, h, opening, logger.NewNoopLogger())

	_, err := svc.Register(context.Background(), "alice", "pw", "pw")
	assert.EqualError(t, err, "entropy exhausted")
	h.AssertExpectations(t)

	_, err = store.GetUserByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestLogin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, "bob", "hunter2", "hunter2")
	require.NoError(t, err)

	got, err := svc.Login(ctx, "bob", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Login(ctx, "bob", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "hunter2")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "", "hunter2")
	assert.ErrorIs(t, err, apperrors.ErrUsernameRequired)

	_, err = svc.Login(ctx, "bob", "")
	assert.ErrorIs(t, err, apperrors.ErrPasswordRequired)
}

func TestChangePassword(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, "carol", "old", "old")
	require.NoError(t, err)

	tests := []struct {
		name                            string
		current, password, confirmation string
		want                            error
	}{
		{"current missing", "", "new", "new", apperrors.ErrPasswordRequired},
		{"current wrong", "nope", "new", "new", apperrors.ErrInvalidPassword},
		{"new missing", "old", "", "new", apperrors.ErrPasswordRequired},
		{"confirmation missing", "old", "new", "", apperrors.ErrConfirmationRequired},
		{"mismatch", "old", "new", "other", apperrors.ErrPasswordMismatch},
		{"too long", "old", longPass, longPass, apperrors.ErrPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ChangePassword(ctx, u.ID, tt.current, tt.password, tt.confirmation)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	require.NoError(t, svc.ChangePassword(ctx, u.ID, "old", "new", "new"))
	_, err = svc.Login(ctx, "carol", "old")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "carol", "new")
	assert.NoError(t, err)
}

func TestSessions(t *testing.T) {
	store := db.NewMemoryStore()
	svc := NewService(store, NewBcryptHasher(bcrypt.MinCost), opening, logger.NewNoopLogger())
	ctx := context.Background()
	u, err := svc.Register(ctx, "dave", "pw", "pw")
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	sessions := NewSessions(store, time.Hour)
	sessions.now = func() time.Time { return now }

	sess, err := sessions.Create(ctx, u.ID)
	require.NoError(t, err)

	id, err := sessions.Resolve(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	_, err = sessions.Resolve(ctx, "not-a-token")
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	now = now.Add(2 * time.Hour)
	_, err = sessions.Resolve(ctx, sess.Token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	_, err = store.GetSession(ctx, sess.Token)
	assert.ErrorIs(t, err, db.ErrSessionNotFound)

	assert.NoError(t, sessions.Destroy(ctx, ""))
}

func TestSessionsDestroy(t *testing.T) {
	store := db.NewMemoryStore()
	u := db.CreateTestUser(t, store, "erin", "10000")
	sessions := NewSessions(store, time.Hour)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, sessions.Destroy(ctx, sess.Token))

	_, err = sessions.Resolve(ctx, sess.Token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}
