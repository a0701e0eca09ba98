package db

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pq unique", &pq.Error{Code: "23505"}, true},
		{"pq wrapped", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), true},
		{"pq other", &pq.Error{Code: "23503"}, false},
		{"gorm translated", gorm.ErrDuplicatedKey, true},
		{"message only", errors.New(`ERROR: duplicate key value violates unique constraint "users_username_key"`), true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil, EntityUser, "op"))
	assert.ErrorIs(t, mapError(sql.ErrNoRows, EntityUser, "op"), apperrors.ErrUserNotFound)
	assert.ErrorIs(t, mapError(gorm.ErrRecordNotFound, EntitySession, "op"), ErrSessionNotFound)
	assert.ErrorIs(t, mapError(&pq.Error{Code: "23505"}, EntityUser, "op"), apperrors.ErrDuplicateUsername)

	other := errors.New("disk full")
	err := mapError(other, EntityLedger, "append")
	assert.ErrorIs(t, err, other)
	assert.EqualError(t, err, "append: disk full")
}
