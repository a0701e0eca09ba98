package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// EntityType names the record an operation was looking for.
type EntityType string

const (
	EntityUser    EntityType = "user"
	EntitySession EntityType = "session"
	EntityLedger  EntityType = "transaction"
)

const pqUniqueViolation = "23505"

// IsUniqueViolation reports whether err comes from a unique constraint, whatever the
// driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// IsNotFound reports a missing row from either access layer.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, gorm.ErrRecordNotFound)
}

// mapError turns driver errors into the errors the services understand. Anything
// unrecognized is wrapped with the operation name and stays internal.
func mapError(err error, entity EntityType, operation string) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) {
		switch entity {
		case EntityUser:
			return apperrors.ErrUserNotFound
		case EntitySession:
			return ErrSessionNotFound
		}
	}
	if entity == EntityUser && IsUniqueViolation(err) {
		return apperrors.ErrDuplicateUsername
	}
	return fmt.Errorf("%s: %w", operation, err)
}
