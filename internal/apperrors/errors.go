package apperrors

import (
	"errors"
	"fmt"
)

// Category groups errors by how they are reported to the caller.
type Category int

const (
	// CategoryInternal covers anything unexpected; details never leave the server.
	CategoryInternal Category = iota
	// CategoryValidation covers malformed or missing input.
	CategoryValidation
	// CategoryBusiness covers well-formed requests that break a trading rule.
	CategoryBusiness
	// CategoryCollaborator covers failures of the quote service.
	CategoryCollaborator
	// CategoryAuth covers credential and session failures.
	CategoryAuth
	// CategoryNotFound covers missing records.
	CategoryNotFound
)

func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryBusiness:
		return "business"
	case CategoryCollaborator:
		return "collaborator"
	case CategoryAuth:
		return "auth"
	case CategoryNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error codes for API responses
const (
	// 40xx - input validation
	CodeInvalidRequest       = 4000
	CodeSymbolRequired       = 4001
	CodeSharesNotInteger     = 4002
	CodeSharesNotPositive    = 4003
	CodeDepositNotInteger    = 4004
	CodeDepositNotPositive   = 4005
	CodeUsernameRequired     = 4006
	CodePasswordRequired     = 4007
	CodeConfirmationRequired = 4008
	CodePasswordMismatch     = 4009
	CodePasswordTooLong      = 4010
	CodeSharesTooLarge       = 4011
	CodeDepositTooLarge      = 4012

	// 41xx - trading rules
	CodeInsufficientCash   = 4101
	CodeSymbolNotHeld      = 4102
	CodeInsufficientShares = 4103
	CodeNoHistory          = 4104
	CodeDuplicateUsername  = 4105
	CodeCashLimitExceeded  = 4106

	// 42xx - collaborators
	CodeQuoteUnavailable = 4201

	// 43xx - credentials and sessions
	CodeInvalidCredentials = 4301
	CodeInvalidPassword    = 4302
	CodeUnauthenticated    = 4303

	CodeUserNotFound = 4404

	CodeInternal = 5000
)

// Validation errors
var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrSymbolRequired       = errors.New("symbol is required")
	ErrSharesNotInteger     = errors.New("shares must be an integer")
	ErrSharesNotPositive    = errors.New("shares must be at least 1")
	ErrDepositNotInteger    = errors.New("deposit must be an integer")
	ErrDepositNotPositive   = errors.New("deposit must be at least 1")
	ErrUsernameRequired     = errors.New("username is required")
	ErrPasswordRequired     = errors.New("password is required")
	ErrConfirmationRequired = errors.New("confirmation password is required")
	ErrPasswordMismatch     = errors.New("confirmation password does not match")
	ErrPasswordTooLong      = errors.New("password must be at most 72 bytes")
	ErrSharesTooLarge       = errors.New("shares is too large")
	ErrDepositTooLarge      = errors.New("deposit is too large")
)

// Business rule errors
var (
	ErrInsufficientCash   = errors.New("insufficient cash")
	ErrSymbolNotHeld      = errors.New("symbol is not held")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoHistory          = errors.New("no history")
	ErrDuplicateUsername  = errors.New("username is already in use")
	ErrCashLimitExceeded  = errors.New("cash balance would exceed the account limit")
)

// Collaborator and credential errors
var (
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrInvalidCredentials never says which half of the credential was wrong.
	ErrInvalidCredentials = errors.New("invalid username and/or password")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrUnauthenticated    = errors.New("login required")
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInternal     = errors.New("internal server error")
)

type classified struct {
	err      error
	code     int
	category Category
}

var table = []classified{
	{ErrInvalidRequest, CodeInvalidRequest, CategoryValidation},
	{ErrSymbolRequired, CodeSymbolRequired, CategoryValidation},
	{ErrSharesNotInteger, CodeSharesNotInteger, CategoryValidation},
	{ErrSharesNotPositive, CodeSharesNotPositive, CategoryValidation},
	{ErrDepositNotInteger, CodeDepositNotInteger, CategoryValidation},
	{ErrDepositNotPositive, CodeDepositNotPositive, CategoryValidation},
	{ErrUsernameRequired, CodeUsernameRequired, CategoryValidation},
	{ErrPasswordRequired, CodePasswordRequired, CategoryValidation},
	{ErrConfirmationRequired, CodeConfirmationRequired, CategoryValidation},
	{ErrPasswordMismatch, CodePasswordMismatch, CategoryValidation},
	{ErrPasswordTooLong, CodePasswordTooLong, CategoryValidation},
	{ErrSharesTooLarge, CodeSharesTooLarge, CategoryValidation},
	{ErrDepositTooLarge, CodeDepositTooLarge, CategoryValidation},
	{ErrInsufficientCash, CodeInsufficientCash, CategoryBusiness},
	{ErrSymbolNotHeld, CodeSymbolNotHeld, CategoryBusiness},
	{ErrInsufficientShares, CodeInsufficientShares, CategoryBusiness},
	{ErrNoHistory, CodeNoHistory, CategoryBusiness},
	{ErrDuplicateUsername, CodeDuplicateUsername, CategoryBusiness},
	{ErrCashLimitExceeded, CodeCashLimitExceeded, CategoryBusiness},
	{ErrQuoteUnavailable, CodeQuoteUnavailable, CategoryCollaborator},
	{ErrInvalidCredentials, CodeInvalidCredentials, CategoryAuth},
	{ErrInvalidPassword, CodeInvalidPassword, CategoryAuth},
	{ErrUnauthenticated, CodeUnauthenticated, CategoryAuth},
	{ErrUserNotFound, CodeUserNotFound, CategoryNotFound},
}

func lookup(err error) (classified, bool) {
	if err == nil {
		return classified{}, false
	}
	for _, c := range table {
		if errors.Is(err, c.err) {
			return c, true
		}
	}
	return classified{}, false
}

// Code returns the API error code for err. Unknown errors map to CodeInternal.
func Code(err error) int {
	if c, ok := lookup(err); ok {
		return c.code
	}
	return CodeInternal
}

// CategoryOf returns the reporting category for err.
func CategoryOf(err error) Category {
	if c, ok := lookup(err); ok {
		return c.category
	}
	return CategoryInternal
}

// Public returns the sentinel behind err, the only error whose message may be shown to a
// user. Internal errors collapse into ErrInternal.
func Public(err error) error {
	if c, ok := lookup(err); ok {
		return c.err
	}
	return ErrInternal
}

// InsufficientCashError carries the amounts behind a rejected buy.
type InsufficientCashError struct {
	UserID    int64
	Symbol    string
	Shares    int64
	Required  string
	Available string
}

func (e *InsufficientCashError) Error() string {
	return fmt.Sprintf("insufficient cash for user %d to buy %d %s: required %s, available %s",
		e.UserID, e.Shares, e.Symbol, e.Required, e.Available)
}

// Is reports ErrInsufficientCash as the matching sentinel.
func (e *InsufficientCashError) Is(target error) bool {
	return target == ErrInsufficientCash
}

// LogFields returns a map of fields for structured logging
func (e *InsufficientCashError) LogFields() map[string]any {
	return map[string]any{
		"error_type": "insufficient_cash",
		"user_id":    e.UserID,
		"symbol":     e.Symbol,
		"shares":     e.Shares,
		"required":   e.Required,
		"available":  e.Available,
		"error_code": CodeInsufficientCash,
	}
}

// InsufficientSharesError carries the position behind a rejected sell.
type InsufficientSharesError struct {
	UserID    int64
	Symbol    string
	Requested int64
	Held      int64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares for user %d in %s: requested %d, held %d",
		e.UserID, e.Symbol, e.Requested, e.Held)
}

// Is reports ErrInsufficientShares as the matching sentinel.
func (e *InsufficientSharesError) Is(target error) bool {
	return target == ErrInsufficientShares
}

// LogFields returns a map of fields for structured logging
func (e *InsufficientSharesError) LogFields() map[string]any {
	return map[string]any{
		"error_type": "insufficient_shares",
		"user_id":    e.UserID,
		"symbol":     e.Symbol,
		"requested":  e.Requested,
		"held":       e.Held,
		"error_code": CodeInsufficientShares,
	}
}

// QuoteError wraps a failed quote lookup.
type QuoteError struct {
	Symbol string
	Err    error
}

func (e *QuoteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("can't get %s quote", e.Symbol)
	}
	return fmt.Sprintf("can't get %s quote: %v", e.Symbol, e.Err)
}

// Is reports ErrQuoteUnavailable as the matching sentinel.
func (e *QuoteError) Is(target error) bool {
	return target == ErrQuoteUnavailable
}

func (e *QuoteError) Unwrap() error {
	return e.Err
}

// LogFields returns a map of fields for structured logging
func (e *QuoteError) LogFields() map[string]any {
	fields := map[string]any{
		"error_type": "quote_unavailable",
		"symbol":     e.Symbol,
		"error_code": CodeQuoteUnavailable,
	}
	if e.Err != nil {
		fields["error"] = e.Err.Error()
	}
	return fields
}

// LogFields extracts structured fields from err when it provides them.
func LogFields(err error) map[string]any {
	var lf interface{ LogFields() map[string]any }
	if errors.As(err, &lf) {
		return lf.LogFields()
	}
	fields := map[string]any{"error_code": Code(err)}
	if err != nil {
		fields["error"] = err.Error()
	}
	return fields
}
