package domain

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how callers should react to them.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
	KindNotFound        Kind = "not_found"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindPaymentRequired Kind = "payment_required"
	KindRateLimited     Kind = "rate_limited"
	KindInvariant       Kind = "invariant"
	KindInternal        Kind = "internal"
)

// Error is a domain failure with a stable, machine-readable code.
// Two errors are equal under errors.Is when their codes match.
type Error struct {
	Code string
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMsg returns a copy of e carrying a more specific message.
func (e *Error) WithMsg(format string, args ...any) *Error {
	return &Error{Code: e.Code, Kind: e.Kind, Msg: fmt.Sprintf(format, args...)}
}

func newErr(code string, kind Kind, msg string) *Error {
	return &Error{Code: code, Kind: kind, Msg: msg}
}

var (
	// Validation
	ErrInvalidProvider = newErr("INVALID_PROVIDER", KindValidation, "invalid provider, use bkash or nagad")
	ErrInvalidAmount   = newErr("INVALID_AMOUNT", KindValidation, "invalid amount")
	ErrMissingField    = newErr("MISSING_FIELD", KindValidation, "required field missing")
	ErrInvalidAction   = newErr("INVALID_ACTION", KindValidation, `invalid action, use "verify" or "reject"`)
	ErrInvalidArgument = newErr("INVALID_ARGUMENT", KindValidation, "invalid argument")

	// Conflicts
	ErrDuplicateTransaction = newErr("DUPLICATE_TRANSACTION", KindConflict, "transaction id already submitted")
	ErrAlreadyResolved      = newErr("ALREADY_RESOLVED", KindConflict, "payment already resolved")
	ErrSlugTaken            = newErr("SLUG_TAKEN", KindConflict, "slug already in use")

	// Not found
	ErrTenantNotFound  = newErr("TENANT_NOT_FOUND", KindNotFound, "coaching center not found")
	ErrPaymentNotFound = newErr("PAYMENT_NOT_FOUND", KindNotFound, "payment not found")
	ErrNotFound        = newErr("NOT_FOUND", KindNotFound, "entity not found")

	// Access
	ErrUnauthenticated      = newErr("UNAUTHENTICATED", KindUnauthenticated, "authentication required")
	ErrForbidden            = newErr("FORBIDDEN", KindForbidden, "role not permitted")
	ErrScopeRequired        = newErr("COACHING_SCOPE_REQUIRED", KindValidation, "missing coaching scope")
	ErrSubscriptionRequired = newErr("SUBSCRIPTION_REQUIRED", KindPaymentRequired, "instance restricted: subscription required")
	ErrRateLimited          = newErr("RATE_LIMITED", KindRateLimited, "too many submissions, try again later")

	// Invariants
	ErrActiveWithoutWindow = newErr("INVARIANT_VIOLATION", KindInvariant, "active subscription requires startAt and endAt")

	// Infrastructure
	ErrInvalidExecContext = newErr("INVALID_EXEC_CONTEXT", KindInternal, "invalid execution context")
	ErrOperationFailed    = newErr("OPERATION_FAILED", KindInternal, "database operation failed")
	ErrReadDatabaseRow    = newErr("READ_ROW_FAILED", KindInternal, "failed to read database row")
)

// CodeOf returns the stable code carried by err, or "INTERNAL".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "INTERNAL"
}

// KindOf returns the kind of err; unknown errors are internal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
