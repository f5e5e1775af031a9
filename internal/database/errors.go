package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

const (
	codeUniqueViolation  = "23505"
	codeLockNotAvailable = "55P03"
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case codeLockNotAvailable:
			return ErrorClassTransient
		case codeUniqueViolation, "23503", "23502", "23514":
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

// IsRetryable reports whether the caller may retry the whole operation.
// An order number collision is retryable with a freshly generated number.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrOrderNumberConflict) {
		return true
	}
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally on the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrProductNotFound         = errors.New("product not found")
	ErrCategoryNotFound        = errors.New("category not found")
	ErrOrderNotFound           = errors.New("order not found")
	ErrSettingsNotFound        = errors.New("site settings not saved")
	ErrDiscountNotFound        = errors.New("discount code not found")
	ErrOrderNumberConflict     = errors.New("order number conflict")
	ErrOrderAlreadyPlaced      = errors.New("order already placed for this checkout")
	ErrDuplicateUsername       = errors.New("username already taken")
	ErrDuplicateDiscountCode   = errors.New("discount code already exists")
	ErrDiscountInvalid         = errors.New("discount code is not valid")
	ErrDiscountExhausted       = errors.New("discount code usage limit reached")
	ErrInvalidCredentials      = errors.New("invalid username or password")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)
