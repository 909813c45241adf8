/**
 * @description
 * Sentinel errors shared by the ledger, settlement, order and partner layers.
 * Callers wrap them with fmt.Errorf("...: %w") and match with errors.Is; the HTTP
 * layer maps them onto status codes in one place.
 */

package domain

import "errors"

var (
	ErrWalletNotFound        = errors.New("wallet not found")
	ErrWalletExists          = errors.New("wallet already exists")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrOrderAlreadyCompleted = errors.New("order already completed")

	ErrOrderNotFound           = errors.New("order not found")
	ErrPartnerNotFound         = errors.New("pickup partner not found")
	ErrUserNotFound            = errors.New("user not found")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrPartnerInactive         = errors.New("pickup partner is inactive")
	ErrPartnerHasActiveOrders  = errors.New("pickup partner has active orders")
	ErrPartnerHasFunds         = errors.New("pickup partner wallet still holds funds")
	ErrPartnerHasPendingPay    = errors.New("pickup partner is owed pending payments")
	ErrDuplicatePartner        = errors.New("pickup partner with this email or phone already exists")
	ErrEmailTaken              = errors.New("email already registered")
	ErrInvalidCredentials      = errors.New("invalid email or password")
	ErrDuplicateReference      = errors.New("duplicate reference")
)

// ValidationError reports a malformed request field. It is rejected before any mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err (or anything it wraps) is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
