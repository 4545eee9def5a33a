package economy

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the economy service.
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrSelfGiftNotAllowed    = errors.New("self gift not allowed")
	ErrUnknownGift           = errors.New("unknown gift")
	ErrUnknownTemplate       = errors.New("unknown template")
	ErrUnknownWallet         = errors.New("unknown wallet")
	ErrWalletExists          = errors.New("wallet already exists")
	ErrAlreadyUnlocked       = errors.New("template already unlocked")
	ErrAlreadyClaimedToday   = errors.New("daily bonus already claimed today")
	ErrDuplicatePaymentEvent = errors.New("duplicate payment event")
	ErrInvalidUserID         = errors.New("invalid user id")
	ErrInvalidGiftID         = errors.New("invalid gift id")
	ErrInvalidTemplateID     = errors.New("invalid template id")
	ErrInvalidEventID        = errors.New("invalid event id")
	ErrInvalidCoinAmount     = errors.New("invalid coin amount")
	ErrInvalidViewCount      = errors.New("invalid view count")
	ErrInvalidServiceConfig  = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
