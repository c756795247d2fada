package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Advertiser-related errors
	ErrAdvertiserNotFound  = errors.New("advertiser not found")
	ErrAdvertiserInactive  = errors.New("advertiser is inactive")
	ErrCustomerIDMismatch  = errors.New("customer id does not match advertiser")
	ErrClientIPRequired    = errors.New("client ip is required")
	ErrDestinationRequired = errors.New("destination url is required")

	// Blocking rule errors
	ErrBlockingRuleNotFound      = errors.New("blocking rule not found")
	ErrBlockingRuleUpdateMissing = errors.New("at least one field must be provided for update")

	// Blocking pipeline errors
	ErrConfirmFault = errors.New("upstream accepted block but local confirmation failed")

	// Report errors
	ErrInvalidDateRange  = errors.New("start date must not be after end date")
	ErrInvalidDateFormat = errors.New("date must be RFC3339 or YYYY-MM-DD")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsAdvertiserNotFound(err error) bool {
	return errors.Is(err, ErrAdvertiserNotFound)
}

func IsAdvertiserInactive(err error) bool {
	return errors.Is(err, ErrAdvertiserInactive)
}

func IsCustomerIDMismatch(err error) bool {
	return errors.Is(err, ErrCustomerIDMismatch)
}

func IsClientIPRequired(err error) bool {
	return errors.Is(err, ErrClientIPRequired)
}

func IsDestinationRequired(err error) bool {
	return errors.Is(err, ErrDestinationRequired)
}

func IsBlockingRuleNotFound(err error) bool {
	return errors.Is(err, ErrBlockingRuleNotFound)
}

func IsBlockingRuleUpdateMissing(err error) bool {
	return errors.Is(err, ErrBlockingRuleUpdateMissing)
}

func IsConfirmFault(err error) bool {
	return errors.Is(err, ErrConfirmFault)
}

func IsInvalidDateRange(err error) bool {
	return errors.Is(err, ErrInvalidDateRange)
}

func IsInvalidDateFormat(err error) bool {
	return errors.Is(err, ErrInvalidDateFormat)
}
