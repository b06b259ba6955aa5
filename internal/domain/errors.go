package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrMissingFields required request fields are absent
	ErrMissingFields = errors.New("missing required fields")

	// ErrInvalidTier unknown family-pack tier
	ErrInvalidTier = errors.New("invalid tier")

	// ErrInvalidCycle unknown billing cycle
	ErrInvalidCycle = errors.New("invalid billing cycle")

	// ErrInvalidAddon negative add-on count
	ErrInvalidAddon = errors.New("invalid addon count")

	// ErrReferralNotFound no referral code record exists
	ErrReferralNotFound = errors.New("referral code not found")

	// ErrReferralInactive the referral code is not active
	ErrReferralInactive = errors.New("referral code is inactive")

	// ErrSelfReferral the code owner equals the buyer
	ErrSelfReferral = errors.New("self-referral is not allowed")

	// ErrReferrerMissing the code owner's user record cannot be found
	ErrReferrerMissing = errors.New("referrer user not found")

	// ErrProviderTimeout the payment provider call exceeded its deadline
	ErrProviderTimeout = errors.New("payment provider timeout")

	// ErrInvalidSessionResponse the provider returned an unusable session
	ErrInvalidSessionResponse = errors.New("invalid checkout session response")

	// ErrSignatureInvalid webhook signature verification failed
	ErrSignatureInvalid = errors.New("webhook signature verification failed")

	// ErrAlreadyProcessed the session was already committed; not a failure
	ErrAlreadyProcessed = errors.New("session already processed")

	// ErrInternal internal error
	ErrInternal = errors.New("internal error")
)

// ReferralErrors groups the referral-validation failures so handlers can
// map any of them to a 400 without enumerating each sentinel.
var ReferralErrors = []error{ErrReferralNotFound, ErrReferralInactive, ErrSelfReferral, ErrReferrerMissing}

// IsReferralError reports whether err is one of the referral-validation failures.
func IsReferralError(err error) bool {
	for _, re := range ReferralErrors {
		if errors.Is(err, re) {
			return true
		}
	}
	return false
}

// IsInputError reports whether err is user-correctable and maps to a 400.
func IsInputError(err error) bool {
	return errors.Is(err, ErrMissingFields) ||
		errors.Is(err, ErrInvalidTier) ||
		errors.Is(err, ErrInvalidCycle) ||
		errors.Is(err, ErrInvalidAddon) ||
		IsReferralError(err)
}

// ExternalServiceError represents a failure in an external collaborator.
type ExternalServiceError struct {
	Service     string
	Code        string
	Message     string
	StatusCode  int
	OriginalErr error
}

// Error implements the error interface
func (e *ExternalServiceError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s service error [%s]: %s: %v", e.Service, e.Code, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("%s service error [%s]: %s", e.Service, e.Code, e.Message)
}

// Unwrap returns the original error
func (e *ExternalServiceError) Unwrap() error {
	return e.OriginalErr
}

// NewExternalServiceError creates a new external service error
func NewExternalServiceError(service, code, message string, statusCode int, err error) *ExternalServiceError {
	return &ExternalServiceError{
		Service:     service,
		Code:        code,
		Message:     message,
		StatusCode:  statusCode,
		OriginalErr: err,
	}
}
