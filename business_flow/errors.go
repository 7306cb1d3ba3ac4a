// Package businessflow contains the core business logic and use cases for short link workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Short link errors. Expired links surface as not found on the
	// public path so that callers cannot probe for expired codes.
	ErrShortLinkNotFound = errors.New("short link not found")
	ErrOriginalURLEmpty  = errors.New("original URL is required")
	ErrInvalidURLScheme  = errors.New("original URL must use http or https")
	ErrInvalidURL        = errors.New("original URL is not a valid URL")
	ErrDomainBlacklisted = errors.New("domain is blacklisted")

	// Listing errors
	ErrInvalidSkip  = errors.New("skip must be zero or positive")
	ErrInvalidLimit = errors.New("limit must be between 1 and 1000")
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

func IsShortLinkNotFound(err error) bool {
	return errors.Is(err, ErrShortLinkNotFound)
}

func IsOriginalURLEmpty(err error) bool {
	return errors.Is(err, ErrOriginalURLEmpty)
}

func IsInvalidURLScheme(err error) bool {
	return errors.Is(err, ErrInvalidURLScheme)
}

func IsInvalidURL(err error) bool {
	return errors.Is(err, ErrInvalidURL)
}

func IsDomainBlacklisted(err error) bool {
	return errors.Is(err, ErrDomainBlacklisted)
}

func IsInvalidSkip(err error) bool {
	return errors.Is(err, ErrInvalidSkip)
}

func IsInvalidLimit(err error) bool {
	return errors.Is(err, ErrInvalidLimit)
}
