package provider

import (
	"errors"
	"fmt"
)

// Error codes the engine reacts to specifically. Any other code is treated
// as a generic step failure.
const (
	CodeCannotResendYet     = "cannot_resend_yet"
	CodeDisconnectedAccount = "disconnected_account"
	CodeNotConfigured       = "not_configured"
	CodeRateLimited         = "rate_limited"
	CodeNotFound            = "not_found"
)

// Error is a typed provider API error.
type Error struct {
	Code   string
	Detail string
	Status int // HTTP status, 0 when not applicable
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("provider error %s", e.Code)
	}
	return fmt.Sprintf("provider error %s: %s", e.Code, e.Detail)
}

// IsCode reports whether err is a provider error with the given code.
func IsCode(err error, code string) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == code
}
