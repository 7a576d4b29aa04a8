package notification

import (
	"errors"
	"fmt"
)

// Gateway error codes. The first three form the "destination permanently
// invalid" family; anything else is treated as transient.
const (
	CodeInvalidRegistrationToken = "messaging/invalid-registration-token"
	CodeRegistrationNotFound     = "messaging/registration-token-not-registered"
	CodeInvalidArgument          = "messaging/invalid-argument"

	CodeUnavailable = "messaging/unavailable"
	CodeInternal    = "messaging/internal-error"
)

// IsInvalidDestination reports whether a gateway error code means the token
// can never be delivered to again.
func IsInvalidDestination(code string) bool {
	switch code {
	case CodeInvalidRegistrationToken, CodeRegistrationNotFound, CodeInvalidArgument:
		return true
	default:
		return false
	}
}

// Message is one (destination, payload) pair handed to a push gateway.
type Message struct {
	Token   string
	Payload Payload
}

// SendResult is the per-item outcome reported by a gateway.
type SendResult struct {
	Success   bool
	MessageID string
	ErrorCode string
	Err       error
}

// BatchResponse mirrors the gateway's multicast result. Responses are in input order.
type BatchResponse struct {
	SuccessCount int
	FailureCount int
	Responses    []SendResult
}

// SendError carries a gateway error code for single sends and whole-call failures.
type SendError struct {
	Code string
	Err  error
}

func (e *SendError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the gateway code from err, or "" when it carries none.
func ErrorCode(err error) string {
	var se *SendError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
