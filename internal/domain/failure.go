package domain

import (
	"errors"
	"fmt"
)

type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureInvalidCredentialFormat
	FailureAuthentication
	FailureRateLimited
	FailureBadRequest
)

func (k FailureKind) String() string {
	switch k {
	case FailureInvalidCredentialFormat:
		return "invalid-credential-format"
	case FailureAuthentication:
		return "authentication"
	case FailureRateLimited:
		return "rate-limited"
	case FailureBadRequest:
		return "bad-request"
	default:
		return "unknown"
	}
}

// Failure is a classified provider failure. Status is zero when no HTTP
// response was received.
type Failure struct {
	Kind     FailureKind
	Provider Provider
	Status   int
	Message  string
	Err      error
}

func (f *Failure) Error() string {
	msg := f.Message
	if msg == "" && f.Err != nil {
		msg = f.Err.Error()
	}
	if msg == "" {
		msg = f.Kind.String()
	}

	if f.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", f.Provider, msg, f.Status)
	}

	return fmt.Sprintf("%s: %s", f.Provider, msg)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf reports the failure kind found in err's chain. Errors carrying no
// Failure are unknown.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}

	return FailureUnknown
}
