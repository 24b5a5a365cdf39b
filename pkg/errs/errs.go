// Package errs implements the closed error taxonomy the AL core reports
// through: parse failures, authentication failures, policy violations,
// timeouts, resource exhaustion, platform failures, and ignored-but-known
// conditions. Every kind wraps an underlying cause so %w/errors.Is still
// works against it.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories the AL core can report.
type Kind string

const (
	// KindMalformed marks a parse failure: truncation, unknown length, or
	// an attribute value out of range.
	KindMalformed Kind = "malformed"
	// KindUnauthenticated marks an HMAC or authenticator mismatch in WSC.
	KindUnauthenticated Kind = "unauthenticated"
	// KindPolicy marks a rule violation such as a duplicate registrar or an
	// unsupported auth/encryption combination.
	KindPolicy Kind = "policy"
	// KindTimeout marks an expected response that never arrived.
	KindTimeout Kind = "timeout"
	// KindResourceExhausted marks a full queue or timer table.
	KindResourceExhausted Kind = "resource_exhausted"
	// KindPlatformError marks a failed call into the platform trait
	// surface (raw send, crypto primitive).
	KindPlatformError Kind = "platform_error"
	// KindIgnored marks a known-but-inapplicable condition, such as an
	// unrecognized TLV tag.
	KindIgnored Kind = "ignored"
)

// Error is the concrete error type every AL-core failure is wrapped in.
type Error struct {
	Kind Kind
	Op   string // component/operation that raised it, e.g. "tlv.Parse"
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// do errors.Is(err, errs.Malformed("", nil)) style checks without matching Op.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func newf(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Malformed reports a parse failure.
func Malformed(op string, err error) *Error { return newf(KindMalformed, op, err) }

// Unauthenticated reports an authentication failure.
func Unauthenticated(op string, err error) *Error { return newf(KindUnauthenticated, op, err) }

// Policy reports a policy violation.
func Policy(op string, err error) *Error { return newf(KindPolicy, op, err) }

// Timeout reports a response timeout.
func Timeout(op string, err error) *Error { return newf(KindTimeout, op, err) }

// ResourceExhausted reports a full bounded resource.
func ResourceExhausted(op string, err error) *Error { return newf(KindResourceExhausted, op, err) }

// PlatformError reports a platform trait failure.
func PlatformError(op string, err error) *Error { return newf(KindPlatformError, op, err) }

// Ignored reports a known-but-inapplicable condition. Not logged at WARNING.
func Ignored(op string, err error) *Error { return newf(KindIgnored, op, err) }

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
