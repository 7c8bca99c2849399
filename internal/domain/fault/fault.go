// Package fault defines the error taxonomy shared by every domain package.
//
// A fault carries a Kind that the HTTP layer maps to a status code. Domain
// packages declare sentinel faults with the constructors below and typed
// errors implement Kinded; callers classify any wrapped error with KindOf.
package fault

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind classifies an error for translation at the transport boundary.
type Kind int

const (
	// KindInternal is an unexpected failure (persistence, programming error).
	KindInternal Kind = iota
	// KindInvalid is malformed input or a violated business rule.
	KindInvalid
	// KindUnauthorized means the caller identity could not be established.
	KindUnauthorized
	// KindForbidden means the caller is known but lacks the required role.
	KindForbidden
	// KindNotFound means a referenced entity does not exist.
	KindNotFound
	// KindConflict means the request clashes with existing state.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Kinded is implemented by errors that know their own Kind.
type Kinded interface {
	error
	FaultKind() Kind
}

// Error is a classified error with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// FaultKind implements Kinded.
func (e *Error) FaultKind() Kind { return e.Kind }

// Invalid returns a KindInvalid fault.
func Invalid(msg string) *Error { return &Error{Kind: KindInvalid, Message: msg} }

// Invalidf returns a formatted KindInvalid fault.
func Invalidf(format string, args ...any) *Error {
	return Invalid(fmt.Sprintf(format, args...))
}

// NotFound returns a KindNotFound fault.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Conflict returns a KindConflict fault.
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// Unauthorized returns a KindUnauthorized fault.
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }

// Forbidden returns a KindForbidden fault.
func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

// KindOf reports the Kind of the first Kinded error in err's chain.
// Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var k Kinded
	if errors.As(err, &k) {
		return k.FaultKind()
	}
	return KindInternal
}

// Message returns the client-facing message of the first Kinded error in
// err's chain, or err.Error() when none is classified.
func Message(err error) string {
	var k Kinded
	if errors.As(err, &k) {
		return k.Error()
	}
	return err.Error()
}
