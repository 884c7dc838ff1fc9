// Package ferrors defines the error taxonomy surfaced uniformly at every RPC
// boundary of the fabric: invalid input, missing entities, wrong-state
// operations, duplicates, deadlines, transient unavailability, and anything
// unexpected. Every Kind maps onto a gRPC status code (InvalidTransition and
// FailedPrecondition share one) so any component can be fronted by a real
// gRPC service later without inventing a second taxonomy.
package ferrors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies an Error for dispatch at an RPC boundary.
type Kind string

const (
	InvalidArgument   Kind = "invalid_argument"
	NotFound          Kind = "not_found"
	FailedPrecondition Kind = "failed_precondition"
	AlreadyExists     Kind = "already_exists"
	DeadlineExceeded  Kind = "deadline_exceeded"
	Unavailable       Kind = "unavailable"
	Internal          Kind = "internal"

	// InvalidTransition is pkg/statemachine's own distinguishable kind: a
	// requested state transition is not declared legal. It is never
	// collapsed into a generic Internal or FailedPrecondition error so
	// callers can branch on it directly.
	InvalidTransition Kind = "invalid_transition"
)

var kindToCode = map[Kind]codes.Code{
	InvalidArgument:    codes.InvalidArgument,
	NotFound:           codes.NotFound,
	FailedPrecondition: codes.FailedPrecondition,
	AlreadyExists:      codes.AlreadyExists,
	DeadlineExceeded:   codes.DeadlineExceeded,
	Unavailable:        codes.Unavailable,
	Internal:           codes.Internal,
	InvalidTransition:  codes.FailedPrecondition,
}

// Error is a structured, classified error. It is never used for normal
// control flow inside a component — only as the return value surfaced to
// the caller of an operation at a service boundary.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// GRPCStatus lets status.FromError(err) recover the right code directly.
func (e *Error) GRPCStatus() *status.Status {
	code, ok := kindToCode[e.Kind]
	if !ok {
		code = codes.Unknown
	}
	return status.New(code, e.Message)
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Invalid(format string, args ...interface{}) *Error {
	return New(InvalidArgument, format, args...)
}

func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, format, args...)
}

func Precondition(format string, args ...interface{}) *Error {
	return New(FailedPrecondition, format, args...)
}

func Exists(format string, args ...interface{}) *Error {
	return New(AlreadyExists, format, args...)
}

func Deadline(format string, args ...interface{}) *Error {
	return New(DeadlineExceeded, format, args...)
}

func Unavail(format string, args ...interface{}) *Error {
	return New(Unavailable, format, args...)
}

func Internalf(format string, args ...interface{}) *Error {
	return New(Internal, format, args...)
}

// InvalidTransitionf builds an InvalidTransition error, the kind
// pkg/statemachine.Machine.Transition returns when the requested move is
// not declared legal.
func InvalidTransitionf(format string, args ...interface{}) *Error {
	return New(InvalidTransition, format, args...)
}

// KindOf reports the Kind of err if it is (or wraps) an *Error, else Internal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
