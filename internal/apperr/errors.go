// Package apperr defines the typed failures returned by the core services.
// Every error that leaves a service is an *Error carrying a Kind, so callers
// such as HTTP handlers can map it to a response without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAlreadyExists
	KindUnauthorized
	KindInvalidState
	KindInvalidAssignee
	KindInvalidCredentials
	KindInvalidToken
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidState:
		return "invalid_state"
	case KindInvalidAssignee:
		return "invalid_assignee"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindInvalidToken:
		return "invalid_token"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// Reason explains an authorization denial.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonNotParticipant
	ReasonInsufficientRole
	ReasonTargetInvalid
	ReasonAlreadyParticipant
	ReasonManagerIrremovable
)

func (r Reason) String() string {
	switch r {
	case ReasonNotParticipant:
		return "not_participant"
	case ReasonInsufficientRole:
		return "insufficient_role"
	case ReasonTargetInvalid:
		return "target_invalid"
	case ReasonAlreadyParticipant:
		return "already_participant"
	case ReasonManagerIrremovable:
		return "manager_irremovable"
	default:
		return ""
	}
}

// Error is the single failure type produced by the service layer.
type Error struct {
	Kind   Kind
	Reason Reason
	Op     string // operation that failed, e.g. "job.create"
	Msg    string
	Err    error // underlying cause, only set for infrastructure failures
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Reason != ReasonNone {
		msg = fmt.Sprintf("%s (%s)", msg, e.Reason)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind. A target that
// also carries a Reason must match it too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == ReasonNone || t.Reason == e.Reason
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrInvalidState       = &Error{Kind: KindInvalidState}
	ErrInvalidAssignee    = &Error{Kind: KindInvalidAssignee}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrInvalidToken       = &Error{Kind: KindInvalidToken}
	ErrInfrastructure     = &Error{Kind: KindInfrastructure}
)

func NotFound(op, msg string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}

func AlreadyExists(op, msg string) *Error {
	return &Error{Kind: KindAlreadyExists, Op: op, Msg: msg}
}

// AlreadyParticipant reports that the target user is already an active
// participant of the job.
func AlreadyParticipant(op string) *Error {
	return &Error{Kind: KindAlreadyExists, Op: op, Msg: "user is already a participant", Reason: ReasonAlreadyParticipant}
}

func Unauthorized(op string, reason Reason) *Error {
	return &Error{Kind: KindUnauthorized, Op: op, Msg: "not authorized", Reason: reason}
}

func InvalidState(op, msg string) *Error {
	return &Error{Kind: KindInvalidState, Op: op, Msg: msg}
}

func InvalidAssignee(op string) *Error {
	return &Error{Kind: KindInvalidAssignee, Op: op, Msg: "assignee is not an active participant of the job"}
}

func InvalidCredentials(op string) *Error {
	return &Error{Kind: KindInvalidCredentials, Op: op, Msg: "invalid credentials"}
}

func InvalidToken(op string) *Error {
	return &Error{Kind: KindInvalidToken, Op: op, Msg: "invalid token"}
}

// Infrastructure wraps a storage, transaction or timeout failure. The caller
// may retry; this layer never does.
func Infrastructure(op string, err error) *Error {
	return &Error{Kind: KindInfrastructure, Op: op, Msg: "infrastructure failure", Err: err}
}

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ReasonOf returns the denial reason carried by err, if any.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonNone
}
