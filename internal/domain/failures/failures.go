// Package failures classifies repair errors into the pipeline's taxonomy.
package failures

import (
	"errors"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// Kind is a failure class; the orchestrator decides fallbacks by kind
type Kind string

// Failure kinds
const (
	NotFound         Kind = "notFound"
	ToolUnavailable  Kind = "toolUnavailable"
	NetworkError     Kind = "networkError"
	CorruptContainer Kind = "corruptContainer"
	AlreadySatisfied Kind = "alreadySatisfied"
	Internal         Kind = "internal"
)

// Error is a classified error. The wrapped errbuilder error carries the code
// the CLI turns into an exit status.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
	coded error
}

// New builds a classified error
func New(kind Kind, msg string, cause error) *Error {
	b := errbuilder.New().WithCode(kind.code()).WithMsg(msg)
	if cause != nil {
		b = b.WithCause(cause)
	}
	return &Error{Kind: kind, Msg: msg, Cause: cause, coded: b}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Cause.Error()
}

// Unwrap exposes both the coded error and the original cause
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.coded}
	}
	return []error{e.coded, e.Cause}
}

func (k Kind) code() errbuilder.ErrCode {
	switch k {
	case NotFound:
		return errbuilder.CodeNotFound
	case ToolUnavailable:
		return errbuilder.CodeFailedPrecondition
	case AlreadySatisfied:
		return errbuilder.CodeAlreadyExists
	default:
		return errbuilder.CodeInternal
	}
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
