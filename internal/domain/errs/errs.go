package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed set of failures the engine reports to callers.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidState      Kind = "invalid_state"
	KindInsufficientStock Kind = "insufficient_stock"
	KindInvalidQuantity   Kind = "invalid_quantity"
	KindValidation        Kind = "validation"
	KindPersistence       Kind = "persistence"
)

// Error carries a kind, the operation that failed and a user-safe message.
// Cause is kept for logs only and never shown to callers.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Kind)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Kind)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, op, message string) error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: defaultMessage(kind), Cause: err}
}

// KindOf returns the kind carried by err, or persistence for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// UserMessage is what may be shown to the caller: never a raw driver error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindPersistence {
		return defaultMessage(KindPersistence)
	}
	if strings.TrimSpace(e.Message) == "" {
		return defaultMessage(e.Kind)
	}
	return e.Message
}

func defaultMessage(kind Kind) string {
	switch kind {
	case KindNotFound:
		return "not found"
	case KindInvalidState:
		return "operation not allowed in the current state"
	case KindInsufficientStock:
		return "insufficient stock"
	case KindInvalidQuantity:
		return "invalid quantity"
	case KindValidation:
		return "invalid input"
	default:
		return "the operation could not be completed, please retry"
	}
}
