package balance

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies client errors into the failure domains callers react
// to. Every error produced by this package is an *Error with one kind.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConnection marks transport-level failures; never retried here.
	KindConnection
	// KindAuth marks credential or token-decryption failures, fatal to
	// session establishment.
	KindAuth
	// KindSession marks a session that stayed invalid even after the
	// single reopen-and-retry.
	KindSession
	// KindRequest marks a non-success outcome of an individual call.
	KindRequest
	// KindDevice marks tare/zero/weigh and method-lookup failures.
	KindDevice
	// KindDosingHead marks dosing-head read/write failures.
	KindDosingHead
	// KindDosing marks dosing job and job-list failures, including
	// timeouts and unclear completion.
	KindDosing
	// KindDoor marks draft-shield failures.
	KindDoor
	// KindNotification marks non-timeout failures while polling.
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "CONNECTION"
	case KindAuth:
		return "AUTH"
	case KindSession:
		return "SESSION"
	case KindRequest:
		return "REQUEST"
	case KindDevice:
		return "DEVICE"
	case KindDosingHead:
		return "DOSING_HEAD"
	case KindDosing:
		return "DOSING"
	case KindDoor:
		return "DOOR"
	case KindNotification:
		return "NOTIFICATION"
	default:
		return "UNKNOWN"
	}
}

// Error is the client's error type, carrying the service outcome context
// alongside the classification.
type Error struct {
	Kind         Kind
	Message      string
	Outcome      string
	ErrorMessage string
	ErrorState   string
	Original     error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Kind.String(), e.Message))
	if e.Outcome != "" {
		sb.WriteString(fmt.Sprintf(" (outcome: %s)", e.Outcome))
	}
	if e.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf(" service error: %s", e.ErrorMessage))
	}
	if e.ErrorState != "" {
		sb.WriteString(fmt.Sprintf(" service state: %s", e.ErrorState))
	}
	if e.Original != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Original))
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Original
}

// NewError creates a classified error.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// WrapError wraps a cause with a classification.
func WrapError(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Original: cause}
}

// IsKind reports whether err is (or wraps) a client error of the kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// AsError extracts the client error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// reclassify narrows a request-level error to a more specific kind while
// keeping the service outcome context. Errors of other kinds pass
// through untouched.
func reclassify(err error, kind Kind, msg string) error {
	e, ok := AsError(err)
	if !ok || e.Kind != KindRequest {
		return err
	}
	return &Error{
		Kind:         kind,
		Message:      msg,
		Outcome:      e.Outcome,
		ErrorMessage: e.ErrorMessage,
		ErrorState:   e.ErrorState,
		Original:     err,
	}
}
