package soap

import (
	"fmt"
	"strings"
)

// FaultKind is the closed classification of service-level faults the
// client reacts to. The retry decision upstream is a function of the
// kind only, never of the raw fault text.
type FaultKind int

const (
	FaultKindUnknown FaultKind = iota
	// FaultKindSession marks a rejected, expired or unknown session id.
	FaultKindSession
	// FaultKindService marks any other service-level rejection.
	FaultKindService
)

func (k FaultKind) String() string {
	switch k {
	case FaultKindSession:
		return "SESSION"
	case FaultKindService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Fault is a service-level rejection carried in the response body.
type Fault struct {
	Code   string
	Reason string
	Detail string
}

func (f *Fault) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] soap fault: %s", f.Kind().String(), f.Reason))
	if f.Code != "" {
		sb.WriteString(fmt.Sprintf(" (code: %s)", f.Code))
	}
	if f.Detail != "" {
		sb.WriteString(fmt.Sprintf(" detail: %s", f.Detail))
	}
	return sb.String()
}

// Kind classifies the fault. The device contract exposes session
// rejection only through the fault code/detail text, so the match on
// "SessionIdFault" here is a compatibility shim for that contract; it is
// the single place in the client where fault text is inspected.
func (f *Fault) Kind() FaultKind {
	if strings.Contains(f.Code, "SessionIdFault") || strings.Contains(f.Detail, "SessionIdFault") {
		return FaultKindSession
	}
	if f.Code != "" || f.Reason != "" {
		return FaultKindService
	}
	return FaultKindUnknown
}

// TransportError is a network-level failure: the request never produced
// a service response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
