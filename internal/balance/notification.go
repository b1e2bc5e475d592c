package balance

import (
	"github.com/xiaomguo/sdl2-solid-dosing/internal/wire"
)

// Notification element names of the dosing automation contract.
const (
	noteNameAction        = "DosingAutomationActionAsyncNotification"
	noteNameJobFinished   = "DosingAutomationJobFinishedAsyncNotification"
	noteNameListFinished  = "DosingAutomationFinishedAsyncNotification"
	noteNameBufferOverrun = "BufferOverrunEvent"
)

// notification is the tagged-variant view of one polled event. The poll
// loop branches on the concrete type, one case per notification kind.
type notification interface {
	commandID() int64
	outcome() string
	errorDetail() string
}

type noteHeader struct {
	cmd          int64
	out          string
	dosingError  string
	errorMessage string
}

func (h noteHeader) commandID() int64 { return h.cmd }
func (h noteHeader) outcome() string  { return h.out }

func (h noteHeader) errorDetail() string {
	if h.errorMessage != "" {
		return h.errorMessage
	}
	return h.dosingError
}

// noteAction asks the client to confirm an operator-style action (e.g.
// vial presence) before the job proceeds.
type noteAction struct {
	noteHeader
	actionType string
	actionItem string
}

// noteJobFinished reports one finished dosing job, optionally carrying
// the measured net mass in milligrams.
type noteJobFinished struct {
	noteHeader
	netMilligrams *float64
}

// noteListFinished reports completion of the whole job list.
type noteListFinished struct {
	noteHeader
	failureReason      string
	failureDescription string
}

type noteBufferOverrun struct {
	noteHeader
}

type noteUnknown struct {
	noteHeader
	name string
}

func decodeNotification(n *wire.Node) notification {
	header := noteHeader{
		out:          n.ChildText("Outcome"),
		dosingError:  n.ChildText("DosingError"),
		errorMessage: n.ChildText("ErrorMessage"),
	}
	if id, err := n.Int("CommandId"); err == nil {
		header.cmd = id
	} else {
		header.cmd = -1
	}

	switch n.Name {
	case noteNameAction:
		return &noteAction{
			noteHeader: header,
			actionType: n.ChildText("DosingJobActionType"),
			actionItem: n.ChildText("ActionItem"),
		}
	case noteNameJobFinished:
		note := &noteJobFinished{noteHeader: header}
		net := n.Child("DosingResult").Child("WeightSample").Child("NetWeight")
		if value, err := net.Float("Value"); err == nil {
			if mg, err := Unit(net.ChildText("Unit")).Milligrams(value); err == nil {
				note.netMilligrams = &mg
			}
		}
		return note
	case noteNameListFinished:
		return &noteListFinished{
			noteHeader:         header,
			failureReason:      n.ChildText("FailureReason"),
			failureDescription: n.ChildText("FailureDescription"),
		}
	case noteNameBufferOverrun:
		return &noteBufferOverrun{noteHeader: header}
	default:
		return &noteUnknown{noteHeader: header, name: n.Name}
	}
}
