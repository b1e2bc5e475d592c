package balance

import (
	"time"

	"github.com/pkg/errors"
)

// Service binding names of the balance contract. The contract is a
// fixed, versioned external schema; these names are not negotiable.
const (
	basicService            = "BasicHttpBinding_IBasicService"
	sessionService          = "BasicHttpBinding_ISessionService"
	weighingService         = "BasicHttpBinding_IWeighingService"
	weighingTaskService     = "BasicHttpBinding_IWeighingTaskService"
	dosingAutomationService = "BasicHttpBinding_IDosingAutomationService"
	notificationService     = "BasicHttpBinding_INotificationService"
	draftShieldsService     = "BasicHttpBinding_IDraftShieldsService"
	authenticationService   = "BasicHttpBinding_IAuthenticationService"
)

// Door identifies one draft shield of the weighing chamber.
type Door string

const (
	DoorLeftOuter  Door = "LeftOuter"
	DoorRightOuter Door = "RightOuter"
	DoorLeftInner  Door = "LeftInner"
	DoorRightInner Door = "RightInner"
	DoorTop        Door = "Top"
	DoorRadial     Door = "Radial"
	DoorFlap       Door = "Flap"
)

// ParseDoor validates a door identifier received from the outside.
func ParseDoor(s string) (Door, error) {
	switch Door(s) {
	case DoorLeftOuter, DoorRightOuter, DoorLeftInner, DoorRightInner, DoorTop, DoorRadial, DoorFlap:
		return Door(s), nil
	}
	return "", errors.Errorf("unknown door identifier %q", s)
}

// CaptureMode selects how a weight sample is taken.
type CaptureMode string

const (
	CaptureStable       CaptureMode = "Stable"
	CaptureImmediate    CaptureMode = "Immediate"
	CaptureTimeInterval CaptureMode = "TimeInterval"
	CaptureWeightChange CaptureMode = "WeightChange"
)

// Unit tags every mass value exchanged with the device. Untagged
// numbers are never passed across the contract boundary.
type Unit string

const (
	UnitGram      Unit = "Gram"
	UnitMilligram Unit = "Milligram"
	UnitMicrogram Unit = "Microgram"
	UnitKilogram  Unit = "Kilogram"
)

// Milligrams converts a value in this unit to milligrams.
func (u Unit) Milligrams(value float64) (float64, error) {
	switch u {
	case UnitGram:
		return value * 1000, nil
	case UnitMilligram:
		return value, nil
	case UnitMicrogram:
		return value / 1000, nil
	case UnitKilogram:
		return value * 1e6, nil
	}
	return 0, errors.Errorf("unknown mass unit %q", u)
}

// DosingHeadType distinguishes powder and liquid dosing heads.
type DosingHeadType string

const (
	HeadTypePowder DosingHeadType = "Powder"
	HeadTypeLiquid DosingHeadType = "Liquid"
)

// Weight is one sample reported by the device.
type Weight struct {
	Value  float64
	Unit   Unit
	Stable bool
}

// Milligrams returns the sample mass in milligrams.
func (w Weight) Milligrams() (float64, error) {
	return w.Unit.Milligrams(w.Value)
}

// DoorState is the last reported position of one door. It reflects a
// single request/response exchange and is never cached.
type DoorState struct {
	Door         Door
	OpeningWidth int
}

// DosingHeadInfo is a read-through snapshot of the installed dosing
// head. Fields are pointers because the device omits them when no head
// (or an unreadable head) is installed.
type DosingHeadInfo struct {
	HeadID                 *string
	HeadType               *string
	HeadTypeName           *string
	SubstanceName          *string
	LotID                  *string
	NumberOfDosages        *int64
	RemainingDosages       *int64
	TappingWhileDosing     *bool
	TappingBeforeDosing    *bool
	RemainingQuantityValue *float64
	RemainingQuantityUnit  *string
}

// Installed reports whether the snapshot identifies a usable head.
func (i *DosingHeadInfo) Installed() bool {
	return i != nil && i.HeadID != nil && i.HeadType != nil
}

// DoseRequest describes one automated dosing job.
type DoseRequest struct {
	Substance             string
	Vial                  string
	Method                string
	TargetMilligrams      float64
	LowerTolerancePercent float64
	UpperTolerancePercent float64
	Timeout               time.Duration
}

func (r *DoseRequest) validate() error {
	if r.TargetMilligrams < 0 {
		return errors.New("target mass must not be negative")
	}
	if r.LowerTolerancePercent < 0 || r.UpperTolerancePercent < 0 {
		return errors.New("tolerances must not be negative")
	}
	return nil
}

// SmartDoseRequest describes a multi-attempt dose-to-target run.
type SmartDoseRequest struct {
	Substance                string
	Vial                     string
	Method                   string
	TargetMilligrams         float64
	MaxAttempts              int
	MinDosedThresholdPercent float64
	LowerTolerancePercent    float64
	UpperTolerancePercent    float64
	AttemptTimeout           time.Duration
}

func (r *SmartDoseRequest) validate() error {
	if r.TargetMilligrams < 0 {
		return errors.New("target mass must not be negative")
	}
	if r.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if r.MinDosedThresholdPercent <= 0 || r.MinDosedThresholdPercent > 100 {
		return errors.New("min dosed threshold percent must be in (0, 100]")
	}
	if r.LowerTolerancePercent < 0 || r.UpperTolerancePercent < 0 {
		return errors.New("tolerances must not be negative")
	}
	return nil
}

// DoseResult is the outcome of one finished dosing job.
type DoseResult struct {
	DosedMilligrams float64
	CommandID       int64
}
