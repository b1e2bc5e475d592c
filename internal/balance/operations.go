package balance

import (
	"context"
	"sort"
	"time"

	"github.com/go-openapi/swag"
	"github.com/rs/zerolog/log"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/wire"
)

// DefaultSyncTimeout bounds synchronous device operations such as a
// stable weight capture.
const DefaultSyncTimeout = 60 * time.Second

// Operations exposes the synchronous device actions: tare, zero,
// weighing, draft-shield control and dosing-head access. Every call is
// one validated request through the gateway.
type Operations struct {
	gw *Gateway
}

// NewOperations creates the device operations facade.
func NewOperations(gw *Gateway) *Operations {
	return &Operations{gw: gw}
}

// Tare tares the balance. With immediately false the device waits for a
// stable reading first.
func (o *Operations) Tare(ctx context.Context, immediately bool) error {
	return o.tareOrZero(ctx, "Tare", "TareImmediately", immediately)
}

// Zero zeroes the balance. With immediately false the device waits for
// a stable reading first.
func (o *Operations) Zero(ctx context.Context, immediately bool) error {
	return o.tareOrZero(ctx, "Zero", "ZeroImmediately", immediately)
}

func (o *Operations) tareOrZero(ctx context.Context, method, argName string, immediately bool) error {
	resp, err := o.gw.Invoke(ctx, InvokeSpec{
		Service:     weighingService,
		Method:      method,
		Args:        []wire.Arg{{Name: argName, Value: immediately}},
		WithSession: true,
	})
	if err != nil {
		return reclassify(err, KindDevice, method+" operation failed")
	}

	// ErrorState values other than Ok/Undefined signal overload,
	// underload or a failed static detection.
	if state := resp.ChildText("ErrorState"); state != "" && state != "Ok" && state != "Undefined" {
		return &Error{
			Kind:       KindDevice,
			Message:    method + " operation resulted in an error state",
			Outcome:    resp.ChildText("Outcome"),
			ErrorState: state,
		}
	}

	log.Info().Str("method", method).Bool("immediately", immediately).Msg("Weighing command successful")
	return nil
}

// GetWeight captures a single weight sample.
func (o *Operations) GetWeight(ctx context.Context, mode CaptureMode, timeout time.Duration) (Weight, error) {
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}

	resp, err := o.gw.Invoke(ctx, InvokeSpec{
		Service: weighingService,
		Method:  "GetWeight",
		Args: []wire.Arg{
			{Name: "WeighingCaptureMode", Value: string(mode)},
			{Name: "WeightDetectionMode", Value: nil},
			{Name: "WeightChangeThreshold", Value: nil},
			{Name: "WeightChangeThresholdUnit", Value: nil},
			{Name: "TimeIntervalCaptureDuration", Value: nil},
			{Name: "TimeIntervalCaptureDelay", Value: nil},
			{Name: "TimeoutInSeconds", Value: int(timeout / time.Second)},
		},
		WithSession: true,
	})
	if err != nil {
		return Weight{}, reclassify(err, KindDevice, "GetWeight operation failed")
	}

	sample := resp.Child("WeightSample")
	if sample == nil {
		return Weight{}, &Error{
			Kind:    KindDevice,
			Message: "GetWeight returned no weight sample",
			Outcome: resp.ChildText("Outcome"),
		}
	}
	if status := sample.ChildText("Status"); status != "Ok" {
		return Weight{}, &Error{
			Kind:       KindDevice,
			Message:    "weight sample status is not Ok",
			Outcome:    resp.ChildText("Outcome"),
			ErrorState: status,
		}
	}

	net := sample.Child("NetWeight")
	value, verr := net.Float("Value")
	unit := net.ChildText("Unit")
	if verr != nil || unit == "" {
		return Weight{}, &Error{
			Kind:     KindDevice,
			Message:  "net weight data is incomplete in weight sample",
			Outcome:  resp.ChildText("Outcome"),
			Original: verr,
		}
	}

	w := Weight{Value: value, Unit: Unit(unit), Stable: sample.Bool("Stable")}
	log.Info().
		Float64("value", w.Value).
		Str("unit", string(w.Unit)).
		Bool("stable", w.Stable).
		Str("capture_mode", string(mode)).
		Msg("Weight received")
	return w, nil
}

// SetDoorPosition moves one draft shield to the given opening width
// (0 closed .. 100 fully open). Out-of-range positions are rejected
// before any device call.
func (o *Operations) SetDoorPosition(ctx context.Context, door Door, position int) error {
	if position < 0 || position > 100 {
		return NewError(KindDoor, "door position must be between 0 and 100")
	}

	_, err := o.gw.Invoke(ctx, InvokeSpec{
		Service: draftShieldsService,
		Method:  "SetPosition",
		Args: []wire.Arg{
			wire.Nested("Positions",
				wire.Nested("DraftShieldPosition",
					wire.Arg{Name: "DraftShieldId", Value: string(door)},
					wire.Arg{Name: "OpeningWidth", Value: position},
					wire.Arg{Name: "OpeningSide", Value: nil},
				),
			),
		},
		WithSession: true,
	})
	if err != nil {
		return reclassify(err, KindDoor, "SetPosition failed for door "+string(door))
	}

	log.Info().Str("door", string(door)).Int("position", position).Msg("Door position set")
	return nil
}

// OpenDoor fully opens the door.
func (o *Operations) OpenDoor(ctx context.Context, door Door) error {
	return o.SetDoorPosition(ctx, door, 100)
}

// CloseDoor fully closes the door.
func (o *Operations) CloseDoor(ctx context.Context, door Door) error {
	return o.SetDoorPosition(ctx, door, 0)
}

// GetDoorPosition queries the current opening width of one door. An
// uncertain position determination is logged, not failed.
func (o *Operations) GetDoorPosition(ctx context.Context, door Door) (DoorState, error) {
	resp, err := o.gw.Invoke(ctx, InvokeSpec{
		Service: draftShieldsService,
		Method:  "GetPosition",
		Args: []wire.Arg{
			wire.Nested("DraftShieldIds",
				wire.Arg{Name: "DraftShieldIdentifier", Value: string(door)},
			),
		},
		WithSession: true,
	})
	if err != nil {
		return DoorState{}, reclassify(err, KindDoor, "GetPosition failed for door "+string(door))
	}

	info := resp.Child("DraftShieldsInformation").Child("DraftShieldInformation")
	if info == nil {
		return DoorState{}, &Error{
			Kind:    KindDoor,
			Message: "no information returned for door " + string(door),
			Outcome: resp.ChildText("Outcome"),
		}
	}

	if outcome := info.ChildText("PositionDeterminationOutcome"); outcome != outcomeSuccess {
		log.Warn().
			Str("door", string(door)).
			Str("determination", outcome).
			Msg("Door position determination uncertain; reported width may be inaccurate")
	}

	width, err := info.Int("OpeningWidth")
	if err != nil {
		return DoorState{}, WrapError(KindDoor, err, "door information carries no opening width")
	}

	return DoorState{Door: door, OpeningWidth: int(width)}, nil
}

// IsDoorOpen reports whether the door's opening width is above zero.
func (o *Operations) IsDoorOpen(ctx context.Context, door Door) (bool, error) {
	state, err := o.GetDoorPosition(ctx, door)
	if err != nil {
		return false, err
	}
	return state.OpeningWidth > 0, nil
}

// ReadDosingHead reads the installed dosing head. The snapshot is
// best-effort: fields stay nil when no head (or an unreadable head) is
// mounted.
func (o *Operations) ReadDosingHead(ctx context.Context) (*DosingHeadInfo, error) {
	resp, err := o.gw.Invoke(ctx, InvokeSpec{
		Service:     dosingAutomationService,
		Method:      "ReadDosingHead",
		WithSession: true,
	})
	if err != nil {
		return nil, reclassify(err, KindDosingHead, "ReadDosingHead failed")
	}

	info := &DosingHeadInfo{
		HeadID:       optString(resp, "HeadId"),
		HeadType:     optString(resp, "HeadType"),
		HeadTypeName: optString(resp, "HeadTypeName"),
	}

	if details := resp.Child("DosingHeadInfo"); details != nil {
		info.SubstanceName = optString(details, "SubstanceName")
		info.LotID = optString(details, "LotId")
		info.NumberOfDosages = optInt(details, "NumberOfDosages")
		info.RemainingDosages = optInt(details, "RemainingDosages")
		info.TappingWhileDosing = optBool(details, "TappingWhileDosing")
		info.TappingBeforeDosing = optBool(details, "TappingBeforeDosing")

		if qty := details.Child("RemainingQuantity"); qty != nil {
			if v, err := qty.Float("Value"); err == nil {
				info.RemainingQuantityValue = swag.Float64(v)
			}
			if u := qty.ChildText("Unit"); u != "" {
				info.RemainingQuantityUnit = swag.String(u)
			}
		}
	}

	if !info.Installed() {
		log.Warn().Msg("ReadDosingHead succeeded but returned no head identification; assuming no head installed")
	}
	return info, nil
}

// IsDosingHeadInstalled reports whether a readable head is mounted.
func (o *Operations) IsDosingHeadInstalled(ctx context.Context) bool {
	info, err := o.ReadDosingHead(ctx)
	if err != nil {
		return false
	}
	return info.Installed()
}

// editableHeadFields is the field set of the contract's editable head
// info record. Writes outside this set are skipped, not failed.
var editableHeadFields = map[string]struct{}{
	"SubstanceName":       {},
	"LotId":               {},
	"FillingDate":         {},
	"ExpiryDate":          {},
	"NumberOfDosages":     {},
	"TappingWhileDosing":  {},
	"TappingBeforeDosing": {},
	"MolarMass":           {},
	"Purity":              {},
}

// WriteDosingHead writes editable fields to the mounted head. Unknown
// fields are skipped with a log entry; device rejection is surfaced as a
// dosing-head error.
func (o *Operations) WriteDosingHead(ctx context.Context, headType DosingHeadType, headID string, fields map[string]interface{}) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var infoArgs []wire.Arg
	for _, name := range names {
		if _, ok := editableHeadFields[name]; !ok {
			log.Warn().Str("field", name).Msg("Field not part of the editable dosing head record; skipping")
			continue
		}
		infoArgs = append(infoArgs, wire.Arg{Name: name, Value: fields[name]})
	}

	_, err := o.gw.Invoke(ctx, InvokeSpec{
		Service: dosingAutomationService,
		Method:  "WriteDosingHead",
		Args: []wire.Arg{
			{Name: "HeadType", Value: string(headType)},
			{Name: "HeadId", Value: headID},
			{Name: "DosingHeadInfo", Value: infoArgs},
		},
		WithSession: true,
	})
	if err != nil {
		return reclassify(err, KindDosingHead, "WriteDosingHead failed for head "+headID)
	}

	log.Info().Str("head_id", headID).Msg("Dosing head written")
	return nil
}

func optString(n *wire.Node, name string) *string {
	if v := n.ChildText(name); v != "" {
		return swag.String(v)
	}
	return nil
}

func optInt(n *wire.Node, name string) *int64 {
	if v, err := n.Int(name); err == nil {
		return swag.Int64(v)
	}
	return nil
}

func optBool(n *wire.Node, name string) *bool {
	if n.Has(name) && n.ChildText(name) != "" {
		return swag.Bool(n.Bool(name))
	}
	return nil
}
