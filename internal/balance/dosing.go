package balance

import (
	"context"
	"math"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/rs/zerolog/log"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/metrics"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/wire"
)

// Remaining masses below this are treated as already dosed.
const negligibleMilligrams = 0.001

// DosingConfig carries the timing knobs of the dosing protocol.
type DosingConfig struct {
	// PollInterval is the client-side sleep between notification polls.
	PollInterval time.Duration
	// NotificationTimeout is the device-side wait bound of one
	// GetNotifications call.
	NotificationTimeout time.Duration
	// DoseTimeout bounds one whole dosing protocol run.
	DoseTimeout time.Duration
	// SettleDelay is the pause after door moves and before re-weighs.
	SettleDelay time.Duration
	// RetryDelay is the pause between failed smart-dose attempts.
	RetryDelay time.Duration
}

func (c DosingConfig) withDefaults() DosingConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.NotificationTimeout <= 0 {
		c.NotificationTimeout = 500 * time.Millisecond
	}
	if c.DoseTimeout <= 0 {
		c.DoseTimeout = 200 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	return c
}

// Orchestrator runs the asynchronous dosing protocol: task start, job
// list submission, notification polling and the multi-attempt
// dose-to-target convergence.
type Orchestrator struct {
	gw        *Gateway
	ops       *Operations
	canceller *Canceller
	clock     time2.Clock
	cfg       DosingConfig
	metrics   *metrics.Service
}

// NewOrchestrator creates the dosing orchestrator. The metrics service
// may be nil.
func NewOrchestrator(gw *Gateway, ops *Operations, canceller *Canceller, clock time2.Clock, cfg DosingConfig, m *metrics.Service) *Orchestrator {
	if clock == nil {
		clock = time2.DefaultClock
	}
	return &Orchestrator{
		gw:        gw,
		ops:       ops,
		canceller: canceller,
		clock:     clock,
		cfg:       cfg.withDefaults(),
		metrics:   m,
	}
}

// AutoDose runs a single automated dosing job to completion and returns
// the measured dosed mass in milligrams.
func (o *Orchestrator) AutoDose(ctx context.Context, req DoseRequest) (float64, error) {
	if err := req.validate(); err != nil {
		return 0, WrapError(KindDosing, err, "invalid dose request")
	}

	mass, err := o.runProtocol(ctx, req)
	if err != nil {
		return 0, err
	}
	if mass == nil {
		return 0, NewError(KindDosing, "dosing finished but the dosed amount could not be determined")
	}
	return *mass, nil
}

// runProtocol drives one job through the dosing state machine and
// returns the net mass reported by the job-finished notification.
func (o *Orchestrator) runProtocol(ctx context.Context, req DoseRequest) (*float64, error) {
	started := o.clock.Now()
	defer func() {
		o.metrics.ObserveDoseDuration(o.clock.Since(started).Seconds())
	}()

	method, err := o.findDosingMethod(ctx, req.Method)
	if err != nil {
		return nil, err
	}

	if _, err := o.gw.Invoke(ctx, InvokeSpec{
		Service:     weighingTaskService,
		Method:      "StartTask",
		Args:        []wire.Arg{{Name: "MethodName", Value: method}},
		WithSession: true,
	}); err != nil {
		return nil, reclassify(err, KindDosing, "failed to start dosing task")
	}
	log.Info().Str("dosing_method", method).Msg("Weighing task started for automated dosing")

	commandID, err := o.submitJobList(ctx, req)
	if err != nil {
		return nil, err
	}

	return o.pollUntilFinished(ctx, req, commandID)
}

// findDosingMethod resolves an automated-dosing method by name, or the
// first one the device offers when no name is given.
func (o *Orchestrator) findDosingMethod(ctx context.Context, name string) (string, error) {
	resp, err := o.gw.Invoke(ctx, InvokeSpec{
		Service:     weighingTaskService,
		Method:      "GetListOfMethods",
		WithSession: true,
	})
	if err != nil {
		return "", reclassify(err, KindDevice, "failed to list weighing methods")
	}

	methods := resp.Child("Methods").All("MethodDescription")
	if len(methods) == 0 {
		return "", NewError(KindDevice, "no weighing methods found on the device")
	}

	for _, m := range methods {
		if m.ChildText("MethodType") != "AutomatedDosing" {
			continue
		}
		if name == "" || m.ChildText("Name") == name {
			return m.ChildText("Name"), nil
		}
	}

	if name != "" {
		return "", NewError(KindDevice, "automated dosing method '"+name+"' not found")
	}
	return "", NewError(KindDevice, "no automated dosing methods found on the device")
}

// submitJobList submits the single dosing job asynchronously and
// returns the correlating command id. Inline job-setup errors abort
// before any polling starts.
func (o *Orchestrator) submitJobList(ctx context.Context, req DoseRequest) (int64, error) {
	lower := round6(req.TargetMilligrams * req.LowerTolerancePercent / 100)
	upper := round6(req.TargetMilligrams * req.UpperTolerancePercent / 100)
	vial := req.Vial
	if vial == "" {
		vial = "DefaultVial"
	}

	resp, err := o.gw.Invoke(ctx, InvokeSpec{
		Service: dosingAutomationService,
		Method:  "StartExecuteDosingJobListAsync",
		Args: []wire.Arg{
			wire.Nested("JobList",
				wire.Nested("DosingJob",
					wire.Arg{Name: "SubstanceName", Value: req.Substance},
					wire.Arg{Name: "VialName", Value: vial},
					weightArg("TargetWeight", round6(req.TargetMilligrams)),
					weightArg("LowerTolerance", lower),
					weightArg("UpperTolerance", upper),
				),
			),
		},
		WithSession: true,
	})
	if err != nil {
		return 0, reclassify(err, KindDosing, "failed to submit dosing job list")
	}

	commandID, err := resp.Int("CommandId")
	if err != nil {
		return 0, WrapError(KindDosing, err, "job list submission returned no command id")
	}

	if inline := resp.ChildText("StartDosingJobListError"); inline != "" {
		return 0, &Error{
			Kind:       KindDosing,
			Message:    "error starting dosing job list",
			ErrorState: inline,
		}
	}
	if jobErrors := resp.Child("JobErrors").All("DosingJobError"); len(jobErrors) > 0 {
		detail := ""
		for i, je := range jobErrors {
			if i > 0 {
				detail += ", "
			}
			detail += je.ChildText("Error")
		}
		return 0, &Error{
			Kind:         KindDosing,
			Message:      "errors in dosing job setup",
			ErrorMessage: detail,
		}
	}

	log.Info().Int64("command_id", commandID).Msg("Automated dosing job list started")
	return commandID, nil
}

// pollUntilFinished is the notification loop of the dosing state
// machine. Notifications for other command ids are ignored, never
// queued; events for this command are processed strictly in receipt
// order.
func (o *Orchestrator) pollUntilFinished(ctx context.Context, req DoseRequest, commandID int64) (*float64, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = o.cfg.DoseTimeout
	}
	deadline := o.clock.Now().Add(timeout)

	var measured *float64

	for o.clock.Now().Before(deadline) {
		resp, err := o.gw.Invoke(ctx, InvokeSpec{
			Service: notificationService,
			Method:  "GetNotifications",
			Args: []wire.Arg{
				{Name: "Timeout", Value: int(o.cfg.NotificationTimeout / time.Millisecond)},
			},
			WithSession:    true,
			IgnoreOutcomes: []string{"Timeout"},
		})
		if err != nil {
			return nil, reclassify(err, KindNotification, "GetNotifications failed with a non-timeout error")
		}

		if notes := resp.Child("Notifications"); notes != nil && resp.ChildText("Outcome") == outcomeSuccess {
			for _, item := range notes.Kids {
				done, result, err := o.handleNotification(ctx, item, commandID, &measured)
				if err != nil {
					return nil, err
				}
				if done {
					return result, nil
				}
			}
		}

		o.clock.Sleep(o.cfg.PollInterval)
	}

	return nil, &Error{
		Kind: KindDosing,
		Message: "timed out after " + timeout.String() +
			" waiting for the dosing job list to finish",
	}
}

func (o *Orchestrator) handleNotification(ctx context.Context, item *wire.Node, commandID int64, measured **float64) (bool, *float64, error) {
	note := decodeNotification(item)
	if note.commandID() != commandID {
		return false, nil, nil
	}

	o.metrics.ObserveNotification(item.Name)
	log.Info().Str("kind", item.Name).Int64("command_id", commandID).Msg("Processing dosing notification")

	if note.outcome() == "Error" {
		return false, nil, &Error{
			Kind:         KindDosing,
			Message:      "dosing notification reported an error",
			Outcome:      note.outcome(),
			ErrorMessage: note.errorDetail(),
		}
	}

	switch n := note.(type) {
	case *noteAction:
		if err := o.confirmAction(ctx, n); err != nil {
			return false, nil, err
		}

	case *noteJobFinished:
		if n.netMilligrams == nil {
			log.Warn().Msg("Job-finished notification carried no net weight")
			break
		}
		// Per-job result; the loop still waits for the whole list.
		*measured = n.netMilligrams
		log.Info().Float64("net_milligrams", *n.netMilligrams).Msg("Dosing job finished")

	case *noteListFinished:
		if n.outcome() != outcomeSuccess {
			reason := n.failureReason
			if n.failureDescription != "" {
				reason += " - " + n.failureDescription
			}
			return false, nil, &Error{
				Kind:         KindDosing,
				Message:      "dosing job list failed",
				Outcome:      n.outcome(),
				ErrorMessage: reason,
			}
		}

		o.completeTask(ctx)

		if *measured == nil {
			return false, nil, NewError(KindDosing, "dosing finished, but the final dosed amount is unclear from notifications")
		}
		return true, *measured, nil

	case *noteBufferOverrun:
		log.Warn().Int64("command_id", commandID).Msg("Notification buffer overrun; some notifications may have been lost")

	case *noteUnknown:
		log.Debug().Str("kind", n.name).Msg("Ignoring unrecognized notification kind")
	}

	return false, nil, nil
}

func (o *Orchestrator) confirmAction(ctx context.Context, n *noteAction) error {
	log.Info().
		Str("action", n.actionType).
		Str("item", n.actionItem).
		Msg("Dosing requires action; confirming")

	_, err := o.gw.Invoke(ctx, InvokeSpec{
		Service: dosingAutomationService,
		Method:  "ConfirmDosingJobAction",
		Args: []wire.Arg{
			{Name: "DosingJobActionType", Value: n.actionType},
			{Name: "ActionItem", Value: n.actionItem},
		},
		WithSession: true,
	})
	return reclassify(err, KindDosing, "failed to confirm dosing action "+n.actionType)
}

// completeTask closes out the device-side weighing task, best effort.
func (o *Orchestrator) completeTask(ctx context.Context) {
	if _, err := o.gw.Invoke(ctx, InvokeSpec{
		Service:     weighingTaskService,
		Method:      "CompleteCurrentTask",
		WithSession: true,
	}); err != nil {
		log.Warn().Err(err).Msg("Could not complete weighing task after dosing")
		return
	}
	log.Info().Msg("Weighing task completed after dosing")
}

// SmartDose doses toward the target across up to MaxAttempts jobs,
// re-dosing the shortfall each round until the configured share of the
// target has been reached. Returns the total dosed mass in milligrams.
func (o *Orchestrator) SmartDose(ctx context.Context, req SmartDoseRequest) (float64, error) {
	if err := req.validate(); err != nil {
		return 0, WrapError(KindDosing, err, "invalid smart dose request")
	}

	target := req.TargetMilligrams
	threshold := target * req.MinDosedThresholdPercent / 100

	total := 0.0
	met := false

	for attempt := 1; attempt <= req.MaxAttempts; attempt++ {
		remaining := target - total
		if remaining <= negligibleMilligrams {
			met = true
			break
		}

		o.metrics.ObserveDoseAttempt()
		log.Info().
			Int("attempt", attempt).
			Int("max_attempts", req.MaxAttempts).
			Float64("target_mg", target).
			Float64("remaining_mg", remaining).
			Str("substance", req.Substance).
			Msg("Smart dosing attempt")

		preMilligrams, err := o.prepareAttempt(ctx)
		if err != nil {
			o.canceller.CancelActive(ctx)
			if attempt == req.MaxAttempts {
				return 0, reclassify(err, KindDosing, "smart dosing failed during attempt preparation on the last attempt")
			}
			log.Error().Err(err).Int("attempt", attempt).Msg("Attempt preparation failed; retrying")
			o.clock.Sleep(o.cfg.RetryDelay)
			continue
		}

		mass, doseErr := o.runProtocol(ctx, DoseRequest{
			Substance:             req.Substance,
			Vial:                  req.Vial,
			Method:                req.Method,
			TargetMilligrams:      remaining,
			LowerTolerancePercent: req.LowerTolerancePercent,
			UpperTolerancePercent: req.UpperTolerancePercent,
			Timeout:               req.AttemptTimeout,
		})

		var dosed float64
		switch {
		case doseErr != nil:
			log.Error().Err(doseErr).Int("attempt", attempt).Msg("Dosing attempt failed; cancelling current operation")
			o.canceller.CancelActive(ctx)
			// A fault mid-job may still have dispensed material, so the
			// attempt is credited from a re-weigh rather than assumed zero.
			dosed = o.reweighDelta(ctx, preMilligrams)
		case mass == nil:
			log.Warn().Msg("Dosing protocol returned no numeric result; weighing to confirm")
			dosed = o.reweighDelta(ctx, preMilligrams)
		default:
			dosed = *mass
		}

		if dosed < 0 {
			log.Warn().
				Float64("delta_mg", dosed).
				Msg("Negative dosed mass measured; treating as nothing dosed")
			dosed = 0
		}

		total += dosed
		remaining = target - total
		log.Info().
			Int("attempt", attempt).
			Float64("dosed_mg", dosed).
			Float64("total_mg", total).
			Float64("remaining_mg", remaining).
			Msg("Smart dosing attempt finished")

		if total >= threshold {
			met = true
			break
		}
		if remaining < negligibleMilligrams {
			met = true
			break
		}

		if doseErr != nil {
			if attempt == req.MaxAttempts {
				return 0, doseErr
			}
			o.clock.Sleep(o.cfg.RetryDelay)
		}
	}

	if !met {
		return 0, &Error{
			Kind:    KindDosing,
			Message: "smart dosing exhausted all attempts without reaching the target threshold",
		}
	}
	return round4(total), nil
}

// prepareAttempt closes both outer doors, lets the chamber settle,
// tares and samples the pre-dose weight in milligrams.
func (o *Orchestrator) prepareAttempt(ctx context.Context) (float64, error) {
	if err := o.ops.CloseDoor(ctx, DoorLeftOuter); err != nil {
		return 0, err
	}
	if err := o.ops.CloseDoor(ctx, DoorRightOuter); err != nil {
		return 0, err
	}
	o.clock.Sleep(o.cfg.SettleDelay)

	if err := o.ops.Tare(ctx, true); err != nil {
		return 0, err
	}

	pre, err := o.ops.GetWeight(ctx, CaptureImmediate, 0)
	if err != nil {
		return 0, err
	}
	return pre.Milligrams()
}

// reweighDelta takes a stable post-dose weight and returns the delta
// against the pre-dose value, or 0 when the re-weigh itself fails.
func (o *Orchestrator) reweighDelta(ctx context.Context, preMilligrams float64) float64 {
	o.clock.Sleep(o.cfg.SettleDelay)

	post, err := o.ops.GetWeight(ctx, CaptureStable, 0)
	if err != nil {
		log.Warn().Err(err).Msg("Post-attempt re-weigh failed; assuming nothing dosed")
		return 0
	}
	postMilligrams, err := post.Milligrams()
	if err != nil {
		log.Warn().Err(err).Msg("Post-attempt weight carries an unknown unit; assuming nothing dosed")
		return 0
	}
	return postMilligrams - preMilligrams
}

func weightArg(name string, milligrams float64) wire.Arg {
	return wire.Nested(name,
		wire.Arg{Name: "Value", Value: milligrams},
		wire.Arg{Name: "Unit", Value: string(UnitMilligram)},
	)
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
