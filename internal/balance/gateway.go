package balance

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/metrics"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/soap"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/wire"
)

const outcomeSuccess = "Success"

// InvokeSpec describes one service call issued through the gateway.
type InvokeSpec struct {
	Service string
	Method  string
	Args    []wire.Arg
	// WithSession prepends the live session id to the arguments,
	// opening a session first when none exists.
	WithSession bool
	// IgnoreOutcomes lists non-success outcomes that pass through
	// without raising (e.g. a polling timeout).
	IgnoreOutcomes []string
}

// Gateway is the single chokepoint for service calls: envelope
// normalization, fault classification, the one reopen-and-retry for
// session faults and async command-id tracking all live here.
type Gateway struct {
	invoker soap.Invoker
	session *SessionManager
	metrics *metrics.Service

	mu       sync.Mutex
	commands map[int64]struct{}
}

// NewGateway creates the request gateway. The metrics service may be
// nil.
func NewGateway(invoker soap.Invoker, session *SessionManager, m *metrics.Service) *Gateway {
	return &Gateway{
		invoker:  invoker,
		session:  session,
		metrics:  m,
		commands: make(map[int64]struct{}),
	}
}

// Invoke performs one call with the uniform envelope handling.
func (g *Gateway) Invoke(ctx context.Context, spec InvokeSpec) (*wire.Node, error) {
	resp, err := g.invoke(ctx, spec)
	g.metrics.ObserveRequest(spec.Service, spec.Method, err)
	return resp, err
}

func (g *Gateway) invoke(ctx context.Context, spec InvokeSpec) (*wire.Node, error) {
	requestID := uuid.New().String()

	args, err := g.buildArgs(ctx, spec)
	if err != nil {
		return nil, err
	}

	resp, callErr := g.invoker.Call(ctx, spec.Service, spec.Method, args)
	if callErr != nil {
		resp, callErr = g.recover(ctx, spec, requestID, callErr)
		if callErr != nil {
			return nil, callErr
		}
	}

	return g.checkResponse(spec, requestID, resp)
}

func (g *Gateway) buildArgs(ctx context.Context, spec InvokeSpec) ([]wire.Arg, error) {
	if !spec.WithSession {
		return spec.Args, nil
	}
	id, err := g.session.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	return append(sessionArgs(id), spec.Args...), nil
}

// recover classifies a call error. A session fault triggers exactly one
// reopen-and-retry with the refreshed session id; every other fault is
// surfaced immediately.
func (g *Gateway) recover(ctx context.Context, spec InvokeSpec, requestID string, callErr error) (*wire.Node, error) {
	var fault *soap.Fault
	if errors.As(callErr, &fault) {
		if fault.Kind() == soap.FaultKindSession && spec.WithSession {
			return g.retryAfterReopen(ctx, spec, requestID)
		}
		return nil, &Error{
			Kind:         KindRequest,
			Message:      spec.Service + "." + spec.Method + " was rejected by the device",
			ErrorMessage: fault.Detail,
			Original:     callErr,
		}
	}

	var transport *soap.TransportError
	if errors.As(callErr, &transport) {
		return nil, WrapError(KindConnection, callErr, "network transport failure")
	}

	return nil, WrapError(KindRequest, callErr, "unexpected failure during "+spec.Service+"."+spec.Method)
}

func (g *Gateway) retryAfterReopen(ctx context.Context, spec InvokeSpec, requestID string) (*wire.Node, error) {
	log.Warn().
		Str("request_id", requestID).
		Str("service", spec.Service).
		Str("method", spec.Method).
		Msg("Session fault detected; reopening session and retrying once")

	g.session.Invalidate()
	if err := g.session.Open(ctx); err != nil {
		return nil, WrapError(KindSession, err, "failed to reopen session after session fault")
	}
	g.metrics.ObserveSessionReopen()

	id, ok := g.session.Current()
	if !ok {
		return nil, NewError(KindSession, "session absent after reopen")
	}

	resp, err := g.invoker.Call(ctx, spec.Service, spec.Method, append(sessionArgs(id), spec.Args...))
	if err != nil {
		return nil, &Error{
			Kind:     KindSession,
			Message:  spec.Service + "." + spec.Method + " failed again after session reopen",
			Original: err,
		}
	}
	return resp, nil
}

func (g *Gateway) checkResponse(spec InvokeSpec, requestID string, resp *wire.Node) (*wire.Node, error) {
	outcome := resp.ChildText("Outcome")

	ignored := false
	for _, o := range spec.IgnoreOutcomes {
		if outcome == o {
			ignored = true
			break
		}
	}

	switch {
	case ignored:
		log.Debug().
			Str("request_id", requestID).
			Str("method", spec.Method).
			Str("outcome", outcome).
			Msg("Call returned an ignorable outcome")
	case outcome != outcomeSuccess:
		return nil, &Error{
			Kind:         KindRequest,
			Message:      spec.Service + "." + spec.Method + " failed",
			Outcome:      outcome,
			ErrorMessage: resp.ChildText("ErrorMessage"),
			ErrorState:   resp.ChildText("ErrorState"),
		}
	}

	if resp.Has("CommandId") {
		if id, err := resp.Int("CommandId"); err == nil {
			g.trackCommand(id)
			log.Info().
				Str("request_id", requestID).
				Str("method", spec.Method).
				Int64("command_id", id).
				Msg("Asynchronous command started")
		}
	}

	return resp, nil
}

func (g *Gateway) trackCommand(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.commands[id] = struct{}{}
}

// ActiveCommands lists the outstanding asynchronous command ids known to
// the client, in ascending order.
func (g *Gateway) ActiveCommands() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]int64, 0, len(g.commands))
	for id := range g.commands {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ClearActiveCommands forgets all tracked command ids, used by the
// cancel-everything cleanup path.
func (g *Gateway) ClearActiveCommands() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.commands = make(map[int64]struct{})
}

func sessionArgs(id string) []wire.Arg {
	return []wire.Arg{{Name: "SessionId", Value: id}}
}
