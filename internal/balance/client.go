package balance

import (
	"context"

	"github.com/dropbox/godropbox/time2"
	"github.com/rs/zerolog/log"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/metrics"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/soap"
)

// Config carries the client-side knobs of one balance connection.
type Config struct {
	Password string
	Dosing   DosingConfig
}

// Client bundles the components of one balance connection. One client
// holds at most one live session; callers needing parallel sessions use
// separate clients.
type Client struct {
	Session *SessionManager
	Gateway *Gateway
	Ops     *Operations
	Dosing  *Orchestrator
	Cancel  *Canceller
}

// NewClient wires the component graph: codec and session manager under
// the gateway, device operations and the dosing orchestrator on top.
func NewClient(invoker soap.Invoker, cfg Config, clock time2.Clock, m *metrics.Service) *Client {
	session := NewSessionManager(cfg.Password)
	gw := NewGateway(invoker, session, m)
	session.SetGateway(gw)

	ops := NewOperations(gw)
	canceller := NewCanceller(gw)
	dosing := NewOrchestrator(gw, ops, canceller, clock, cfg.Dosing, m)

	return &Client{
		Session: session,
		Gateway: gw,
		Ops:     ops,
		Dosing:  dosing,
		Cancel:  canceller,
	}
}

// Connect opens the session eagerly. Lazy opening through the gateway
// works as well; this surfaces credential problems early.
func (c *Client) Connect(ctx context.Context) error {
	return c.Session.Open(ctx)
}

// Close cancels outstanding asynchronous commands and releases the
// session. Safe to call on an already-closed client.
func (c *Client) Close(ctx context.Context) {
	if pending := c.Gateway.ActiveCommands(); len(pending) > 0 {
		log.Warn().Ints64("command_ids", pending).Msg("Active commands at shutdown; cancelling")
		c.Cancel.CancelAll(ctx)
	}
	c.Session.Close(ctx)
}
