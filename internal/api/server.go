package api

import (
	"context"

	"github.com/dropbox/godropbox/time2"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/balance"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/config"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/history"
)

// Router groups the route attachment points of the control server.
type Router struct {
	Routes       []*echo.Route
	Root         *echo.Group
	APIV1Balance *echo.Group
}

// Server keeps the dependencies of the HTTP control surface: the
// balance client itself, the optional result history and the clock.
type Server struct {
	Config  config.Server
	Echo    *echo.Echo
	Router  *Router
	Client  *balance.Client
	History *history.Store
	Clock   time2.Clock
}

// NewServer creates the control server shell. Routes are attached by
// the router package.
func NewServer(cfg config.Server, client *balance.Client, hist *history.Store, clock time2.Clock) *Server {
	if clock == nil {
		clock = time2.DefaultClock
	}
	return &Server{
		Config:  cfg,
		Client:  client,
		History: hist,
		Clock:   clock,
	}
}

// Start runs the HTTP listener until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("address", s.Config.Echo.ListenAddress).Msg("Starting control server")
	return s.Echo.Start(s.Config.Echo.ListenAddress)
}

// Shutdown stops the listener and releases the balance session.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down control server")
	s.Client.Close(ctx)
	return s.Echo.Shutdown(ctx)
}
