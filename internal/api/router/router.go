package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/api"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/api/handlers/dosing"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/api/handlers/weighing"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/api/httperrors"
)

// Init builds the echo instance, installs middleware and attaches every
// route of the control surface.
func Init(s *api.Server) {
	s.Echo = echo.New()
	s.Echo.HideBanner = true
	s.Echo.HTTPErrorHandler = errorHandler
	s.Echo.Use(middleware.Recover())

	s.Router = &api.Router{
		Root:         s.Echo.Group(""),
		APIV1Balance: s.Echo.Group("/api/v1/balance"),
	}

	s.Router.Root.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	s.Router.Root.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.Router.Routes = []*echo.Route{
		weighing.GetWeightRoute(s),
		weighing.PostTareRoute(s),
		weighing.PostZeroRoute(s),
		weighing.GetDoorRoute(s),
		weighing.PutDoorRoute(s),
		weighing.GetDosingHeadRoute(s),
		dosing.PostDoseRoute(s),
		dosing.GetDoseResultsRoute(s),
	}
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var payload *httperrors.HTTPError
	switch e := err.(type) {
	case *httperrors.HTTPError:
		payload = e
	case *echo.HTTPError:
		payload = httperrors.NewHTTPError(e.Code, http.StatusText(e.Code), "")
	default:
		payload = httperrors.NewHTTPError(http.StatusInternalServerError, "internal error", err.Error())
	}

	if jsonErr := c.JSON(payload.Code, payload); jsonErr != nil {
		log.Error().Err(jsonErr).Msg("Failed to render error response")
	}
}
