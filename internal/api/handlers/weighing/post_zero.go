package weighing

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/api"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/api/httperrors"
)

func PostZeroRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Balance.POST("/zero", postZeroHandler(s))
}

func postZeroHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		immediately, err := bindImmediately(c)
		if err != nil {
			return err
		}

		if err := s.Client.Ops.Zero(ctx, immediately); err != nil {
			return httperrors.FromBalanceError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
