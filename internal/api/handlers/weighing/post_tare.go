package weighing

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/api"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/api/httperrors"
)

// TareZeroPayload selects between an immediate and a stability-gated
// tare/zero.
type TareZeroPayload struct {
	Immediately *bool `json:"immediately"`
}

func PostTareRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Balance.POST("/tare", postTareHandler(s))
}

func postTareHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		immediately, err := bindImmediately(c)
		if err != nil {
			return err
		}

		if err := s.Client.Ops.Tare(ctx, immediately); err != nil {
			return httperrors.FromBalanceError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func bindImmediately(c echo.Context) (bool, error) {
	var body TareZeroPayload
	if err := c.Bind(&body); err != nil {
		return false, httperrors.NewHTTPError(http.StatusBadRequest, "invalid request body", err.Error())
	}
	if body.Immediately == nil {
		return true, nil
	}
	return *body.Immediately, nil
}
