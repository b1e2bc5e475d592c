package weighing

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/api"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/api/httperrors"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/balance"
)

// PutDoorPayload sets a door to an opening width in percent.
type PutDoorPayload struct {
	Position *int `json:"position"`
}

func PutDoorRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Balance.PUT("/doors/:door", putDoorHandler(s))
}

func putDoorHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		door, err := balance.ParseDoor(c.Param("door"))
		if err != nil {
			return httperrors.NewHTTPError(http.StatusBadRequest, "invalid door", err.Error())
		}

		var body PutDoorPayload
		if err := c.Bind(&body); err != nil {
			return httperrors.NewHTTPError(http.StatusBadRequest, "invalid request body", err.Error())
		}
		if body.Position == nil {
			return httperrors.NewHTTPError(http.StatusBadRequest, "missing position", "")
		}

		if err := s.Client.Ops.SetDoorPosition(ctx, door, *body.Position); err != nil {
			return httperrors.FromBalanceError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
