package weighing

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/api"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/api/httperrors"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/balance"
)

// GetDoorResponse is the last reported position of one door.
type GetDoorResponse struct {
	Door         string `json:"door"`
	OpeningWidth int    `json:"opening_width"`
	Open         bool   `json:"open"`
}

func GetDoorRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Balance.GET("/doors/:door", getDoorHandler(s))
}

func getDoorHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		door, err := balance.ParseDoor(c.Param("door"))
		if err != nil {
			return httperrors.NewHTTPError(http.StatusBadRequest, "invalid door", err.Error())
		}

		state, err := s.Client.Ops.GetDoorPosition(ctx, door)
		if err != nil {
			return httperrors.FromBalanceError(err)
		}

		return c.JSON(http.StatusOK, &GetDoorResponse{
			Door:         string(state.Door),
			OpeningWidth: state.OpeningWidth,
			Open:         state.OpeningWidth > 0,
		})
	}
}
