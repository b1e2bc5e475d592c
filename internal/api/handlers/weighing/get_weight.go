package weighing

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/api"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/api/httperrors"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/balance"
)

// GetWeightResponse is one captured weight sample.
type GetWeightResponse struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Stable bool    `json:"stable"`
}

func GetWeightRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Balance.GET("/weight", getWeightHandler(s))
}

func getWeightHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		mode := balance.CaptureStable
		if m := c.QueryParam("mode"); m != "" {
			switch balance.CaptureMode(m) {
			case balance.CaptureStable, balance.CaptureImmediate:
				mode = balance.CaptureMode(m)
			default:
				return httperrors.NewHTTPError(http.StatusBadRequest, "invalid capture mode", m)
			}
		}

		timeout := time.Duration(0)
		if t := c.QueryParam("timeout"); t != "" {
			d, err := time.ParseDuration(t)
			if err != nil {
				return httperrors.NewHTTPError(http.StatusBadRequest, "invalid timeout", t)
			}
			timeout = d
		}

		w, err := s.Client.Ops.GetWeight(ctx, mode, timeout)
		if err != nil {
			return httperrors.FromBalanceError(err)
		}

		return c.JSON(http.StatusOK, &GetWeightResponse{
			Value:  w.Value,
			Unit:   string(w.Unit),
			Stable: w.Stable,
		})
	}
}
