package dosing

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/api"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/api/httperrors"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/history"
)

// defaultResultCount bounds an unqualified results listing.
const defaultResultCount = 20

// GetDoseResultsResponse lists recent dosing runs, newest first.
type GetDoseResultsResponse struct {
	Results []*history.Record `json:"results"`
}

func GetDoseResultsRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Balance.GET("/dose/results", getDoseResultsHandler(s))
}

func getDoseResultsHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		if s.History == nil {
			return httperrors.NewHTTPError(http.StatusNotImplemented, "result history disabled", "")
		}

		n := defaultResultCount
		if limit := c.QueryParam("limit"); limit != "" {
			parsed, err := strconv.Atoi(limit)
			if err != nil || parsed < 1 {
				return httperrors.NewHTTPError(http.StatusBadRequest, "invalid limit", limit)
			}
			n = parsed
		}

		records, err := s.History.Recent(ctx, n)
		if err != nil {
			return httperrors.NewHTTPError(http.StatusBadGateway, "failed to read result history", err.Error())
		}

		return c.JSON(http.StatusOK, &GetDoseResultsResponse{Results: records})
	}
}
