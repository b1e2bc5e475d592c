package weighing

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/api"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/api/httperrors"
)

// GetDosingHeadResponse mirrors the head snapshot. Pointer fields are
// omitted when the device did not report them.
type GetDosingHeadResponse struct {
	Installed              bool     `json:"installed"`
	HeadID                 *string  `json:"head_id,omitempty"`
	HeadType               *string  `json:"head_type,omitempty"`
	HeadTypeName           *string  `json:"head_type_name,omitempty"`
	SubstanceName          *string  `json:"substance_name,omitempty"`
	LotID                  *string  `json:"lot_id,omitempty"`
	NumberOfDosages        *int64   `json:"number_of_dosages,omitempty"`
	RemainingDosages       *int64   `json:"remaining_dosages,omitempty"`
	RemainingQuantityValue *float64 `json:"remaining_quantity_value,omitempty"`
	RemainingQuantityUnit  *string  `json:"remaining_quantity_unit,omitempty"`
}

func GetDosingHeadRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Balance.GET("/dosing-head", getDosingHeadHandler(s))
}

func getDosingHeadHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		info, err := s.Client.Ops.ReadDosingHead(ctx)
		if err != nil {
			return httperrors.FromBalanceError(err)
		}

		return c.JSON(http.StatusOK, &GetDosingHeadResponse{
			Installed:              info.Installed(),
			HeadID:                 info.HeadID,
			HeadType:               info.HeadType,
			HeadTypeName:           info.HeadTypeName,
			SubstanceName:          info.SubstanceName,
			LotID:                  info.LotID,
			NumberOfDosages:        info.NumberOfDosages,
			RemainingDosages:       info.RemainingDosages,
			RemainingQuantityValue: info.RemainingQuantityValue,
			RemainingQuantityUnit:  info.RemainingQuantityUnit,
		})
	}
}
