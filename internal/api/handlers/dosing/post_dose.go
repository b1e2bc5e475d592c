package dosing

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/api"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/api/httperrors"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/balance"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/history"
)

// PostDosePayload describes one dosing run. Fields left empty fall back
// to the configured defaults. Smart selects the multi-attempt
// dose-to-target mode.
type PostDosePayload struct {
	Substance        string  `json:"substance"`
	Vial             string  `json:"vial"`
	Method           string  `json:"method"`
	TargetMilligrams float64 `json:"target_mg"`
	Smart            bool    `json:"smart"`

	MaxAttempts              *int     `json:"max_attempts"`
	MinDosedThresholdPercent *float64 `json:"min_dosed_threshold_percent"`
	LowerTolerancePercent    *float64 `json:"lower_tolerance_percent"`
	UpperTolerancePercent    *float64 `json:"upper_tolerance_percent"`
	Timeout                  *string  `json:"timeout"`
}

// PostDoseResponse reports the finished run.
type PostDoseResponse struct {
	ID              string  `json:"id"`
	DosedMilligrams float64 `json:"dosed_mg"`
}

func PostDoseRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Balance.POST("/dose", postDoseHandler(s))
}

func postDoseHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var body PostDosePayload
		if err := c.Bind(&body); err != nil {
			return httperrors.NewHTTPError(http.StatusBadRequest, "invalid request body", err.Error())
		}

		defaults := s.Config.Dosing
		timeout := s.Config.Balance.DoseTimeout
		if body.Timeout != nil {
			d, err := time.ParseDuration(*body.Timeout)
			if err != nil {
				return httperrors.NewHTTPError(http.StatusBadRequest, "invalid timeout", *body.Timeout)
			}
			timeout = d
		}
		lower := defaults.LowerTolerancePercent
		if body.LowerTolerancePercent != nil {
			lower = *body.LowerTolerancePercent
		}
		upper := defaults.UpperTolerancePercent
		if body.UpperTolerancePercent != nil {
			upper = *body.UpperTolerancePercent
		}

		var (
			dosed    float64
			attempts int
			err      error
		)
		if body.Smart {
			req := balance.SmartDoseRequest{
				Substance:                body.Substance,
				Vial:                     body.Vial,
				Method:                   body.Method,
				TargetMilligrams:         body.TargetMilligrams,
				MaxAttempts:              defaults.MaxAttempts,
				MinDosedThresholdPercent: defaults.MinDosedThresholdPercent,
				LowerTolerancePercent:    lower,
				UpperTolerancePercent:    upper,
				AttemptTimeout:           timeout,
			}
			if body.MaxAttempts != nil {
				req.MaxAttempts = *body.MaxAttempts
			}
			if body.MinDosedThresholdPercent != nil {
				req.MinDosedThresholdPercent = *body.MinDosedThresholdPercent
			}
			attempts = req.MaxAttempts
			dosed, err = s.Client.Dosing.SmartDose(ctx, req)
		} else {
			attempts = 1
			dosed, err = s.Client.Dosing.AutoDose(ctx, balance.DoseRequest{
				Substance:             body.Substance,
				Vial:                  body.Vial,
				Method:                body.Method,
				TargetMilligrams:      body.TargetMilligrams,
				LowerTolerancePercent: lower,
				UpperTolerancePercent: upper,
				Timeout:               timeout,
			})
		}
		if err != nil {
			return httperrors.FromBalanceError(err)
		}

		id := uuid.New().String()
		if s.History != nil {
			record := &history.Record{
				ID:               id,
				Substance:        body.Substance,
				TargetMilligrams: body.TargetMilligrams,
				DosedMilligrams:  dosed,
				Attempts:         attempts,
				CompletedAt:      s.Clock.Now(),
			}
			if saveErr := s.History.Save(ctx, record); saveErr != nil {
				log.Warn().Err(saveErr).Str("id", id).Msg("Failed to save dosing result")
			}
		}

		return c.JSON(http.StatusOK, &PostDoseResponse{
			ID:              id,
			DosedMilligrams: dosed,
		})
	}
}
