package httperrors

import (
	"fmt"
	"net/http"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/balance"
)

// HTTPError is the JSON error payload of the control server.
type HTTPError struct {
	Code   int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Title)
}

// NewHTTPError creates an error with an explicit status code.
func NewHTTPError(code int, title string, detail string) *HTTPError {
	return &HTTPError{Code: code, Title: title, Detail: detail}
}

// FromBalanceError maps a balance client error onto an HTTP status:
// caller mistakes become 400s, device/session problems 502s, transport
// problems 504s.
func FromBalanceError(err error) *HTTPError {
	e, ok := balance.AsError(err)
	if !ok {
		return NewHTTPError(http.StatusInternalServerError, "internal error", err.Error())
	}

	switch e.Kind {
	case balance.KindDoor:
		// Bounds rejections happen before any device call.
		if e.Outcome == "" && e.ErrorState == "" && e.Original == nil {
			return NewHTTPError(http.StatusBadRequest, "invalid door request", e.Message)
		}
		return NewHTTPError(http.StatusBadGateway, "door operation failed", e.Error())
	case balance.KindConnection:
		return NewHTTPError(http.StatusGatewayTimeout, "balance unreachable", e.Error())
	case balance.KindAuth, balance.KindSession:
		return NewHTTPError(http.StatusBadGateway, "balance session failure", e.Error())
	default:
		return NewHTTPError(http.StatusBadGateway, "balance operation failed", e.Error())
	}
}
