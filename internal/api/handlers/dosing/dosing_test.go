package dosing_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/api"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/api/router"
	"github.com/xiaomguo/sdl2-solid-dosing/internal/config"
)

// The routes below fail before any device communication, so a client-less
// server is sufficient.
func newBareServer() *api.Server {
	s := api.NewServer(config.Server{}, nil, nil, nil)
	router.Init(s)
	return s
}

func TestGetDoseResultsWithoutHistory(t *testing.T) {
	s := newBareServer()

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/balance/dose/results", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestPostDoseRejectsMalformedBody(t *testing.T) {
	s := newBareServer()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/balance/dose", strings.NewReader(`{"target_mg": "not a number"`))
	req.Header.Set("Content-Type", "application/json")
	s.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostDoseRejectsInvalidTimeout(t *testing.T) {
	s := newBareServer()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/balance/dose",
		strings.NewReader(`{"substance":"Caffeine","target_mg":2,"timeout":"soon"}`))
	req.Header.Set("Content-Type", "application/json")
	s.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
