package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Pasture/pkg/timeseries"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=2"`
	Method  string   `json:"method" default:"pearson" validate:"oneof=pearson spearman"`
}

func newContext(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestReadAndValidateRequestDefaults(t *testing.T) {
	c, _ := newContext(`{"symbols":["SPY","QQQ"]}`)
	var req sampleRequest
	assert.Nil(t, ReadAndValidateRequest(c, &req))
	assert.Equal(t, "pearson", req.Method)
}

func TestReadAndValidateRequestErrors(t *testing.T) {
	c, _ := newContext(`{"symbols":["SPY"],"method":"kendall"}`)
	var req sampleRequest
	errs, ok := ReadAndValidateRequest(c, &req).([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_MIN", errs[0].Code)
	assert.Equal(t, "symbols", errs[0].Field)
	assert.Equal(t, "symbols must contain at least 2 items", errs[0].Message)
	assert.Equal(t, "ERR_ONEOF", errs[1].Code)
	assert.Equal(t, []string{"pearson", "spearman"}, errs[1].Params["options"])
}

func TestReadAndValidateRequestBadJSON(t *testing.T) {
	c, _ := newContext(`{"symbols":`)
	var req sampleRequest
	errs, ok := ReadAndValidateRequest(c, &req).([]ValidationError)
	require.True(t, ok)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
}

func TestAppErrorResponse(t *testing.T) {
	c, rec := newContext("")
	err := NotFoundErrorf("asset universe %q not found", "core").WithError(errors.New("no rows"))
	require.NoError(t, AppErrorResponse(c, err))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, body.Status)
	assert.Equal(t, "ERR_NOT_FOUND", body.Data[0].Code)
	assert.NotContains(t, rec.Body.String(), "no rows")

	c, rec = newContext("")
	require.NoError(t, AppErrorResponse(c, errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResolveWindow(t *testing.T) {
	today := timeseries.NewDate(2024, 6, 30)
	from, to, ok := ResolveWindow(timeseries.Date{}, timeseries.Date{}, today, 30)
	assert.True(t, ok)
	assert.Equal(t, today, to)
	assert.Equal(t, timeseries.NewDate(2024, 5, 31), from)

	_, _, ok = ResolveWindow(timeseries.NewDate(2024, 7, 1), timeseries.NewDate(2024, 6, 1), today, 30)
	assert.False(t, ok)
}

type panicHandler struct{}

func (panicHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/boom", func(echo.Context) error { panic("boom") })
}

func TestServerRecoversPanics(t *testing.T) {
	s := NewServer(nil, []Handler{panicHandler{}})
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pasture_http_requests_total{method="GET",route="/boom",status="500"}`)
}
