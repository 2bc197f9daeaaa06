package api

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	models "Pasture/internal/domain/models"
	"Pasture/internal/repository"
	"Pasture/internal/service/ratelimit"
	"Pasture/internal/usecase"
	"Pasture/pkg/config"
	"Pasture/pkg/timeseries"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedQueue struct {
	mu       sync.Mutex
	types    []string
	payloads []interface{}
}

func (q *capturedQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.types = append(q.types, msgType)
	q.payloads = append(q.payloads, payload)
	return nil
}

var today = timeseries.MustParseDate("2024-06-28")

func newTestServer(t *testing.T) (*echo.Echo, *capturedQueue) {
	return newLimitedServer(t, nil)
}

func newLimitedServer(t *testing.T, limiter *ratelimit.Limiter) (*echo.Echo, *capturedQueue) {
	t.Helper()
	store := repository.NewMemoryStore()
	rng := rand.New(rand.NewSource(7))
	symbols := []string{"AAA", "BBB", "CCC"}
	level := []float64{100, 100, 100}
	start := today.Add(-119)
	for i := 0; i < 120; i++ {
		m := rng.NormFloat64() * 0.01
		for j, s := range symbols {
			if i > 0 {
				level[j] *= 1 + (0.4+0.3*float64(j))*m + rng.NormFloat64()*0.005
			}
			store.AddPrices(models.PriceBar{Symbol: s, BaseDate: start.Add(i), Close: level[j]})
		}
	}
	store.AddUniverses(models.AssetUniverse{ID: uuid.New(), Name: "core", Symbols: symbols})

	q := &capturedQueue{}
	analysis := usecase.NewAnalysis(store, store, store, config.Default().Analytics, nil)
	h := NewAnalysisEchoHandler(nil, analysis, q).WithClock(func() time.Time { return today.Time() })
	if limiter != nil {
		h.WithJobLimiter(limiter)
	}

	e := echo.New()
	h.RegisterRoutes(e)
	return e, q
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t)
	rec := do(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestUniverseHRPEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodGet, "/api/v1/universes/core/hrp", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got usecase.UniverseAllocation
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	assert.Equal(t, "core", got.Name)
	assert.Equal(t, today, got.BaseDate)
	assert.Len(t, got.Weights, 3)
	assert.InDelta(t, 100.0, got.Weights.Sum(), 0.01)

	rec = do(e, http.MethodGet, "/api/v1/universes/missing/hrp", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/universes/core/hrp?from_date=2024-06-01&to_date=2024-05-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/universes/core/hrp?from_date=June", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCorrelationEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/v1/correlation", `{"symbols":["AAA","BBB"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got usecase.CorrelationView
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	assert.Equal(t, 1.0, got.Correlation["AAA"][0].Value)

	rec = do(e, http.MethodPost, "/api/v1/correlation", `{"symbols":["AAA"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/correlation", `{"symbols":["XXX","YYY"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "no time series for correlation")
}

func TestRunModelEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/v1/portfolio/run", `{"symbols":["AAA","BBB","CCC"],"model":"AHRP"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got usecase.ModelRun
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	assert.Equal(t, models.ModelAHRP, got.Model)
	assert.InDelta(t, 1.0, got.Weights.Sum(), 1e-9)

	rec = do(e, http.MethodPost, "/api/v1/portfolio/run", `{"symbols":["AAA","BBB"],"model":"MVO"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBacktestAndPerformanceEndpoints(t *testing.T) {
	e, _ := newTestServer(t)
	portfolio := `[{"symbol":"AAA","weight":0.5},{"symbol":"BBB","weight":0.5}]`

	rec := do(e, http.MethodPost, "/api/v1/backtest", `{"portfolio":`+portfolio+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"total":119`)

	rec = do(e, http.MethodPost, "/api/v1/backtest", `{"portfolio":[{"symbol":"AAA","weight":0.5}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/performance", `{"portfolio":`+portfolio+`,"bench_marks":["CCC"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"total":2`)
}

func TestSharesAndLatestEndpoints(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/v1/portfolio/shares", `{"weights":{"AAA":1},"base":1000}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(e, http.MethodPost, "/api/v1/portfolio/shares", `{"weights":{"ZZZ":1},"base":1000}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"resource":"price"`)

	rec = do(e, http.MethodGet, "/api/v1/portfolio/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerJobEndpoint(t *testing.T) {
	e, q := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/v1/jobs/settlement", `{"account_id":"A1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Equal(t, []string{"settlement"}, q.types)
	assert.Equal(t, models.JobPayload{AccountID: "A1"}, q.payloads[0])

	rec = do(e, http.MethodPost, "/api/v1/jobs/correlation", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/jobs/reindex", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, q.types, 2)
}

func TestTriggerJobIsThrottled(t *testing.T) {
	e, q := newLimitedServer(t, ratelimit.New(1, 0.001))

	assert.Equal(t, http.StatusAccepted, do(e, http.MethodPost, "/api/v1/jobs/portfolio", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodPost, "/api/v1/jobs/portfolio", "").Code)
	assert.Equal(t, http.StatusAccepted, do(e, http.MethodPost, "/api/v1/jobs/profile", "").Code)
	assert.Equal(t, []string{"portfolio", "profile"}, q.types)
}
