package api

import (
	"errors"
	"time"

	models "Pasture/internal/domain/models"
	"Pasture/internal/service/ratelimit"
	"Pasture/internal/usecase"
	xhttp "Pasture/pkg/http"
	xlogger "Pasture/pkg/logger"
	"Pasture/pkg/queue"
	"Pasture/pkg/timeseries"

	"github.com/labstack/echo/v4"
)

// defaultWindowDays is used when a request leaves from_date empty.
const defaultWindowDays = 365

// AnalysisEchoHandler serves the portfolio analytics endpoints.
type AnalysisEchoHandler struct {
	logger   *xlogger.Logger
	analysis *usecase.Analysis
	jobs     queue.QueueService
	limiter  *ratelimit.Limiter
	now      func() time.Time
}

func NewAnalysisEchoHandler(logger *xlogger.Logger, analysis *usecase.Analysis, jobs queue.QueueService) *AnalysisEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &AnalysisEchoHandler{logger: logger, analysis: analysis, jobs: jobs, now: time.Now}
}

// WithClock overrides the clock used to default request windows.
func (h *AnalysisEchoHandler) WithClock(now func() time.Time) *AnalysisEchoHandler {
	h.now = now
	return h
}

// WithJobLimiter throttles job triggers per client and job.
func (h *AnalysisEchoHandler) WithJobLimiter(l *ratelimit.Limiter) *AnalysisEchoHandler {
	h.limiter = l
	return h
}

func (h *AnalysisEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api/v1")
	g.GET("/universes/:name/hrp", h.UniverseHRP)
	g.POST("/correlation", h.Correlation)
	g.POST("/portfolio/run", h.RunModel)
	g.POST("/portfolio/shares", h.CalcShares)
	g.GET("/portfolio/latest", h.LatestPortfolio)
	g.POST("/backtest", h.Backtest)
	g.POST("/performance", h.Performance)

	var mw []echo.MiddlewareFunc
	if h.limiter != nil {
		mw = append(mw, ratelimit.Middleware(h.limiter, func(c echo.Context) string {
			return c.RealIP() + "/" + c.Param("job")
		}))
	}
	g.POST("/jobs/:job", h.TriggerJob, mw...)
}

func (h *AnalysisEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *AnalysisEchoHandler) UniverseHRP(c echo.Context) error {
	req := &models.UniverseRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	w, ok := h.window(req.FromDate, req.ToDate)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.ValidationFailed("from_date", "from_date must not be after to_date"))
	}

	res, err := h.analysis.UniverseHRP(c.Request().Context(), req.Name, w)
	if err != nil {
		h.logger.Error("universe hrp usecase error", xlogger.String("universe", req.Name), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) Correlation(c echo.Context) error {
	req := &models.CorrelationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	w, ok := h.window(req.FromDate, req.ToDate)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.ValidationFailed("from_date", "from_date must not be after to_date"))
	}

	res, err := h.analysis.Correlation(c.Request().Context(), req, w)
	if err != nil {
		h.logger.Error("correlation usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) RunModel(c echo.Context) error {
	req := &models.RunModelRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	w, ok := h.window(req.FromDate, req.ToDate)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.ValidationFailed("from_date", "from_date must not be after to_date"))
	}

	res, err := h.analysis.RunModel(c.Request().Context(), req, w)
	if err != nil {
		h.logger.Error("run model usecase error", xlogger.String("model", req.Model), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	w, ok := h.window(req.FromDate, req.ToDate)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.ValidationFailed("from_date", "from_date must not be after to_date"))
	}

	res, err := h.analysis.Backtest(c.Request().Context(), req, w)
	if err != nil {
		h.logger.Error("backtest usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *AnalysisEchoHandler) Performance(c echo.Context) error {
	req := &models.PerformanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	w, ok := h.window(req.FromDate, req.ToDate)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.ValidationFailed("from_date", "from_date must not be after to_date"))
	}

	res, err := h.analysis.Performance(c.Request().Context(), req, w)
	if err != nil {
		h.logger.Error("performance usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *AnalysisEchoHandler) CalcShares(c echo.Context) error {
	req := &models.CalcSharesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.analysis.CalcShares(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("calc shares usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) LatestPortfolio(c echo.Context) error {
	res, err := h.analysis.LatestPortfolio(c.Request().Context())
	if err != nil {
		h.logger.Error("latest portfolio usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	if res == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no portfolio snapshot stored yet"))
	}
	return xhttp.SuccessResponse(c, res)
}

// TriggerJob enqueues a job; the queue runner executes it.
func (h *AnalysisEchoHandler) TriggerJob(c echo.Context) error {
	req := &models.TriggerJobRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("job queue is not configured"))
	}

	payload := models.JobPayload{AccountID: req.AccountID, Period: req.Period, Symbols: req.Symbols}
	if err := h.jobs.Enqueue(c.Request().Context(), req.Job, payload); err != nil {
		h.logger.Error("enqueue job failed", xlogger.String("job", req.Job), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("job queue rejected the request").WithError(err))
	}
	return xhttp.AcceptedResponse(c, map[string]interface{}{"job": req.Job, "payload": payload})
}

func (h *AnalysisEchoHandler) window(from, to timeseries.Date) (usecase.Window, bool) {
	f, t, ok := xhttp.ResolveWindow(from, to, timeseries.DateOf(h.now()), defaultWindowDays)
	return usecase.Window{From: f, To: t}, ok
}

// toAppError maps domain failures onto HTTP statuses. Anything else is a 500.
func toAppError(err error) error {
	var (
		amb      *models.UniverseAmbiguityError
		notReady *models.DataNotReadyError
	)
	switch {
	case errors.Is(err, models.ErrUniverseNotFound):
		return xhttp.NotFoundError(err.Error())
	case errors.As(err, &amb):
		return xhttp.BadRequestError(err.Error()).WithParam("matches", amb.Matches)
	case errors.Is(err, models.ErrInvalidWeights):
		return xhttp.ValidationFailed("portfolio", err.Error())
	case errors.Is(err, models.ErrEmptySeries):
		return xhttp.UnprocessableError(err.Error())
	case errors.As(err, &notReady):
		return xhttp.ServiceUnavailableError(err.Error()).WithParam("resource", notReady.Resource)
	}
	return err
}
