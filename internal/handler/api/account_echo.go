package api

import (
	models "Pasture/internal/domain/models"
	"Pasture/internal/usecase"
	xhttp "Pasture/pkg/http"
	xlogger "Pasture/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AccountEchoHandler serves per-account history endpoints.
type AccountEchoHandler struct {
	logger   *xlogger.Logger
	accounts *usecase.AccountAnalysis
}

func NewAccountEchoHandler(logger *xlogger.Logger, accounts *usecase.AccountAnalysis) *AccountEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &AccountEchoHandler{logger: logger, accounts: accounts}
}

func (h *AccountEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/accounts/:account_id")
	g.GET("/evaluation", h.Evaluation)
	g.GET("/evaluation/assets", h.AssetEvaluation)
	g.GET("/trades/summary", h.TradeSummary)
	g.GET("/trades/history", h.CashFlow)
}

func (h *AccountEchoHandler) Evaluation(c echo.Context) error {
	req, w, err := h.read(c)
	if err != nil || req == nil {
		return err
	}
	res, uerr := h.accounts.EvaluationHistory(c.Request().Context(), req.AccountID, w)
	if uerr != nil {
		h.logger.Error("evaluation history usecase error", xlogger.String("account_id", req.AccountID), xlogger.Error(uerr))
		return xhttp.AppErrorResponse(c, toAppError(uerr))
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *AccountEchoHandler) AssetEvaluation(c echo.Context) error {
	req, w, err := h.read(c)
	if err != nil || req == nil {
		return err
	}
	res, uerr := h.accounts.AssetEvaluationHistory(c.Request().Context(), req.AccountID, w)
	if uerr != nil {
		h.logger.Error("asset evaluation usecase error", xlogger.String("account_id", req.AccountID), xlogger.Error(uerr))
		return xhttp.AppErrorResponse(c, toAppError(uerr))
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *AccountEchoHandler) TradeSummary(c echo.Context) error {
	req, w, err := h.read(c)
	if err != nil || req == nil {
		return err
	}
	res, uerr := h.accounts.TradeSummaries(c.Request().Context(), req.AccountID, w)
	if uerr != nil {
		h.logger.Error("trade summary usecase error", xlogger.String("account_id", req.AccountID), xlogger.Error(uerr))
		return xhttp.AppErrorResponse(c, toAppError(uerr))
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *AccountEchoHandler) CashFlow(c echo.Context) error {
	req, w, err := h.read(c)
	if err != nil || req == nil {
		return err
	}
	res, uerr := h.accounts.CashFlowHistory(c.Request().Context(), req.AccountID, w)
	if uerr != nil {
		h.logger.Error("cash flow usecase error", xlogger.String("account_id", req.AccountID), xlogger.Error(uerr))
		return xhttp.AppErrorResponse(c, toAppError(uerr))
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

// read binds the request. A nil request means the error response is already written.
func (h *AccountEchoHandler) read(c echo.Context) (*models.AccountHistoryRequest, usecase.Window, error) {
	req := &models.AccountHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return nil, usecase.Window{}, xhttp.BadRequestResponse(c, verr)
	}
	w := usecase.Window{From: req.FromDate, To: req.ToDate}
	if !w.From.IsZero() && !w.To.IsZero() && w.From.After(w.To) {
		return nil, w, xhttp.AppErrorResponse(c, xhttp.ValidationFailed("from_date", "from_date must not be after to_date"))
	}
	return req, w, nil
}
