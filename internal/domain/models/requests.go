package models

import "Pasture/pkg/timeseries"

// Requests for analysis HTTP endpoints.

type CorrelationRequest struct {
	Symbols    []string        `json:"symbols" validate:"required,min=2,dive,required"`
	Periods    int             `json:"periods" default:"5" validate:"gte=1,lte=60"`
	MinPeriods int             `json:"min_periods" default:"20" validate:"gte=1"`
	Method     string          `json:"method" default:"pearson" validate:"oneof=pearson spearman"`
	FromDate   timeseries.Date `json:"from_date"`
	ToDate     timeseries.Date `json:"to_date"`
}

type UniverseRequest struct {
	Name     string          `param:"name" validate:"required"`
	FromDate timeseries.Date `query:"from_date"`
	ToDate   timeseries.Date `query:"to_date"`
}

type RunModelRequest struct {
	Symbols  []string        `json:"symbols" validate:"required,min=2,dive,required"`
	Model    string          `json:"model" default:"SAHRP" validate:"oneof=HRP AHRP SAHRP"`
	FromDate timeseries.Date `json:"from_date"`
	ToDate   timeseries.Date `json:"to_date"`
}

type BacktestRequest struct {
	Portfolio []WeightEntry   `json:"portfolio" validate:"required,min=1,dive"`
	FromDate  timeseries.Date `json:"from_date"`
	ToDate    timeseries.Date `json:"to_date"`
}

type PerformanceRequest struct {
	Portfolio  []WeightEntry   `json:"portfolio" validate:"required,min=1,dive"`
	BenchMarks []string        `json:"bench_marks" validate:"required,min=1,dive,required"`
	FromDate   timeseries.Date `json:"from_date"`
	ToDate     timeseries.Date `json:"to_date"`
}

type CalcSharesRequest struct {
	Weights map[string]float64 `json:"weights" validate:"required,min=1"`
	Base    float64            `json:"base" validate:"gt=0"`
}

type TriggerJobRequest struct {
	Job       string   `param:"job" validate:"required,oneof=settlement holding portfolio profile correlation"`
	AccountID string   `json:"account_id"`
	Period    string   `json:"period"`
	Symbols   []string `json:"symbols"`
}

// AccountHistoryRequest leaves both dates open by default: the whole account history.
type AccountHistoryRequest struct {
	AccountID string          `param:"account_id" validate:"required"`
	FromDate  timeseries.Date `query:"from_date"`
	ToDate    timeseries.Date `query:"to_date"`
}
