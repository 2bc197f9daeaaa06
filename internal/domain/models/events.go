package models

import (
	"time"

	"Pasture/pkg/timeseries"
)

// RecordKind names a derived record stream.
type RecordKind string

const (
	RecordSettlement  RecordKind = "settlement"
	RecordHolding     RecordKind = "holding"
	RecordPortfolio   RecordKind = "portfolio"
	RecordProfile     RecordKind = "profile"
	RecordCorrelation RecordKind = "correlation"
)

// RecordEvent announces that derived rows were appended.
type RecordEvent struct {
	Kind      RecordKind      `json:"kind"`
	AccountID string          `json:"account_id,omitempty"`
	From      timeseries.Date `json:"from"`
	To        timeseries.Date `json:"to"`
	Rows      int             `json:"rows"`
	Deleted   int             `json:"deleted,omitempty"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// IngestNotice is published upstream when raw rows for an account land.
type IngestNotice struct {
	Source    string `json:"source"` // orders, trades, prices, rates
	AccountID string `json:"account_id,omitempty"`
}

// JobPayload carries the arguments of a queued job.
type JobPayload struct {
	AccountID string   `json:"account_id,omitempty"`
	Period    string   `json:"period,omitempty"`
	Symbols   []string `json:"symbols,omitempty"`
}
