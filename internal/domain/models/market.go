package models

import (
	"time"

	"Pasture/pkg/timeseries"

	"github.com/google/uuid"
)

type PriceBar struct {
	Symbol   string          `json:"symbol"`
	BaseDate timeseries.Date `json:"base_date"`
	Open     float64         `json:"open"`
	High     float64         `json:"high"`
	Low      float64         `json:"low"`
	Close    float64         `json:"close"`
	AdjClose float64         `json:"adj_close"`
	Volume   float64         `json:"volume"`
}

type ExchangeRateQuote struct {
	CurrencyCode string          `json:"currency_code"`
	BaseDate     timeseries.Date `json:"base_date"`
	TradingRate  float64         `json:"trading_rate"`
}

// AssetType is E for ETFs and S for single stocks.
type AssetType string

const (
	AssetETF   AssetType = "E"
	AssetStock AssetType = "S"
)

type Asset struct {
	Symbol      string    `json:"symbol"`
	AssetType   AssetType `json:"asset_type"`
	Category    string    `json:"category"`
	SubCategory string    `json:"sub_category"`
	Description string    `json:"description,omitempty"`
}

// AssetUniverse is a named set of symbols.
type AssetUniverse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Symbols     []string  `json:"symbols"`
	CreatedAt   time.Time `json:"created_at"`
}
