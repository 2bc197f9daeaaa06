package models

import (
	"time"

	"Pasture/pkg/timeseries"
)

// Side is the broker order side code.
type Side string

const (
	SideAsk Side = "01"
	SideBid Side = "02"
)

// Sign is +1 for buys and -1 for sells.
func (s Side) Sign() float64 {
	switch s {
	case SideBid:
		return 1
	case SideAsk:
		return -1
	}
	return 0
}

func (s Side) Valid() bool { return s == SideAsk || s == SideBid }

// TradeType classifies cash movements on an account.
type TradeType string

const (
	TradeDepositInterest TradeType = "DEPOSIT_INTEREST"
	TradeDepositKRW      TradeType = "DEPOSIT_KRW"
	TradeWithdrawKRW     TradeType = "WITHDRAW_KRW"
	TradeDepositUSD      TradeType = "DEPOSIT_USD"
	TradeWithdrawUSD     TradeType = "WITHDRAW_USD"
	TradeDividendUSD     TradeType = "DIVIDEND_INPUT_USD"
	TradeExchangeUSD     TradeType = "EXCHANGE_USD"
)

// DefaultTradeTypes are the columns produced when pivoting trade events.
var DefaultTradeTypes = []TradeType{
	TradeDepositInterest,
	TradeDepositKRW,
	TradeWithdrawKRW,
	TradeDepositUSD,
	TradeWithdrawUSD,
	TradeDividendUSD,
	TradeExchangeUSD,
}

type Account struct {
	AccountID   string `json:"account_id"`
	AccountType string `json:"account_type"`
	IsActive    bool   `json:"is_active"`
}

// OrderEvent is one executed broker order.
type OrderEvent struct {
	AccountID      string          `json:"account_id"`
	OrderDate      timeseries.Date `json:"order_date"`
	OrderNo        string          `json:"order_no"`
	Symbol         string          `json:"symbol"`
	Side           Side            `json:"side"`
	ExecutedQty    float64         `json:"executed_qty"`
	ExecutedPrice  float64         `json:"executed_price"`
	ExecutedAmount float64         `json:"executed_amount"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TradeEvent is one cash movement. Withdrawals carry negative settle amounts.
type TradeEvent struct {
	AccountID    string          `json:"account_id"`
	TradeDate    timeseries.Date `json:"trade_date"`
	TradeType    TradeType       `json:"trade_type"`
	TradeAmount  float64         `json:"trade_amount"`
	SettleAmount float64         `json:"settle_amount"`
	Tax          float64         `json:"tax"`
	VAT          float64         `json:"vat"`
	CurrencyCode string          `json:"currency_code"`
	Symbol       string          `json:"symbol,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SettlementRecord is one day of an account's KRW cash ledger.
type SettlementRecord struct {
	AccountID          string          `json:"account_id"`
	BaseDate           timeseries.Date `json:"base_date"`
	BaseAmountKRW      float64         `json:"base_amount_krw"`
	BaseIOKRW          float64         `json:"base_io_krw"`
	BaseIOUSD          float64         `json:"base_io_usd"`
	DividendUSD        float64         `json:"dividend_usd"`
	DepositInterestKRW float64         `json:"deposit_interest_krw"`
	ExchangeRate       float64         `json:"exchange_rate"`
	CreatedAt          time.Time       `json:"created_at"`
}

// HoldingRecord is one day of a position in one symbol.
type HoldingRecord struct {
	AccountID   string          `json:"account_id"`
	BaseDate    timeseries.Date `json:"base_date"`
	Symbol      string          `json:"symbol"`
	HoldingQty  float64         `json:"holding_qty"`
	MarketPrice float64         `json:"market_price"`
	EvalAmt     float64         `json:"eval_amt"`
	BuyQty      float64         `json:"buy_qty"`
	SellQty     float64         `json:"sell_qty"`
}
