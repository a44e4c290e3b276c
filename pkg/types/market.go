// Package types provides shared data-model definitions for the strategy
// execution engine: market data, orders, and the strategy JSON schema.
package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of a position or order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Tick is a single trade print for a symbol.
type Tick struct {
	Timestamp time.Time       `json:"timestamp"`
	Symbol    string          `json:"symbol"`
	LTP       decimal.Decimal `json:"ltp"`
	LTQ       decimal.Decimal `json:"ltq"`
	Volume    decimal.Decimal `json:"volume,omitempty"`
	OI        decimal.Decimal `json:"oi,omitempty"`
}

// LTPEntry is the last-traded-price store's value type.
type LTPEntry struct {
	LTP       decimal.Decimal `json:"ltp"`
	Timestamp time.Time       `json:"timestamp"`
	Volume    decimal.Decimal `json:"volume,omitempty"`
	OI        decimal.Decimal `json:"oi,omitempty"`
}

// CandleField names one of the OHLCV fields addressable by an expression.
type CandleField string

const (
	FieldOpen   CandleField = "open"
	FieldHigh   CandleField = "high"
	FieldLow    CandleField = "low"
	FieldClose  CandleField = "close"
	FieldVolume CandleField = "volume"
)

// Candle is one OHLCV bar for a (symbol, timeframe) pair.
type Candle struct {
	Symbol     string              `json:"symbol"`
	Timeframe  int                 `json:"timeframe"` // minutes
	Timestamp  time.Time           `json:"timestamp"` // bucket start
	Open       decimal.Decimal     `json:"open"`
	High       decimal.Decimal     `json:"high"`
	Low        decimal.Decimal     `json:"low"`
	Close      decimal.Decimal     `json:"close"`
	Volume     decimal.Decimal     `json:"volume"`
	TickCount  int                 `json:"tickCount"`
	Completed  bool                `json:"completed"`
	Indicators map[string]*decimal.Decimal `json:"indicators,omitempty"`
}

// Field returns the value of the named OHLCV field.
func (c *Candle) Field(f CandleField) decimal.Decimal {
	switch f {
	case FieldOpen:
		return c.Open
	case FieldHigh:
		return c.High
	case FieldLow:
		return c.Low
	case FieldClose:
		return c.Close
	case FieldVolume:
		return c.Volume
	default:
		return decimal.Zero
	}
}

// Side/OrderType/OrderStatus mirror the broker OrderGateway contract (§6).
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeSLMarket  OrderType = "SL_MARKET"
	OrderTypeSLLimit   OrderType = "SL_LIMIT"
)

type ProductType string

const (
	ProductIntraday  ProductType = "INTRADAY"
	ProductNormal    ProductType = "NORMAL"
	ProductCover     ProductType = "COVER"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusComplete        OrderStatus = "complete"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// IsTerminal reports whether the order will not change state again.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusComplete, OrderStatusRejected, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderRequest is submitted to an OrderGateway.
type OrderRequest struct {
	Symbol      string          `json:"symbol"`
	Exchange    string          `json:"exchange"`
	Side        Side            `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	OrderType   OrderType       `json:"orderType"`
	ProductType ProductType     `json:"productType"`
	Price       decimal.Decimal `json:"price,omitempty"`
	NodeID      string          `json:"nodeId"`
}

// OrderAck is the gateway's immediate response to PlaceOrder.
type OrderAck struct {
	OrderID       string `json:"orderId"`
	BrokerOrderID string `json:"brokerOrderId"`
}

// OrderStatusInfo is the gateway's view of an order's current state.
type OrderStatusInfo struct {
	Status           OrderStatus     `json:"status"`
	FilledQuantity   decimal.Decimal `json:"filledQuantity"`
	Quantity         decimal.Decimal `json:"quantity"`
	AveragePrice     decimal.Decimal `json:"averagePrice"`
	CompletedAt      time.Time       `json:"completedAt,omitempty"`
	RejectionReason  string          `json:"rejectionReason,omitempty"`
}

// CancelResult is returned from OrderGateway.CancelOrder.
type CancelResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// ExchangeFor returns the default exchange for a symbol per §4.1's tie-break rule.
func ExchangeFor(symbol string) string {
	if strings.Contains(symbol, ":OPT:") || strings.Contains(symbol, ":FUT:") {
		return "NFO"
	}
	return "NSE"
}
