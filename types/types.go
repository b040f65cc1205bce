package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Market data contracts consumed by the whole pipeline
// ═══════════════════════════════════════════════════════════════════════════════
//
// OrderBook and Trade are immutable snapshots: one is built per market data
// update and handed to the analyzer for the duration of a single call. Nothing
// in the pipeline holds onto them.
//
// ═══════════════════════════════════════════════════════════════════════════════

// OrderBookLevel is a single price level of the book.
// QueueCount is at least 1 whenever Volume is positive.
type OrderBookLevel struct {
	Price      decimal.Decimal
	Volume     int64
	QueueCount int
}

// OrderBook is one snapshot of the book for a single instrument.
// Bids are best-first (descending price), asks best-first (ascending price).
type OrderBook struct {
	Instrument string
	Timestamp  time.Time
	Bids       []OrderBookLevel
	Asks       []OrderBookLevel
	LastPrice  decimal.Decimal
	LastVolume int64
}

// BestBid returns the top bid level, or false when the bid side is empty.
func (b *OrderBook) BestBid() (OrderBookLevel, bool) {
	if len(b.Bids) == 0 {
		return OrderBookLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask level, or false when the ask side is empty.
func (b *OrderBook) BestAsk() (OrderBookLevel, bool) {
	if len(b.Asks) == 0 {
		return OrderBookLevel{}, false
	}
	return b.Asks[0], true
}

// MidPrice returns the midpoint of best bid/ask, zero when either side is empty.
func (b *OrderBook) MidPrice() decimal.Decimal {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return decimal.Zero
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2))
}

// Spread returns best ask minus best bid, zero when either side is empty.
func (b *OrderBook) Spread() decimal.Decimal {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return decimal.Zero
	}
	return ask.Price.Sub(bid.Price)
}

// Trade is a single print from the tape.
type Trade struct {
	Price     decimal.Decimal
	Volume    int64
	Timestamp time.Time
}

// IndicatorSet is the flat indicator mapping supplied by the indicator
// collaborator on every decision call. Values the collaborator cannot
// compute yet arrive at their neutral defaults (RSI 50, zero VWAP/ATR).
type IndicatorSet struct {
	VWAP decimal.Decimal
	RSI  float64
	ATR  decimal.Decimal
}

// TradeRecord is a closed or opened trade, as handed to persistence and alerting.
type TradeRecord struct {
	ID         string
	Instrument string
	Action     string // OPEN, ADD, PARTIAL_CLOSE, CLOSE
	Price      decimal.Decimal
	Quantity   int64
	PnL        decimal.Decimal
	Phase      string
	Timestamp  time.Time
}
