package flow

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TRADE CLASSIFIER - Aggressor side from the quote rule + tick-test fallback
// ═══════════════════════════════════════════════════════════════════════════════
//
// Above the midpoint the buyer crossed the spread, below it the seller did.
// Exactly at the midpoint we fall back to the tick test against the previous
// print. Classification happens exactly once per trade, on arrival.
//
// ═══════════════════════════════════════════════════════════════════════════════

const tradeHistoryCap = 500

type classifiedTrade struct {
	Side      Side
	Price     decimal.Decimal
	Volume    int64
	Timestamp time.Time
}

// TradeClassifier labels prints and accumulates directional volume over a
// bounded window of the most recent classified trades.
type TradeClassifier struct {
	history *ring[classifiedTrade]

	buyVolume  int64
	sellVolume int64

	prevPrice decimal.Decimal
	prevSide  Side
	hasPrev   bool

	// all-time tape stats, used for the sweep volume baseline
	totalVolume int64
	totalCount  int64
}

// NewTradeClassifier creates a classifier with an empty tape.
func NewTradeClassifier() *TradeClassifier {
	return &TradeClassifier{history: newRing[classifiedTrade](tradeHistoryCap)}
}

// Classify labels one print and records it. Running buy/sell volumes are
// adjusted both for the insertion and for whatever the bounded history evicts.
func (tc *TradeClassifier) Classify(price decimal.Decimal, volume int64, bestBid, bestAsk decimal.Decimal, ts time.Time) Side {
	side := tc.label(price, bestBid, bestAsk)

	evicted, wasFull := tc.history.push(classifiedTrade{Side: side, Price: price, Volume: volume, Timestamp: ts})
	if wasFull {
		switch evicted.Side {
		case SideBuy:
			tc.buyVolume -= evicted.Volume
		case SideSell:
			tc.sellVolume -= evicted.Volume
		}
	}
	switch side {
	case SideBuy:
		tc.buyVolume += volume
	case SideSell:
		tc.sellVolume += volume
	}

	tc.totalVolume += volume
	tc.totalCount++
	tc.prevPrice = price
	tc.prevSide = side
	tc.hasPrev = true

	return side
}

// label applies the quote rule, then the tick test at the midpoint.
func (tc *TradeClassifier) label(price, bestBid, bestAsk decimal.Decimal) Side {
	mid := bestBid.Add(bestAsk).Div(decimal.NewFromInt(2))
	switch {
	case price.GreaterThan(mid):
		return SideBuy
	case price.LessThan(mid):
		return SideSell
	}

	// At the midpoint: tick test against the previous print.
	if !tc.hasPrev {
		return SideNeutral
	}
	switch {
	case price.GreaterThan(tc.prevPrice):
		return SideBuy
	case price.LessThan(tc.prevPrice):
		return SideSell
	default:
		return tc.prevSide
	}
}

// BuyVolume returns aggregate buyer-initiated volume over the bounded window.
func (tc *TradeClassifier) BuyVolume() int64 { return tc.buyVolume }

// SellVolume returns aggregate seller-initiated volume over the bounded window.
func (tc *TradeClassifier) SellVolume() int64 { return tc.sellVolume }

// NetFlow returns buy volume minus sell volume.
func (tc *TradeClassifier) NetFlow() int64 { return tc.buyVolume - tc.sellVolume }

// FlowRatio returns buy volume over total classified volume, 0.5 when the
// tape is empty.
func (tc *TradeClassifier) FlowRatio() float64 {
	total := tc.buyVolume + tc.sellVolume
	if total == 0 {
		return 0.5
	}
	return float64(tc.buyVolume) / float64(total)
}

const sweepVolumeMultiple = 3.0

// DetectSweep reports an institutional sweep: the last thresholdCount prints
// unanimous on one side with combined volume above 3x the all-time average
// trade volume.
func (tc *TradeClassifier) DetectSweep(thresholdCount int) bool {
	if thresholdCount < 1 {
		return false
	}
	recent := tc.history.last(thresholdCount)
	if recent == nil || tc.totalCount == 0 {
		return false
	}

	side := recent[0].Side
	if side == SideNeutral {
		return false
	}
	var sum int64
	for _, t := range recent {
		if t.Side != side {
			return false
		}
		sum += t.Volume
	}

	avg := float64(tc.totalVolume) / float64(tc.totalCount)
	return float64(sum) > sweepVolumeMultiple*avg
}
