package flow

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/flowbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ORDER BOOK IMBALANCE - Normalized bid/ask pressure from book depth
// ═══════════════════════════════════════════════════════════════════════════════
//
// OBI = (Σ bid volume - Σ ask volume) / (Σ bid volume + Σ ask volume)
//
// Positive = buy pressure, negative = sell pressure, always in [-1, 1].
// Every computation is recorded in a short ring so divergence between book
// pressure and actual price movement (a spoofing tell) can be detected.
//
// ═══════════════════════════════════════════════════════════════════════════════

const obiHistoryCap = 100

// HistoryPoint is one recorded OBI observation.
type HistoryPoint struct {
	Timestamp time.Time
	OBI       float64
	Price     decimal.Decimal
	BidVolume int64
	AskVolume int64
}

// OBICalculator computes book imbalance and keeps a bounded history of it.
type OBICalculator struct {
	history *ring[HistoryPoint]
}

// NewOBICalculator creates a calculator with an empty history.
func NewOBICalculator() *OBICalculator {
	return &OBICalculator{history: newRing[HistoryPoint](obiHistoryCap)}
}

// Compute returns the imbalance over the top `depth` levels of each side and
// appends the observation to the history. An empty (or zero-volume) book
// yields 0, never an error.
func (c *OBICalculator) Compute(book *types.OrderBook, depth int) float64 {
	var bidVol, askVol int64
	for i := 0; i < depth && i < len(book.Bids); i++ {
		bidVol += book.Bids[i].Volume
	}
	for i := 0; i < depth && i < len(book.Asks); i++ {
		askVol += book.Asks[i].Volume
	}

	obi := 0.0
	if total := bidVol + askVol; total > 0 {
		obi = float64(bidVol-askVol) / float64(total)
	}

	c.history.push(HistoryPoint{
		Timestamp: book.Timestamp,
		OBI:       obi,
		Price:     book.MidPrice(),
		BidVolume: bidVol,
		AskVolume: askVol,
	})

	return obi
}

// HistoryLen returns how many observations are buffered.
func (c *OBICalculator) HistoryLen() int { return c.history.len() }

// Divergence thresholds: a strongly one-sided book contradicted by a >=0.5%
// move the other way is treated as a fake wall.
const (
	divergenceOBIThreshold   = 0.5
	divergencePriceThreshold = 0.005
)

// DetectDivergence compares mean OBI over the last `lookback` observations
// against the price change across the same window. A short history reports
// "insufficient data" rather than an error.
func (c *OBICalculator) DetectDivergence(lookback int) (bool, string) {
	pts := c.history.last(lookback)
	if pts == nil || lookback < 2 {
		return false, "insufficient data"
	}

	sum := 0.0
	for _, p := range pts {
		sum += p.OBI
	}
	meanOBI := sum / float64(len(pts))

	first, last := pts[0].Price, pts[len(pts)-1].Price
	if first.IsZero() {
		return false, "insufficient data"
	}
	priceChange, _ := last.Sub(first).Div(first).Float64()

	if meanOBI > divergenceOBIThreshold && priceChange <= -divergencePriceThreshold {
		return true, fmt.Sprintf(
			"fake bid wall: mean OBI %.2f but price fell %.2f%% (passive distribution risk)",
			meanOBI, -priceChange*100)
	}
	if meanOBI < -divergenceOBIThreshold && priceChange >= divergencePriceThreshold {
		return true, fmt.Sprintf(
			"fake ask wall: mean OBI %.2f but price rose %.2f%% (passive accumulation risk)",
			meanOBI, priceChange*100)
	}

	return false, "no divergence"
}
