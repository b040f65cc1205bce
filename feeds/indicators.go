package feeds

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/flowbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// INDICATOR TRACKER - VWAP / RSI / ATR for the decision loop
// ═══════════════════════════════════════════════════════════════════════════════
//
// This is the indicator collaborator: the core consumes its output as a flat
// IndicatorSet and never computes indicators itself. Values default to their
// neutral fallbacks (RSI 50, zero VWAP/ATR) until enough prints arrive.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	rsiPeriod = 14
	atrPeriod = 14

	neutralRSI = 50.0
)

// IndicatorTracker accumulates prints and derives the indicator set.
type IndicatorTracker struct {
	mu sync.RWMutex

	// VWAP accumulators (reset on day rollover)
	cumPV  decimal.Decimal
	cumVol decimal.Decimal

	// close history for RSI and ATR
	closes []decimal.Decimal
	highs  []decimal.Decimal
	lows   []decimal.Decimal

	// current bar under construction
	barCount int
	barSize  int
	barHigh  decimal.Decimal
	barLow   decimal.Decimal
	barLast  decimal.Decimal
}

// NewIndicatorTracker creates a tracker building one bar per barSize prints.
func NewIndicatorTracker(barSize int) *IndicatorTracker {
	if barSize < 1 {
		barSize = 20
	}
	return &IndicatorTracker{barSize: barSize}
}

// Update folds one print into the accumulators.
func (t *IndicatorTracker) Update(trade types.Trade) {
	t.mu.Lock()
	defer t.mu.Unlock()

	vol := decimal.NewFromInt(trade.Volume)
	t.cumPV = t.cumPV.Add(trade.Price.Mul(vol))
	t.cumVol = t.cumVol.Add(vol)

	if t.barCount == 0 {
		t.barHigh = trade.Price
		t.barLow = trade.Price
	} else {
		if trade.Price.GreaterThan(t.barHigh) {
			t.barHigh = trade.Price
		}
		if trade.Price.LessThan(t.barLow) {
			t.barLow = trade.Price
		}
	}
	t.barLast = trade.Price
	t.barCount++

	if t.barCount >= t.barSize {
		t.closes = append(t.closes, t.barLast)
		t.highs = append(t.highs, t.barHigh)
		t.lows = append(t.lows, t.barLow)
		t.barCount = 0

		// bounded history: ATR/RSI need at most their period plus one
		if max := atrPeriod + 1; len(t.closes) > max {
			t.closes = t.closes[1:]
			t.highs = t.highs[1:]
			t.lows = t.lows[1:]
		}
	}
}

// Reset clears the VWAP accumulators for a new session.
func (t *IndicatorTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cumPV = decimal.Zero
	t.cumVol = decimal.Zero
}

// Snapshot returns the current indicator set with neutral fallbacks.
func (t *IndicatorTracker) Snapshot() types.IndicatorSet {
	t.mu.RLock()
	defer t.mu.RUnlock()

	set := types.IndicatorSet{RSI: neutralRSI}
	if t.cumVol.IsPositive() {
		set.VWAP = t.cumPV.Div(t.cumVol)
	}
	set.ATR = t.atr()
	if rsi, ok := t.rsi(); ok {
		set.RSI = rsi
	}
	return set
}

// atr computes Average True Range over the bar history.
func (t *IndicatorTracker) atr() decimal.Decimal {
	if len(t.closes) < 2 {
		return decimal.Zero
	}

	sum := decimal.Zero
	for i := 1; i < len(t.closes); i++ {
		hl := t.highs[i].Sub(t.lows[i])
		hpc := t.highs[i].Sub(t.closes[i-1]).Abs()
		lpc := t.lows[i].Sub(t.closes[i-1]).Abs()

		tr := hl
		if hpc.GreaterThan(tr) {
			tr = hpc
		}
		if lpc.GreaterThan(tr) {
			tr = lpc
		}
		sum = sum.Add(tr)
	}
	return sum.Div(decimal.NewFromInt(int64(len(t.closes) - 1)))
}

// rsi computes the classic Wilder RSI over closes, false when history is short.
func (t *IndicatorTracker) rsi() (float64, bool) {
	if len(t.closes) < rsiPeriod+1 {
		return 0, false
	}

	gains, losses := decimal.Zero, decimal.Zero
	start := len(t.closes) - rsiPeriod
	for i := start; i < len(t.closes); i++ {
		change := t.closes[i].Sub(t.closes[i-1])
		if change.IsPositive() {
			gains = gains.Add(change)
		} else {
			losses = losses.Add(change.Abs())
		}
	}

	if losses.IsZero() {
		return 100, true
	}
	rs, _ := gains.Div(losses).Float64()
	return 100 - 100/(1+rs), true
}
