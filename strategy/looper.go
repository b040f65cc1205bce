package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/flowbot/flow"
	"github.com/web3guy0/flowbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// LOOPER - Entry, partial exit, and pyramided re-entry state machine
// ═══════════════════════════════════════════════════════════════════════════════
//
// The "looping" play: scout a position on confirmed accumulation, add on
// pullbacks that hold near VWAP (Scout → Confirm → Attack), bank half on
// trailing-stop pullbacks from profit, and cut everything on a hard stop or
// distribution pressure.
//
// RULES (NON-NEGOTIABLE):
//   - Spoofing divergence anywhere → HOLD, zero confidence, checked FIRST
//   - The hard stop overrides every other exit condition
//   - Phase never regresses; Attack takes no further adds
//   - Zero size from the risk gate is final
//
// ═══════════════════════════════════════════════════════════════════════════════

// Config holds the looper thresholds. All percentages are fractions.
type Config struct {
	StopLossPct       float64 // hard stop (default 3%)
	TakeProfitPct     float64 // trailing exit arms above this gain (default 5%)
	TrailingStopPct   float64 // drawdown from peak that triggers the partial (default 2%)
	PullbackThreshold float64 // pullback from peak that can trigger a re-entry (default 1.5%)
	VWAPProximity     float64 // max distance from VWAP for re-entries (default 0.5%)
	EntryStrength     float64 // min signal strength to open (default 0.4)
	ExitStrength      float64 // min distribution strength to force exit (default 0.5)
	ATRStopMult       float64 // stop = entry - mult x ATR (default 1.5)
	ATRTargetMult     float64 // target = entry + mult x ATR (default 3.0)
	LotSize           int64   // share lot for phase slices (default 100)
}

// Validate rejects broken thresholds at construction time.
func (c Config) Validate() error {
	if c.StopLossPct < 0 || c.TakeProfitPct < 0 || c.TrailingStopPct < 0 ||
		c.PullbackThreshold < 0 || c.VWAPProximity < 0 {
		return fmt.Errorf("strategy config: negative threshold")
	}
	if c.EntryStrength < 0 || c.EntryStrength > 1 || c.ExitStrength < 0 || c.ExitStrength > 1 {
		return fmt.Errorf("strategy config: strength cutoff outside [0,1]")
	}
	if c.LotSize < 0 {
		return fmt.Errorf("strategy config: negative lot size")
	}
	return nil
}

// DefaultConfig returns the standard looping thresholds.
func DefaultConfig() Config {
	return Config{
		StopLossPct:       0.03,
		TakeProfitPct:     0.05,
		TrailingStopPct:   0.02,
		PullbackThreshold: 0.015,
		VWAPProximity:     0.005,
		EntryStrength:     0.4,
		ExitStrength:      0.5,
		ATRStopMult:       1.5,
		ATRTargetMult:     3.0,
		LotSize:           100,
	}
}

// Looper owns the position state machine for one instrument.
type Looper struct {
	cfg        Config
	instrument string
	approver   TradeApprover
	position   *Position
}

// NewLooper creates a looper with a validated config.
func NewLooper(instrument string, cfg Config, approver TradeApprover) (*Looper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.LotSize == 0 {
		cfg.LotSize = 100
	}
	return &Looper{cfg: cfg, instrument: instrument, approver: approver}, nil
}

// Position returns a copy of the open position, false when flat.
func (l *Looper) Position() (Position, bool) {
	if l.position == nil {
		return Position{}, false
	}
	return *l.position, true
}

// Evaluate runs one step of the state machine and applies the transition it
// decides on. Synchronous and non-blocking: one update in, one decision out.
func (l *Looper) Evaluate(analysis flow.AnalysisResult, ind types.IndicatorSet, price decimal.Decimal, now time.Time) DecisionSignal {
	// Manipulation check comes before everything, entry and exit alike.
	if analysis.Signal == flow.SignalSpoofingDetected {
		reason := "spoofing divergence - standing aside"
		if analysis.Divergence != nil {
			reason = "spoofing divergence - " + analysis.Divergence.Reason
		}
		return l.hold(reason, 0, now)
	}

	if l.position == nil {
		return l.evaluateEntry(analysis, ind, price, now)
	}
	return l.evaluateOpen(analysis, ind, price, now)
}

// evaluateEntry decides whether to open a position.
func (l *Looper) evaluateEntry(analysis flow.AnalysisResult, ind types.IndicatorSet, price decimal.Decimal, now time.Time) DecisionSignal {
	if !analysis.Signal.Bullish() || analysis.Strength <= l.cfg.EntryStrength {
		return l.hold("no entry signal", analysis.Strength, now)
	}

	full, reason := l.approver.ApproveSize(price, ind.ATR)
	if full == 0 {
		return l.hold("risk gate refused entry: "+reason, 0, now)
	}

	// Iceberg support under the book skips the scout step.
	phase := PhaseScout
	if analysis.Iceberg != nil && analysis.Iceberg.Kind == flow.IcebergBid {
		phase = PhaseConfirm
	}

	shares := l.phaseSlice(full, 0, phase.fraction())
	if shares == 0 {
		return l.hold("approved size below one lot", analysis.Strength, now)
	}

	stop, target := l.stops(price, ind.ATR)
	l.position = &Position{
		Instrument:        l.instrument,
		EntryPrice:        price,
		CurrentPrice:      price,
		Quantity:          shares,
		Phase:             phase,
		EntryTime:         now,
		HighestSinceEntry: price,
		StopLoss:          stop,
		TakeProfit:        target,
	}

	log.Info().
		Str("instrument", l.instrument).
		Str("phase", phase.String()).
		Int64("shares", shares).
		Str("entry", price.StringFixed(2)).
		Str("stop", stop.StringFixed(2)).
		Msg("🎯 Position opened")

	return DecisionSignal{
		Action:       ActionEnter,
		Confidence:   analysis.Strength,
		Entry:        price,
		StopLoss:     stop,
		Target:       target,
		Phase:        phase,
		Reasoning:    fmt.Sprintf("%s (strength %.2f): %s", analysis.Signal, analysis.Strength, analysis.Recommendation),
		PositionSize: shares,
		Timestamp:    now,
	}
}

// evaluateOpen runs the exit/re-entry priority ladder for an open position.
func (l *Looper) evaluateOpen(analysis flow.AnalysisResult, ind types.IndicatorSet, price decimal.Decimal, now time.Time) DecisionSignal {
	pos := l.position
	pos.CurrentPrice = price
	if price.GreaterThan(pos.HighestSinceEntry) {
		pos.HighestSinceEntry = price
	}

	pnlPct := pctChange(pos.EntryPrice, price)
	pullback := pctChange(pos.HighestSinceEntry, price) // <= 0 below the peak

	// 1. Hard stop. Overrides everything, including bullish signals.
	if pnlPct < -l.cfg.StopLossPct {
		return l.fullExit(price, now, 1.0,
			fmt.Sprintf("hard stop: %.2f%% below entry", -pnlPct*100))
	}

	// 2. Distribution pressure with conviction.
	if analysis.Signal.Bearish() && analysis.Strength > l.cfg.ExitStrength {
		return l.fullExit(price, now, analysis.Strength,
			fmt.Sprintf("%s (strength %.2f): cutting ahead of distribution", analysis.Signal, analysis.Strength))
	}

	// 3. Bank half once in profit and pulling back off the peak.
	if pnlPct > l.cfg.TakeProfitPct && -pullback > l.cfg.TrailingStopPct {
		return l.partialExit(price, now, analysis.Strength, pnlPct)
	}

	// 4. Pyramid re-entry: pullback holding near VWAP on continued accumulation.
	if -pullback > l.cfg.PullbackThreshold &&
		l.nearVWAP(price, ind.VWAP) &&
		analysis.Signal.Bullish() &&
		pos.Phase != PhaseAttack {
		return l.reEnter(analysis, ind, price, now)
	}

	return l.hold("holding position", analysis.Strength, now)
}

// reEnter advances the phase and adds the next slice of the approved size.
func (l *Looper) reEnter(analysis flow.AnalysisResult, ind types.IndicatorSet, price decimal.Decimal, now time.Time) DecisionSignal {
	pos := l.position

	full, reason := l.approver.ApproveSize(price, ind.ATR)
	if full == 0 {
		return l.hold("risk gate refused re-entry: "+reason, 0, now)
	}

	next := pos.Phase.next()
	add := l.phaseSlice(full, pos.Phase.fraction(), next.fraction())
	if add == 0 {
		return l.hold("re-entry slice below one lot", analysis.Strength, now)
	}

	pos.Phase = next
	pos.Quantity += add
	pos.LoopCount++

	log.Info().
		Str("instrument", l.instrument).
		Str("phase", next.String()).
		Int64("added", add).
		Int("loop", pos.LoopCount).
		Msg("🔁 Pyramid re-entry")

	return DecisionSignal{
		Action:       ActionReEntry,
		Confidence:   analysis.Strength,
		Entry:        price,
		StopLoss:     pos.StopLoss,
		Target:       pos.TakeProfit,
		Phase:        next,
		Reasoning:    fmt.Sprintf("pullback held near VWAP on %s - advancing to %s", analysis.Signal, next),
		PositionSize: add,
		Timestamp:    now,
	}
}

// partialExit sells half the position.
func (l *Looper) partialExit(price decimal.Decimal, now time.Time, strength, pnlPct float64) DecisionSignal {
	pos := l.position
	half := pos.Quantity / 2
	pnl := price.Sub(pos.EntryPrice).Mul(decimal.NewFromInt(half))
	pos.Quantity -= half

	log.Info().
		Str("instrument", l.instrument).
		Int64("sold", half).
		Str("pnl", pnl.StringFixed(2)).
		Msg("📈 Partial exit - banking half")

	return DecisionSignal{
		Action:       ActionPartialExit,
		Confidence:   strength,
		Entry:        pos.EntryPrice,
		StopLoss:     pos.StopLoss,
		Target:       pos.TakeProfit,
		Phase:        pos.Phase,
		Reasoning:    fmt.Sprintf("trailing pullback at +%.2f%% - taking half off", pnlPct*100),
		PositionSize: half,
		RealizedPnL:  pnl,
		Timestamp:    now,
	}
}

// fullExit closes the position entirely.
func (l *Looper) fullExit(price decimal.Decimal, now time.Time, confidence float64, reason string) DecisionSignal {
	pos := l.position
	pnl := price.Sub(pos.EntryPrice).Mul(decimal.NewFromInt(pos.Quantity))
	qty := pos.Quantity
	phase := pos.Phase
	l.position = nil

	log.Warn().
		Str("instrument", l.instrument).
		Int64("closed", qty).
		Str("pnl", pnl.StringFixed(2)).
		Str("reason", reason).
		Msg("🛑 Full exit")

	return DecisionSignal{
		Action:       ActionFullExit,
		Confidence:   confidence,
		Entry:        pos.EntryPrice,
		StopLoss:     pos.StopLoss,
		Target:       pos.TakeProfit,
		Phase:        phase,
		Reasoning:    reason,
		PositionSize: qty,
		RealizedPnL:  pnl,
		Timestamp:    now,
	}
}

func (l *Looper) hold(reason string, confidence float64, now time.Time) DecisionSignal {
	d := DecisionSignal{
		Action:     ActionHold,
		Confidence: confidence,
		Reasoning:  reason,
		Timestamp:  now,
	}
	if l.position != nil {
		d.Phase = l.position.Phase
		d.Entry = l.position.EntryPrice
		d.StopLoss = l.position.StopLoss
		d.Target = l.position.TakeProfit
	}
	return d
}

// stops derives stop/target from ATR at entry time only; they are never
// recomputed on hold. Falls back to percentage stops when ATR is unavailable.
func (l *Looper) stops(entry, atr decimal.Decimal) (stop, target decimal.Decimal) {
	if atr.IsPositive() {
		stop = entry.Sub(atr.Mul(decimal.NewFromFloat(l.cfg.ATRStopMult)))
		target = entry.Add(atr.Mul(decimal.NewFromFloat(l.cfg.ATRTargetMult)))
		return stop, target
	}
	stop = entry.Mul(decimal.NewFromFloat(1 - l.cfg.StopLossPct))
	target = entry.Mul(decimal.NewFromFloat(1 + 2*l.cfg.TakeProfitPct))
	return stop, target
}

// phaseSlice returns the lot-floored share count between two cumulative
// phase fractions of the full approved size.
func (l *Looper) phaseSlice(full int64, fromFrac, toFrac float64) int64 {
	raw := int64(math.Floor(float64(full) * (toFrac - fromFrac)))
	floored := raw - raw%l.cfg.LotSize
	if floored <= 0 && raw > 0 {
		// A positive slice never rounds to nothing while the full size
		// covers at least one lot.
		if full >= l.cfg.LotSize {
			return l.cfg.LotSize
		}
	}
	return floored
}

// nearVWAP reports whether price is within the configured proximity of VWAP.
func (l *Looper) nearVWAP(price, vwap decimal.Decimal) bool {
	if !vwap.IsPositive() {
		return false
	}
	dist, _ := price.Sub(vwap).Abs().Div(vwap).Float64()
	return dist <= l.cfg.VWAPProximity
}

// pctChange returns (to-from)/from as a float, 0 when from is zero.
func pctChange(from, to decimal.Decimal) float64 {
	if from.IsZero() {
		return 0
	}
	pct, _ := to.Sub(from).Div(from).Float64()
	return pct
}
