package flow

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/flowbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ORDER-FLOW ANALYZER - One unified signal per market data update
// ═══════════════════════════════════════════════════════════════════════════════
//
// Composes OBI, the trade classifier and the iceberg detector. Resolution
// order is a deliberate precedence policy: manipulation (divergence) overrides
// everything, hidden liquidity overrides momentum, momentum (sweep) overrides
// passive imbalance.
//
// ═══════════════════════════════════════════════════════════════════════════════

// AnalyzerConfig tunes the analyzer. Zero values take the defaults.
type AnalyzerConfig struct {
	Depth              int     // book levels per side for OBI (default 5)
	DivergenceLookback int     // OBI history window (default 20)
	SweepCount         int     // unanimous prints for a sweep (default 10)
	OBIEntryThreshold  float64 // passive-imbalance signal cutoff (default 0.5)
}

// Validate rejects nonsensical configuration at construction time.
func (c AnalyzerConfig) Validate() error {
	if c.Depth < 0 || c.DivergenceLookback < 0 || c.SweepCount < 0 {
		return fmt.Errorf("analyzer config: negative depth/lookback/sweep count")
	}
	if c.OBIEntryThreshold < 0 || c.OBIEntryThreshold > 1 {
		return fmt.Errorf("analyzer config: OBI threshold %.2f outside [0,1]", c.OBIEntryThreshold)
	}
	return nil
}

func (c AnalyzerConfig) withDefaults() AnalyzerConfig {
	if c.Depth == 0 {
		c.Depth = 5
	}
	if c.DivergenceLookback == 0 {
		c.DivergenceLookback = 20
	}
	if c.SweepCount == 0 {
		c.SweepCount = 10
	}
	if c.OBIEntryThreshold == 0 {
		c.OBIEntryThreshold = 0.5
	}
	return c
}

// Strength contributions. Spoofing carries a fixed strength: it is a hard
// warning, not a graded one.
const (
	spoofingStrength    = 1.0
	icebergOBIThreshold = 0.3
)

// Analyzer owns the rolling order-flow state for one instrument.
type Analyzer struct {
	cfg        AnalyzerConfig
	obi        *OBICalculator
	classifier *TradeClassifier
	iceberg    *IcebergDetector
	instrument string
}

// NewAnalyzer creates an analyzer for one instrument.
func NewAnalyzer(instrument string, cfg AnalyzerConfig) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{
		cfg:        cfg.withDefaults(),
		obi:        NewOBICalculator(),
		classifier: NewTradeClassifier(),
		iceberg:    NewIcebergDetector(),
		instrument: instrument,
	}, nil
}

// Analyze processes one book snapshot plus an optional trade print and
// resolves the unified signal. Pure computation: no I/O, no blocking.
func (a *Analyzer) Analyze(book *types.OrderBook, trade *types.Trade) AnalysisResult {
	obi := a.obi.Compute(book, a.cfg.Depth)

	// A one-sided or empty book has no midpoint to classify against; the
	// print stays neutral and off the tape rather than skewing the flow.
	aggressor := SideNeutral
	if trade != nil {
		bid, okBid := book.BestBid()
		ask, okAsk := book.BestAsk()
		if okBid && okAsk {
			aggressor = a.classifier.Classify(trade.Price, trade.Volume, bid.Price, ask.Price, trade.Timestamp)
		}
	}

	var det *IcebergDetection
	if trade != nil {
		det = a.iceberg.Update(book, trade.Price, trade.Volume, aggressor)
	} else {
		det = a.iceberg.Update(book, book.LastPrice, 0, SideNeutral)
	}

	var div *Divergence
	if ok, reason := a.obi.DetectDivergence(a.cfg.DivergenceLookback); ok {
		div = &Divergence{Reason: reason, Timestamp: book.Timestamp}
		log.Warn().
			Str("instrument", a.instrument).
			Str("reason", reason).
			Msg("👻 Spoofing divergence detected")
	}

	sweep := a.classifier.DetectSweep(a.cfg.SweepCount)

	result := AnalysisResult{
		Timestamp:  book.Timestamp,
		OBI:        obi,
		FlowRatio:  a.classifier.FlowRatio(),
		NetFlow:    a.classifier.NetFlow(),
		Sweep:      sweep,
		Iceberg:    det,
		Divergence: div,
	}
	result.Signal, result.Strength = a.resolve(obi, det, div, sweep, result.NetFlow)
	result.Recommendation = recommendation(result.Signal)

	if det != nil {
		log.Debug().
			Str("instrument", a.instrument).
			Str("kind", string(det.Kind)).
			Str("price", det.Price.StringFixed(2)).
			Int64("refill", det.RefillVolume).
			Msg("🧊 Iceberg refill")
	}

	return result
}

// resolve applies the precedence policy: first match wins.
func (a *Analyzer) resolve(obi float64, det *IcebergDetection, div *Divergence, sweep bool, netFlow int64) (Signal, float64) {
	if div != nil {
		return SignalSpoofingDetected, spoofingStrength
	}

	strength := func(hasIceberg bool) float64 {
		s := 0.5 * math.Abs(obi)
		if sweep {
			s += 0.25
		}
		if hasIceberg {
			s += 0.25
		}
		return math.Min(1.0, s)
	}

	if det != nil {
		switch det.Kind {
		case IcebergBid:
			if obi > icebergOBIThreshold {
				return SignalStrongAccumulation, strength(true)
			}
			return SignalAccumulation, strength(true)
		case IcebergAsk:
			if obi < -icebergOBIThreshold {
				return SignalStrongDistribution, strength(true)
			}
			return SignalDistribution, strength(true)
		}
	}

	if sweep {
		if netFlow >= 0 {
			return SignalStrongAccumulation, strength(false)
		}
		return SignalStrongDistribution, strength(false)
	}

	switch {
	case obi > a.cfg.OBIEntryThreshold:
		return SignalAccumulation, strength(false)
	case obi < -a.cfg.OBIEntryThreshold:
		return SignalDistribution, strength(false)
	default:
		return SignalNeutral, strength(false)
	}
}

func recommendation(s Signal) string {
	switch s {
	case SignalStrongAccumulation:
		return "strong buy pressure with institutional footprints - favorable long"
	case SignalAccumulation:
		return "buy pressure building - consider long"
	case SignalStrongDistribution:
		return "strong sell pressure with institutional footprints - exit or avoid longs"
	case SignalDistribution:
		return "sell pressure building - reduce exposure"
	case SignalSpoofingDetected:
		return "book pressure contradicts price - possible spoofing, stand aside"
	default:
		return "no directional edge"
	}
}

// InstitutionalLevels exposes inferred support/resistance from iceberg evidence.
func (a *Analyzer) InstitutionalLevels() (support, resistance []IcebergLevel) {
	return a.iceberg.InstitutionalLevels()
}
