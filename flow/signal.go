package flow

import "time"

// ═══════════════════════════════════════════════════════════════════════════════
// SIGNALS - Closed variants for everything the analyzer can say
// ═══════════════════════════════════════════════════════════════════════════════
//
// Signal is the ONLY output vocabulary of the order-flow analyzer. Strategies
// switch on it; there is no runtime probing of loosely-typed payloads.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Signal is the analyzer's verdict for one update.
type Signal int

const (
	SignalNeutral Signal = iota
	SignalAccumulation
	SignalStrongAccumulation
	SignalDistribution
	SignalStrongDistribution
	SignalSpoofingDetected
)

func (s Signal) String() string {
	switch s {
	case SignalAccumulation:
		return "ACCUMULATION"
	case SignalStrongAccumulation:
		return "STRONG_ACCUMULATION"
	case SignalDistribution:
		return "DISTRIBUTION"
	case SignalStrongDistribution:
		return "STRONG_DISTRIBUTION"
	case SignalSpoofingDetected:
		return "SPOOFING_DETECTED"
	default:
		return "NEUTRAL"
	}
}

// Bullish reports whether s is in the accumulation family.
func (s Signal) Bullish() bool {
	return s == SignalAccumulation || s == SignalStrongAccumulation
}

// Bearish reports whether s is in the distribution family.
func (s Signal) Bearish() bool {
	return s == SignalDistribution || s == SignalStrongDistribution
}

// Side labels the aggressor of a print: the side that crossed the spread.
type Side int

const (
	SideNeutral Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "NEUTRAL"
	}
}

// Divergence reports order-book pressure contradicted by price movement.
type Divergence struct {
	Reason    string
	Timestamp time.Time
}

// AnalysisResult is the analyzer's full output for one update.
type AnalysisResult struct {
	Timestamp      time.Time
	OBI            float64
	FlowRatio      float64
	NetFlow        int64
	Sweep          bool
	Iceberg        *IcebergDetection
	Divergence     *Divergence
	Signal         Signal
	Strength       float64
	Recommendation string
}
