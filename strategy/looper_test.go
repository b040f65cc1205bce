package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/flowbot/flow"
	"github.com/web3guy0/flowbot/types"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// stubApprover is a canned risk gate.
type stubApprover struct {
	shares int64
	reason string
	killed bool
}

func (s *stubApprover) ApproveSize(price, atr decimal.Decimal) (int64, string) {
	return s.shares, s.reason
}

func (s *stubApprover) KillSwitchActive() bool { return s.killed }

func newTestLooper(t *testing.T, approver TradeApprover) *Looper {
	t.Helper()
	l, err := NewLooper("TEST", DefaultConfig(), approver)
	require.NoError(t, err)
	return l
}

func bullish(strength float64) flow.AnalysisResult {
	return flow.AnalysisResult{Signal: flow.SignalStrongAccumulation, Strength: strength}
}

func bearish(strength float64) flow.AnalysisResult {
	return flow.AnalysisResult{Signal: flow.SignalStrongDistribution, Strength: strength}
}

func indicators(vwap, atr float64) types.IndicatorSet {
	return types.IndicatorSet{VWAP: dec(vwap), RSI: 50, ATR: dec(atr)}
}

func TestLooperEntryScout(t *testing.T) {
	l := newTestLooper(t, &stubApprover{shares: 1000})
	now := time.Now()

	d := l.Evaluate(bullish(0.6), indicators(1000, 20), dec(1000), now)

	require.Equal(t, ActionEnter, d.Action)
	require.Equal(t, PhaseScout, d.Phase)
	require.Equal(t, int64(300), d.PositionSize) // 30% of the approved 1000
	require.True(t, d.StopLoss.Equal(dec(970)))  // entry - 1.5 x ATR
	require.True(t, d.Target.Equal(dec(1060)))   // entry + 3 x ATR
	require.InDelta(t, 0.6, d.Confidence, 1e-9)

	pos, ok := l.Position()
	require.True(t, ok)
	require.Equal(t, int64(300), pos.Quantity)
	require.Equal(t, PhaseScout, pos.Phase)
}

func TestLooperEntryIcebergSkipsScout(t *testing.T) {
	l := newTestLooper(t, &stubApprover{shares: 1000})

	analysis := bullish(0.6)
	analysis.Iceberg = &flow.IcebergDetection{Kind: flow.IcebergBid, Price: dec(999), RefillVolume: 5000}

	d := l.Evaluate(analysis, indicators(1000, 20), dec(1000), time.Now())

	require.Equal(t, ActionEnter, d.Action)
	require.Equal(t, PhaseConfirm, d.Phase)
	require.Equal(t, int64(600), d.PositionSize)
}

func TestLooperNoEntryBelowStrength(t *testing.T) {
	l := newTestLooper(t, &stubApprover{shares: 1000})

	d := l.Evaluate(bullish(0.3), indicators(1000, 20), dec(1000), time.Now())
	require.Equal(t, ActionHold, d.Action)

	d = l.Evaluate(bearish(0.9), indicators(1000, 20), dec(1000), time.Now())
	require.Equal(t, ActionHold, d.Action)

	_, ok := l.Position()
	require.False(t, ok)
}

func TestLooperRiskGateRefusesEntry(t *testing.T) {
	l := newTestLooper(t, &stubApprover{shares: 0, reason: "KillSwitchActive"})

	d := l.Evaluate(bullish(0.8), indicators(1000, 20), dec(1000), time.Now())
	require.Equal(t, ActionHold, d.Action)
	require.Zero(t, d.Confidence)
	require.Contains(t, d.Reasoning, "KillSwitchActive")

	_, ok := l.Position()
	require.False(t, ok)
}

func TestLooperPctStopFallback(t *testing.T) {
	l := newTestLooper(t, &stubApprover{shares: 1000})

	// no ATR yet: percentage stops
	d := l.Evaluate(bullish(0.6), indicators(1000, 0), dec(1000), time.Now())
	require.Equal(t, ActionEnter, d.Action)
	require.True(t, d.StopLoss.Equal(dec(970)))  // 3% below entry
	require.True(t, d.Target.Equal(dec(1100)))   // 2 x take-profit above
}

func TestLooperSpoofingHoldsEvenBelowStop(t *testing.T) {
	l := newTestLooper(t, &stubApprover{shares: 1000})
	l.Evaluate(bullish(0.6), indicators(1000, 20), dec(1000), time.Now())

	spoofed := flow.AnalysisResult{
		Signal:     flow.SignalSpoofingDetected,
		Strength:   1.0,
		Divergence: &flow.Divergence{Reason: "fake bid wall: mean OBI 0.80 but price fell 1.00% (passive distribution risk)"},
	}

	// price is well through the hard stop, yet spoofing freezes everything
	d := l.Evaluate(spoofed, indicators(940, 20), dec(940), time.Now())
	require.Equal(t, ActionHold, d.Action)
	require.Zero(t, d.Confidence)
	require.Contains(t, d.Reasoning, "fake bid wall")

	pos, ok := l.Position()
	require.True(t, ok)
	require.Equal(t, int64(300), pos.Quantity)
}

func TestLooperHardStop(t *testing.T) {
	l := newTestLooper(t, &stubApprover{shares: 1000})
	l.Evaluate(bullish(0.6), indicators(1000, 20), dec(1000), time.Now())

	// 5% under entry trumps even a strong bullish print
	d := l.Evaluate(bullish(0.9), indicators(950, 20), dec(950), time.Now())

	require.Equal(t, ActionFullExit, d.Action)
	require.Equal(t, 1.0, d.Confidence)
	require.Equal(t, int64(300), d.PositionSize)
	require.True(t, d.RealizedPnL.Equal(dec(-15000))) // -50 x 300
	require.Contains(t, d.Reasoning, "hard stop")

	_, ok := l.Position()
	require.False(t, ok)
}

func TestLooperDistributionExit(t *testing.T) {
	l := newTestLooper(t, &stubApprover{shares: 1000})
	l.Evaluate(bullish(0.6), indicators(1000, 20), dec(1000), time.Now())

	d := l.Evaluate(bearish(0.7), indicators(1010, 20), dec(1010), time.Now())

	require.Equal(t, ActionFullExit, d.Action)
	require.True(t, d.RealizedPnL.Equal(dec(3000))) // +10 x 300
	require.Contains(t, d.Reasoning, "distribution")
}

func TestLooperWeakDistributionHolds(t *testing.T) {
	l := newTestLooper(t, &stubApprover{shares: 1000})
	l.Evaluate(bullish(0.6), indicators(1000, 20), dec(1000), time.Now())

	d := l.Evaluate(bearish(0.4), indicators(1010, 20), dec(1010), time.Now())
	require.Equal(t, ActionHold, d.Action)
}

func TestLooperPartialExit(t *testing.T) {
	l := newTestLooper(t, &stubApprover{shares: 1000})
	l.Evaluate(bullish(0.6), indicators(1000, 20), dec(1000), time.Now())

	// run the peak up to 1100
	l.Evaluate(flow.AnalysisResult{Signal: flow.SignalNeutral}, indicators(1050, 20), dec(1100), time.Now())

	// +7% on entry, 2.7% off the peak: bank half
	d := l.Evaluate(flow.AnalysisResult{Signal: flow.SignalNeutral}, indicators(1050, 20), dec(1070), time.Now())

	require.Equal(t, ActionPartialExit, d.Action)
	require.Equal(t, int64(150), d.PositionSize)
	require.True(t, d.RealizedPnL.Equal(dec(10500))) // +70 x 150

	pos, ok := l.Position()
	require.True(t, ok)
	require.Equal(t, int64(150), pos.Quantity)
}

func TestLooperPyramidLoop(t *testing.T) {
	l := newTestLooper(t, &stubApprover{shares: 1000})
	now := time.Now()

	d := l.Evaluate(bullish(0.6), indicators(1000, 20), dec(1000), now)
	require.Equal(t, ActionEnter, d.Action)

	// 2% pullback holding right on VWAP: Scout -> Confirm
	d = l.Evaluate(bullish(0.6), indicators(980, 20), dec(980), now)
	require.Equal(t, ActionReEntry, d.Action)
	require.Equal(t, PhaseConfirm, d.Phase)
	require.Equal(t, int64(300), d.PositionSize) // 30% -> 60% of 1000

	// same conditions again: Confirm -> Attack
	d = l.Evaluate(bullish(0.6), indicators(980, 20), dec(980), now)
	require.Equal(t, ActionReEntry, d.Action)
	require.Equal(t, PhaseAttack, d.Phase)
	require.Equal(t, int64(400), d.PositionSize) // 60% -> 100%

	pos, ok := l.Position()
	require.True(t, ok)
	require.Equal(t, int64(1000), pos.Quantity)
	require.Equal(t, 2, pos.LoopCount)

	// Attack is absorbing: no further adds on identical conditions
	d = l.Evaluate(bullish(0.6), indicators(980, 20), dec(980), now)
	require.Equal(t, ActionHold, d.Action)
	pos, _ = l.Position()
	require.Equal(t, PhaseAttack, pos.Phase)
	require.Equal(t, int64(1000), pos.Quantity)
}

func TestLooperReEntryRequiresVWAP(t *testing.T) {
	l := newTestLooper(t, &stubApprover{shares: 1000})
	l.Evaluate(bullish(0.6), indicators(1000, 20), dec(1000), time.Now())

	// pullback and bullish, but price sits 3% away from VWAP
	d := l.Evaluate(bullish(0.6), indicators(1010, 20), dec(980), time.Now())
	require.Equal(t, ActionHold, d.Action)

	pos, _ := l.Position()
	require.Equal(t, PhaseScout, pos.Phase)
}

func TestLooperConfigValidate(t *testing.T) {
	bad := DefaultConfig()
	bad.EntryStrength = 1.5
	_, err := NewLooper("TEST", bad, &stubApprover{})
	require.Error(t, err)

	bad = DefaultConfig()
	bad.StopLossPct = -0.01
	_, err = NewLooper("TEST", bad, &stubApprover{})
	require.Error(t, err)
}
