package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/flowbot/flow"
	"github.com/web3guy0/flowbot/risk"
	"github.com/web3guy0/flowbot/strategy"
	"github.com/web3guy0/flowbot/types"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// memoryRecorder captures sink calls in memory.
type memoryRecorder struct {
	decisions int
	trades    []types.TradeRecord
	days      []risk.DayState
}

func (r *memoryRecorder) SaveDecision(string, flow.AnalysisResult, strategy.DecisionSignal) error {
	r.decisions++
	return nil
}

func (r *memoryRecorder) SaveTrade(rec types.TradeRecord) error {
	r.trades = append(r.trades, rec)
	return nil
}

func (r *memoryRecorder) ArchiveDay(day risk.DayState) error {
	r.days = append(r.days, day)
	return nil
}

type memoryNotifier struct {
	decisions int
	kills     int
}

func (n *memoryNotifier) NotifyDecision(string, strategy.DecisionSignal) { n.decisions++ }
func (n *memoryNotifier) NotifyKill(risk.RiskSnapshot)                  { n.kills++ }

func newTestEngine(t *testing.T) (*Engine, *memoryRecorder, *memoryNotifier) {
	t.Helper()

	analyzer, err := flow.NewAnalyzer("TEST", flow.AnalyzerConfig{})
	require.NoError(t, err)

	riskMgr, err := risk.NewManager(risk.DefaultConfig(), decimal.NewFromInt(100_000_000), "2026-08-29")
	require.NoError(t, err)

	looper, err := strategy.NewLooper("TEST", strategy.DefaultConfig(), risk.NewApproverAdapter(riskMgr, 1.5))
	require.NoError(t, err)

	e := New("TEST", analyzer, looper, riskMgr)
	rec := &memoryRecorder{}
	not := &memoryNotifier{}
	e.SetRecorder(rec)
	e.SetNotifier(not)
	return e, rec, not
}

func strongBidBook(price float64, ts time.Time) *types.OrderBook {
	return &types.OrderBook{
		Instrument: "TEST",
		Timestamp:  ts,
		Bids: []types.OrderBookLevel{
			{Price: dec(price), Volume: 9000, QueueCount: 1},
			{Price: dec(price - 1), Volume: 9000, QueueCount: 1},
		},
		Asks: []types.OrderBookLevel{
			{Price: dec(price + 1), Volume: 500, QueueCount: 1},
			{Price: dec(price + 2), Volume: 500, QueueCount: 1},
		},
	}
}

func TestEngineOpensOnAccumulation(t *testing.T) {
	e, rec, not := newTestEngine(t)
	now := time.Now()

	ind := types.IndicatorSet{VWAP: dec(10_000), RSI: 55, ATR: dec(50)}
	trade := &types.Trade{Price: dec(10_000.9), Volume: 100, Timestamp: now}

	analysis, decision, snap := e.Process(strongBidBook(10_000, now), trade, ind)

	require.True(t, analysis.Signal.Bullish())
	require.Equal(t, strategy.ActionEnter, decision.Action)
	require.Positive(t, decision.PositionSize)
	require.Equal(t, risk.LevelSafe, snap.RiskLevel)
	require.True(t, snap.TotalExposure.IsPositive())

	require.Equal(t, 1, rec.decisions)
	require.Len(t, rec.trades, 1)
	require.Equal(t, "OPEN", rec.trades[0].Action)
	require.NotEmpty(t, rec.trades[0].ID)
	require.Equal(t, 1, not.decisions)
	require.Zero(t, not.kills)
}

func TestEngineHoldRecordsDecisionOnly(t *testing.T) {
	e, rec, not := newTestEngine(t)
	now := time.Now()

	// balanced book, no trade: neutral, nothing to do
	book := &types.OrderBook{
		Instrument: "TEST",
		Timestamp:  now,
		Bids:       []types.OrderBookLevel{{Price: dec(10_000), Volume: 1000, QueueCount: 1}},
		Asks:       []types.OrderBookLevel{{Price: dec(10_001), Volume: 1000, QueueCount: 1}},
	}

	_, decision, _ := e.Process(book, nil, types.IndicatorSet{RSI: 50})

	require.Equal(t, strategy.ActionHold, decision.Action)
	require.Equal(t, 1, rec.decisions)
	require.Empty(t, rec.trades)
	require.Zero(t, not.decisions)
}

func TestEngineRolloverArchivesDay(t *testing.T) {
	e, rec, _ := newTestEngine(t)

	e.Rollover("2026-08-30")

	require.Len(t, rec.days, 1)
	require.Equal(t, "2026-08-29", rec.days[0].Date)
}
