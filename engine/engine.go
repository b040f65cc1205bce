package engine

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/flowbot/flow"
	"github.com/web3guy0/flowbot/risk"
	"github.com/web3guy0/flowbot/strategy"
	"github.com/web3guy0/flowbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE - Per-instrument composition root
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow:
//   OrderBook+Trade → Analyzer → Looper → Risk → {decision, snapshot} → sinks
//
// Process is a synchronous pure-function chain: one update in, one decision
// out, no blocking I/O inside. Persistence and alerting consume the outputs
// AFTER the decision returns; they are never awaited from within it. One
// Engine per instrument; instruments share nothing but the risk manager's
// exposure aggregate.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Recorder receives pipeline outputs for persistence. Implementations must
// tolerate being called with every decision, including holds.
type Recorder interface {
	SaveDecision(instrument string, a flow.AnalysisResult, d strategy.DecisionSignal) error
	SaveTrade(rec types.TradeRecord) error
	ArchiveDay(day risk.DayState) error
}

// Notifier receives noteworthy events for alert delivery.
type Notifier interface {
	NotifyDecision(instrument string, d strategy.DecisionSignal)
	NotifyKill(snap risk.RiskSnapshot)
}

// Engine wires one instrument's analyzer, strategy and risk gate together.
type Engine struct {
	mu sync.Mutex

	instrument string
	analyzer   *flow.Analyzer
	looper     *strategy.Looper
	riskMgr    *risk.Manager

	realizedPnL decimal.Decimal
	killSeen    bool

	recorder Recorder // optional
	notifier Notifier // optional
}

// New creates an engine for one instrument.
func New(instrument string, analyzer *flow.Analyzer, looper *strategy.Looper, riskMgr *risk.Manager) *Engine {
	return &Engine{
		instrument: instrument,
		analyzer:   analyzer,
		looper:     looper,
		riskMgr:    riskMgr,
	}
}

// SetRecorder attaches a persistence sink.
func (e *Engine) SetRecorder(r Recorder) { e.recorder = r }

// SetNotifier attaches an alerting sink.
func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

// Process runs one full pipeline step. The book and trade are owned by this
// call for its duration only.
func (e *Engine) Process(book *types.OrderBook, trade *types.Trade, ind types.IndicatorSet) (flow.AnalysisResult, strategy.DecisionSignal, risk.RiskSnapshot) {
	e.mu.Lock()

	analysis := e.analyzer.Analyze(book, trade)

	// Risk check precedes every sizing decision.
	price := e.currentPrice(book, trade)
	e.riskMgr.CheckRisk(e.realizedPnL, e.unrealizedPnL(price))

	decision := e.looper.Evaluate(analysis, ind, price, book.Timestamp)

	if decision.Action == strategy.ActionPartialExit || decision.Action == strategy.ActionFullExit {
		e.realizedPnL = e.realizedPnL.Add(decision.RealizedPnL)
		e.riskMgr.RecordTrade()
	}
	if decision.Action == strategy.ActionEnter || decision.Action == strategy.ActionReEntry {
		e.riskMgr.RecordTrade()
	}

	// Refresh the exposure read view from strategy-owned position state.
	if pos, ok := e.looper.Position(); ok {
		e.riskMgr.SetPositionValue(e.instrument, price.Mul(decimal.NewFromInt(pos.Quantity)))
	} else {
		e.riskMgr.SetPositionValue(e.instrument, decimal.Zero)
	}

	// Re-run the gate so the snapshot reflects post-decision P&L.
	e.riskMgr.CheckRisk(e.realizedPnL, e.unrealizedPnL(price))
	snap := e.riskMgr.Snapshot()

	killJustLatched := snap.KillSwitchActive && !e.killSeen
	e.killSeen = snap.KillSwitchActive

	e.mu.Unlock()

	// Sinks run with already-computed values, outside the decision path.
	e.fanOut(analysis, decision, snap, price, killJustLatched)

	return analysis, decision, snap
}

// Rollover forwards the explicit day-boundary event and archives the old day.
func (e *Engine) Rollover(date string) {
	e.mu.Lock()
	finished := e.riskMgr.Day()
	e.riskMgr.Rollover(date)
	e.realizedPnL = decimal.Zero
	e.killSeen = false
	e.mu.Unlock()

	if e.recorder != nil {
		if err := e.recorder.ArchiveDay(finished); err != nil {
			log.Error().Err(err).Msg("failed to archive risk day")
		}
	}
}

func (e *Engine) currentPrice(book *types.OrderBook, trade *types.Trade) decimal.Decimal {
	if trade != nil {
		return trade.Price
	}
	if mid := book.MidPrice(); !mid.IsZero() {
		return mid
	}
	return book.LastPrice
}

// unrealizedPnL values the open position before this step's decision.
func (e *Engine) unrealizedPnL(price decimal.Decimal) decimal.Decimal {
	pos, ok := e.looper.Position()
	if !ok {
		return decimal.Zero
	}
	return price.Sub(pos.EntryPrice).Mul(decimal.NewFromInt(pos.Quantity))
}

// fanOut hands outputs to the optional sinks.
func (e *Engine) fanOut(analysis flow.AnalysisResult, decision strategy.DecisionSignal, snap risk.RiskSnapshot, price decimal.Decimal, killJustLatched bool) {
	if e.recorder != nil {
		if err := e.recorder.SaveDecision(e.instrument, analysis, decision); err != nil {
			log.Error().Err(err).Msg("failed to persist decision")
		}
		if decision.Action != strategy.ActionHold {
			rec := types.TradeRecord{
				ID:         uuid.NewString(),
				Instrument: e.instrument,
				Action:     tradeAction(decision.Action),
				Price:      price,
				Quantity:   decision.PositionSize,
				PnL:        decision.RealizedPnL,
				Phase:      decision.Phase.String(),
				Timestamp:  decision.Timestamp,
			}
			if err := e.recorder.SaveTrade(rec); err != nil {
				log.Error().Err(err).Msg("failed to persist trade")
			}
		}
	}

	if e.notifier != nil {
		if decision.Action != strategy.ActionHold {
			e.notifier.NotifyDecision(e.instrument, decision)
		}
		if killJustLatched {
			e.notifier.NotifyKill(snap)
		}
	}
}

func tradeAction(a strategy.Action) string {
	switch a {
	case strategy.ActionEnter:
		return "OPEN"
	case strategy.ActionReEntry:
		return "ADD"
	case strategy.ActionPartialExit:
		return "PARTIAL_CLOSE"
	case strategy.ActionFullExit:
		return "CLOSE"
	default:
		return "HOLD"
	}
}
