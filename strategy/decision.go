package strategy

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DECISIONS - Closed variants for every action the strategy can take
// ═══════════════════════════════════════════════════════════════════════════════

// Action is the strategy's verdict for one update.
type Action int

const (
	ActionHold Action = iota
	ActionEnter
	ActionReEntry
	ActionPartialExit
	ActionFullExit
)

func (a Action) String() string {
	switch a {
	case ActionEnter:
		return "ENTER"
	case ActionReEntry:
		return "RE_ENTRY"
	case ActionPartialExit:
		return "PARTIAL_EXIT"
	case ActionFullExit:
		return "FULL_EXIT"
	default:
		return "HOLD"
	}
}

// Phase is the pyramiding stage of an open position. It only ever advances:
// Scout → Confirm → Attack, with Attack absorbing.
type Phase int

const (
	PhaseScout Phase = iota
	PhaseConfirm
	PhaseAttack
)

func (p Phase) String() string {
	switch p {
	case PhaseConfirm:
		return "CONFIRM"
	case PhaseAttack:
		return "ATTACK"
	default:
		return "SCOUT"
	}
}

// fraction returns the cumulative share of the full approved size committed
// at this phase: 30% / 60% / 100%.
func (p Phase) fraction() float64 {
	switch p {
	case PhaseConfirm:
		return 0.6
	case PhaseAttack:
		return 1.0
	default:
		return 0.3
	}
}

// next advances the phase; Attack stays Attack.
func (p Phase) next() Phase {
	if p >= PhaseAttack {
		return PhaseAttack
	}
	return p + 1
}

// Position is the strategy-owned state of one open position.
type Position struct {
	Instrument        string
	EntryPrice        decimal.Decimal
	CurrentPrice      decimal.Decimal
	Quantity          int64
	Phase             Phase
	EntryTime         time.Time
	HighestSinceEntry decimal.Decimal
	StopLoss          decimal.Decimal
	TakeProfit        decimal.Decimal
	LoopCount         int
}

// DecisionSignal is the strategy's full output for one update, consumed
// read-only by persistence/alerting/UI.
type DecisionSignal struct {
	Action       Action
	Confidence   float64
	Entry        decimal.Decimal
	StopLoss     decimal.Decimal
	Target       decimal.Decimal
	Phase        Phase
	Reasoning    string
	PositionSize int64
	RealizedPnL  decimal.Decimal // non-zero only on exits
	Timestamp    time.Time
}

// TradeApprover is the risk gate as seen from the strategy. The risk package
// implements it through an adapter, which keeps the dependency one-way.
type TradeApprover interface {
	// ApproveSize returns the full risk-approved position size at this price
	// and volatility. Zero shares plus a reason is authoritative: do not
	// retry with a smaller request.
	ApproveSize(price, atr decimal.Decimal) (shares int64, reason string)

	// KillSwitchActive reports whether the daily halt is latched.
	KillSwitchActive() bool
}
