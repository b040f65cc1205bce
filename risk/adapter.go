package risk

import (
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ADAPTER - Makes Manager implement strategy.TradeApprover
// ═══════════════════════════════════════════════════════════════════════════════
//
// This keeps the dependency one-way:
//   strategy defines the interface
//   risk implements it via the adapter
//
// ═══════════════════════════════════════════════════════════════════════════════

// ApproverAdapter wraps Manager for the strategy's TradeApprover interface.
type ApproverAdapter struct {
	mgr            *Manager
	riskMultiplier float64
}

// NewApproverAdapter creates the adapter. riskMultiplier scales the ATR stop
// distance used for volatility sizing.
func NewApproverAdapter(mgr *Manager, riskMultiplier float64) *ApproverAdapter {
	if riskMultiplier <= 0 {
		riskMultiplier = 1.5
	}
	return &ApproverAdapter{mgr: mgr, riskMultiplier: riskMultiplier}
}

// ApproveSize implements strategy.TradeApprover.
func (a *ApproverAdapter) ApproveSize(price, atr decimal.Decimal) (int64, string) {
	res := a.mgr.PositionSize(price, atr, a.riskMultiplier)
	return res.Shares, res.Reason
}

// KillSwitchActive implements strategy.TradeApprover.
func (a *ApproverAdapter) KillSwitchActive() bool {
	return a.mgr.KillSwitchActive()
}
