package risk

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION SIZING - ATR-based and fractional Kelly
// ═══════════════════════════════════════════════════════════════════════════════
//
// Both algorithms refuse to size anything while the kill switch is latched.
// A zero result with a reason string is authoritative: callers must not retry
// with a smaller request.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Rejection reasons. Zero shares plus one of these is a hard stop, not an error.
const (
	ReasonKillSwitch    = "KillSwitchActive"
	ReasonLimitExceeded = "LimitExceeded"
	ReasonNoEdge        = "NoEdge"
)

// SizeResult is a sizing decision: either a positive lot-floored share count,
// or zero with the reason trading was refused.
type SizeResult struct {
	Shares int64
	Reason string
}

// Approved reports whether any size was granted.
func (r SizeResult) Approved() bool { return r.Shares > 0 }

// PositionSize computes ATR-based volatility sizing:
//
//	shares = (riskPerTrade% x equity) / (ATR x riskMultiplier)
//
// clamped to MaxPositionPerStock of equity and the remaining portfolio
// exposure budget, floored to the lot size, minimum one lot.
func (m *Manager) PositionSize(price, atr decimal.Decimal, riskMultiplier float64) SizeResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.day.KillSwitchActive {
		return SizeResult{Reason: ReasonKillSwitch}
	}
	if !price.IsPositive() || !atr.IsPositive() || riskMultiplier <= 0 {
		return SizeResult{Reason: ReasonNoEdge}
	}

	equity := m.day.CurrentEquity
	riskAmount := equity.Mul(decimal.NewFromFloat(m.cfg.RiskPerTrade))
	riskPerShare := atr.Mul(decimal.NewFromFloat(riskMultiplier))

	shares := m.floorLot(riskAmount.Div(riskPerShare).IntPart())
	if shares < m.cfg.LotSize {
		shares = m.cfg.LotSize
	}

	return m.clampToLimits(shares, price, equity)
}

// KellySize computes fractional-Kelly sizing from win probability p and
// win/loss ratio b:
//
//	kelly = (p*b - (1-p)) / b
//	target exposure = clamp(kelly x fraction, 0, MaxPositionPerStock)
func (m *Manager) KellySize(price decimal.Decimal, winProb, winLossRatio, fraction float64) SizeResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.day.KillSwitchActive {
		return SizeResult{Reason: ReasonKillSwitch}
	}
	if !price.IsPositive() || winLossRatio <= 0 || fraction <= 0 {
		return SizeResult{Reason: ReasonNoEdge}
	}

	p := decimal.NewFromFloat(winProb)
	b := decimal.NewFromFloat(winLossRatio)
	kelly := p.Mul(b).Sub(decimal.NewFromInt(1).Sub(p)).Div(b)
	target := kelly.Mul(decimal.NewFromFloat(fraction))
	if !target.IsPositive() {
		return SizeResult{Reason: ReasonNoEdge}
	}
	if limit := decimal.NewFromFloat(m.cfg.MaxPositionPerStock); target.GreaterThan(limit) {
		target = limit
	}

	equity := m.day.CurrentEquity
	shares := m.floorLot(equity.Mul(target).Div(price).IntPart())
	if shares <= 0 {
		return SizeResult{Reason: ReasonLimitExceeded}
	}

	return m.clampToLimits(shares, price, equity)
}

// clampToLimits enforces the per-position and portfolio exposure caps.
// Caller holds at least a read lock.
func (m *Manager) clampToLimits(shares int64, price, equity decimal.Decimal) SizeResult {
	maxPosition := equity.Mul(decimal.NewFromFloat(m.cfg.MaxPositionPerStock))
	if price.Mul(decimal.NewFromInt(shares)).GreaterThan(maxPosition) {
		shares = m.floorLot(maxPosition.Div(price).IntPart())
	}

	budget := equity.Mul(decimal.NewFromFloat(m.cfg.MaxPortfolioExposure)).Sub(m.totalExposure())
	if price.Mul(decimal.NewFromInt(shares)).GreaterThan(budget) {
		shares = m.floorLot(budget.Div(price).IntPart())
	}

	if shares <= 0 {
		log.Debug().
			Str("price", price.StringFixed(2)).
			Msg("🚫 Sizing refused: position caps leave no room")
		return SizeResult{Reason: ReasonLimitExceeded}
	}
	return SizeResult{Shares: shares}
}

// floorLot rounds down to the lot size.
func (m *Manager) floorLot(shares int64) int64 {
	if shares < 0 {
		return 0
	}
	return shares - shares%m.cfg.LotSize
}
