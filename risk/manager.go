package risk

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RISK MANAGER - Daily kill switch and the portfolio-level risk gate
// ═══════════════════════════════════════════════════════════════════════════════
//
// Strategy asks → Risk approves/rejects → Executor executes
//
// The kill switch LATCHES: once the daily loss limit trips it, nothing short
// of the day rollover clears it. Improving P&L later the same day does not
// reopen trading. Rollover is an explicit event fed in by the caller, never
// an implicit wall-clock comparison, so the whole state machine is
// deterministically testable.
//
// ═══════════════════════════════════════════════════════════════════════════════

// RiskLevel is the manager's current posture, driven solely by daily P&L
// against the daily loss limit.
type RiskLevel int

const (
	LevelSafe RiskLevel = iota
	LevelCaution
	LevelDanger
	LevelKilled
)

func (l RiskLevel) String() string {
	switch l {
	case LevelCaution:
		return "CAUTION"
	case LevelDanger:
		return "DANGER"
	case LevelKilled:
		return "KILLED"
	default:
		return "SAFE"
	}
}

// Loss-ratio bands for the level transitions.
const (
	cautionRatio = 0.5
	dangerRatio  = 0.8
	killRatio    = 1.0
)

// Config holds the risk parameters. All percentages are fractions (0.025 = 2.5%).
type Config struct {
	DailyLossLimit       float64 // kill switch trigger (default 2.5%)
	RiskPerTrade         float64 // capital risked per trade for ATR sizing (default 2%)
	MaxPositionPerStock  float64 // max fraction of equity in one position (default 20%)
	MaxPortfolioExposure float64 // max total exposure fraction (default 60%)
	LotSize              int64   // share lot (default 100)
}

// Validate rejects broken configuration at construction time.
func (c Config) Validate() error {
	if c.DailyLossLimit <= 0 || c.DailyLossLimit >= 1 {
		return fmt.Errorf("risk config: daily loss limit %.4f outside (0,1)", c.DailyLossLimit)
	}
	if c.RiskPerTrade <= 0 || c.MaxPositionPerStock <= 0 || c.MaxPortfolioExposure <= 0 {
		return fmt.Errorf("risk config: non-positive sizing parameter")
	}
	if c.LotSize <= 0 {
		return fmt.Errorf("risk config: lot size must be positive")
	}
	return nil
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		DailyLossLimit:       0.025,
		RiskPerTrade:         0.02,
		MaxPositionPerStock:  0.20,
		MaxPortfolioExposure: 0.60,
		LotSize:              100,
	}
}

// DayState is the per-calendar-day risk ledger. A new one is born on every
// rollover; the old one goes to the archive.
type DayState struct {
	Date             string // YYYY-MM-DD
	StartingEquity   decimal.Decimal
	CurrentEquity    decimal.Decimal
	RealizedPnL      decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	TradeCount       int
	KillSwitchActive bool
	PeakEquity       decimal.Decimal
	MaxDrawdown      float64 // worst peak-to-trough fraction seen this day
}

// RiskSnapshot is the read-only view handed to persistence/alerting/UI.
type RiskSnapshot struct {
	Date                string
	DailyPnL            decimal.Decimal
	DailyPnLPercent     float64
	KillSwitchActive    bool
	RiskLevel           RiskLevel
	RemainingRiskBudget decimal.Decimal
	TotalExposure       decimal.Decimal
	MaxDrawdown         float64
}

// Manager owns the daily risk state and the exposure aggregate. It is the
// single gatekeeper: no sizing decision happens without CheckRisk first.
type Manager struct {
	mu  sync.RWMutex
	cfg Config

	day     DayState
	level   RiskLevel
	archive []DayState

	// read view over strategy-owned open positions, instrument -> market value;
	// the lock guards only the aggregate read, never an external call
	openPositionValue map[string]decimal.Decimal
}

// NewManager creates a manager for the given trading day.
func NewManager(cfg Config, startingEquity decimal.Decimal, date string) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg: cfg,
		day: DayState{
			Date:           date,
			StartingEquity: startingEquity,
			CurrentEquity:  startingEquity,
			PeakEquity:     startingEquity,
		},
		level:             LevelSafe,
		openPositionValue: make(map[string]decimal.Decimal),
	}

	log.Info().
		Str("date", date).
		Str("equity", startingEquity.StringFixed(2)).
		Float64("daily_loss_limit", cfg.DailyLossLimit).
		Msg("🛡️ Risk manager initialized")

	return m, nil
}

// CheckRisk is the single state-transition entry point. It is idempotent and
// must be called before every sizing decision. Once killed, the level stays
// KILLED for the rest of the day no matter how P&L develops.
func (m *Manager) CheckRisk(realized, unrealized decimal.Decimal) RiskLevel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.day.RealizedPnL = realized
	m.day.UnrealizedPnL = unrealized
	m.day.CurrentEquity = m.day.StartingEquity.Add(realized).Add(unrealized)
	if m.day.CurrentEquity.GreaterThan(m.day.PeakEquity) {
		m.day.PeakEquity = m.day.CurrentEquity
	}
	if !m.day.PeakEquity.IsZero() && m.day.CurrentEquity.LessThan(m.day.PeakEquity) {
		dd, _ := m.day.PeakEquity.Sub(m.day.CurrentEquity).Div(m.day.PeakEquity).Float64()
		if dd > m.day.MaxDrawdown {
			m.day.MaxDrawdown = dd
		}
	}

	if m.day.KillSwitchActive {
		m.level = LevelKilled
		return m.level
	}

	ratio := m.lossRatio()
	switch {
	case ratio >= killRatio:
		m.day.KillSwitchActive = true
		m.level = LevelKilled
		log.Error().
			Str("date", m.day.Date).
			Str("daily_pnl", m.dailyPnL().StringFixed(2)).
			Float64("loss_ratio", ratio).
			Msg("🚨 KILL SWITCH - daily loss limit breached, trading halted")
	case ratio >= dangerRatio:
		m.level = LevelDanger
	case ratio >= cautionRatio:
		m.level = LevelCaution
	default:
		m.level = LevelSafe
	}

	return m.level
}

// lossRatio returns |daily pnl %| / daily loss limit, only when pnl is
// negative. Caller holds the lock.
func (m *Manager) lossRatio() float64 {
	pnl := m.dailyPnL()
	if !pnl.IsNegative() || m.day.StartingEquity.IsZero() {
		return 0
	}
	pct, _ := pnl.Abs().Div(m.day.StartingEquity).Float64()
	return pct / m.cfg.DailyLossLimit
}

func (m *Manager) dailyPnL() decimal.Decimal {
	return m.day.RealizedPnL.Add(m.day.UnrealizedPnL)
}

// Rollover archives the finished day and starts a fresh one. The kill switch
// clears unconditionally: a new trading day always starts SAFE.
func (m *Manager) Rollover(date string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.archive = append(m.archive, m.day)
	rolled := m.day.CurrentEquity

	m.day = DayState{
		Date:           date,
		StartingEquity: rolled,
		CurrentEquity:  rolled,
		PeakEquity:     rolled,
	}
	m.level = LevelSafe

	log.Info().
		Str("date", date).
		Str("equity", rolled.StringFixed(2)).
		Msg("📅 Daily risk state rolled over")
}

// RecordTrade bumps the day's trade counter.
func (m *Manager) RecordTrade() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.day.TradeCount++
}

// SetPositionValue updates the exposure read view for one instrument.
func (m *Manager) SetPositionValue(instrument string, value decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value.IsZero() {
		delete(m.openPositionValue, instrument)
		return
	}
	m.openPositionValue[instrument] = value
}

// totalExposure sums open position values. Caller holds at least a read lock.
func (m *Manager) totalExposure() decimal.Decimal {
	total := decimal.Zero
	for _, v := range m.openPositionValue {
		total = total.Add(v)
	}
	return total
}

// Level returns the current risk level.
func (m *Manager) Level() RiskLevel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// KillSwitchActive reports whether the daily halt is latched.
func (m *Manager) KillSwitchActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.day.KillSwitchActive
}

// Day returns a copy of the current day's ledger.
func (m *Manager) Day() DayState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.day
}

// Archive returns copies of all completed days.
func (m *Manager) Archive() []DayState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]DayState, len(m.archive))
	copy(out, m.archive)
	return out
}

// Snapshot builds the read-only risk view.
func (m *Manager) Snapshot() RiskSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pnl := m.dailyPnL()
	pnlPct := 0.0
	if !m.day.StartingEquity.IsZero() {
		pnlPct, _ = pnl.Div(m.day.StartingEquity).Float64()
	}

	limit := m.day.StartingEquity.Mul(decimal.NewFromFloat(m.cfg.DailyLossLimit))
	remaining := limit
	if pnl.IsNegative() {
		remaining = limit.Sub(pnl.Abs())
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
	}

	return RiskSnapshot{
		Date:                m.day.Date,
		DailyPnL:            pnl,
		DailyPnLPercent:     pnlPct,
		KillSwitchActive:    m.day.KillSwitchActive,
		RiskLevel:           m.level,
		RemainingRiskBudget: remaining,
		TotalExposure:       m.totalExposure(),
		MaxDrawdown:         m.day.MaxDrawdown,
	}
}
