package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/flowbot/risk"
	"github.com/web3guy0/flowbot/strategy"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM NOTIFIER - Read-only alert delivery
// ═══════════════════════════════════════════════════════════════════════════════
//
// Consumes decisions and risk snapshots as already-computed values. Never
// calls back into the pipeline. Disabled (all sends no-op) without a token.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Notifier pushes pipeline events to a Telegram chat.
type Notifier struct {
	api     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
}

// New creates a notifier; an empty token yields a disabled one.
func New(token string, chatID int64) (*Notifier, error) {
	if token == "" || chatID == 0 {
		log.Warn().Msg("telegram not configured, running without alerts")
		return &Notifier{}, nil
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info().Str("bot", api.Self.UserName).Msg("🔔 Telegram notifier ready")
	return &Notifier{api: api, chatID: chatID, enabled: true}, nil
}

// NotifyDecision implements engine.Notifier.
func (n *Notifier) NotifyDecision(instrument string, d strategy.DecisionSignal) {
	if !n.enabled {
		return
	}

	emoji := "📊"
	switch d.Action {
	case strategy.ActionEnter, strategy.ActionReEntry:
		emoji = "🎯"
	case strategy.ActionPartialExit:
		emoji = "📈"
	case strategy.ActionFullExit:
		emoji = "🛑"
	}

	text := fmt.Sprintf("%s *%s* %s\nPhase: %s | Size: %d\nConfidence: %.0f%%\n%s",
		emoji, instrument, d.Action, d.Phase, d.PositionSize, d.Confidence*100, d.Reasoning)

	n.send(text)
}

// NotifyKill implements engine.Notifier.
func (n *Notifier) NotifyKill(snap risk.RiskSnapshot) {
	if !n.enabled {
		return
	}
	text := fmt.Sprintf("🚨 *KILL SWITCH* - trading halted for %s\nDaily P&L: %s (%.2f%%)",
		snap.Date, snap.DailyPnL.StringFixed(2), snap.DailyPnLPercent*100)
	n.send(text)
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("failed to send telegram message")
	}
}
