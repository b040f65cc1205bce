package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the bot.
type Config struct {
	// Instrument
	Instrument string

	// Mode
	Debug  bool
	DryRun bool

	// Analyzer
	OBIDepth           int
	DivergenceLookback int
	SweepCount         int
	OBIEntryThreshold  float64

	// Strategy
	StopLossPct       float64
	TakeProfitPct     float64
	TrailingStopPct   float64
	PullbackThreshold float64
	VWAPProximity     float64
	EntryStrength     float64
	ExitStrength      float64

	// Risk
	StartingEquity       decimal.Decimal
	DailyLossLimit       float64
	RiskPerTrade         float64
	MaxPositionPerStock  float64
	MaxPortfolioExposure float64
	RiskMultiplier       float64
	LotSize              int64

	// Market data feed
	BinanceSymbol string
	BinanceWSURL  string

	// Persistence
	DatabasePath string
	DatabaseURL  string

	// Telegram alerts
	TelegramToken  string
	TelegramChatID int64
}

// Load reads configuration from environment variables and validates it.
// Invalid thresholds are rejected here, at construction, never at call time.
func Load() (*Config, error) {
	cfg := &Config{
		Instrument: getEnv("INSTRUMENT", "BTCUSDT"),
		Debug:      getEnvBool("DEBUG", false),
		DryRun:     getEnvBool("DRY_RUN", true),

		OBIDepth:           getEnvInt("OBI_DEPTH", 5),
		DivergenceLookback: getEnvInt("DIVERGENCE_LOOKBACK", 20),
		SweepCount:         getEnvInt("SWEEP_COUNT", 10),
		OBIEntryThreshold:  getEnvFloat("OBI_ENTRY_THRESHOLD", 0.5),

		StopLossPct:       getEnvFloat("STOP_LOSS_PCT", 0.03),
		TakeProfitPct:     getEnvFloat("TAKE_PROFIT_PCT", 0.05),
		TrailingStopPct:   getEnvFloat("TRAILING_STOP_PCT", 0.02),
		PullbackThreshold: getEnvFloat("PULLBACK_THRESHOLD", 0.015),
		VWAPProximity:     getEnvFloat("VWAP_PROXIMITY", 0.005),
		EntryStrength:     getEnvFloat("ENTRY_STRENGTH", 0.4),
		ExitStrength:      getEnvFloat("EXIT_STRENGTH", 0.5),

		StartingEquity:       getEnvDecimal("STARTING_EQUITY", decimal.NewFromInt(100_000_000)),
		DailyLossLimit:       getEnvFloat("DAILY_LOSS_LIMIT", 0.025),
		RiskPerTrade:         getEnvFloat("RISK_PER_TRADE", 0.02),
		MaxPositionPerStock:  getEnvFloat("MAX_POSITION_PER_STOCK", 0.20),
		MaxPortfolioExposure: getEnvFloat("MAX_PORTFOLIO_EXPOSURE", 0.60),
		RiskMultiplier:       getEnvFloat("RISK_MULTIPLIER", 1.5),
		LotSize:              int64(getEnvInt("LOT_SIZE", 100)),

		BinanceSymbol: getEnv("BINANCE_SYMBOL", "btcusdt"),
		BinanceWSURL:  getEnv("BINANCE_WS_URL", "wss://stream.binance.com:9443"),

		DatabasePath: getEnv("DATABASE_PATH", "data/flowbot.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for name, v := range map[string]float64{
		"STOP_LOSS_PCT":      c.StopLossPct,
		"TAKE_PROFIT_PCT":    c.TakeProfitPct,
		"TRAILING_STOP_PCT":  c.TrailingStopPct,
		"PULLBACK_THRESHOLD": c.PullbackThreshold,
		"VWAP_PROXIMITY":     c.VWAPProximity,
		"DAILY_LOSS_LIMIT":   c.DailyLossLimit,
		"RISK_PER_TRADE":     c.RiskPerTrade,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %v", name, v)
		}
	}
	if c.OBIDepth < 0 || c.DivergenceLookback < 0 || c.SweepCount < 0 || c.LotSize < 0 {
		return fmt.Errorf("negative count parameter in config")
	}
	if !c.StartingEquity.IsPositive() {
		return fmt.Errorf("STARTING_EQUITY must be positive")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
