// Flowbot - order-flow driven position trader for a single instrument.
//
// Pipeline:
//  1. Stream book snapshots and prints from Binance
//  2. Derive order-flow pressure (OBI, aggressor flow, icebergs, spoofing)
//  3. Run the Scout/Confirm/Attack looping state machine
//  4. Gate every size through the daily risk manager (kill switch, ATR sizing)
//  5. Persist decisions and alert on actions
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/flowbot/engine"
	"github.com/web3guy0/flowbot/feeds"
	"github.com/web3guy0/flowbot/flow"
	"github.com/web3guy0/flowbot/internal/config"
	"github.com/web3guy0/flowbot/notify"
	"github.com/web3guy0/flowbot/risk"
	"github.com/web3guy0/flowbot/storage"
	"github.com/web3guy0/flowbot/strategy"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Str("instrument", cfg.Instrument).
		Bool("dry_run", cfg.DryRun).
		Msg("⚡ Flowbot starting...")

	// Persistence
	db, err := storage.Open(cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	// Alerts
	notifier, err := notify.New(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create notifier")
	}

	// ====== CORE COMPONENTS ======

	analyzer, err := flow.NewAnalyzer(cfg.Instrument, flow.AnalyzerConfig{
		Depth:              cfg.OBIDepth,
		DivergenceLookback: cfg.DivergenceLookback,
		SweepCount:         cfg.SweepCount,
		OBIEntryThreshold:  cfg.OBIEntryThreshold,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create analyzer")
	}

	riskMgr, err := risk.NewManager(risk.Config{
		DailyLossLimit:       cfg.DailyLossLimit,
		RiskPerTrade:         cfg.RiskPerTrade,
		MaxPositionPerStock:  cfg.MaxPositionPerStock,
		MaxPortfolioExposure: cfg.MaxPortfolioExposure,
		LotSize:              cfg.LotSize,
	}, cfg.StartingEquity, today())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create risk manager")
	}

	looper, err := strategy.NewLooper(cfg.Instrument, strategy.Config{
		StopLossPct:       cfg.StopLossPct,
		TakeProfitPct:     cfg.TakeProfitPct,
		TrailingStopPct:   cfg.TrailingStopPct,
		PullbackThreshold: cfg.PullbackThreshold,
		VWAPProximity:     cfg.VWAPProximity,
		EntryStrength:     cfg.EntryStrength,
		ExitStrength:      cfg.ExitStrength,
		ATRStopMult:       1.5,
		ATRTargetMult:     3.0,
		LotSize:           cfg.LotSize,
	}, risk.NewApproverAdapter(riskMgr, cfg.RiskMultiplier))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create strategy")
	}

	eng := engine.New(cfg.Instrument, analyzer, looper, riskMgr)
	eng.SetRecorder(db)
	eng.SetNotifier(notifier)

	// ====== MARKET DATA ======

	feed := feeds.NewBinanceFeed(cfg.BinanceWSURL, cfg.BinanceSymbol)
	indicators := feeds.NewIndicatorTracker(20)
	feed.Start()
	defer feed.Stop()

	// Explicit day-boundary events: checked once a minute, fed to the engine
	// as rollover calls so the core itself never reads the clock.
	dayTicker := time.NewTicker(time.Minute)
	defer dayTicker.Stop()
	currentDay := today()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msg("🚀 Pipeline running")

	for {
		select {
		case update, ok := <-feed.Updates():
			if !ok {
				return
			}
			if update.Trade != nil {
				indicators.Update(*update.Trade)
			}
			eng.Process(update.Book, update.Trade, indicators.Snapshot())

		case <-dayTicker.C:
			if d := today(); d != currentDay {
				currentDay = d
				eng.Rollover(d)
				indicators.Reset()
			}

		case <-sigCh:
			log.Info().Msg("🛑 Shutting down")
			return
		}
	}
}

func today() string {
	return time.Now().Format("2006-01-02")
}
