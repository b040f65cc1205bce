package storage

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/flowbot/flow"
	"github.com/web3guy0/flowbot/risk"
	"github.com/web3guy0/flowbot/strategy"
	"github.com/web3guy0/flowbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DATABASE - Decision, trade and daily risk persistence
// ═══════════════════════════════════════════════════════════════════════════════
//
// Pure sink: the core produces outputs and this layer records them. It never
// calls back into the pipeline. Runs disabled (all saves no-op) when neither
// DATABASE_URL nor a sqlite path is configured.
//
// ═══════════════════════════════════════════════════════════════════════════════

type Database struct {
	db      *gorm.DB
	enabled bool
}

// Models

type TradeRow struct {
	ID         string `gorm:"primaryKey"`
	Instrument string `gorm:"index"`
	Action     string
	Price      decimal.Decimal `gorm:"type:decimal(20,6)"`
	Quantity   int64
	PnL        decimal.Decimal `gorm:"type:decimal(20,6)"`
	Phase      string
	ExecutedAt time.Time
	CreatedAt  time.Time
}

type DecisionRow struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Instrument string `gorm:"index"`
	Signal     string
	Strength   float64
	OBI        float64
	FlowRatio  float64
	NetFlow    int64
	Sweep      bool
	Action     string
	Confidence float64
	Phase      string
	Reasoning  string
	DecidedAt  time.Time `gorm:"index"`
	CreatedAt  time.Time
}

type RiskDayRow struct {
	Date             string `gorm:"primaryKey"`
	StartingEquity   decimal.Decimal `gorm:"type:decimal(20,2)"`
	ClosingEquity    decimal.Decimal `gorm:"type:decimal(20,2)"`
	RealizedPnL      decimal.Decimal `gorm:"type:decimal(20,2)"`
	UnrealizedPnL    decimal.Decimal `gorm:"type:decimal(20,2)"`
	TradeCount       int
	KillSwitchFired  bool
	PeakEquity       decimal.Decimal `gorm:"type:decimal(20,2)"`
	CreatedAt        time.Time
}

// Open connects to postgres when DATABASE_URL is set, otherwise to the sqlite
// path. An empty path yields a disabled database.
func Open(databaseURL, sqlitePath string) (*Database, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var db *gorm.DB
	var err error

	switch {
	case databaseURL != "":
		db, err = gorm.Open(postgres.Open(databaseURL), gormCfg)
	case sqlitePath != "":
		if dir := filepath.Dir(sqlitePath); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, mkErr
			}
		}
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormCfg)
	default:
		log.Warn().Msg("no database configured, running without persistence")
		return &Database{}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&TradeRow{}, &DecisionRow{}, &RiskDayRow{}); err != nil {
		return nil, err
	}

	log.Info().Msg("💾 Database connected")
	return &Database{db: db, enabled: true}, nil
}

// SaveDecision implements engine.Recorder.
func (d *Database) SaveDecision(instrument string, a flow.AnalysisResult, dec strategy.DecisionSignal) error {
	if !d.enabled {
		return nil
	}
	row := DecisionRow{
		Instrument: instrument,
		Signal:     a.Signal.String(),
		Strength:   a.Strength,
		OBI:        a.OBI,
		FlowRatio:  a.FlowRatio,
		NetFlow:    a.NetFlow,
		Sweep:      a.Sweep,
		Action:     dec.Action.String(),
		Confidence: dec.Confidence,
		Phase:      dec.Phase.String(),
		Reasoning:  dec.Reasoning,
		DecidedAt:  dec.Timestamp,
	}
	return d.db.Create(&row).Error
}

// SaveTrade implements engine.Recorder.
func (d *Database) SaveTrade(rec types.TradeRecord) error {
	if !d.enabled {
		return nil
	}
	row := TradeRow{
		ID:         rec.ID,
		Instrument: rec.Instrument,
		Action:     rec.Action,
		Price:      rec.Price,
		Quantity:   rec.Quantity,
		PnL:        rec.PnL,
		Phase:      rec.Phase,
		ExecutedAt: rec.Timestamp,
	}
	return d.db.Create(&row).Error
}

// ArchiveDay implements engine.Recorder.
func (d *Database) ArchiveDay(day risk.DayState) error {
	if !d.enabled {
		return nil
	}
	row := RiskDayRow{
		Date:            day.Date,
		StartingEquity:  day.StartingEquity,
		ClosingEquity:   day.CurrentEquity,
		RealizedPnL:     day.RealizedPnL,
		UnrealizedPnL:   day.UnrealizedPnL,
		TradeCount:      day.TradeCount,
		KillSwitchFired: day.KillSwitchActive,
		PeakEquity:      day.PeakEquity,
	}
	return d.db.Save(&row).Error
}

// RecentTrades returns the newest trade rows, for the CLI status output.
func (d *Database) RecentTrades(limit int) ([]TradeRow, error) {
	if !d.enabled {
		return nil, nil
	}
	var rows []TradeRow
	err := d.db.Order("executed_at desc").Limit(limit).Find(&rows).Error
	return rows, err
}

// Close releases the underlying connection.
func (d *Database) Close() error {
	if !d.enabled {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
