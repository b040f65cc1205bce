package flow

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/flowbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ICEBERG DETECTOR - Hidden resting liquidity from refill behavior
// ═══════════════════════════════════════════════════════════════════════════════
//
// After an aggressor print hits the best level we expect the displayed volume
// to shrink by the trade size. If it shrinks less (or grows), someone refilled
// the level from hidden size. Repeated refills at one price are an iceberg -
// and repeated icebergs mark where institutions defend support/resistance.
//
// ═══════════════════════════════════════════════════════════════════════════════

const icebergDepth = 5 // levels cached per side

// DetectionKind tells which side of the book refilled.
type DetectionKind string

const (
	IcebergBid DetectionKind = "ICEBERG_BID"
	IcebergAsk DetectionKind = "ICEBERG_ASK"
)

// IcebergDetection is one observed refill event.
type IcebergDetection struct {
	Kind           DetectionKind
	Price          decimal.Decimal
	RefillVolume   int64
	HiddenEstimate int64 // cumulative across all detections
	Timestamp      time.Time
}

// IcebergLevel accumulates refill evidence at one price.
type IcebergLevel struct {
	Price          decimal.Decimal
	Side           string // "bid" or "ask"
	HiddenVolume   int64
	DetectionCount int
}

// IcebergDetector tracks displayed volume at the top levels of both sides and
// flags refills that exceed the post-trade expectation.
type IcebergDetector struct {
	bidVolumes map[string]int64 // price key -> last observed displayed volume
	askVolumes map[string]int64

	levels         map[string]*IcebergLevel // side+price -> accumulated evidence
	hiddenEstimate int64
}

// NewIcebergDetector creates a detector with no cached snapshot.
func NewIcebergDetector() *IcebergDetector {
	return &IcebergDetector{
		bidVolumes: make(map[string]int64),
		askVolumes: make(map[string]int64),
		levels:     make(map[string]*IcebergLevel),
	}
}

// Update inspects the post-trade book against the previous snapshot and
// returns a detection when a refill fired, nil otherwise. The volume cache is
// refreshed unconditionally at the end of every call, detection or not.
func (d *IcebergDetector) Update(book *types.OrderBook, tradePrice decimal.Decimal, tradeVolume int64, aggressor Side) *IcebergDetection {
	var det *IcebergDetection

	switch aggressor {
	case SideSell:
		det = d.checkRefill(book.Bids, IcebergBid, "bid", tradePrice, tradeVolume, book.Timestamp, d.bidVolumes)
	case SideBuy:
		det = d.checkRefill(book.Asks, IcebergAsk, "ask", tradePrice, tradeVolume, book.Timestamp, d.askVolumes)
	}

	d.snapshot(book)
	return det
}

// checkRefill compares actual post-trade volume at the traded price against
// previous - tradeVolume. A surplus (with a non-negative expectation) is the
// refill.
func (d *IcebergDetector) checkRefill(levels []types.OrderBookLevel, kind DetectionKind, side string,
	tradePrice decimal.Decimal, tradeVolume int64, ts time.Time, prev map[string]int64) *IcebergDetection {

	key := tradePrice.String()
	prevVol, seen := prev[key]
	if !seen {
		return nil
	}
	expected := prevVol - tradeVolume
	if expected < 0 {
		return nil
	}

	var actual int64
	found := false
	for i := 0; i < icebergDepth && i < len(levels); i++ {
		if levels[i].Price.Equal(tradePrice) {
			actual = levels[i].Volume
			found = true
			break
		}
	}
	if !found || actual <= expected {
		return nil
	}

	refill := actual - expected
	d.hiddenEstimate += refill

	lvlKey := side + ":" + key
	lvl, ok := d.levels[lvlKey]
	if !ok {
		lvl = &IcebergLevel{Price: tradePrice, Side: side}
		d.levels[lvlKey] = lvl
	}
	lvl.HiddenVolume += refill
	lvl.DetectionCount++

	return &IcebergDetection{
		Kind:           kind,
		Price:          tradePrice,
		RefillVolume:   refill,
		HiddenEstimate: d.hiddenEstimate,
		Timestamp:      ts,
	}
}

// snapshot caches displayed volume at the top levels of both sides.
func (d *IcebergDetector) snapshot(book *types.OrderBook) {
	d.bidVolumes = make(map[string]int64, icebergDepth)
	for i := 0; i < icebergDepth && i < len(book.Bids); i++ {
		d.bidVolumes[book.Bids[i].Price.String()] = book.Bids[i].Volume
	}
	d.askVolumes = make(map[string]int64, icebergDepth)
	for i := 0; i < icebergDepth && i < len(book.Asks); i++ {
		d.askVolumes[book.Asks[i].Price.String()] = book.Asks[i].Volume
	}
}

// HiddenEstimate returns cumulative hidden volume inferred so far.
func (d *IcebergDetector) HiddenEstimate() int64 { return d.hiddenEstimate }

// InstitutionalLevels returns the strongest iceberg prices: bid-side levels as
// inferred support, ask-side as inferred resistance, each ranked by
// detection count x hidden volume, top five per side.
func (d *IcebergDetector) InstitutionalLevels() (support, resistance []IcebergLevel) {
	for _, lvl := range d.levels {
		if lvl.Side == "bid" {
			support = append(support, *lvl)
		} else {
			resistance = append(resistance, *lvl)
		}
	}
	rank := func(l IcebergLevel) int64 { return int64(l.DetectionCount) * l.HiddenVolume }
	sort.Slice(support, func(i, j int) bool { return rank(support[i]) > rank(support[j]) })
	sort.Slice(resistance, func(i, j int) bool { return rank(resistance[i]) > rank(resistance[j]) })
	if len(support) > icebergDepth {
		support = support[:icebergDepth]
	}
	if len(resistance) > icebergDepth {
		resistance = resistance[:icebergDepth]
	}
	return support, resistance
}
