package flow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/flowbot/types"
)

func bookWithBestBid(price decimal.Decimal, volume int64) *types.OrderBook {
	return &types.OrderBook{
		Instrument: "TEST",
		Timestamp:  time.Now(),
		Bids:       []types.OrderBookLevel{{Price: price, Volume: volume, QueueCount: 1}},
		Asks:       []types.OrderBookLevel{{Price: price.Add(decimal.NewFromInt(1)), Volume: 1000, QueueCount: 1}},
	}
}

func TestIcebergBidRefill(t *testing.T) {
	d := NewIcebergDetector()
	price := dec(50000)

	// seed: 5000 displayed at the bid
	require.Nil(t, d.Update(bookWithBestBid(price, 5000), decimal.Zero, 0, SideNeutral))

	// seller hits 3000, yet the level still shows 5000 afterwards
	det := d.Update(bookWithBestBid(price, 5000), price, 3000, SideSell)
	require.NotNil(t, det)
	require.Equal(t, IcebergBid, det.Kind)
	require.True(t, det.Price.Equal(price))
	require.Equal(t, int64(3000), det.RefillVolume)
	require.Equal(t, int64(3000), det.HiddenEstimate)
	require.Equal(t, int64(3000), d.HiddenEstimate())
}

func TestIcebergAskRefill(t *testing.T) {
	d := NewIcebergDetector()
	ask := dec(50001)
	book := &types.OrderBook{
		Instrument: "TEST",
		Timestamp:  time.Now(),
		Bids:       []types.OrderBookLevel{{Price: dec(50000), Volume: 1000, QueueCount: 1}},
		Asks:       []types.OrderBookLevel{{Price: ask, Volume: 2000, QueueCount: 1}},
	}

	require.Nil(t, d.Update(book, decimal.Zero, 0, SideNeutral))

	det := d.Update(book, ask, 1500, SideBuy)
	require.NotNil(t, det)
	require.Equal(t, IcebergAsk, det.Kind)
	require.Equal(t, int64(1500), det.RefillVolume)
}

func TestIcebergNoDetectionOnNormalDecay(t *testing.T) {
	d := NewIcebergDetector()
	price := dec(50000)

	d.Update(bookWithBestBid(price, 5000), decimal.Zero, 0, SideNeutral)

	// level shrank by exactly the trade size: nothing hidden
	require.Nil(t, d.Update(bookWithBestBid(price, 2000), price, 3000, SideSell))
}

func TestIcebergNegativeExpectationIgnored(t *testing.T) {
	d := NewIcebergDetector()
	price := dec(50000)

	d.Update(bookWithBestBid(price, 1000), decimal.Zero, 0, SideNeutral)

	// trade larger than the displayed size swept deeper levels too; the
	// refill arithmetic is meaningless here
	require.Nil(t, d.Update(bookWithBestBid(price, 500), price, 3000, SideSell))
}

func TestIcebergUnseenPriceIgnored(t *testing.T) {
	d := NewIcebergDetector()
	require.Nil(t, d.Update(bookWithBestBid(dec(50000), 5000), dec(50000), 1000, SideSell))
}

func TestIcebergSnapshotAlwaysRefreshes(t *testing.T) {
	d := NewIcebergDetector()
	price := dec(50000)

	// even a no-trade update must cache the book for the next comparison
	d.Update(bookWithBestBid(price, 4000), decimal.Zero, 0, SideNeutral)
	// price moved: old key gone, new key cached
	d.Update(bookWithBestBid(dec(49999), 4000), decimal.Zero, 0, SideNeutral)

	// refill against the stale 50000 entry must not fire
	require.Nil(t, d.Update(bookWithBestBid(price, 9000), price, 100, SideSell))
}

func TestInstitutionalLevelsRanking(t *testing.T) {
	d := NewIcebergDetector()
	weak := dec(49990)
	strong := dec(50000)

	// one refill at the weak level
	d.Update(bookWithBestBid(weak, 5000), decimal.Zero, 0, SideNeutral)
	d.Update(bookWithBestBid(weak, 5000), weak, 1000, SideSell)

	// three refills at the strong level
	d.Update(bookWithBestBid(strong, 5000), decimal.Zero, 0, SideNeutral)
	for i := 0; i < 3; i++ {
		det := d.Update(bookWithBestBid(strong, 5000), strong, 2000, SideSell)
		require.NotNil(t, det)
	}

	support, resistance := d.InstitutionalLevels()
	require.Empty(t, resistance)
	require.Len(t, support, 2)
	require.True(t, support[0].Price.Equal(strong))
	require.Equal(t, 3, support[0].DetectionCount)
	require.Equal(t, int64(6000), support[0].HiddenVolume)
	require.True(t, support[1].Price.Equal(weak))
}
