package flow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/flowbot/types"
)

// testBook builds a snapshot with uniform levels around the given best prices.
func testBook(bestBid, bestAsk float64, bidVols, askVols []int64) *types.OrderBook {
	book := &types.OrderBook{
		Instrument: "TEST",
		Timestamp:  time.Now(),
	}
	for i, v := range bidVols {
		book.Bids = append(book.Bids, types.OrderBookLevel{
			Price:      decimal.NewFromFloat(bestBid - float64(i)),
			Volume:     v,
			QueueCount: 1,
		})
	}
	for i, v := range askVols {
		book.Asks = append(book.Asks, types.OrderBookLevel{
			Price:      decimal.NewFromFloat(bestAsk + float64(i)),
			Volume:     v,
			QueueCount: 1,
		})
	}
	return book
}

func TestOBIScenario(t *testing.T) {
	c := NewOBICalculator()
	book := testBook(100, 101, []int64{500, 300}, []int64{200, 100})

	obi := c.Compute(book, 2)
	// (800 - 300) / 1100
	require.InDelta(t, 0.4545, obi, 0.0001)
	require.Equal(t, 1, c.HistoryLen())
}

func TestOBIEmptyBook(t *testing.T) {
	c := NewOBICalculator()
	require.Zero(t, c.Compute(&types.OrderBook{Instrument: "TEST"}, 5))
}

func TestOBIBounds(t *testing.T) {
	cases := []struct {
		name     string
		bidVols  []int64
		askVols  []int64
		expected float64
	}{
		{"all bids", []int64{1000, 1000}, nil, 1},
		{"all asks", nil, []int64{1000, 1000}, -1},
		{"balanced", []int64{500}, []int64{500}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewOBICalculator()
			obi := c.Compute(testBook(100, 101, tc.bidVols, tc.askVols), 5)
			require.InDelta(t, tc.expected, obi, 1e-9)
			require.GreaterOrEqual(t, obi, -1.0)
			require.LessOrEqual(t, obi, 1.0)
		})
	}
}

func TestOBIDepthLimit(t *testing.T) {
	c := NewOBICalculator()
	book := testBook(100, 101, []int64{100, 100, 9999}, []int64{100, 100, 9999})

	// depth 2 ignores the third level on both sides
	require.Zero(t, c.Compute(book, 2))
}

func TestDivergenceInsufficientData(t *testing.T) {
	c := NewOBICalculator()
	ok, reason := c.DetectDivergence(10)
	require.False(t, ok)
	require.Equal(t, "insufficient data", reason)

	c.Compute(testBook(100, 101, []int64{500}, []int64{500}), 5)
	ok, reason = c.DetectDivergence(10)
	require.False(t, ok)
	require.Equal(t, "insufficient data", reason)
}

func TestDivergenceFakeBidWall(t *testing.T) {
	c := NewOBICalculator()

	// bullish book (OBI 0.8) while the mid falls a full percent
	prices := []float64{100.0, 99.75, 99.5, 99.25, 99.0}
	for _, p := range prices {
		c.Compute(testBook(p, p+0.1, []int64{900}, []int64{100}), 5)
	}

	ok, reason := c.DetectDivergence(5)
	require.True(t, ok)
	require.Contains(t, reason, "fake bid wall")
}

func TestDivergenceFakeAskWall(t *testing.T) {
	c := NewOBICalculator()

	prices := []float64{100.0, 100.25, 100.5, 100.75, 101.0}
	for _, p := range prices {
		c.Compute(testBook(p, p+0.1, []int64{100}, []int64{900}), 5)
	}

	ok, reason := c.DetectDivergence(5)
	require.True(t, ok)
	require.Contains(t, reason, "fake ask wall")
}

func TestNoDivergenceWhenPriceConfirms(t *testing.T) {
	c := NewOBICalculator()

	// bullish book AND rising price: no contradiction
	prices := []float64{100.0, 100.5, 101.0, 101.5, 102.0}
	for _, p := range prices {
		c.Compute(testBook(p, p+0.1, []int64{900}, []int64{100}), 5)
	}

	ok, reason := c.DetectDivergence(5)
	require.False(t, ok)
	require.Equal(t, "no divergence", reason)
}
