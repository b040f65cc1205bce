package flow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestClassifyQuoteRule(t *testing.T) {
	tc := NewTradeClassifier()
	bid, ask := dec(100), dec(101)

	require.Equal(t, SideBuy, tc.Classify(dec(100.9), 10, bid, ask, time.Now()))
	require.Equal(t, SideSell, tc.Classify(dec(100.1), 20, bid, ask, time.Now()))

	require.Equal(t, int64(10), tc.BuyVolume())
	require.Equal(t, int64(20), tc.SellVolume())
	require.Equal(t, int64(-10), tc.NetFlow())
}

func TestClassifyTickTest(t *testing.T) {
	tc := NewTradeClassifier()
	bid, ask := dec(100), dec(101)
	mid := dec(100.5)

	// first midpoint print has nothing to tick against
	require.Equal(t, SideNeutral, tc.Classify(mid, 5, bid, ask, time.Now()))

	// uptick from a lower print
	require.Equal(t, SideSell, tc.Classify(dec(100.2), 5, bid, ask, time.Now()))
	require.Equal(t, SideBuy, tc.Classify(mid, 5, bid, ask, time.Now()))

	// unchanged price repeats the previous side
	require.Equal(t, SideBuy, tc.Classify(mid, 5, bid, ask, time.Now()))

	// downtick from a higher print
	tc.Classify(dec(100.8), 5, bid, ask, time.Now())
	require.Equal(t, SideSell, tc.Classify(mid, 5, bid, ask, time.Now()))
}

func TestClassifyDeterministic(t *testing.T) {
	a := NewTradeClassifier()
	b := NewTradeClassifier()
	bid, ask := dec(100), dec(101)

	prices := []float64{100.9, 100.5, 100.1, 100.5, 100.5, 100.8}
	ts := time.Now()
	for _, p := range prices {
		require.Equal(t, a.Classify(dec(p), 7, bid, ask, ts), b.Classify(dec(p), 7, bid, ask, ts))
	}
	require.Equal(t, a.NetFlow(), b.NetFlow())
}

func TestFlowRatioEmptyTape(t *testing.T) {
	tc := NewTradeClassifier()
	require.InDelta(t, 0.5, tc.FlowRatio(), 1e-9)
}

func TestClassifierEvictionKeepsVolumesConsistent(t *testing.T) {
	tc := NewTradeClassifier()
	bid, ask := dec(100), dec(101)

	// alternate buys and sells past the window size
	for i := 0; i < tradeHistoryCap+20; i++ {
		price := dec(100.9)
		if i%2 == 1 {
			price = dec(100.1)
		}
		tc.Classify(price, int64(i+1), bid, ask, time.Now())
	}

	// recompute from the surviving window
	var wantBuy, wantSell int64
	for i := 20; i < tradeHistoryCap+20; i++ {
		if i%2 == 0 {
			wantBuy += int64(i + 1)
		} else {
			wantSell += int64(i + 1)
		}
	}
	require.Equal(t, wantBuy, tc.BuyVolume())
	require.Equal(t, wantSell, tc.SellVolume())
}

func TestDetectSweep(t *testing.T) {
	tc := NewTradeClassifier()
	bid, ask := dec(100), dec(101)

	// quiet tape: 20 small mixed prints establish the baseline
	for i := 0; i < 20; i++ {
		price := dec(100.1)
		if i%2 == 0 {
			price = dec(100.9)
		}
		tc.Classify(price, 10, bid, ask, time.Now())
	}
	require.False(t, tc.DetectSweep(10))

	// burst of unanimous large buys
	for i := 0; i < 10; i++ {
		tc.Classify(dec(100.9), 100, bid, ask, time.Now())
	}
	// all-time average is 40, burst sum 1000 clears the 3x bar
	require.True(t, tc.DetectSweep(10))
}

func TestDetectSweepNotUnanimous(t *testing.T) {
	tc := NewTradeClassifier()
	bid, ask := dec(100), dec(101)

	for i := 0; i < 9; i++ {
		tc.Classify(dec(100.9), 100, bid, ask, time.Now())
	}
	tc.Classify(dec(100.1), 100, bid, ask, time.Now())
	require.False(t, tc.DetectSweep(10))
}

func TestDetectSweepEmptyTape(t *testing.T) {
	tc := NewTradeClassifier()
	require.False(t, tc.DetectSweep(10))
}

func TestDetectSweepNonPositiveCount(t *testing.T) {
	tc := NewTradeClassifier()
	tc.Classify(dec(100.9), 10, dec(100), dec(101), time.Now())

	require.False(t, tc.DetectSweep(0))
	require.False(t, tc.DetectSweep(-1))
}
