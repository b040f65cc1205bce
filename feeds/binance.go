package feeds

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/flowbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BINANCE MARKET DATA FEED - Book snapshots and aggressor prints over WebSocket
// ═══════════════════════════════════════════════════════════════════════════════
//
// Translates the combined depth20 + aggTrade stream into the pipeline's
// OrderBook/Trade snapshots. This is the market-data collaborator: the core
// never talks to an exchange, it only sees the typed records this feed emits.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	reconnectDelay = 5 * time.Second
	pingInterval   = 30 * time.Second

	// Book and trade quantities arrive as fractional base-asset amounts;
	// the pipeline works in integral volume units of 1e-4 of the base asset.
	volumeScale = 4
)

// MarketUpdate is one feed event: always a book, sometimes a print.
type MarketUpdate struct {
	Book  *types.OrderBook
	Trade *types.Trade
}

// BinanceFeed streams one symbol's market data.
type BinanceFeed struct {
	mu sync.RWMutex

	baseURL string
	symbol  string

	conn    *websocket.Conn
	running bool
	stopCh  chan struct{}

	updates chan MarketUpdate

	// latest book, re-emitted alongside each trade
	lastBook *types.OrderBook
}

// NewBinanceFeed creates a feed for one symbol (lowercase, e.g. "btcusdt").
func NewBinanceFeed(baseURL, symbol string) *BinanceFeed {
	return &BinanceFeed{
		baseURL: baseURL,
		symbol:  strings.ToLower(symbol),
		stopCh:  make(chan struct{}),
		updates: make(chan MarketUpdate, 1000),
	}
}

// Updates returns the stream of market updates.
func (f *BinanceFeed) Updates() <-chan MarketUpdate { return f.updates }

// Start connects and begins translating the stream.
func (f *BinanceFeed) Start() {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.mu.Unlock()

	go f.connectionLoop()
	log.Info().Str("symbol", f.symbol).Msg("📡 Binance feed started")
}

// Stop closes the connection and the update channel.
func (f *BinanceFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}
	f.running = false
	close(f.stopCh)
	if f.conn != nil {
		f.conn.Close()
	}
	log.Info().Msg("Binance feed stopped")
}

// connectionLoop maintains the WebSocket connection with reconnects.
func (f *BinanceFeed) connectionLoop() {
	url := fmt.Sprintf("%s/stream?streams=%s@depth20@100ms/%s@aggTrade", f.baseURL, f.symbol, f.symbol)

	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		if err := f.connect(url); err != nil {
			log.Error().Err(err).Msg("Connection failed, retrying...")
			time.Sleep(reconnectDelay)
			continue
		}

		// The ping loop lives exactly as long as this connection.
		done := make(chan struct{})
		go f.pingLoop(done)
		f.readLoop()
		close(done)

		time.Sleep(reconnectDelay)
	}
}

func (f *BinanceFeed) connect(url string) error {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	log.Info().Str("url", url).Msg("🔌 WebSocket connected")
	return nil
}

func (f *BinanceFeed) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-done:
			return
		case <-ticker.C:
			f.mu.RLock()
			conn := f.conn
			f.mu.RUnlock()
			if conn != nil {
				conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

func (f *BinanceFeed) readLoop() {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("Read error")
			return
		}

		f.processMessage(message)
	}
}

// combined-stream envelope
type streamMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type depthMessage struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

type aggTradeMessage struct {
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

func (f *BinanceFeed) processMessage(data []byte) {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch {
	case strings.Contains(msg.Stream, "@depth"):
		f.handleDepth(msg.Data)
	case strings.Contains(msg.Stream, "@aggTrade"):
		f.handleTrade(msg.Data)
	}
}

func (f *BinanceFeed) handleDepth(data json.RawMessage) {
	var depth depthMessage
	if err := json.Unmarshal(data, &depth); err != nil {
		return
	}

	book := &types.OrderBook{
		Instrument: strings.ToUpper(f.symbol),
		Timestamp:  time.Now(),
		Bids:       parseLevels(depth.Bids),
		Asks:       parseLevels(depth.Asks),
	}

	f.mu.Lock()
	if f.lastBook != nil {
		book.LastPrice = f.lastBook.LastPrice
		book.LastVolume = f.lastBook.LastVolume
	}
	f.lastBook = book
	f.mu.Unlock()

	f.emit(MarketUpdate{Book: book})
}

func (f *BinanceFeed) handleTrade(data json.RawMessage) {
	var agg aggTradeMessage
	if err := json.Unmarshal(data, &agg); err != nil {
		return
	}

	price, err := decimal.NewFromString(agg.Price)
	if err != nil {
		return
	}
	qty, err := decimal.NewFromString(agg.Quantity)
	if err != nil {
		return
	}

	trade := &types.Trade{
		Price:     price,
		Volume:    qty.Shift(volumeScale).IntPart(),
		Timestamp: time.UnixMilli(agg.TradeTime),
	}

	f.mu.Lock()
	prev := f.lastBook
	var book *types.OrderBook
	if prev != nil {
		// Snapshots are immutable: build a fresh book carrying the print.
		copied := *prev
		copied.LastPrice = trade.Price
		copied.LastVolume = trade.Volume
		copied.Timestamp = trade.Timestamp
		book = &copied
		f.lastBook = book
	}
	f.mu.Unlock()

	if book == nil {
		// No book yet: the analyzer cannot classify the print, drop it.
		return
	}
	f.emit(MarketUpdate{Book: book, Trade: trade})
}

func parseLevels(raw [][]string) []types.OrderBookLevel {
	levels := make([]types.OrderBookLevel, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			continue
		}
		price, err := decimal.NewFromString(entry[0])
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(entry[1])
		if err != nil || !qty.IsPositive() {
			continue
		}
		levels = append(levels, types.OrderBookLevel{
			Price:      price,
			Volume:     qty.Shift(volumeScale).IntPart(),
			QueueCount: 1, // depth stream does not expose order counts
		})
	}
	return levels
}

func (f *BinanceFeed) emit(u MarketUpdate) {
	select {
	case f.updates <- u:
	default:
		log.Warn().Msg("update channel full, dropping market update")
	}
}
