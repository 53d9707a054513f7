package alpaca

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tradoverse/broker-gateway/internal/broker"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

// SubscribeQuotes registers fn for streamed quotes, opening the market-data
// channel on the first subscription.
func (a *Adapter) SubscribeQuotes(symbols []string, fn broker.QuoteHandler) (broker.SubscriptionID, error) {
	upper := upperAll(symbols)
	id := a.subs.AddQuoteHandler(upper, fn)
	if err := a.marketStream.subscribe(upper, nil); err != nil {
		a.subs.Remove(id)
		return 0, err
	}
	return id, nil
}

// SubscribeBars registers fn for streamed minute bars
func (a *Adapter) SubscribeBars(symbols []string, fn broker.BarHandler) (broker.SubscriptionID, error) {
	upper := upperAll(symbols)
	id := a.subs.AddBarHandler(upper, fn)
	if err := a.marketStream.subscribe(nil, upper); err != nil {
		a.subs.Remove(id)
		return 0, err
	}
	return id, nil
}

// SubscribeOrderUpdates registers fn for trade-update events, opening the
// trading stream on the first subscription.
func (a *Adapter) SubscribeOrderUpdates(fn broker.OrderUpdateHandler) (broker.SubscriptionID, error) {
	id := a.subs.AddOrderHandler(fn)
	if err := a.tradeStream.ensure(); err != nil {
		a.subs.Remove(id)
		return 0, err
	}
	return id, nil
}

// SubscribePositionUpdates registers fn for position changes derived from
// fill events on the trading stream.
func (a *Adapter) SubscribePositionUpdates(fn broker.PositionUpdateHandler) (broker.SubscriptionID, error) {
	id := a.subs.AddPositionHandler(fn)
	if err := a.tradeStream.ensure(); err != nil {
		a.subs.Remove(id)
		return 0, err
	}
	return id, nil
}

// Unsubscribe drops the symbols from the market-data stream. The channel
// stays open for remaining subscribers.
func (a *Adapter) Unsubscribe(symbols []string) error {
	upper := upperAll(symbols)
	a.subs.RemoveSymbols(upper)
	a.marketStream.unsubscribe(upper)
	if !a.subs.HasMarketData() {
		a.marketStream.stop()
	}
	return nil
}

// UnsubscribeAll clears every registration and tears both channels down
func (a *Adapter) UnsubscribeAll() error {
	a.subs.Clear()
	a.marketStream.stop()
	a.tradeStream.stop()
	return nil
}

func upperAll(symbols []string) []string {
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = strings.ToUpper(s)
	}
	return out
}

// streamMessage is one element of a v2 market-data stream frame. The feed
// uses single-letter keys; they are expanded into the canonical objects
// here and never travel further.
type streamMessage struct {
	Type      string    `json:"T"`
	Symbol    string    `json:"S"`
	BidPrice  float64   `json:"bp"`
	BidSize   float64   `json:"bs"`
	AskPrice  float64   `json:"ap"`
	AskSize   float64   `json:"as"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
	VWAP      float64   `json:"vw"`
	Count     int64     `json:"n"`
	Timestamp time.Time `json:"t"`
	Code      int       `json:"code"`
	Msg       string    `json:"msg"`
}

// marketStream manages the shared v2 market-data WebSocket. It is opened
// lazily on the first subscription and reconnects with backoff until stop.
type marketStream struct {
	a    *Adapter
	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}
}

func newMarketStream(a *Adapter) *marketStream {
	return &marketStream{a: a}
}

// subscribe ensures the channel is up and registers the symbols with the
// vendor. Either list may be nil.
func (s *marketStream) subscribe(quotes, bars []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(); err != nil {
		return err
	}
	return s.send(map[string]interface{}{
		"action": "subscribe",
		"quotes": emptyIfNil(quotes),
		"bars":   emptyIfNil(bars),
	})
}

func (s *marketStream) unsubscribe(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return
	}
	_ = s.send(map[string]interface{}{
		"action": "unsubscribe",
		"quotes": symbols,
		"bars":   symbols,
	})
}

func (s *marketStream) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// ensureLocked dials, authenticates and starts the reader; caller holds mu
func (s *marketStream) ensureLocked() error {
	if s.conn != nil {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.Dial(s.a.cfg.StreamURL, nil)
	if err != nil {
		return models.NewBrokerError(models.BrokerAlpaca, models.ErrConnection,
			"market data stream dial failed", err)
	}
	if err := conn.WriteJSON(map[string]string{
		"action": "auth",
		"key":    s.a.cfg.APIKey,
		"secret": s.a.cfg.APISecret,
	}); err != nil {
		_ = conn.Close()
		return models.NewBrokerError(models.BrokerAlpaca, models.ErrConnection,
			"market data stream auth write failed", err)
	}

	s.conn = conn
	s.done = make(chan struct{})
	go s.readLoop(conn, s.done)
	s.a.logger.WithField("url", s.a.cfg.StreamURL).Info("Market data stream connected")
	return nil
}

func (s *marketStream) send(payload interface{}) error {
	if err := s.conn.WriteJSON(payload); err != nil {
		return models.NewBrokerError(models.BrokerAlpaca, models.ErrConnection,
			"market data stream write failed", err)
	}
	return nil
}

// readLoop reads frames until the channel dies, then reconnects with
// backoff and replays the active subscriptions.
func (s *marketStream) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			s.a.logger.WithError(err).Warn("Market data stream read failed, reconnecting")
			s.reconnect(done)
			return
		}

		var messages []streamMessage
		if err := json.Unmarshal(raw, &messages); err != nil {
			s.a.logger.WithError(err).Debug("Skipping undecodable stream frame")
			continue
		}
		for i := range messages {
			s.dispatch(&messages[i])
		}
	}
}

func (s *marketStream) dispatch(m *streamMessage) {
	switch m.Type {
	case "q":
		s.a.subs.DispatchQuote(&models.Quote{
			Symbol:    m.Symbol,
			BidPrice:  m.BidPrice,
			BidSize:   m.BidSize,
			AskPrice:  m.AskPrice,
			AskSize:   m.AskSize,
			Timestamp: m.Timestamp,
		})
	case "b":
		s.a.subs.DispatchBar(&models.Bar{
			Symbol:     m.Symbol,
			Open:       m.Open,
			High:       m.High,
			Low:        m.Low,
			Close:      m.Close,
			Volume:     m.Volume,
			VWAP:       m.VWAP,
			TradeCount: m.Count,
			Timestamp:  m.Timestamp,
		})
	case "error":
		s.a.logger.WithFields(map[string]interface{}{
			"code": m.Code,
			"msg":  m.Msg,
		}).Error("Market data stream error message")
	}
}

func (s *marketStream) reconnect(done chan struct{}) {
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	backoff := time.Second
	for {
		select {
		case <-done:
			return
		case <-time.After(backoff):
		}

		s.mu.Lock()
		if s.done != done {
			// A stop/restart cycle superseded this reader
			s.mu.Unlock()
			return
		}
		err := s.ensureLockedResubscribe()
		s.mu.Unlock()
		if err == nil {
			return
		}
		s.a.logger.WithError(err).Warn("Market data stream reconnect failed")
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// ensureLockedResubscribe re-dials and replays the live symbol set
func (s *marketStream) ensureLockedResubscribe() error {
	if err := s.ensureLocked(); err != nil {
		return err
	}
	return s.send(map[string]interface{}{
		"action": "subscribe",
		"quotes": emptyIfNil(s.a.subs.QuoteSymbols()),
		"bars":   emptyIfNil(s.a.subs.BarSymbols()),
	})
}

func emptyIfNil(symbols []string) []string {
	if symbols == nil {
		return []string{}
	}
	return symbols
}

// tradeUpdateFrame is one frame on the trading stream
type tradeUpdateFrame struct {
	Stream string `json:"stream"`
	Data   struct {
		Event       string    `json:"event"`
		Price       string    `json:"price"`
		Qty         string    `json:"qty"`
		PositionQty string    `json:"position_qty"`
		Timestamp   time.Time `json:"timestamp"`
		Order       wireOrder `json:"order"`
	} `json:"data"`
}

// tradeStream manages the trade-updates WebSocket on the trading API host
type tradeStream struct {
	a    *Adapter
	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}
}

func newTradeStream(a *Adapter) *tradeStream {
	return &tradeStream{a: a}
}

// ensure opens the trading stream if it is not already up
func (s *tradeStream) ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	url := strings.Replace(s.a.cfg.APIURL, "https://", "wss://", 1) + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return models.NewBrokerError(models.BrokerAlpaca, models.ErrConnection,
			"trading stream dial failed", err)
	}
	if err := conn.WriteJSON(map[string]interface{}{
		"action": "auth",
		"key":    s.a.cfg.APIKey,
		"secret": s.a.cfg.APISecret,
	}); err != nil {
		_ = conn.Close()
		return models.NewBrokerError(models.BrokerAlpaca, models.ErrConnection,
			"trading stream auth write failed", err)
	}
	if err := conn.WriteJSON(map[string]interface{}{
		"action": "listen",
		"data":   map[string][]string{"streams": {"trade_updates"}},
	}); err != nil {
		_ = conn.Close()
		return models.NewBrokerError(models.BrokerAlpaca, models.ErrConnection,
			"trading stream listen write failed", err)
	}

	s.conn = conn
	s.done = make(chan struct{})
	go s.readLoop(conn, s.done)
	s.a.logger.Info("Trading stream connected")
	return nil
}

func (s *tradeStream) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *tradeStream) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			s.a.logger.WithError(err).Warn("Trading stream read failed, reconnecting")
			s.reconnect(done)
			return
		}

		var frame tradeUpdateFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Stream != "trade_updates" {
			continue
		}
		s.dispatch(&frame)
	}
}

func (s *tradeStream) dispatch(frame *tradeUpdateFrame) {
	order, err := s.a.translateOrder(&frame.Data.Order)
	if err != nil {
		s.a.logger.WithError(err).Warn("Dropping untranslatable trade update")
		return
	}

	s.a.subs.DispatchOrderUpdate(&models.OrderUpdate{
		Event:     frame.Data.Event,
		Broker:    models.BrokerAlpaca,
		Order:     order,
		FillPrice: parseFloat(frame.Data.Price),
		FillQty:   parseFloat(frame.Data.Qty),
		Timestamp: frame.Data.Timestamp,
	})

	// Fill events change the position; push the new quantity downstream
	if frame.Data.Event == "fill" || frame.Data.Event == "partial_fill" {
		qty := parseFloat(frame.Data.PositionQty)
		side := "long"
		if qty < 0 {
			side = "short"
		}
		s.a.subs.DispatchPositionUpdate(&models.PositionUpdate{
			Broker: models.BrokerAlpaca,
			Position: &models.Position{
				Symbol:       order.Symbol,
				Broker:       models.BrokerAlpaca,
				Qty:          qty,
				Side:         side,
				CurrentPrice: parseFloat(frame.Data.Price),
			},
		})
	}
}

func (s *tradeStream) reconnect(done chan struct{}) {
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	backoff := time.Second
	for {
		select {
		case <-done:
			return
		case <-time.After(backoff):
		}

		s.mu.Lock()
		superseded := s.done != done
		s.mu.Unlock()
		if superseded {
			return
		}

		if err := s.ensure(); err == nil {
			return
		} else {
			s.a.logger.WithError(err).Warn("Trading stream reconnect failed")
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
