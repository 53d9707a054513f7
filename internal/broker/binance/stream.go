package binance

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	connector "github.com/binance/binance-connector-go"
	"github.com/gorilla/websocket"

	"github.com/tradoverse/broker-gateway/internal/broker"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

// SubscribeQuotes registers fn for streamed best bid/ask, opening the
// combined book-ticker stream on the first subscription.
func (a *Adapter) SubscribeQuotes(symbols []string, fn broker.QuoteHandler) (broker.SubscriptionID, error) {
	id := a.subs.AddQuoteHandler(symbols, fn)
	if err := a.marketStream.subscribeQuotes(symbols); err != nil {
		a.subs.Remove(id)
		return 0, err
	}
	return id, nil
}

// SubscribeBars registers fn for streamed one-minute klines
func (a *Adapter) SubscribeBars(symbols []string, fn broker.BarHandler) (broker.SubscriptionID, error) {
	id := a.subs.AddBarHandler(symbols, fn)
	if err := a.marketStream.subscribeBars(symbols); err != nil {
		a.subs.Remove(id)
		return 0, err
	}
	return id, nil
}

// SubscribeOrderUpdates registers fn for execution reports, opening the
// user data stream on the first subscription.
func (a *Adapter) SubscribeOrderUpdates(fn broker.OrderUpdateHandler) (broker.SubscriptionID, error) {
	id := a.subs.AddOrderHandler(fn)
	if err := a.userStream.ensure(); err != nil {
		a.subs.Remove(id)
		return 0, err
	}
	return id, nil
}

// SubscribePositionUpdates registers fn for balance changes pushed on the
// user data stream.
func (a *Adapter) SubscribePositionUpdates(fn broker.PositionUpdateHandler) (broker.SubscriptionID, error) {
	id := a.subs.AddPositionHandler(fn)
	if err := a.userStream.ensure(); err != nil {
		a.subs.Remove(id)
		return 0, err
	}
	return id, nil
}

// Unsubscribe drops the symbols from both market streams. The streams stay
// up for remaining subscribers and restart with the narrowed symbol set.
func (a *Adapter) Unsubscribe(symbols []string) error {
	a.subs.RemoveSymbols(symbols)
	a.marketStream.drop(symbols)
	if !a.subs.HasMarketData() {
		a.marketStream.stop()
	}
	return nil
}

// UnsubscribeAll clears every registration and tears all streams down
func (a *Adapter) UnsubscribeAll() error {
	a.subs.Clear()
	a.marketStream.stop()
	a.userStream.stop()
	return nil
}

// marketStream fans venue pushes into the subscription manager. Quotes ride
// the official connector's combined book-ticker stream; bars ride a raw
// combined kline stream. The venue fixes the symbol list at connect time,
// so changing the set restarts the affected stream.
//
// Vendor frames carry concatenated symbols; subscribed maps them back to
// the exact symbol strings callers registered with.
type marketStream struct {
	a  *Adapter
	mu sync.Mutex

	subscribed map[string]string // vendor symbol -> subscribed symbol

	quoteSymbols map[string]bool
	quoteStop    chan struct{}

	barSymbols map[string]bool
	barConn    *websocket.Conn
	barDone    chan struct{}
}

func newMarketStream(a *Adapter) *marketStream {
	return &marketStream{
		a:            a,
		subscribed:   make(map[string]string),
		quoteSymbols: make(map[string]bool),
		barSymbols:   make(map[string]bool),
	}
}

func (s *marketStream) subscribeQuotes(symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, symbol := range symbols {
		vendor := vendorSymbol(symbol)
		s.subscribed[vendor] = symbol
		if !s.quoteSymbols[vendor] {
			s.quoteSymbols[vendor] = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.restartQuotesLocked()
}

func (s *marketStream) subscribeBars(symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, symbol := range symbols {
		vendor := vendorSymbol(symbol)
		s.subscribed[vendor] = symbol
		if !s.barSymbols[vendor] {
			s.barSymbols[vendor] = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.restartBarsLocked()
}

func (s *marketStream) drop(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quotesChanged, barsChanged := false, false
	for _, symbol := range symbols {
		vendor := vendorSymbol(symbol)
		if s.quoteSymbols[vendor] {
			delete(s.quoteSymbols, vendor)
			quotesChanged = true
		}
		if s.barSymbols[vendor] {
			delete(s.barSymbols, vendor)
			barsChanged = true
		}
		if !s.quoteSymbols[vendor] && !s.barSymbols[vendor] {
			delete(s.subscribed, vendor)
		}
	}
	if quotesChanged {
		if err := s.restartQuotesLocked(); err != nil {
			s.a.logger.WithError(err).Warn("Failed to restart book ticker stream after unsubscribe")
		}
	}
	if barsChanged {
		if err := s.restartBarsLocked(); err != nil {
			s.a.logger.WithError(err).Warn("Failed to restart kline stream after unsubscribe")
		}
	}
}

func (s *marketStream) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopQuotesLocked()
	s.stopBarsLocked()
	s.subscribed = make(map[string]string)
	s.quoteSymbols = make(map[string]bool)
	s.barSymbols = make(map[string]bool)
}

func (s *marketStream) stopQuotesLocked() {
	if s.quoteStop != nil {
		close(s.quoteStop)
		s.quoteStop = nil
	}
}

func (s *marketStream) stopBarsLocked() {
	if s.barDone != nil {
		close(s.barDone)
		s.barDone = nil
	}
	if s.barConn != nil {
		_ = s.barConn.Close()
		s.barConn = nil
	}
}

// restartQuotesLocked tears down the book-ticker stream and reopens it with
// the current symbol set via the connector client.
func (s *marketStream) restartQuotesLocked() error {
	s.stopQuotesLocked()
	if len(s.quoteSymbols) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(s.quoteSymbols))
	for vendor := range s.quoteSymbols {
		symbols = append(symbols, strings.ToLower(vendor))
	}

	handler := func(event *connector.WsBookTickerEvent) {
		s.a.subs.DispatchQuote(&models.Quote{
			Symbol:    s.resolve(event.Symbol),
			BidPrice:  parseFloat(event.BestBidPrice),
			BidSize:   parseFloat(event.BestBidQty),
			AskPrice:  parseFloat(event.BestAskPrice),
			AskSize:   parseFloat(event.BestAskQty),
			Timestamp: time.Now(),
		})
	}
	errHandler := func(err error) {
		s.a.logger.WithError(err).Error("Book ticker stream error")
	}

	client := connector.NewWebsocketStreamClient(true)
	_, stopCh, err := client.WsCombinedBookTickerServe(symbols, handler, errHandler)
	if err != nil {
		return models.NewBrokerError(models.BrokerBinance, models.ErrConnection,
			"book ticker stream start failed", err)
	}
	s.quoteStop = stopCh
	s.a.logger.WithField("symbols", len(symbols)).Info("Book ticker stream connected")
	return nil
}

// klineFrame is one combined-stream kline push
type klineFrame struct {
	Stream string `json:"stream"`
	Data   struct {
		Event  string `json:"e"`
		Symbol string `json:"s"`
		Kline  struct {
			OpenTime   int64  `json:"t"`
			Symbol     string `json:"s"`
			Interval   string `json:"i"`
			Open       string `json:"o"`
			Close      string `json:"c"`
			High       string `json:"h"`
			Low        string `json:"l"`
			Volume     string `json:"v"`
			TradeCount int64  `json:"n"`
			Closed     bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

// restartBarsLocked tears down the kline stream and reopens it with the
// current symbol set over a raw combined-stream WebSocket.
func (s *marketStream) restartBarsLocked() error {
	s.stopBarsLocked()
	if len(s.barSymbols) == 0 {
		return nil
	}

	streams := make([]string, 0, len(s.barSymbols))
	for vendor := range s.barSymbols {
		streams = append(streams, strings.ToLower(vendor)+"@kline_1m")
	}
	endpoint := s.a.cfg.StreamURL + "/stream?streams=" + url.QueryEscape(strings.Join(streams, "/"))

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return models.NewBrokerError(models.BrokerBinance, models.ErrConnection,
			"kline stream dial failed", err)
	}

	s.barConn = conn
	s.barDone = make(chan struct{})
	go s.klineLoop(conn, s.barDone)
	s.a.logger.WithField("streams", len(streams)).Info("Kline stream connected")
	return nil
}

// klineLoop reads frames until the channel dies, then reconnects with
// backoff. Only closed candles are dispatched.
func (s *marketStream) klineLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			s.a.logger.WithError(err).Warn("Kline stream read failed, reconnecting")
			s.reconnectBars(done)
			return
		}

		var frame klineFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Data.Event != "kline" {
			continue
		}
		k := frame.Data.Kline
		if !k.Closed {
			continue
		}
		s.a.subs.DispatchBar(&models.Bar{
			Symbol:     s.resolve(frame.Data.Symbol),
			Open:       parseFloat(k.Open),
			High:       parseFloat(k.High),
			Low:        parseFloat(k.Low),
			Close:      parseFloat(k.Close),
			Volume:     parseFloat(k.Volume),
			TradeCount: k.TradeCount,
			Timestamp:  time.UnixMilli(k.OpenTime),
		})
	}
}

func (s *marketStream) reconnectBars(done chan struct{}) {
	s.mu.Lock()
	if s.barConn != nil {
		_ = s.barConn.Close()
		s.barConn = nil
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
		if s.barDone != done {
			// A stop/restart cycle superseded this reader
			s.mu.Unlock()
			return
		}
		err := s.restartBarsLocked()
		s.mu.Unlock()
		if err == nil {
			return
		}
		s.a.logger.WithError(err).Warn("Kline stream reconnect failed")
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// resolve maps a vendor symbol back to the exact symbol string the caller
// subscribed with, falling back to the canonical slashed pair.
func (s *marketStream) resolve(vendor string) string {
	s.mu.Lock()
	symbol, ok := s.subscribed[vendor]
	s.mu.Unlock()
	if ok {
		return symbol
	}
	return canonicalSymbol(vendor)
}

// userStream manages the user data stream: a listen key minted over REST,
// kept alive every thirty minutes, and a raw WebSocket carrying execution
// reports and balance updates.
type userStream struct {
	a         *Adapter
	mu        sync.Mutex
	conn      *websocket.Conn
	listenKey string
	done      chan struct{}
}

func newUserStream(a *Adapter) *userStream {
	return &userStream{a: a}
}

// ensure opens the user data stream if it is not already up
func (s *userStream) ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked()
}

func (s *userStream) ensureLocked() error {
	if s.conn != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var key wireListenKey
	if err := s.a.rest.keyed(ctx, "POST", "/api/v3/userDataStream", nil, &key); err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(s.a.cfg.StreamURL+"/ws/"+key.ListenKey, nil)
	if err != nil {
		return models.NewBrokerError(models.BrokerBinance, models.ErrConnection,
			"user data stream dial failed", err)
	}

	s.conn = conn
	s.listenKey = key.ListenKey
	s.done = make(chan struct{})
	go s.readLoop(conn, s.done)
	go s.keepAlive(key.ListenKey, s.done)
	s.a.logger.Info("User data stream connected")
	return nil
}

func (s *userStream) stop() {
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
	s.listenKey = ""
}

// keepAlive pings the listen key before the venue's hour-long expiry
func (s *userStream) keepAlive(listenKey string, done chan struct{}) {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		params := url.Values{}
		params.Set("listenKey", listenKey)
		err := s.a.rest.keyed(ctx, "PUT", "/api/v3/userDataStream", params, nil)
		cancel()
		if err != nil {
			s.a.logger.WithError(err).Warn("Listen key keepalive failed")
		}
	}
}

func (s *userStream) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			s.a.logger.WithError(err).Warn("User data stream read failed, reconnecting")
			s.reconnect(done)
			return
		}

		var probe struct {
			Event string `json:"e"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}
		switch probe.Event {
		case "executionReport":
			var report executionReport
			if err := json.Unmarshal(raw, &report); err == nil {
				s.dispatchOrder(&report)
			}
		case "outboundAccountPosition":
			var balances accountPosition
			if err := json.Unmarshal(raw, &balances); err == nil {
				s.dispatchPositions(&balances)
			}
		}
	}
}

// executionEvents maps the venue's execution type onto canonical event names
var executionEvents = map[string]string{
	"NEW":      "new",
	"CANCELED": "canceled",
	"REPLACED": "replaced",
	"REJECTED": "rejected",
	"EXPIRED":  "expired",
}

func (s *userStream) dispatchOrder(report *executionReport) {
	order, err := s.a.translateOrder(&wireOrder{
		Symbol:        report.Symbol,
		OrderID:       report.OrderID,
		ClientOrderID: report.ClientOrderID,
		Price:         report.Price,
		OrigQty:       report.Qty,
		ExecutedQty:   report.CumFilledQty,
		Status:        report.OrderStatus,
		TimeInForce:   report.TimeInForce,
		Type:          report.OrderType,
		Side:          report.Side,
		StopPrice:     report.StopPrice,
		Time:          report.CreationTime,
		UpdateTime:    report.EventTime,
	})
	if err != nil {
		s.a.logger.WithError(err).Warn("Dropping untranslatable execution report")
		return
	}

	event, ok := executionEvents[report.ExecutionType]
	if !ok {
		if report.ExecutionType != "TRADE" {
			s.a.logger.WithField("execution_type", report.ExecutionType).Debug("Unrecognized execution type")
			return
		}
		event = "partial_fill"
		if order.Status == models.OrderStatusFilled {
			event = "fill"
		}
	}

	s.a.subs.DispatchOrderUpdate(&models.OrderUpdate{
		Event:     event,
		Broker:    models.BrokerBinance,
		Order:     order,
		FillPrice: parseFloat(report.LastFilledPrice),
		FillQty:   parseFloat(report.LastFilledQty),
		Timestamp: time.UnixMilli(report.EventTime),
	})
}

func (s *userStream) dispatchPositions(event *accountPosition) {
	for _, b := range event.Balances {
		if stablecoins[b.Asset] {
			continue
		}
		qty := parseFloat(b.Free) + parseFloat(b.Locked)
		s.a.subs.DispatchPositionUpdate(&models.PositionUpdate{
			Broker: models.BrokerBinance,
			Position: &models.Position{
				Symbol:     b.Asset + "/USDT",
				AssetClass: models.AssetClassCrypto,
				Broker:     models.BrokerBinance,
				Qty:        qty,
				Side:       "long",
			},
		})
	}
}

func (s *userStream) reconnect(done chan struct{}) {
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
		// The old listen key may have expired with the connection; mint a
		// fresh one.
		err := s.ensureLocked()
		if err == nil {
			// Retire the superseded generation's keepalive goroutine.
			close(done)
		}
		s.mu.Unlock()
		if err == nil {
			return
		}
		s.a.logger.WithError(err).Warn("User data stream reconnect failed")
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
