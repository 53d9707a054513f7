package broker

import (
	"sort"
	"testing"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

func TestSubscriptionManagerQuoteDispatch(t *testing.T) {
	m := NewSubscriptionManager(models.BrokerAlpaca, testLogger())

	var aapl, msft int
	m.AddQuoteHandler([]string{"AAPL"}, func(*models.Quote) { aapl++ })
	m.AddQuoteHandler([]string{"AAPL", "MSFT"}, func(*models.Quote) { msft++ })

	m.DispatchQuote(&models.Quote{Symbol: "AAPL"})
	m.DispatchQuote(&models.Quote{Symbol: "MSFT"})
	m.DispatchQuote(&models.Quote{Symbol: "TSLA"}) // no subscribers

	if aapl != 1 {
		t.Errorf("first handler fired %d times, want 1", aapl)
	}
	if msft != 2 {
		t.Errorf("second handler fired %d times, want 2", msft)
	}
}

func TestSubscriptionManagerPanicIsolation(t *testing.T) {
	m := NewSubscriptionManager(models.BrokerAlpaca, testLogger())

	var survived int
	m.AddQuoteHandler([]string{"AAPL"}, func(*models.Quote) { panic("bad subscriber") })
	m.AddQuoteHandler([]string{"AAPL"}, func(*models.Quote) { survived++ })

	// Must not panic, and the healthy subscriber keeps receiving.
	m.DispatchQuote(&models.Quote{Symbol: "AAPL"})
	m.DispatchQuote(&models.Quote{Symbol: "AAPL"})

	if survived != 2 {
		t.Errorf("surviving handler fired %d times, want 2", survived)
	}
}

func TestSubscriptionManagerRemoveSymbols(t *testing.T) {
	m := NewSubscriptionManager(models.BrokerBinance, testLogger())

	var calls int
	m.AddQuoteHandler([]string{"BTCUSDT", "ETHUSDT"}, func(*models.Quote) { calls++ })
	m.AddBarHandler([]string{"BTCUSDT"}, func(*models.Bar) { calls++ })

	m.RemoveSymbols([]string{"BTCUSDT"})

	m.DispatchQuote(&models.Quote{Symbol: "BTCUSDT"})
	m.DispatchBar(&models.Bar{Symbol: "BTCUSDT"})
	if calls != 0 {
		t.Errorf("removed symbol still dispatched %d calls", calls)
	}

	m.DispatchQuote(&models.Quote{Symbol: "ETHUSDT"})
	if calls != 1 {
		t.Errorf("remaining symbol should still dispatch, calls = %d", calls)
	}
}

func TestSubscriptionManagerRemoveByID(t *testing.T) {
	m := NewSubscriptionManager(models.BrokerAlpaca, testLogger())

	var first, second int
	id := m.AddQuoteHandler([]string{"AAPL"}, func(*models.Quote) { first++ })
	m.AddQuoteHandler([]string{"AAPL"}, func(*models.Quote) { second++ })

	m.Remove(id)
	m.DispatchQuote(&models.Quote{Symbol: "AAPL"})

	if first != 0 {
		t.Errorf("removed handler fired %d times", first)
	}
	if second != 1 {
		t.Errorf("remaining handler fired %d times, want 1", second)
	}
}

func TestSubscriptionManagerOrderUpdates(t *testing.T) {
	m := NewSubscriptionManager(models.BrokerAlpaca, testLogger())

	var events []string
	m.AddOrderHandler(func(u *models.OrderUpdate) { events = append(events, u.Event) })

	m.DispatchOrderUpdate(&models.OrderUpdate{Event: "fill"})
	m.DispatchOrderUpdate(&models.OrderUpdate{Event: "canceled"})

	if len(events) != 2 || events[0] != "fill" || events[1] != "canceled" {
		t.Errorf("events = %v", events)
	}
}

func TestSubscriptionManagerSymbolsAndTeardown(t *testing.T) {
	m := NewSubscriptionManager(models.BrokerBinance, testLogger())

	m.AddQuoteHandler([]string{"BTCUSDT", "ETHUSDT"}, func(*models.Quote) {})
	m.AddBarHandler([]string{"SOLUSDT"}, func(*models.Bar) {})

	symbols := m.QuoteSymbols()
	sort.Strings(symbols)
	if len(symbols) != 2 || symbols[0] != "BTCUSDT" || symbols[1] != "ETHUSDT" {
		t.Errorf("QuoteSymbols = %v", symbols)
	}
	if !m.HasMarketData() {
		t.Error("HasMarketData should be true with active subscriptions")
	}

	m.Clear()
	if m.HasMarketData() {
		t.Error("HasMarketData should be false after Clear")
	}
	if len(m.QuoteSymbols()) != 0 || len(m.BarSymbols()) != 0 {
		t.Error("Clear should drop all symbol registrations")
	}
}
