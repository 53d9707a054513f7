package binance

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("component", "test")
}

func TestStatusRoundTrip(t *testing.T) {
	for canonical, vendor := range statusToVendor {
		got, ok := mapStatus(vendor)
		if !ok {
			t.Fatalf("vendor status %q is not in the reverse table", vendor)
		}
		if got != canonical {
			t.Errorf("round trip %s -> %s -> %s", canonical, vendor, got)
		}
	}
}

func TestMapStatusUnknownDefaultsToNew(t *testing.T) {
	got, ok := mapStatus("SOME_FUTURE_STATUS")
	if ok {
		t.Fatal("unknown status reported as mapped")
	}
	if got != models.OrderStatusNew {
		t.Errorf("unknown status mapped to %s, want NEW", got)
	}
}

func TestVendorSymbolForms(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"BTC/USDT", "BTCUSDT"},
		{"BTC/USD", "BTCUSDT"},
		{"btc-usd", "BTCUSDT"},
		{"ETHUSDT", "ETHUSDT"},
		{"SOL_USDC", "SOLUSDC"},
	}
	for _, tt := range tests {
		if got := vendorSymbol(tt.symbol); got != tt.want {
			t.Errorf("vendorSymbol(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
}

func TestCanonicalSymbolSplitsQuoteAsset(t *testing.T) {
	tests := []struct {
		vendor string
		want   string
	}{
		{"BTCUSDT", "BTC/USDT"},
		{"ETHBTC", "ETH/BTC"},
		{"SOLUSDC", "SOL/USDC"},
	}
	for _, tt := range tests {
		if got := canonicalSymbol(tt.vendor); got != tt.want {
			t.Errorf("canonicalSymbol(%q) = %q, want %q", tt.vendor, got, tt.want)
		}
	}
}

func TestDayTIFDegradesToGTC(t *testing.T) {
	if got := tifToVendor[models.TimeInForceDay]; got != "GTC" {
		t.Errorf("day TIF maps to %q, want GTC", got)
	}
}

func TestTranslateOrderComputesAveragePrice(t *testing.T) {
	a := &Adapter{strict: false, logger: testLogger()}
	resp, err := a.translateOrder(&wireOrder{
		Symbol:              "BTCUSDT",
		OrderID:             12345,
		ClientOrderID:       "cid-1",
		TransactTime:        1700000000000,
		Price:               "42000",
		OrigQty:             "0.5",
		ExecutedQty:         "0.2",
		CummulativeQuoteQty: "8400",
		Status:              "PARTIALLY_FILLED",
		TimeInForce:         "GTC",
		Type:                "LIMIT",
		Side:                "BUY",
	})
	if err != nil {
		t.Fatalf("translateOrder: %v", err)
	}
	if resp.BrokerOrderID != "BTCUSDT:12345" {
		t.Errorf("broker order id = %q", resp.BrokerOrderID)
	}
	if resp.Symbol != "BTC/USDT" {
		t.Errorf("symbol = %q", resp.Symbol)
	}
	if resp.FilledAvgPrice != 42000 {
		t.Errorf("filled avg price = %v, want 42000", resp.FilledAvgPrice)
	}
	if resp.Status != models.OrderStatusPartiallyFilled {
		t.Errorf("status = %s", resp.Status)
	}
	if resp.Type != models.OrderTypeLimit || resp.Side != models.OrderSideBuy {
		t.Errorf("enums not mapped: %+v", resp)
	}
}

func TestTranslateOrderStrictRejectsUnknownStatus(t *testing.T) {
	a := &Adapter{strict: true, logger: testLogger()}
	_, err := a.translateOrder(&wireOrder{Symbol: "BTCUSDT", OrderID: 1, Status: "GALACTIC"})
	if err == nil {
		t.Fatal("expected error for unmapped status in strict mode")
	}
}

func TestSplitOrderID(t *testing.T) {
	symbol, id, isList, err := splitOrderID("BTCUSDT:987")
	if err != nil {
		t.Fatalf("splitOrderID: %v", err)
	}
	if symbol != "BTCUSDT" || id != 987 || isList {
		t.Errorf("splitOrderID = %q, %d, %v", symbol, id, isList)
	}
	if _, _, _, err := splitOrderID("987"); err == nil {
		t.Error("expected error for id without symbol")
	}
}

func TestSplitOrderIDListForm(t *testing.T) {
	symbol, id, isList, err := splitOrderID(listOrderID("BTCUSDT", 4077))
	if err != nil {
		t.Fatalf("splitOrderID: %v", err)
	}
	if symbol != "BTCUSDT" || id != 4077 || !isList {
		t.Errorf("splitOrderID = %q, %d, %v, want BTCUSDT, 4077, list", symbol, id, isList)
	}
	if _, _, _, err := splitOrderID("BTCUSDT:list:abc"); err == nil {
		t.Error("expected error for a non-numeric list id")
	}
}

func TestListStatusDerivation(t *testing.T) {
	open := []models.OrderResponse{
		{Status: models.OrderStatusNew},
		{Status: models.OrderStatusNew},
	}
	if got := listStatus("EXECUTING", open); got != models.OrderStatusAccepted {
		t.Errorf("open legs = %s, want ACCEPTED", got)
	}

	filled := []models.OrderResponse{
		{Status: models.OrderStatusFilled},
		{Status: models.OrderStatusExpired},
	}
	if got := listStatus("ALL_DONE", filled); got != models.OrderStatusFilled {
		t.Errorf("filled leg = %s, want FILLED", got)
	}

	cancelled := []models.OrderResponse{
		{Status: models.OrderStatusCancelled},
		{Status: models.OrderStatusCancelled},
	}
	if got := listStatus("ALL_DONE", cancelled); got != models.OrderStatusCancelled {
		t.Errorf("cancelled legs = %s, want CANCELLED", got)
	}

	if got := listStatus("REJECT", nil); got != models.OrderStatusRejected {
		t.Errorf("rejected list = %s, want REJECTED", got)
	}
}

func TestBalancePositionSkipsStablecoinsAndDust(t *testing.T) {
	prices := map[string]float64{"BTCUSDT": 40000}

	if _, ok := balancePosition(wireBalance{Asset: "USDT", Free: "1000"}, prices); ok {
		t.Error("stablecoin balance should not form a position")
	}
	if _, ok := balancePosition(wireBalance{Asset: "ETH", Free: "0", Locked: "0"}, prices); ok {
		t.Error("zero balance should not form a position")
	}

	pos, ok := balancePosition(wireBalance{Asset: "BTC", Free: "0.3", Locked: "0.2"}, prices)
	if !ok {
		t.Fatal("expected a position for a non-zero balance")
	}
	if pos.Symbol != "BTC/USDT" || pos.Qty != 0.5 {
		t.Errorf("position = %+v", pos)
	}
	if pos.MarketValue != 20000 {
		t.Errorf("market value = %v, want 20000", pos.MarketValue)
	}
}
