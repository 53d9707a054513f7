package alpaca

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

func TestMapStatusCollapsesBookkeepingStates(t *testing.T) {
	for _, vendor := range []string{"pending_cancel", "pending_replace", "held", "suspended", "calculated", "stopped"} {
		got, ok := mapStatus(vendor)
		if !ok {
			t.Fatalf("vendor status %q unmapped", vendor)
		}
		if got != models.OrderStatusAccepted {
			t.Errorf("mapStatus(%q) = %s, want ACCEPTED", vendor, got)
		}
	}
}

func TestMapStatusUnknownDefaultsToNew(t *testing.T) {
	got, ok := mapStatus("some_future_status")
	if ok {
		t.Fatal("unknown status reported as mapped")
	}
	if got != models.OrderStatusNew {
		t.Errorf("unknown status mapped to %s, want NEW", got)
	}
}

func TestOrderSymbolCryptoForms(t *testing.T) {
	tests := []struct {
		symbol string
		class  models.AssetClass
		want   string
	}{
		{"AAPL", models.AssetClassUSEquity, "AAPL"},
		{"BTC/USD", models.AssetClassCrypto, "BTC/USD"},
		{"BTCUSD", models.AssetClassCrypto, "BTC/USD"},
		{"btc-usd", models.AssetClassCrypto, "BTC/USD"},
		{"ETHUSDT", models.AssetClassCrypto, "ETH/USDT"},
	}
	for _, tt := range tests {
		got := orderSymbol(&models.UnifiedOrder{Symbol: tt.symbol, AssetClass: tt.class})
		if got != tt.want {
			t.Errorf("orderSymbol(%q, %s) = %q, want %q", tt.symbol, tt.class, got, tt.want)
		}
	}
}

func TestPositionSymbolStripsSeparators(t *testing.T) {
	if got := positionSymbol("BTC/USD"); got != "BTCUSD" {
		t.Errorf("positionSymbol(BTC/USD) = %q", got)
	}
	if got := positionSymbol("aapl"); got != "AAPL" {
		t.Errorf("positionSymbol(aapl) = %q", got)
	}
}

func TestTranslateOrderParsesStringNumerics(t *testing.T) {
	a := &Adapter{strict: false, logger: testLogger()}
	w := &wireOrder{
		ID:             "oid-1",
		ClientOrderID:  "cid-1",
		Symbol:         "AAPL",
		Qty:            "10",
		FilledQty:      "4",
		FilledAvgPrice: "187.42",
		Type:           "limit",
		Side:           "buy",
		TimeInForce:    "day",
		LimitPrice:     "188",
		Status:         "partially_filled",
	}
	resp, err := a.translateOrder(w)
	if err != nil {
		t.Fatalf("translateOrder: %v", err)
	}
	if resp.Qty != 10 || resp.FilledQty != 4 || resp.FilledAvgPrice != 187.42 || resp.LimitPrice != 188 {
		t.Errorf("numeric fields not parsed: %+v", resp)
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
	_, err := a.translateOrder(&wireOrder{ID: "oid", Status: "galactic"})
	if err == nil {
		t.Fatal("expected error for unmapped status in strict mode")
	}
}
