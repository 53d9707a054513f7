package binance

import (
	"strings"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

// Enum translation between the canonical vocabulary and the spot API. Spot
// has no position-aware states, so PENDING and REPLACED never come back from
// the venue; NEW on the wire means the book accepted the order.

var orderTypeToVendor = map[models.OrderType]string{
	models.OrderTypeMarket:    "MARKET",
	models.OrderTypeLimit:     "LIMIT",
	models.OrderTypeStop:      "STOP_LOSS",
	models.OrderTypeStopLimit: "STOP_LOSS_LIMIT",
}

var orderTypeFromVendor = map[string]models.OrderType{
	"MARKET":            models.OrderTypeMarket,
	"LIMIT":             models.OrderTypeLimit,
	"LIMIT_MAKER":       models.OrderTypeLimit,
	"STOP_LOSS":         models.OrderTypeStop,
	"TAKE_PROFIT":       models.OrderTypeStop,
	"STOP_LOSS_LIMIT":   models.OrderTypeStopLimit,
	"TAKE_PROFIT_LIMIT": models.OrderTypeStopLimit,
}

// Spot only supports GTC, IOC and FOK. DAY degrades to GTC: crypto trades
// around the clock and there is no session close to expire against.
var tifToVendor = map[models.TimeInForce]string{
	models.TimeInForceDay: "GTC",
	models.TimeInForceGTC: "GTC",
	models.TimeInForceIOC: "IOC",
	models.TimeInForceFOK: "FOK",
}

var tifFromVendor = map[string]models.TimeInForce{
	"GTC": models.TimeInForceGTC,
	"IOC": models.TimeInForceIOC,
	"FOK": models.TimeInForceFOK,
}

var sideToVendor = map[models.OrderSide]string{
	models.OrderSideBuy:  "BUY",
	models.OrderSideSell: "SELL",
}

var sideFromVendor = map[string]models.OrderSide{
	"BUY":  models.OrderSideBuy,
	"SELL": models.OrderSideSell,
}

var statusToVendor = map[models.OrderStatus]string{
	models.OrderStatusAccepted:        "NEW",
	models.OrderStatusPartiallyFilled: "PARTIALLY_FILLED",
	models.OrderStatusFilled:          "FILLED",
	models.OrderStatusCancelled:       "CANCELED",
	models.OrderStatusRejected:        "REJECTED",
	models.OrderStatusExpired:         "EXPIRED",
}

var statusFromVendor = map[string]models.OrderStatus{
	"NEW":              models.OrderStatusAccepted,
	"PARTIALLY_FILLED": models.OrderStatusPartiallyFilled,
	"FILLED":           models.OrderStatusFilled,
	"CANCELED":         models.OrderStatusCancelled,
	"PENDING_CANCEL":   models.OrderStatusAccepted,
	"PENDING_NEW":      models.OrderStatusPending,
	"REJECTED":         models.OrderStatusRejected,
	"EXPIRED":          models.OrderStatusExpired,
	"EXPIRED_IN_MATCH": models.OrderStatusExpired,
}

// mapStatus translates a vendor status, reporting whether it was recognized.
// Unknown statuses default to NEW; the strict-mode decision lives with the
// caller.
func mapStatus(vendor string) (models.OrderStatus, bool) {
	if status, ok := statusFromVendor[strings.ToUpper(vendor)]; ok {
		return status, true
	}
	return models.OrderStatusNew, false
}

// vendorSymbol collapses a canonical pair to the venue's concatenated form.
// "BTC/USD" and "BTC-USD" become "BTCUSDT"; spot quotes in USDT, not USD.
func vendorSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	s = strings.NewReplacer("/", "", "-", "", "_", "").Replace(s)
	if strings.HasSuffix(s, "USD") && !strings.HasSuffix(s, "TUSD") {
		s += "T"
	}
	return s
}

// canonicalSymbol splits a vendor symbol back into a slashed pair using the
// venue's quote-asset conventions.
func canonicalSymbol(vendor string) string {
	for _, quote := range []string{"USDT", "USDC", "BUSD", "BTC", "ETH", "BNB", "EUR", "GBP"} {
		if base, found := strings.CutSuffix(vendor, quote); found && base != "" {
			return base + "/" + quote
		}
	}
	return vendor
}
