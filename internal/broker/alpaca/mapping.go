package alpaca

import (
	"strings"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

// Fixed bidirectional vocabulary tables between the canonical model and the
// Alpaca trading API. Alpaca's side/type/TIF strings happen to match the
// canonical ones, but every value still passes through the tables so schema
// drift surfaces here and nowhere else.

var orderTypeToVendor = map[models.OrderType]string{
	models.OrderTypeMarket:       "market",
	models.OrderTypeLimit:        "limit",
	models.OrderTypeStop:         "stop",
	models.OrderTypeStopLimit:    "stop_limit",
	models.OrderTypeTrailingStop: "trailing_stop",
}

var orderTypeFromVendor = map[string]models.OrderType{
	"market":        models.OrderTypeMarket,
	"limit":         models.OrderTypeLimit,
	"stop":          models.OrderTypeStop,
	"stop_limit":    models.OrderTypeStopLimit,
	"trailing_stop": models.OrderTypeTrailingStop,
}

var tifToVendor = map[models.TimeInForce]string{
	models.TimeInForceDay: "day",
	models.TimeInForceGTC: "gtc",
	models.TimeInForceOPG: "opg",
	models.TimeInForceCLS: "cls",
	models.TimeInForceIOC: "ioc",
	models.TimeInForceFOK: "fok",
}

var tifFromVendor = map[string]models.TimeInForce{
	"day": models.TimeInForceDay,
	"gtc": models.TimeInForceGTC,
	"opg": models.TimeInForceOPG,
	"cls": models.TimeInForceCLS,
	"ioc": models.TimeInForceIOC,
	"fok": models.TimeInForceFOK,
}

var sideToVendor = map[models.OrderSide]string{
	models.OrderSideBuy:  "buy",
	models.OrderSideSell: "sell",
}

var sideFromVendor = map[string]models.OrderSide{
	"buy":  models.OrderSideBuy,
	"sell": models.OrderSideSell,
}

// statusToVendor maps each canonical status to its primary vendor spelling
var statusToVendor = map[models.OrderStatus]string{
	models.OrderStatusNew:             "new",
	models.OrderStatusPending:         "pending_new",
	models.OrderStatusAccepted:        "accepted",
	models.OrderStatusPartiallyFilled: "partially_filled",
	models.OrderStatusFilled:          "filled",
	models.OrderStatusCancelled:       "canceled",
	models.OrderStatusRejected:        "rejected",
	models.OrderStatusExpired:         "expired",
	models.OrderStatusReplaced:        "replaced",
}

// statusFromVendor maps every known vendor status onto the canonical state
// machine. The in-flight bookkeeping statuses collapse into ACCEPTED.
var statusFromVendor = map[string]models.OrderStatus{
	"new":                  models.OrderStatusNew,
	"pending_new":          models.OrderStatusPending,
	"accepted":             models.OrderStatusAccepted,
	"accepted_for_bidding": models.OrderStatusAccepted,
	"partially_filled":     models.OrderStatusPartiallyFilled,
	"filled":               models.OrderStatusFilled,
	"canceled":             models.OrderStatusCancelled,
	"pending_cancel":       models.OrderStatusAccepted,
	"pending_replace":      models.OrderStatusAccepted,
	"rejected":             models.OrderStatusRejected,
	"expired":              models.OrderStatusExpired,
	"done_for_day":         models.OrderStatusExpired,
	"replaced":             models.OrderStatusReplaced,
	"stopped":              models.OrderStatusAccepted,
	"suspended":            models.OrderStatusAccepted,
	"calculated":           models.OrderStatusAccepted,
	"held":                 models.OrderStatusAccepted,
}

// mapStatus resolves a vendor status string. ok is false for statuses the
// table has never seen; the caller decides between defaulting to NEW and
// raising a loud error depending on the strict-mapping setting.
func mapStatus(vendor string) (models.OrderStatus, bool) {
	s, ok := statusFromVendor[strings.ToLower(vendor)]
	if !ok {
		return models.OrderStatusNew, false
	}
	return s, true
}

var assetClassFromVendor = map[string]models.AssetClass{
	"us_equity": models.AssetClassUSEquity,
	"crypto":    models.AssetClassCrypto,
	"us_option": models.AssetClassOptions,
}

var assetClassToVendor = map[models.AssetClass]string{
	models.AssetClassUSEquity: "us_equity",
	models.AssetClassCrypto:   "crypto",
	models.AssetClassOptions:  "us_option",
}
