package binance

import "strconv"

// Spot REST wire DTOs. Binance also sends numerics as strings; parsing
// happens at this boundary and absent fields stay zero.

type wireBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type wireAccount struct {
	AccountType string        `json:"accountType"`
	CanTrade    bool          `json:"canTrade"`
	UpdateTime  int64         `json:"updateTime"`
	Balances    []wireBalance `json:"balances"`
}

type wireFill struct {
	Price string `json:"price"`
	Qty   string `json:"qty"`
}

type wireOrder struct {
	Symbol              string     `json:"symbol"`
	OrderID             int64      `json:"orderId"`
	OrderListID         int64      `json:"orderListId"`
	ClientOrderID       string     `json:"clientOrderId"`
	TransactTime        int64      `json:"transactTime"`
	Price               string     `json:"price"`
	OrigQty             string     `json:"origQty"`
	ExecutedQty         string     `json:"executedQty"`
	CummulativeQuoteQty string     `json:"cummulativeQuoteQty"`
	Status              string     `json:"status"`
	TimeInForce         string     `json:"timeInForce"`
	Type                string     `json:"type"`
	Side                string     `json:"side"`
	StopPrice           string     `json:"stopPrice"`
	Time                int64      `json:"time"`
	UpdateTime          int64      `json:"updateTime"`
	Fills               []wireFill `json:"fills"`
}

type wireOCOOrder struct {
	OrderListID       int64        `json:"orderListId"`
	ListStatusType    string       `json:"listStatusType"`
	ListOrderStatus   string       `json:"listOrderStatus"`
	ListClientOrderID string       `json:"listClientOrderId"`
	TransactionTime   int64        `json:"transactionTime"`
	Symbol            string       `json:"symbol"`
	Orders            []wireOCOLeg `json:"orders"`
	OrderReports      []wireOrder  `json:"orderReports"`
}

// wireOCOLeg is the thin leg reference the order-list query endpoint
// returns in place of full order reports.
type wireOCOLeg struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
}

type wireBookTicker struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

type wireTrade struct {
	ID           int64  `json:"id"`
	Price        string `json:"price"`
	Qty          string `json:"qty"`
	Time         int64  `json:"time"`
	IsBuyerMaker bool   `json:"isBuyerMaker"`
}

type wireTicker24h struct {
	Symbol             string `json:"symbol"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	WeightedAvgPrice   string `json:"weightedAvgPrice"`
	PrevClosePrice     string `json:"prevClosePrice"`
	LastPrice          string `json:"lastPrice"`
	LastQty            string `json:"lastQty"`
	OpenPrice          string `json:"openPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	OpenTime           int64  `json:"openTime"`
	CloseTime          int64  `json:"closeTime"`
	Count              int64  `json:"count"`
}

type wireSymbolInfo struct {
	Symbol               string `json:"symbol"`
	Status               string `json:"status"`
	BaseAsset            string `json:"baseAsset"`
	QuoteAsset           string `json:"quoteAsset"`
	IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
}

type wireExchangeInfo struct {
	Symbols []wireSymbolInfo `json:"symbols"`
}

type wirePrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type wireListenKey struct {
	ListenKey string `json:"listenKey"`
}

// executionReport is a user-data-stream order event. The feed uses
// single-letter keys; they are expanded here and never travel further.
type executionReport struct {
	Event             string `json:"e"`
	EventTime         int64  `json:"E"`
	Symbol            string `json:"s"`
	ClientOrderID     string `json:"c"`
	Side              string `json:"S"`
	OrderType         string `json:"o"`
	TimeInForce       string `json:"f"`
	Qty               string `json:"q"`
	Price             string `json:"p"`
	StopPrice         string `json:"P"`
	ExecutionType     string `json:"x"`
	OrderStatus       string `json:"X"`
	OrderID           int64  `json:"i"`
	LastFilledQty     string `json:"l"`
	CumFilledQty      string `json:"z"`
	LastFilledPrice   string `json:"L"`
	TradeTime         int64  `json:"T"`
	CreationTime      int64  `json:"O"`
	OrigClientOrderID string `json:"C"`
}

// accountPosition is a user-data-stream balance event
type accountPosition struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Balances  []struct {
		Asset  string `json:"a"`
		Free   string `json:"f"`
		Locked string `json:"l"`
	} `json:"B"`
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
