package broker

import (
	"context"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

// QuoteHandler receives streamed quotes for subscribed symbols
type QuoteHandler func(*models.Quote)

// BarHandler receives streamed bars for subscribed symbols
type BarHandler func(*models.Bar)

// OrderUpdateHandler receives streamed order status changes
type OrderUpdateHandler func(*models.OrderUpdate)

// PositionUpdateHandler receives position changes derived from fills
type PositionUpdateHandler func(*models.PositionUpdate)

// Adapter is the uniform contract every brokerage venue implements. One
// concrete type per venue; vendor enum vocabularies and wire field names are
// translated at this boundary so canonical objects never leak vendor
// abbreviations upward.
//
// Adapters never mutate shared health state; the orchestrator wrapping each
// call owns that bookkeeping. Every error returned conforms to the taxonomy
// in pkg/models (matched via errors.Is) and carries the broker identity.
type Adapter interface {
	// ID returns the venue identity this adapter serves.
	ID() models.BrokerID
	// Capabilities returns the static capability record for the venue.
	Capabilities() models.BrokerCapabilities

	// Connect verifies credentials with one authenticated read and prepares
	// the adapter for use. A rejected credential yields ErrAuthenticationFailed.
	Connect(ctx context.Context) error
	// Disconnect releases network resources and clears all subscriptions.
	Disconnect() error
	IsConnected() bool

	// GetAccount fetches the normalized balance snapshot.
	GetAccount(ctx context.Context) (*models.Account, error)

	PlaceOrder(ctx context.Context, order *models.UnifiedOrder) (*models.OrderResponse, error)
	GetOrder(ctx context.Context, orderID string) (*models.OrderResponse, error)
	GetOrders(ctx context.Context, filter models.OrderFilter) ([]models.OrderResponse, error)
	ModifyOrder(ctx context.Context, orderID string, patch models.OrderPatch) (*models.OrderResponse, error)
	CancelOrder(ctx context.Context, orderID string) error
	// CancelAllOrders returns the number of orders the venue acknowledged
	// cancelling.
	CancelAllOrders(ctx context.Context) (int, error)

	GetPositions(ctx context.Context) ([]models.Position, error)
	// GetPosition returns (nil, nil) when no position exists for the symbol.
	GetPosition(ctx context.Context, symbol string) (*models.Position, error)
	ClosePosition(ctx context.Context, symbol string, req models.ClosePositionRequest) (*models.OrderResponse, error)
	CloseAllPositions(ctx context.Context) ([]models.OrderResponse, error)

	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	GetQuotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error)
	GetBars(ctx context.Context, req models.BarsRequest) ([]models.Bar, error)
	GetTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error)
	GetSnapshot(ctx context.Context, symbol string) (*models.Snapshot, error)
	GetSnapshots(ctx context.Context, symbols []string) (map[string]*models.Snapshot, error)

	GetAsset(ctx context.Context, symbol string) (*models.Asset, error)
	// GetAssets lists venue instruments, optionally narrowed to one class.
	GetAssets(ctx context.Context, assetClass models.AssetClass) ([]models.Asset, error)
	GetOptionChain(ctx context.Context, underlying string) ([]models.OptionContract, error)
	GetNews(ctx context.Context, symbols []string, limit int) ([]models.NewsItem, error)

	// Streaming. The vendor push channel is opened lazily on the first
	// subscription and shared by all callbacks on this adapter; incoming
	// messages are demultiplexed by symbol. Unsubscribe removes symbol
	// registrations; the channel is torn down only by UnsubscribeAll or
	// Disconnect.
	SubscribeQuotes(symbols []string, fn QuoteHandler) (SubscriptionID, error)
	SubscribeBars(symbols []string, fn BarHandler) (SubscriptionID, error)
	SubscribeOrderUpdates(fn OrderUpdateHandler) (SubscriptionID, error)
	SubscribePositionUpdates(fn PositionUpdateHandler) (SubscriptionID, error)
	Unsubscribe(symbols []string) error
	UnsubscribeAll() error
}
