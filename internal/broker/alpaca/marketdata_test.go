package alpaca

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

// The SDK client here is nil, so any dispatch would panic. Returning the
// context error proves cancellation is honored before the call goes out.
func TestMarketDataHonorsCancelledContext(t *testing.T) {
	a := &Adapter{logger: testLogger()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.GetQuote(ctx, "AAPL"); !errors.Is(err, context.Canceled) {
		t.Errorf("GetQuote err = %v, want context.Canceled", err)
	}
	if _, err := a.GetQuotes(ctx, []string{"AAPL", "MSFT"}); !errors.Is(err, context.Canceled) {
		t.Errorf("GetQuotes err = %v, want context.Canceled", err)
	}
	if _, err := a.GetBars(ctx, models.BarsRequest{Symbol: "AAPL"}); !errors.Is(err, context.Canceled) {
		t.Errorf("GetBars err = %v, want context.Canceled", err)
	}
	if _, err := a.GetTrades(ctx, "AAPL", 10); !errors.Is(err, context.Canceled) {
		t.Errorf("GetTrades err = %v, want context.Canceled", err)
	}
	if _, err := a.GetSnapshot(ctx, "AAPL"); !errors.Is(err, context.Canceled) {
		t.Errorf("GetSnapshot err = %v, want context.Canceled", err)
	}
	if _, err := a.GetSnapshots(ctx, []string{"AAPL"}); !errors.Is(err, context.Canceled) {
		t.Errorf("GetSnapshots err = %v, want context.Canceled", err)
	}
	if _, err := a.GetNews(ctx, []string{"AAPL"}, 5); !errors.Is(err, context.Canceled) {
		t.Errorf("GetNews err = %v, want context.Canceled", err)
	}
}

func TestMarketDataHonorsExpiredDeadline(t *testing.T) {
	a := &Adapter{logger: testLogger()}
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	if _, err := a.GetQuote(ctx, "AAPL"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetQuote err = %v, want context.DeadlineExceeded", err)
	}
}
