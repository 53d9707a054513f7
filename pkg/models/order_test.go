package models

import (
	"errors"
	"testing"
)

func TestOrderStatusIsTerminal(t *testing.T) {
	terminal := []OrderStatus{
		OrderStatusFilled,
		OrderStatusCancelled,
		OrderStatusRejected,
		OrderStatusExpired,
		OrderStatusReplaced,
	}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	live := []OrderStatus{
		OrderStatusNew,
		OrderStatusPending,
		OrderStatusAccepted,
		OrderStatusPartiallyFilled,
	}
	for _, s := range live {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusNew, OrderStatusPending, true},
		{OrderStatusNew, OrderStatusFilled, true}, // forward jump
		{OrderStatusPending, OrderStatusAccepted, true},
		{OrderStatusAccepted, OrderStatusPartiallyFilled, true},
		{OrderStatusPartiallyFilled, OrderStatusPartiallyFilled, true}, // successive fills
		{OrderStatusPartiallyFilled, OrderStatusFilled, true},
		{OrderStatusPartiallyFilled, OrderStatusCancelled, true},
		{OrderStatusAccepted, OrderStatusNew, false}, // backwards
		{OrderStatusFilled, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusFilled, false},
		{OrderStatusNew, OrderStatusNew, false},
		{OrderStatusRejected, OrderStatusAccepted, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestBrokerErrorMatchesKind(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewBrokerError(BrokerAlpaca, ErrConnection, "order submit failed", cause)

	if !errors.Is(err, ErrConnection) {
		t.Error("expected BrokerError to match ErrConnection")
	}
	if errors.Is(err, ErrInvalidOrder) {
		t.Error("BrokerError should not match ErrInvalidOrder")
	}
	if !errors.Is(err, cause) {
		t.Error("expected BrokerError to match the underlying cause")
	}

	broker, ok := ErrorBroker(err)
	if !ok || broker != BrokerAlpaca {
		t.Errorf("ErrorBroker = %s, %v; want ALPACA, true", broker, ok)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{NewBrokerError(BrokerBinance, ErrRateLimited, "throttled", nil), ErrRateLimited},
		{NewBrokerError(BrokerAlpaca, ErrAuthenticationFailed, "bad key", nil), ErrAuthenticationFailed},
		{ErrNoCapableBroker, ErrNoCapableBroker},
		{errors.New("something else"), ErrUnknown},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.kind {
			t.Errorf("ErrorKind(%v) = %v, want %v", tt.err, got, tt.kind)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{NewBrokerError(BrokerAlpaca, ErrConnection, "timeout", nil), true},
		{NewBrokerError(BrokerAlpaca, ErrUnknown, "parse failure", nil), true},
		{NewBrokerError(BrokerAlpaca, ErrInvalidOrder, "bad qty", nil), false},
		{NewBrokerError(BrokerAlpaca, ErrAuthenticationFailed, "expired key", nil), false},
		{NewBrokerError(BrokerAlpaca, ErrRateLimited, "throttled", nil), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.retryable {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.retryable)
		}
	}
}

func TestSnapshotComputeChange(t *testing.T) {
	s := &Snapshot{
		Symbol:       "AAPL",
		DailyBar:     &Bar{Close: 155},
		PrevDailyBar: &Bar{Close: 150},
	}
	s.ComputeChange()
	if s.Change != 5 {
		t.Errorf("Change = %v, want 5", s.Change)
	}
	if s.ChangePercent < 3.33 || s.ChangePercent > 3.34 {
		t.Errorf("ChangePercent = %v, want ~3.333", s.ChangePercent)
	}

	// Missing prev close leaves fields zero.
	empty := &Snapshot{Symbol: "AAPL", DailyBar: &Bar{Close: 155}}
	empty.ComputeChange()
	if empty.Change != 0 || empty.ChangePercent != 0 {
		t.Errorf("expected zero change without prev daily bar, got %v/%v", empty.Change, empty.ChangePercent)
	}
}
