package broker

import "testing"

func TestRateLimiterExhaustion(t *testing.T) {
	l := NewRateLimiter(3)

	for i := 0; i < 3; i++ {
		if !l.TryAcquire() {
			t.Fatalf("acquire %d should succeed", i+1)
		}
	}
	if l.TryAcquire() {
		t.Error("fourth acquire should fail with an empty bucket")
	}
}

func TestRateLimiterUnlimited(t *testing.T) {
	var l *RateLimiter // perMinute <= 0 yields nil
	for i := 0; i < 1000; i++ {
		if !l.TryAcquire() {
			t.Fatal("nil limiter must always allow")
		}
	}
}

func TestRateLimiterCapacityCap(t *testing.T) {
	l := NewRateLimiter(60)
	if got := l.Tokens(); got > 60 {
		t.Errorf("tokens %v exceeds capacity", got)
	}
}
