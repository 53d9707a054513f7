package broker

import (
	"errors"
	"testing"
	"time"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

func TestHealthTrackerLifecycle(t *testing.T) {
	tracker := NewHealthTracker(testLogger())

	tracker.Track(models.BrokerAlpaca)
	rec, ok := tracker.Get(models.BrokerAlpaca)
	if !ok {
		t.Fatal("expected record after Track")
	}
	if !rec.IsHealthy || !rec.IsConnected {
		t.Error("new record should start connected and healthy")
	}

	tracker.Untrack(models.BrokerAlpaca)
	if _, ok := tracker.Get(models.BrokerAlpaca); ok {
		t.Error("record should be gone after Untrack")
	}
	if tracker.IsHealthy(models.BrokerAlpaca) {
		t.Error("untracked broker must not be healthy")
	}
}

func TestHealthTrackerFailureMarksUnhealthyImmediately(t *testing.T) {
	tracker := NewHealthTracker(testLogger())
	tracker.Track(models.BrokerBinance)

	tracker.RecordFailure(models.BrokerBinance, errors.New("dial tcp: timeout"))

	rec, _ := tracker.Get(models.BrokerBinance)
	if rec.IsHealthy {
		t.Error("a single failure must mark the broker unhealthy")
	}
	if rec.LastError == "" {
		t.Error("LastError must be populated after a failure")
	}
	if rec.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", rec.ConsecutiveFailures)
	}
}

func TestHealthTrackerSuccessRecovers(t *testing.T) {
	tracker := NewHealthTracker(testLogger())
	tracker.Track(models.BrokerBinance)

	tracker.RecordFailure(models.BrokerBinance, errors.New("503"))
	tracker.RecordFailure(models.BrokerBinance, errors.New("503"))
	tracker.RecordSuccess(models.BrokerBinance, 42*time.Millisecond)

	rec, _ := tracker.Get(models.BrokerBinance)
	if !rec.IsHealthy {
		t.Error("success must mark the broker healthy again")
	}
	if rec.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", rec.ConsecutiveFailures)
	}
	if rec.LastResponseTime != 42*time.Millisecond {
		t.Errorf("LastResponseTime = %v, want 42ms", rec.LastResponseTime)
	}
	if rec.LastError != "" {
		t.Errorf("LastError should clear on success, got %q", rec.LastError)
	}

	// 2 failures out of 3 calls
	if rec.ErrorRate < 0.66 || rec.ErrorRate > 0.67 {
		t.Errorf("ErrorRate = %v, want ~0.667", rec.ErrorRate)
	}
}

func TestHealthTrackerTransitionHook(t *testing.T) {
	tracker := NewHealthTracker(testLogger())
	tracker.Track(models.BrokerAlpaca)

	var transitions []bool
	tracker.SetTransitionHook(func(h models.BrokerHealth) {
		transitions = append(transitions, h.IsHealthy)
	})

	tracker.RecordFailure(models.BrokerAlpaca, errors.New("boom"))
	tracker.RecordFailure(models.BrokerAlpaca, errors.New("boom")) // no flip
	tracker.RecordSuccess(models.BrokerAlpaca, time.Millisecond)

	if len(transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(transitions))
	}
	if transitions[0] != false || transitions[1] != true {
		t.Errorf("transitions = %v, want [false true]", transitions)
	}
}

func TestHealthTrackerIgnoresUnknownBroker(t *testing.T) {
	tracker := NewHealthTracker(testLogger())
	// Must not panic or create phantom records.
	tracker.RecordSuccess(models.BrokerSchwab, time.Millisecond)
	tracker.RecordFailure(models.BrokerSchwab, errors.New("x"))
	if len(tracker.All()) != 0 {
		t.Error("updates for untracked brokers must not create records")
	}
}
