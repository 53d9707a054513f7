package broker

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

// fakeAdapter satisfies Adapter for registry tests; only ID is ever called.
type fakeAdapter struct {
	Adapter
	id models.BrokerID
}

func (f *fakeAdapter) ID() models.BrokerID { return f.id }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry(testLogger())

	if err := reg.Register(&fakeAdapter{id: models.BrokerAlpaca}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(&fakeAdapter{id: models.BrokerBinance}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, ok := reg.Get(models.BrokerAlpaca); !ok {
		t.Error("expected ALPACA to be registered")
	}
	if _, ok := reg.Get(models.BrokerSchwab); ok {
		t.Error("SCHWAB should not be registered")
	}
	if reg.Len() != 2 {
		t.Errorf("Len = %d, want 2", reg.Len())
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry(testLogger())

	if err := reg.Register(&fakeAdapter{id: models.BrokerAlpaca}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(&fakeAdapter{id: models.BrokerAlpaca}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestRegistryPreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry(testLogger())

	order := []models.BrokerID{models.BrokerSchwab, models.BrokerAlpaca, models.BrokerBinance}
	for _, id := range order {
		if err := reg.Register(&fakeAdapter{id: id}); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}

	ids := reg.IDs()
	if len(ids) != len(order) {
		t.Fatalf("IDs returned %d entries, want %d", len(ids), len(order))
	}
	for i, id := range order {
		if ids[i] != id {
			t.Errorf("IDs[%d] = %s, want %s", i, ids[i], id)
		}
	}

	// Removing the middle entry keeps the rest in order.
	if _, ok := reg.Unregister(models.BrokerAlpaca); !ok {
		t.Fatal("Unregister(ALPACA) = false")
	}
	ids = reg.IDs()
	if len(ids) != 2 || ids[0] != models.BrokerSchwab || ids[1] != models.BrokerBinance {
		t.Errorf("IDs after unregister = %v", ids)
	}
}

func TestRegistryUnregisterUnknown(t *testing.T) {
	reg := NewRegistry(testLogger())
	if _, ok := reg.Unregister(models.BrokerCoinbase); ok {
		t.Error("Unregister of unknown broker should report false")
	}
}
