package estests

import (
	"log/slog"
	"testing"

	"github.com/codewandler/cartes-go/core/es"
)

func TestInMemoryStore(t *testing.T) {
	RunStoreSuite(t, func(t *testing.T) es.EventStore { return es.NewInMemoryStore() })
}

func TestInstrumentedStore(t *testing.T) {
	RunStoreSuite(t, func(t *testing.T) es.EventStore {
		return es.InstrumentStore(es.NewInMemoryStore(), slog.Default(), nil)
	})
}
