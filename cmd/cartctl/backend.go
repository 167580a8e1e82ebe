package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codewandler/cartes-go/adapters/nats"
	goredis "github.com/codewandler/cartes-go/adapters/redis"
	"github.com/codewandler/cartes-go/adapters/sqlite"
	"github.com/codewandler/cartes-go/core/es"
)

type closer func() error

func nopCloser() error { return nil }

// openStore opens the event store selected by cfg.Backend.
func openStore(ctx context.Context, cfg Config, log *slog.Logger) (es.EventStore, closer, error) {
	switch cfg.Backend {
	case backendMemory:
		return es.NewInMemoryStore(), nopCloser, nil

	case backendSQLite:
		s, err := sqlite.Open(sqlite.Config{Path: cfg.SQLite.Path, Log: log})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case backendNATS:
		connect := nats.ConnectDefault()
		if cfg.NATS.URL != "" {
			connect = nats.ConnectURL(cfg.NATS.URL)
		}
		s, err := nats.NewEventStore(nats.EventStoreConfig{
			Connect:       connect,
			Log:           log,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			StreamName:    cfg.NATS.StreamName,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case backendRedis:
		s, err := goredis.NewEventStore(ctx, goredis.Config{
			Addr:      cfg.Redis.Addr,
			KeyPrefix: cfg.Redis.KeyPrefix,
			Log:       log,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
