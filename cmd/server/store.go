package main

import (
	"context"
	"fmt"

	"github.com/warp/daily-reflections/config"
	"github.com/warp/daily-reflections/reflection"
	"github.com/warp/daily-reflections/reflection/store"
	"github.com/warp/daily-reflections/store/postgres"
	"github.com/warp/daily-reflections/store/sqlite"
)

// backend is a reflection.Store the server owns the lifecycle of.
type backend interface {
	reflection.Store
	Ping(ctx context.Context) error
	Close() error
}

// memoryBackend adapts the in-memory store; it has nothing to ping or close.
type memoryBackend struct {
	*store.Memory
}

func (memoryBackend) Ping(context.Context) error { return nil }
func (memoryBackend) Close() error               { return nil }

func openStore(ctx context.Context, cfg config.StorageConfig) (backend, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.New(cfg.DSN)
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DSN)
	case config.DriverMemory:
		return memoryBackend{store.NewMemory()}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
