// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package storage

import (
	"context"
	"fmt"

	"github.com/VA7DBI/skillswap/config"
)

// Store is a string key/value store with the shape of browser web storage.
// GetItem reports absence with ok=false rather than an error.
type Store interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Open returns the durable store selected by cfg.Storage.Driver.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverRedis:
		return NewRedisStore(cfg)
	case config.DriverPostgres:
		return NewPostgresStore(cfg)
	case config.DriverMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
