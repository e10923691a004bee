package core

import (
	"context"
	"fmt"

	"inspectcore/internal/config"
	"inspectcore/internal/infra/persistence/disabled"
	"inspectcore/internal/infra/persistence/memory"
	"inspectcore/internal/infra/persistence/postgres"
	"inspectcore/internal/infra/persistence/sqlite"
	"inspectcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageDisabled StorageDriver = "disabled" // platform without durable storage
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// OpenPersistentStore selects a backend from cfg. When the platform reports
// persistence as unavailable the disabled store is returned regardless of
// the configured driver.
func OpenPersistentStore(ctx context.Context, cfg config.Config, engine *domain.RulesEngine) (PersistentStore, error) {
	if !cfg.PersistenceEnabled() {
		return disabled.NewStore(), nil
	}
	driver := cfg.Storage.Driver
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.Storage.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.Storage.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageDisabled:
		return disabled.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
