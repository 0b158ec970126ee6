package core

import (
	"context"
	"fmt"
	"housingcore/internal/config"
	"housingcore/internal/infra/persistence/memory"
	"housingcore/internal/infra/persistence/postgres"
	"housingcore/internal/infra/persistence/sqlite"
	"housingcore/pkg/domain"
	"strings"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// OpenPersistentStore selects a backend from the storage settings. An empty
// driver means memory.
func OpenPersistentStore(engine *RulesEngine, cfg config.StorageConfig) (PersistentStore, error) {
	driver := StorageDriver(strings.ToLower(strings.TrimSpace(cfg.Driver)))
	if driver == "" {
		driver = StorageMemory
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(cfg.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

type snapshotExporter interface {
	ExportState() memory.Snapshot
}

type snapshotReplacer interface {
	Replace(ctx context.Context, snapshot memory.Snapshot) error
}

type snapshotImporter interface {
	ImportState(snapshot memory.Snapshot)
}

// ExportSnapshot copies the registries out of store.
func ExportSnapshot(store PersistentStore) (memory.Snapshot, error) {
	exporter, ok := store.(snapshotExporter)
	if !ok {
		return memory.Snapshot{}, fmt.Errorf("store %T cannot export snapshots", store)
	}
	return exporter.ExportState(), nil
}

// ImportSnapshot replaces the registries held by store. Durable stores write
// the new state through before returning.
func ImportSnapshot(ctx context.Context, store PersistentStore, snapshot memory.Snapshot) error {
	if replacer, ok := store.(snapshotReplacer); ok {
		return replacer.Replace(ctx, snapshot)
	}
	if importer, ok := store.(snapshotImporter); ok {
		importer.ImportState(snapshot)
		return nil
	}
	return fmt.Errorf("store %T cannot import snapshots", store)
}

// CloseStore releases any database handle held by store.
func CloseStore(store PersistentStore) error {
	if closer, ok := store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
