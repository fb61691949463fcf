// Package factory selects and constructs a storage.ContentStore backend from
// configuration. It lives outside package storage so the backend packages can
// depend on the interface without an import cycle.
package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/internal/storage/memory"
	"github.com/scrypster/recall/internal/storage/postgres"
	"github.com/scrypster/recall/internal/storage/sqlite"
)

// NewContentStore creates the backend named by cfg.Engine.
// An empty engine defaults to sqlite.
func NewContentStore(cfg config.StorageConfig) (storage.ContentStore, error) {
	switch cfg.Engine {
	case "memory":
		return memory.NewStore(), nil
	case "sqlite", "":
		dataPath := cfg.DataPath
		if dataPath == "" {
			dataPath = "./data"
		}
		if err := os.MkdirAll(dataPath, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create data path %s: %v", storage.ErrStorageUnavailable, dataPath, err)
		}
		return sqlite.NewStore(filepath.Join(dataPath, "recall.db"))
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("storage engine postgres requires a DSN")
		}
		return postgres.NewStore(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported storage engine: %q", cfg.Engine)
	}
}
