package storage

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/codenotes/internal/config"
	"github.com/MarcoPoloResearchLab/codenotes/internal/database"
	"github.com/MarcoPoloResearchLab/codenotes/internal/kv"
	"go.uber.org/zap"
)

// OpenKeyValueStore builds the key-value store selected by the driver. The returned closer
// releases any underlying handle and is never nil.
func OpenKeyValueStore(driver, path string, logger *zap.Logger) (kv.Store, func() error, error) {
	noop := func() error { return nil }
	switch driver {
	case config.StorageDriverSQLite:
		db, err := database.OpenSQLite(path, logger)
		if err != nil {
			return nil, noop, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, noop, err
		}
		store, err := kv.NewGormStore(db, nil)
		if err != nil {
			sqlDB.Close()
			return nil, noop, err
		}
		return store, sqlDB.Close, nil
	case config.StorageDriverFile:
		store, err := kv.NewFileStore(path)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case config.StorageDriverMemory:
		return kv.NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("storage: unsupported driver %q", driver)
	}
}
