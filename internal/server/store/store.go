// Package store persists the two APIFarm records: the user table and the
// user ↔ credential ownership relation. Every save rewrites a record in
// full. Loading a record that was never written yields an empty record,
// not an error.
package store

import (
	"context"
	"fmt"

	"github.com/zhusq20/APIFarm/internal/logging"
	"github.com/zhusq20/APIFarm/internal/server/config"
	"github.com/zhusq20/APIFarm/internal/server/models"
)

// Store is implemented by every backend.
type Store interface {
	LoadUsers(ctx context.Context) (models.Users, error)
	SaveUsers(ctx context.Context, users models.Users) error
	LoadOwnership(ctx context.Context) (*models.Ownership, error)
	SaveOwnership(ctx context.Context, o *models.Ownership) error
	Close() error
}

// Open builds the backend selected by cfg.StoreBackend.
func Open(ctx context.Context, cfg *config.Config, logger logging.Logger) (Store, error) {
	var (
		s   Store
		err error
	)

	switch cfg.StoreBackend {
	case config.StoreFile, "":
		s, err = NewFileStore(cfg.DataDir)
	case config.StoreSQLite:
		s, err = OpenSQLite(ctx, cfg.DataDir)
	case config.StorePostgres:
		s, err = OpenPostgres(ctx, cfg.DatabaseDSN)
	case config.StoreS3:
		s, err = NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "credential store opened", "backend", cfg.StoreBackend)
	return s, nil
}
