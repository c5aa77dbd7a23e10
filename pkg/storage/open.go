package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// Open returns the Store selected by cfg.Storage.Driver. The postgres
// store expects the schema to be migrated already.
func Open(ctx context.Context, cfg *config.AppConfig, logger *logrus.Entry) (Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageBadger, "":
		return NewBadgerStore(cfg.Storage.Dir, logger)
	case config.StoragePostgres:
		return NewPostgresStore(ctx, cfg.Database, logger)
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", utils.ErrConfigValidation, cfg.Storage.Driver)
	}
}
