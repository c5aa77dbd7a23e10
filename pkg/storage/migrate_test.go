package storage

import (
	"context"
	"io"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(migrationFS, "migrations")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, _, err := src.ReadUp(first)
	require.NoError(t, err)
	body, err := io.ReadAll(up)
	up.Close()
	require.NoError(t, err)

	for _, table := range []string{"navigations", "categories", "products", "product_details", "reviews", "scrape_jobs"} {
		assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+table, "table %s", table)
	}
	for _, idx := range []string{"idx_navigations_url", "idx_categories_slug", "idx_products_sku", "idx_product_details_product_id"} {
		assert.Contains(t, string(body), "CREATE UNIQUE INDEX IF NOT EXISTS "+idx, "index %s", idx)
	}

	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	down.Close()

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)
	up, _, err = src.ReadUp(next)
	require.NoError(t, err)
	body, err = io.ReadAll(up)
	up.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "ADD COLUMN IF NOT EXISTS position")
}

func TestOpen(t *testing.T) {
	t.Run("badger", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Storage.Dir = t.TempDir()
		store, err := Open(context.Background(), cfg, testLogger())
		require.NoError(t, err)
		assert.IsType(t, &BadgerStore{}, store)
		require.NoError(t, store.Close())
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Storage.Driver = "sqlite"
		_, err := Open(context.Background(), cfg, testLogger())
		assert.ErrorIs(t, err, utils.ErrConfigValidation)
	})
}
