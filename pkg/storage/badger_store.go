package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/log"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

const (
	navKeyPrefix    = "nav:"
	catKeyPrefix    = "cat:"
	prodKeyPrefix   = "prod:"
	detailKeyPrefix = "detail:"
	reviewKeyPrefix = "review:" // review:<productID>:<position>:<reviewID>
	jobKeyPrefix    = "job:"

	navURLIndex    = "idx:nav:url:"
	catSlugIndex   = "idx:cat:slug:"
	prodSKUIndex   = "idx:prod:sku:"
	detailPIDIndex = "idx:detail:pid:"
)

// BadgerStore implements Store on an embedded BadgerDB. Rows are JSON
// values; natural keys are enforced with index keys written in the same
// transaction as the row.
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Entry
}

// NewBadgerStore opens (or creates) the database under dir
func NewBadgerStore(dir string, logger *logrus.Entry) (*BadgerStore, error) {
	logger = log.EntryOrDiscard(logger).WithField("component", "badger_store")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrDatabase, dir, err)
	}
	logger.Infof("Opening catalog database at: %s", dir)
	return openBadger(badger.DefaultOptions(dir), logger)
}

// NewInMemoryBadgerStore opens a throwaway store, used by tests and dry runs
func NewInMemoryBadgerStore(logger *logrus.Entry) (*BadgerStore, error) {
	logger = log.EntryOrDiscard(logger).WithField("component", "badger_store")
	return openBadger(badger.DefaultOptions("").WithInMemory(true), logger)
}

func openBadger(opts badger.Options, logger *logrus.Entry) (*BadgerStore, error) {
	opts = opts.
		WithLogger(log.NewBadgerAdapter(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database: %w", utils.ErrDatabase, err)
	}
	return &BadgerStore{db: db, log: logger}, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for transaction conflicts.
// Conflicting MVCC transactions resolve quickly, so a tight loop suffices.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// wrapDB tags storage failures with ErrDatabase, leaving the
// caller-meaningful sentinels untouched.
func wrapDB(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, utils.ErrNotFound) || errors.Is(err, utils.ErrDuplicateKey) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", utils.ErrDatabase, fmt.Sprintf(format, args...), err)
}

// getJSON decodes the value at key into dst; a missing key is ErrNotFound
func getJSON(txn *badger.Txn, key string, dst any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", utils.ErrNotFound, key)
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		if errJSON := json.Unmarshal(val, dst); errJSON != nil {
			return fmt.Errorf("%w: decoding JSON at %s: %w", utils.ErrParsing, key, errJSON)
		}
		return nil
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding JSON for %s: %w", utils.ErrParsing, key, err)
	}
	return txn.SetEntry(badger.NewEntry([]byte(key), b))
}

// lookupIndex returns the id stored under an index key
func lookupIndex(txn *badger.Txn, idxKey string) (string, error) {
	item, err := txn.Get([]byte(idxKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", utils.ErrNotFound, idxKey)
	}
	if err != nil {
		return "", err
	}
	id, err := item.ValueCopy(nil)
	return string(id), err
}

// putIndexed writes v under prefix+id and maintains its natural-key index.
// A natural key owned by a different id is ErrDuplicateKey; a changed
// natural key drops the stale index entry.
func putIndexed[T any](txn *badger.Txn, prefix, idxPrefix, id string, v *T, naturalKey func(*T) string) error {
	key := prefix + id
	newIdx := idxPrefix + naturalKey(v)

	owner, err := lookupIndex(txn, newIdx)
	switch {
	case err == nil && owner != id:
		return fmt.Errorf("%w: %q already belongs to %s", utils.ErrDuplicateKey, naturalKey(v), owner)
	case err != nil && !errors.Is(err, utils.ErrNotFound):
		return err
	}

	var old T
	switch err := getJSON(txn, key, &old); {
	case err == nil:
		if oldIdx := idxPrefix + naturalKey(&old); oldIdx != newIdx {
			if errDel := txn.Delete([]byte(oldIdx)); errDel != nil {
				return errDel
			}
		}
	case !errors.Is(err, utils.ErrNotFound):
		return err
	}

	if err := setJSON(txn, key, v); err != nil {
		return err
	}
	return txn.Set([]byte(newIdx), []byte(id))
}

// findIndexed resolves a natural key to its row
func findIndexed(txn *badger.Txn, prefix, idxKey string, dst any) error {
	id, err := lookupIndex(txn, idxKey)
	if err != nil {
		return err
	}
	return getJSON(txn, prefix+id, dst)
}

// scanPrefix decodes every value under prefix, calling fn for each
func scanPrefix[T any](ctx context.Context, db *badger.DB, prefix string, fn func(*T) error) error {
	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			v := new(T)
			err := item.Value(func(val []byte) error {
				if errJSON := json.Unmarshal(val, v); errJSON != nil {
					return fmt.Errorf("%w: decoding JSON at %s: %w", utils.ErrParsing, string(item.Key()), errJSON)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if err := fn(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- Navigation ---

func navURL(n *models.Navigation) string { return n.URL }

func (s *BadgerStore) FindNavigationByURL(ctx context.Context, url string) (*models.Navigation, error) {
	var nav models.Navigation
	err := s.db.View(func(txn *badger.Txn) error {
		return findIndexed(txn, navKeyPrefix, navURLIndex+url, &nav)
	})
	if err != nil {
		return nil, wrapDB(err, "finding navigation by url %s", url)
	}
	return &nav, nil
}

func (s *BadgerStore) GetNavigation(ctx context.Context, id string) (*models.Navigation, error) {
	var nav models.Navigation
	err := s.db.View(func(txn *badger.Txn) error { return getJSON(txn, navKeyPrefix+id, &nav) })
	if err != nil {
		return nil, wrapDB(err, "getting navigation %s", id)
	}
	return &nav, nil
}

func (s *BadgerStore) SaveNavigation(ctx context.Context, nav *models.Navigation) error {
	err := s.dbUpdate(func(txn *badger.Txn) error {
		return putIndexed(txn, navKeyPrefix, navURLIndex, nav.ID, nav, navURL)
	})
	return wrapDB(err, "saving navigation %s", nav.ID)
}

// ListNavigations returns entries ordered by position
func (s *BadgerStore) ListNavigations(ctx context.Context) ([]*models.Navigation, error) {
	var out []*models.Navigation
	err := scanPrefix(ctx, s.db, navKeyPrefix, func(n *models.Navigation) error {
		out = append(out, n)
		return nil
	})
	if err != nil {
		return nil, wrapDB(err, "listing navigations")
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// --- Category ---

func catSlug(c *models.Category) string { return c.Slug }

func (s *BadgerStore) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var cat models.Category
	err := s.db.View(func(txn *badger.Txn) error {
		return findIndexed(txn, catKeyPrefix, catSlugIndex+slug, &cat)
	})
	if err != nil {
		return nil, wrapDB(err, "finding category by slug %s", slug)
	}
	return &cat, nil
}

func (s *BadgerStore) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var cat models.Category
	err := s.db.View(func(txn *badger.Txn) error { return getJSON(txn, catKeyPrefix+id, &cat) })
	if err != nil {
		return nil, wrapDB(err, "getting category %s", id)
	}
	return &cat, nil
}

func (s *BadgerStore) SaveCategory(ctx context.Context, cat *models.Category) error {
	err := s.dbUpdate(func(txn *badger.Txn) error {
		return putIndexed(txn, catKeyPrefix, catSlugIndex, cat.ID, cat, catSlug)
	})
	return wrapDB(err, "saving category %s", cat.ID)
}

func (s *BadgerStore) ListCategories(ctx context.Context, navigationID string) ([]*models.Category, error) {
	var out []*models.Category
	err := scanPrefix(ctx, s.db, catKeyPrefix, func(c *models.Category) error {
		if navigationID == "" || (c.NavigationID != nil && *c.NavigationID == navigationID) {
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, wrapDB(err, "listing categories")
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- Product ---

func prodSKU(p *models.Product) string { return p.SKU }

func (s *BadgerStore) FindProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var p models.Product
	err := s.db.View(func(txn *badger.Txn) error {
		return findIndexed(txn, prodKeyPrefix, prodSKUIndex+sku, &p)
	})
	if err != nil {
		return nil, wrapDB(err, "finding product by sku %s", sku)
	}
	return &p, nil
}

func (s *BadgerStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := s.db.View(func(txn *badger.Txn) error { return getJSON(txn, prodKeyPrefix+id, &p) })
	if err != nil {
		return nil, wrapDB(err, "getting product %s", id)
	}
	return &p, nil
}

func (s *BadgerStore) SaveProduct(ctx context.Context, p *models.Product) error {
	err := s.dbUpdate(func(txn *badger.Txn) error {
		return putIndexed(txn, prodKeyPrefix, prodSKUIndex, p.ID, p, prodSKU)
	})
	return wrapDB(err, "saving product %s", p.ID)
}

func (s *BadgerStore) UpdateProductRating(ctx context.Context, productID string, rating *float64, reviewCount int) error {
	err := s.dbUpdate(func(txn *badger.Txn) error {
		var p models.Product
		if err := getJSON(txn, prodKeyPrefix+productID, &p); err != nil {
			return err
		}
		p.Rating = rating
		p.ReviewCount = reviewCount
		return setJSON(txn, prodKeyPrefix+productID, &p)
	})
	return wrapDB(err, "updating rating of product %s", productID)
}

func (s *BadgerStore) CountProductsByCategory(ctx context.Context, categoryID string) (int, error) {
	count := 0
	err := scanPrefix(ctx, s.db, prodKeyPrefix, func(p *models.Product) error {
		if p.CategoryID == categoryID {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, wrapDB(err, "counting products of category %s", categoryID)
	}
	return count, nil
}

// --- Product detail ---

func detailPID(d *models.ProductDetail) string { return d.ProductID }

func (s *BadgerStore) FindDetailByProductID(ctx context.Context, productID string) (*models.ProductDetail, error) {
	var d models.ProductDetail
	err := s.db.View(func(txn *badger.Txn) error {
		return findIndexed(txn, detailKeyPrefix, detailPIDIndex+productID, &d)
	})
	if err != nil {
		return nil, wrapDB(err, "finding detail of product %s", productID)
	}
	return &d, nil
}

func (s *BadgerStore) SaveDetail(ctx context.Context, d *models.ProductDetail) error {
	err := s.dbUpdate(func(txn *badger.Txn) error {
		return putIndexed(txn, detailKeyPrefix, detailPIDIndex, d.ID, d, detailPID)
	})
	return wrapDB(err, "saving detail %s", d.ID)
}

// --- Reviews ---

func reviewPrefix(productID string) string { return reviewKeyPrefix + productID + ":" }

// reviewKey zero-pads the position so keys iterate in page order
func reviewKey(prefix string, r *models.Review) string {
	return fmt.Sprintf("%s%06d:%s", prefix, r.Position, r.ID)
}

func (s *BadgerStore) ReplaceReviews(ctx context.Context, productID string, reviews []*models.Review) error {
	prefix := reviewPrefix(productID)
	err := s.dbUpdate(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for _, r := range reviews {
			if err := setJSON(txn, reviewKey(prefix, r), r); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapDB(err, "replacing reviews of product %s", productID)
}

// ListReviews returns a product's reviews in page order
func (s *BadgerStore) ListReviews(ctx context.Context, productID string) ([]*models.Review, error) {
	var out []*models.Review
	err := scanPrefix(ctx, s.db, reviewPrefix(productID), func(r *models.Review) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, wrapDB(err, "listing reviews of product %s", productID)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// --- Jobs ---

func (s *BadgerStore) CreateJob(ctx context.Context, job *models.ScrapeJob) error {
	key := jobKeyPrefix + job.ID
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == nil {
			return fmt.Errorf("%w: job %s", utils.ErrDuplicateKey, job.ID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setJSON(txn, key, job)
	})
	return wrapDB(err, "creating job %s", job.ID)
}

func (s *BadgerStore) GetJob(ctx context.Context, id string) (*models.ScrapeJob, error) {
	var job models.ScrapeJob
	err := s.db.View(func(txn *badger.Txn) error { return getJSON(txn, jobKeyPrefix+id, &job) })
	if err != nil {
		return nil, wrapDB(err, "getting job %s", id)
	}
	return &job, nil
}

func (s *BadgerStore) SaveJob(ctx context.Context, job *models.ScrapeJob) error {
	err := s.dbUpdate(func(txn *badger.Txn) error { return setJSON(txn, jobKeyPrefix+job.ID, job) })
	return wrapDB(err, "saving job %s", job.ID)
}

func (s *BadgerStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.ScrapeJob, error) {
	var out []*models.ScrapeJob
	err := scanPrefix(ctx, s.db, jobKeyPrefix, func(j *models.ScrapeJob) error {
		if filter.Matches(j) {
			out = append(out, j)
		}
		return nil
	})
	if err != nil {
		return nil, wrapDB(err, "listing jobs")
	}
	sort.SliceStable(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return strings.Compare(out[i].ID, out[k].ID) > 0
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// RunGC runs value log garbage collection periodically. Run it in a goroutine.
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if errors.Is(err, badger.ErrNoRewrite) {
				s.log.Debug("BadgerDB GC finished (no rewrite needed).")
			} else {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close closes the database; closing twice is a no-op
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing catalog DB: %v", err)
		return err
	}
	s.log.Info("Catalog DB closed.")
	return nil
}

var _ Store = (*BadgerStore)(nil)
