package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/log"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique index conflict
const uniqueViolation = "23505"

// PostgresStore implements Store with gorm over a pgx connection pool.
// The schema is owned by the migrations, not by AutoMigrate.
type PostgresStore struct {
	db    *gorm.DB
	sqlDB *sql.DB
	pool  *pgxpool.Pool
	log   *logrus.Entry
}

// NewPostgresStore connects to the database described by cfg
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, logger *logrus.Entry) (*PostgresStore, error) {
	logger = log.EntryOrDiscard(logger).WithField("component", "postgres_store")

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: parsing database DSN: %w", utils.ErrConfigValidation, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s:%d: %w", utils.ErrDatabase, cfg.Host, cfg.Port, err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         log.NewGormAdapter(logger),
		TranslateError: true,
	})
	if err != nil {
		sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("%w: failed to open gorm session: %w", utils.ErrDatabase, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("%w: ping %s:%d: %w", utils.ErrDatabase, cfg.Host, cfg.Port, err)
	}

	logger.WithFields(logrus.Fields{
		"host":      cfg.Host,
		"database":  cfg.Name,
		"max_conns": poolCfg.MaxConns,
	}).Info("Connected to PostgreSQL")
	return &PostgresStore{db: db, sqlDB: sqlDB, pool: pool, log: logger}, nil
}

// pgError maps gorm/pgx errors onto the storage sentinels
func pgError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", utils.ErrNotFound, msg)
	}
	var pgErr *pgconn.PgError
	if errors.Is(err, gorm.ErrDuplicatedKey) || (errors.As(err, &pgErr) && pgErr.Code == uniqueViolation) {
		return fmt.Errorf("%w: %s: %w", utils.ErrDuplicateKey, msg, err)
	}
	return fmt.Errorf("%w: %s: %w", utils.ErrDatabase, msg, err)
}

// --- Navigation ---

func (s *PostgresStore) FindNavigationByURL(ctx context.Context, url string) (*models.Navigation, error) {
	var row navigationRow
	if err := s.db.WithContext(ctx).Where("url = ?", url).Take(&row).Error; err != nil {
		return nil, pgError(err, "navigation with url %s", url)
	}
	return row.model(), nil
}

func (s *PostgresStore) GetNavigation(ctx context.Context, id string) (*models.Navigation, error) {
	var row navigationRow
	if err := s.db.WithContext(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return nil, pgError(err, "navigation %s", id)
	}
	return row.model(), nil
}

func (s *PostgresStore) SaveNavigation(ctx context.Context, nav *models.Navigation) error {
	return pgError(s.db.WithContext(ctx).Save(fromNavigation(nav)).Error, "saving navigation %s", nav.ID)
}

func (s *PostgresStore) ListNavigations(ctx context.Context) ([]*models.Navigation, error) {
	var rows []navigationRow
	if err := s.db.WithContext(ctx).Order("position, id").Find(&rows).Error; err != nil {
		return nil, pgError(err, "listing navigations")
	}
	out := make([]*models.Navigation, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

// --- Category ---

func (s *PostgresStore) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var row categoryRow
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).Take(&row).Error; err != nil {
		return nil, pgError(err, "category with slug %s", slug)
	}
	return row.model(), nil
}

func (s *PostgresStore) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var row categoryRow
	if err := s.db.WithContext(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return nil, pgError(err, "category %s", id)
	}
	return row.model(), nil
}

func (s *PostgresStore) SaveCategory(ctx context.Context, cat *models.Category) error {
	return pgError(s.db.WithContext(ctx).Save(fromCategory(cat)).Error, "saving category %s", cat.ID)
}

func (s *PostgresStore) ListCategories(ctx context.Context, navigationID string) ([]*models.Category, error) {
	q := s.db.WithContext(ctx).Order("name, id")
	if navigationID != "" {
		q = q.Where("navigation_id = ?", navigationID)
	}
	var rows []categoryRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, pgError(err, "listing categories")
	}
	out := make([]*models.Category, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

// --- Product ---

func (s *PostgresStore) FindProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var row productRow
	if err := s.db.WithContext(ctx).Where("sku = ?", sku).Take(&row).Error; err != nil {
		return nil, pgError(err, "product with sku %s", sku)
	}
	return row.model(), nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var row productRow
	if err := s.db.WithContext(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return nil, pgError(err, "product %s", id)
	}
	return row.model(), nil
}

func (s *PostgresStore) SaveProduct(ctx context.Context, p *models.Product) error {
	return pgError(s.db.WithContext(ctx).Save(fromProduct(p)).Error, "saving product %s", p.ID)
}

func (s *PostgresStore) UpdateProductRating(ctx context.Context, productID string, rating *float64, reviewCount int) error {
	var value any
	if rating != nil {
		value = *rating
	}
	res := s.db.WithContext(ctx).Model(&productRow{}).Where("id = ?", productID).
		Updates(map[string]any{"rating": value, "review_count": reviewCount})
	if res.Error != nil {
		return pgError(res.Error, "updating rating of product %s", productID)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: product %s", utils.ErrNotFound, productID)
	}
	return nil
}

func (s *PostgresStore) CountProductsByCategory(ctx context.Context, categoryID string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&productRow{}).Where("category_id = ?", categoryID).Count(&n).Error
	if err != nil {
		return 0, pgError(err, "counting products of category %s", categoryID)
	}
	return int(n), nil
}

// --- Detail ---

func (s *PostgresStore) FindDetailByProductID(ctx context.Context, productID string) (*models.ProductDetail, error) {
	var row detailRow
	if err := s.db.WithContext(ctx).Where("product_id = ?", productID).Take(&row).Error; err != nil {
		return nil, pgError(err, "detail of product %s", productID)
	}
	d, err := row.model()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrDatabase, err)
	}
	return d, nil
}

func (s *PostgresStore) SaveDetail(ctx context.Context, d *models.ProductDetail) error {
	row, err := fromDetail(d)
	if err != nil {
		return err
	}
	return pgError(s.db.WithContext(ctx).Save(row).Error, "saving detail %s", d.ID)
}

// --- Review ---

func (s *PostgresStore) ReplaceReviews(ctx context.Context, productID string, reviews []*models.Review) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", productID).Delete(&reviewRow{}).Error; err != nil {
			return err
		}
		if len(reviews) == 0 {
			return nil
		}
		rows := make([]*reviewRow, 0, len(reviews))
		for _, r := range reviews {
			rows = append(rows, fromReview(r))
		}
		return tx.CreateInBatches(rows, 100).Error
	})
	return pgError(err, "replacing reviews of product %s", productID)
}

func (s *PostgresStore) ListReviews(ctx context.Context, productID string) ([]*models.Review, error) {
	var rows []reviewRow
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).Order("position, id").Find(&rows).Error
	if err != nil {
		return nil, pgError(err, "listing reviews of product %s", productID)
	}
	out := make([]*models.Review, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

// --- Job ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.ScrapeJob) error {
	row, err := fromJob(job)
	if err != nil {
		return err
	}
	return pgError(s.db.WithContext(ctx).Create(row).Error, "creating job %s", job.ID)
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.ScrapeJob, error) {
	var row jobRow
	if err := s.db.WithContext(ctx).Take(&row, "id = ?", id).Error; err != nil {
		return nil, pgError(err, "job %s", id)
	}
	job, err := row.model()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrDatabase, err)
	}
	return job, nil
}

func (s *PostgresStore) SaveJob(ctx context.Context, job *models.ScrapeJob) error {
	row, err := fromJob(job)
	if err != nil {
		return err
	}
	return pgError(s.db.WithContext(ctx).Save(row).Error, "saving job %s", job.ID)
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.ScrapeJob, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if filter.Type != "" {
		q = q.Where("type = ?", string(filter.Type))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []jobRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, pgError(err, "listing jobs")
	}
	out := make([]*models.ScrapeJob, 0, len(rows))
	for i := range rows {
		job, err := rows[i].model()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", utils.ErrDatabase, err)
		}
		out = append(out, job)
	}
	return out, nil
}

// Close releases the gorm session and the pool
func (s *PostgresStore) Close() error {
	err := s.sqlDB.Close()
	s.pool.Close()
	return err
}

var _ Store = (*PostgresStore)(nil)
