package storage_test

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/storage"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

var _ = Describe("PostgresStore Integration", func() {
	var (
		ctx   context.Context
		store *storage.PostgresStore
		now   time.Time
	)

	BeforeEach(func() {
		// Skip if not running integration tests
		if os.Getenv("INTEGRATION_TESTS") != "true" {
			Skip("Skipping integration test")
		}

		ctx = context.Background()
		now = time.Now().UTC().Truncate(time.Millisecond)

		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())

		logger := logrus.New()
		logger.SetLevel(logrus.WarnLevel)
		entry := logrus.NewEntry(logger)

		Expect(storage.RunMigrations(ctx, cfg.Database, entry)).To(Succeed())

		store, err = storage.NewPostgresStore(ctx, cfg.Database, entry)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(store.Close)
	})

	newCategory := func() *models.Category {
		suffix := uuid.NewString()[:8]
		c := &models.Category{
			ID:        uuid.NewString(),
			Name:      "Fiction " + suffix,
			Slug:      "fiction-" + suffix,
			URL:       "https://www.worldofbooks.com/en-gb/books/fiction-" + suffix,
			CreatedAt: now,
			UpdatedAt: now,
		}
		Expect(store.SaveCategory(ctx, c)).To(Succeed())
		return c
	}

	Context("when reconciling by natural key", func() {
		It("should find a saved navigation by url", func() {
			nav := &models.Navigation{
				ID:        uuid.NewString(),
				Name:      "Books",
				URL:       "https://www.worldofbooks.com/en-gb/" + uuid.NewString(),
				IsActive:  true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			Expect(store.SaveNavigation(ctx, nav)).To(Succeed())

			got, err := store.FindNavigationByURL(ctx, nav.URL)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(nav.ID))
			Expect(got.IsActive).To(BeTrue())
		})

		It("should reject a second category with the same slug", func() {
			c := newCategory()
			dup := &models.Category{ID: uuid.NewString(), Name: "dup", Slug: c.Slug, URL: c.URL, CreatedAt: now, UpdatedAt: now}

			err := store.SaveCategory(ctx, dup)
			Expect(err).To(MatchError(utils.ErrDuplicateKey))
		})

		It("should report a missing product as not found", func() {
			_, err := store.FindProductBySKU(ctx, "missing-"+uuid.NewString())
			Expect(err).To(MatchError(utils.ErrNotFound))
		})
	})

	Context("when storing details and reviews", func() {
		It("should round-trip arrays and specifications", func() {
			c := newCategory()
			p := &models.Product{
				ID: uuid.NewString(), SKU: "SKU-" + uuid.NewString(), Title: "Dune", URL: c.URL + "/dune",
				Condition: "Used", InStock: true, CategoryID: c.ID, CreatedAt: now, UpdatedAt: now,
			}
			Expect(store.SaveProduct(ctx, p)).To(Succeed())

			d := &models.ProductDetail{
				ID:              uuid.NewString(),
				ProductID:       p.ID,
				Images:          []string{"https://img/1.jpg", "https://img/2.jpg"},
				Specifications:  map[string]string{"Binding": "Paperback"},
				RelatedProducts: []string{"https://x/related"},
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			Expect(store.SaveDetail(ctx, d)).To(Succeed())

			got, err := store.FindDetailByProductID(ctx, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Images).To(Equal(d.Images))
			Expect(got.Specifications).To(HaveKeyWithValue("Binding", "Paperback"))
			Expect(got.RelatedProducts).To(ConsistOf("https://x/related"))

			reviews := []*models.Review{
				{ID: uuid.NewString(), ProductID: p.ID, Rating: 5, CreatedAt: now},
				{ID: uuid.NewString(), ProductID: p.ID, Rating: 3, Position: 1, CreatedAt: now.Add(time.Second)},
			}
			Expect(store.ReplaceReviews(ctx, p.ID, reviews)).To(Succeed())
			Expect(store.ReplaceReviews(ctx, p.ID, reviews[:1])).To(Succeed())

			stored, err := store.ListReviews(ctx, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(1))

			rating := 5.0
			Expect(store.UpdateProductRating(ctx, p.ID, &rating, 1)).To(Succeed())
			updated, err := store.GetProduct(ctx, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Rating).NotTo(BeNil())
			Expect(*updated.Rating).To(BeNumerically("~", 5.0))
			Expect(updated.ReviewCount).To(Equal(1))

			n, err := store.CountProductsByCategory(ctx, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})
	})

	Context("when tracking jobs", func() {
		It("should persist typed params and terminal results", func() {
			job := models.NewScrapeJob(uuid.NewString(), models.JobTypeProduct, "https://x/c",
				models.ProductParams{CategoryID: "c1", MaxPages: 2}, now)
			Expect(store.CreateJob(ctx, job)).To(Succeed())
			Expect(store.CreateJob(ctx, job)).To(MatchError(utils.ErrDuplicateKey))

			Expect(job.Start(now)).To(Succeed())
			Expect(job.Complete(4, 3, now.Add(time.Second))).To(Succeed())
			Expect(store.SaveJob(ctx, job)).To(Succeed())

			got, err := store.GetJob(ctx, job.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(models.JobStatusCompleted))
			Expect(got.Params).To(Equal(models.ProductParams{CategoryID: "c1", MaxPages: 2}))
			Expect(got.Result).To(Equal(&models.JobResult{Success: true, ItemCount: 3}))

			jobs, err := store.ListJobs(ctx, storage.JobFilter{Status: models.JobStatusCompleted, Limit: 5})
			Expect(err).NotTo(HaveOccurred())
			Expect(jobs).NotTo(BeEmpty())
		})
	})
})
