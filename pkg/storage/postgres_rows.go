package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// Row types mirror migrations/000001_init.up.sql. Timestamps are owned by
// the caller's clock, so gorm's auto timestamps are switched off.

type navigationRow struct {
	ID            string     `gorm:"primaryKey;column:id"`
	Name          string     `gorm:"column:name;not null"`
	URL           string     `gorm:"column:url;not null;uniqueIndex"`
	Position      int        `gorm:"column:position;not null"`
	IsActive      bool       `gorm:"column:is_active;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
	LastScrapedAt *time.Time `gorm:"column:last_scraped_at"`
}

func (navigationRow) TableName() string { return "navigations" }

type categoryRow struct {
	ID            string     `gorm:"primaryKey;column:id"`
	Name          string     `gorm:"column:name;not null"`
	Slug          string     `gorm:"column:slug;not null;uniqueIndex"`
	URL           string     `gorm:"column:url;not null"`
	Description   *string    `gorm:"column:description"`
	ImageURL      *string    `gorm:"column:image_url"`
	ParentID      *string    `gorm:"column:parent_id"`
	NavigationID  *string    `gorm:"column:navigation_id"`
	ProductCount  int        `gorm:"column:product_count;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
	LastScrapedAt *time.Time `gorm:"column:last_scraped_at"`
}

func (categoryRow) TableName() string { return "categories" }

type productRow struct {
	ID            string     `gorm:"primaryKey;column:id"`
	SKU           string     `gorm:"column:sku;not null;uniqueIndex"`
	Title         string     `gorm:"column:title;not null"`
	URL           string     `gorm:"column:url;not null"`
	ImageURL      *string    `gorm:"column:image_url"`
	Price         *float64   `gorm:"column:price"`
	OriginalPrice *float64   `gorm:"column:original_price"`
	Condition     string     `gorm:"column:condition;not null"`
	InStock       bool       `gorm:"column:in_stock;not null"`
	Author        *string    `gorm:"column:author"`
	ISBN          *string    `gorm:"column:isbn"`
	Rating        *float64   `gorm:"column:rating"`
	ReviewCount   int        `gorm:"column:review_count;not null"`
	CategoryID    string     `gorm:"column:category_id;not null;index"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
	LastScrapedAt *time.Time `gorm:"column:last_scraped_at"`
}

func (productRow) TableName() string { return "products" }

type detailRow struct {
	ID                     string         `gorm:"primaryKey;column:id"`
	ProductID              string         `gorm:"column:product_id;not null;uniqueIndex"`
	Description            *string        `gorm:"column:description"`
	Publisher              *string        `gorm:"column:publisher"`
	PublicationDate        *string        `gorm:"column:publication_date"`
	Language               *string        `gorm:"column:language"`
	Pages                  *int           `gorm:"column:pages"`
	Format                 *string        `gorm:"column:format"`
	Dimensions             *string        `gorm:"column:dimensions"`
	Weight                 *string        `gorm:"column:weight"`
	Images                 pq.StringArray `gorm:"column:images;type:text[]"`
	Specifications         datatypes.JSON `gorm:"column:specifications;type:jsonb"`
	RelatedProducts        pq.StringArray `gorm:"column:related_products;type:text[]"`
	DetailedConditionNotes *string        `gorm:"column:detailed_condition_notes"`
	CreatedAt              time.Time      `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt              time.Time      `gorm:"column:updated_at;autoUpdateTime:false"`
	LastScrapedAt          *time.Time     `gorm:"column:last_scraped_at"`
}

func (detailRow) TableName() string { return "product_details" }

type reviewRow struct {
	ID                 string    `gorm:"primaryKey;column:id"`
	ProductID          string    `gorm:"column:product_id;not null;index"`
	ReviewerName       *string   `gorm:"column:reviewer_name"`
	Rating             float64   `gorm:"column:rating;not null"`
	Title              *string   `gorm:"column:title"`
	Content            *string   `gorm:"column:content"`
	ReviewDate         *string   `gorm:"column:review_date"`
	IsVerifiedPurchase bool      `gorm:"column:is_verified_purchase;not null"`
	HelpfulCount       int       `gorm:"column:helpful_count;not null"`
	Position           int       `gorm:"column:position;not null"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime:false"`
}

func (reviewRow) TableName() string { return "reviews" }

type jobRow struct {
	ID             string         `gorm:"primaryKey;column:id"`
	Type           string         `gorm:"column:type;not null"`
	Status         string         `gorm:"column:status;not null"`
	URL            string         `gorm:"column:url;not null"`
	Params         datatypes.JSON `gorm:"column:params;type:jsonb"`
	ItemsTotal     int            `gorm:"column:items_total;not null"`
	ItemsProcessed int            `gorm:"column:items_processed;not null"`
	ErrorMessage   *string        `gorm:"column:error_message"`
	Result         datatypes.JSON `gorm:"column:result;type:jsonb"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime:false"`
	StartedAt      *time.Time     `gorm:"column:started_at"`
	CompletedAt    *time.Time     `gorm:"column:completed_at"`
}

func (jobRow) TableName() string { return "scrape_jobs" }

func fromNavigation(n *models.Navigation) *navigationRow {
	return &navigationRow{
		ID: n.ID, Name: n.Name, URL: n.URL, Position: n.Position, IsActive: n.IsActive,
		CreatedAt: n.CreatedAt, UpdatedAt: n.UpdatedAt, LastScrapedAt: n.LastScrapedAt,
	}
}

func (r *navigationRow) model() *models.Navigation {
	return &models.Navigation{
		ID: r.ID, Name: r.Name, URL: r.URL, Position: r.Position, IsActive: r.IsActive,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, LastScrapedAt: r.LastScrapedAt,
	}
}

func fromCategory(c *models.Category) *categoryRow {
	return &categoryRow{
		ID: c.ID, Name: c.Name, Slug: c.Slug, URL: c.URL,
		Description: c.Description, ImageURL: c.ImageURL, ParentID: c.ParentID, NavigationID: c.NavigationID,
		ProductCount: c.ProductCount,
		CreatedAt:    c.CreatedAt, UpdatedAt: c.UpdatedAt, LastScrapedAt: c.LastScrapedAt,
	}
}

func (r *categoryRow) model() *models.Category {
	return &models.Category{
		ID: r.ID, Name: r.Name, Slug: r.Slug, URL: r.URL,
		Description: r.Description, ImageURL: r.ImageURL, ParentID: r.ParentID, NavigationID: r.NavigationID,
		ProductCount: r.ProductCount,
		CreatedAt:    r.CreatedAt, UpdatedAt: r.UpdatedAt, LastScrapedAt: r.LastScrapedAt,
	}
}

func fromProduct(p *models.Product) *productRow {
	return &productRow{
		ID: p.ID, SKU: p.SKU, Title: p.Title, URL: p.URL, ImageURL: p.ImageURL,
		Price: p.Price, OriginalPrice: p.OriginalPrice, Condition: p.Condition, InStock: p.InStock,
		Author: p.Author, ISBN: p.ISBN, Rating: p.Rating, ReviewCount: p.ReviewCount, CategoryID: p.CategoryID,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt, LastScrapedAt: p.LastScrapedAt,
	}
}

func (r *productRow) model() *models.Product {
	return &models.Product{
		ID: r.ID, SKU: r.SKU, Title: r.Title, URL: r.URL, ImageURL: r.ImageURL,
		Price: r.Price, OriginalPrice: r.OriginalPrice, Condition: r.Condition, InStock: r.InStock,
		Author: r.Author, ISBN: r.ISBN, Rating: r.Rating, ReviewCount: r.ReviewCount, CategoryID: r.CategoryID,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, LastScrapedAt: r.LastScrapedAt,
	}
}

func fromDetail(d *models.ProductDetail) (*detailRow, error) {
	specs, err := json.Marshal(d.Specifications)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding specifications JSON: %w", utils.ErrParsing, err)
	}
	return &detailRow{
		ID: d.ID, ProductID: d.ProductID, Description: d.Description, Publisher: d.Publisher,
		PublicationDate: d.PublicationDate, Language: d.Language, Pages: d.Pages, Format: d.Format,
		Dimensions: d.Dimensions, Weight: d.Weight,
		Images:                 pq.StringArray(d.Images),
		Specifications:         datatypes.JSON(specs),
		RelatedProducts:        pq.StringArray(d.RelatedProducts),
		DetailedConditionNotes: d.DetailedConditionNotes,
		CreatedAt:              d.CreatedAt, UpdatedAt: d.UpdatedAt, LastScrapedAt: d.LastScrapedAt,
	}, nil
}

func (r *detailRow) model() (*models.ProductDetail, error) {
	var specs map[string]string
	if len(r.Specifications) > 0 {
		if err := json.Unmarshal(r.Specifications, &specs); err != nil {
			return nil, fmt.Errorf("%w: decoding specifications JSON of %s: %w", utils.ErrParsing, r.ProductID, err)
		}
	}
	return &models.ProductDetail{
		ID: r.ID, ProductID: r.ProductID, Description: r.Description, Publisher: r.Publisher,
		PublicationDate: r.PublicationDate, Language: r.Language, Pages: r.Pages, Format: r.Format,
		Dimensions: r.Dimensions, Weight: r.Weight,
		Images:                 []string(r.Images),
		Specifications:         specs,
		RelatedProducts:        []string(r.RelatedProducts),
		DetailedConditionNotes: r.DetailedConditionNotes,
		CreatedAt:              r.CreatedAt, UpdatedAt: r.UpdatedAt, LastScrapedAt: r.LastScrapedAt,
	}, nil
}

func fromReview(r *models.Review) *reviewRow {
	return &reviewRow{
		ID: r.ID, ProductID: r.ProductID, ReviewerName: r.ReviewerName, Rating: r.Rating,
		Title: r.Title, Content: r.Content, ReviewDate: r.ReviewDate,
		IsVerifiedPurchase: r.IsVerifiedPurchase, HelpfulCount: r.HelpfulCount, Position: r.Position,
		CreatedAt: r.CreatedAt,
	}
}

func (r *reviewRow) model() *models.Review {
	return &models.Review{
		ID: r.ID, ProductID: r.ProductID, ReviewerName: r.ReviewerName, Rating: r.Rating,
		Title: r.Title, Content: r.Content, ReviewDate: r.ReviewDate,
		IsVerifiedPurchase: r.IsVerifiedPurchase, HelpfulCount: r.HelpfulCount, Position: r.Position,
		CreatedAt: r.CreatedAt,
	}
}

func fromJob(j *models.ScrapeJob) (*jobRow, error) {
	params := []byte("{}")
	if j.Params != nil {
		b, err := json.Marshal(j.Params)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding params JSON of job %s: %w", utils.ErrParsing, j.ID, err)
		}
		params = b
	}
	row := &jobRow{
		ID: j.ID, Type: string(j.Type), Status: string(j.Status), URL: j.URL,
		Params:     datatypes.JSON(params),
		ItemsTotal: j.ItemsTotal, ItemsProcessed: j.ItemsProcessed,
		CreatedAt: j.CreatedAt, UpdatedAt: j.UpdatedAt, StartedAt: j.StartedAt, CompletedAt: j.CompletedAt,
	}
	if j.ErrorMessage != "" {
		msg := j.ErrorMessage
		row.ErrorMessage = &msg
	}
	if j.Result != nil {
		b, err := json.Marshal(j.Result)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding result JSON of job %s: %w", utils.ErrParsing, j.ID, err)
		}
		row.Result = datatypes.JSON(b)
	}
	return row, nil
}

func (r *jobRow) model() (*models.ScrapeJob, error) {
	jobType := models.JobType(r.Type)
	params, err := models.DecodeParams(jobType, json.RawMessage(r.Params))
	if err != nil {
		return nil, err
	}
	job := &models.ScrapeJob{
		ID: r.ID, Type: jobType, Status: models.JobStatus(r.Status), URL: r.URL, Params: params,
		ItemsTotal: r.ItemsTotal, ItemsProcessed: r.ItemsProcessed,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, StartedAt: r.StartedAt, CompletedAt: r.CompletedAt,
	}
	if r.ErrorMessage != nil {
		job.ErrorMessage = *r.ErrorMessage
	}
	if len(r.Result) > 0 {
		var res models.JobResult
		if err := json.Unmarshal(r.Result, &res); err != nil {
			return nil, fmt.Errorf("%w: decoding result JSON of job %s: %w", utils.ErrParsing, r.ID, err)
		}
		job.Result = &res
	}
	return job, nil
}
