package models

import "time"

// Navigation is a top-level site menu entry, keyed by URL
type Navigation struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	Position      int        `json:"position"`
	IsActive      bool       `json:"isActive"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	LastScrapedAt *time.Time `json:"lastScrapedAt,omitempty"`
}

// Category is a product listing, keyed by slug
type Category struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Slug          string     `json:"slug"`
	URL           string     `json:"url"`
	Description   *string    `json:"description,omitempty"`
	ImageURL      *string    `json:"imageUrl,omitempty"`
	ParentID      *string    `json:"parentId,omitempty"`
	NavigationID  *string    `json:"navigationId,omitempty"`
	ProductCount  int        `json:"productCount"` // Owned aggregate, never taken from a scraped item
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	LastScrapedAt *time.Time `json:"lastScrapedAt,omitempty"`
}

// Product is a catalog listing, keyed by SKU
type Product struct {
	ID            string     `json:"id"`
	SKU           string     `json:"sku"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	ImageURL      *string    `json:"imageUrl,omitempty"`
	Price         *float64   `json:"price,omitempty"`
	OriginalPrice *float64   `json:"originalPrice,omitempty"`
	Condition     string     `json:"condition"`
	InStock       bool       `json:"inStock"`
	Author        *string    `json:"author,omitempty"`
	ISBN          *string    `json:"isbn,omitempty"`
	Rating        *float64   `json:"rating,omitempty"` // Derived from the stored review set
	ReviewCount   int        `json:"reviewCount"`
	CategoryID    string     `json:"categoryId"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	LastScrapedAt *time.Time `json:"lastScrapedAt,omitempty"`
}

// ProductDetail holds the product page fields, one per product
type ProductDetail struct {
	ID                     string            `json:"id"`
	ProductID              string            `json:"productId"`
	Description            *string           `json:"description,omitempty"`
	Publisher              *string           `json:"publisher,omitempty"`
	PublicationDate        *string           `json:"publicationDate,omitempty"`
	Language               *string           `json:"language,omitempty"`
	Pages                  *int              `json:"pages,omitempty"`
	Format                 *string           `json:"format,omitempty"`
	Dimensions             *string           `json:"dimensions,omitempty"`
	Weight                 *string           `json:"weight,omitempty"`
	Images                 []string          `json:"images,omitempty"`
	Specifications         map[string]string `json:"specifications,omitempty"`
	RelatedProducts        []string          `json:"relatedProducts,omitempty"`
	DetailedConditionNotes *string           `json:"detailedConditionNotes,omitempty"`
	CreatedAt              time.Time         `json:"createdAt"`
	UpdatedAt              time.Time         `json:"updatedAt"`
	LastScrapedAt          *time.Time        `json:"lastScrapedAt,omitempty"`
}

// Review is one customer review; a product's reviews are replaced as a set
type Review struct {
	ID                 string    `json:"id"`
	ProductID          string    `json:"productId"`
	ReviewerName       *string   `json:"reviewerName,omitempty"`
	Rating             float64   `json:"rating"`
	Title              *string   `json:"title,omitempty"`
	Content            *string   `json:"content,omitempty"`
	ReviewDate         *string   `json:"reviewDate,omitempty"`
	IsVerifiedPurchase bool      `json:"isVerifiedPurchase"`
	HelpfulCount       int       `json:"helpfulCount"`
	Position           int       `json:"position"`
	CreatedAt          time.Time `json:"createdAt"`
}
