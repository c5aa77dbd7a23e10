package models

// Extracted records. These live only for one job execution; the scrapers
// reconcile them into the stored entities above.

// NavigationItem is one accepted menu link
type NavigationItem struct {
	Name     string
	URL      string
	Position int
}

// CategoryItem is one category card or subcategory link
type CategoryItem struct {
	Name         string
	Slug         string
	URL          string
	Description  *string
	ImageURL     *string
	ParentID     *string
	NavigationID *string
}

// ProductItem is one product card on a listing page
type ProductItem struct {
	SKU           string
	Title         string
	URL           string
	ImageURL      *string
	Price         *float64
	OriginalPrice *float64
	Condition     string
	InStock       bool
	Author        *string
	ISBN          *string
	Rating        *float64
	ReviewCount   int
	CategoryID    string
}

// ProductDetailItem is the extracted product page
type ProductDetailItem struct {
	ProductID              string
	Description            *string
	Publisher              *string
	PublicationDate        *string
	Language               *string
	Pages                  *int
	Format                 *string
	Dimensions             *string
	Weight                 *string
	Images                 []string
	Specifications         map[string]string
	RelatedProducts        []string
	DetailedConditionNotes *string
}

// ReviewItem is one review block. Rating is mandatory.
type ReviewItem struct {
	ProductID          string
	ReviewerName       *string
	Rating             float64
	Title              *string
	Content            *string
	ReviewDate         *string
	IsVerifiedPurchase bool
	HelpfulCount       int
}
