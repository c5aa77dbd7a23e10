package models

import (
	"encoding/json"
	"fmt"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// DefaultMaxPages is the page budget for a PRODUCT job without an explicit maxPages
const DefaultMaxPages = 5

// JobParams is the typed parameter set of a job. The concrete type is
// determined by the job type.
type JobParams interface {
	JobType() JobType
	Validate() error
}

// NavigationParams carries no inputs; the job URL is the site root.
type NavigationParams struct{}

func (NavigationParams) JobType() JobType { return JobTypeNavigation }
func (NavigationParams) Validate() error  { return nil }

// CategoryParams scopes a CATEGORY job to a navigation entry. With ParentID
// set the job collects subcategories of that parent instead.
type CategoryParams struct {
	NavigationID string `json:"navigationId"`
	ParentID     string `json:"parentId,omitempty"`
}

func (CategoryParams) JobType() JobType { return JobTypeCategory }

func (p CategoryParams) Validate() error {
	if p.NavigationID == "" {
		return fmt.Errorf("%w: navigationId is required for %s", utils.ErrInvalidParams, JobTypeCategory)
	}
	return nil
}

// ProductParams scopes a PRODUCT job to a category listing.
type ProductParams struct {
	CategoryID string `json:"categoryId"`
	MaxPages   int    `json:"maxPages,omitempty"`
}

func (ProductParams) JobType() JobType { return JobTypeProduct }

func (p ProductParams) Validate() error {
	if p.CategoryID == "" {
		return fmt.Errorf("%w: categoryId is required for %s", utils.ErrInvalidParams, JobTypeProduct)
	}
	if p.MaxPages < 0 {
		return fmt.Errorf("%w: maxPages cannot be negative (%d)", utils.ErrInvalidParams, p.MaxPages)
	}
	return nil
}

// Pages returns MaxPages, or DefaultMaxPages when unset.
func (p ProductParams) Pages() int {
	if p.MaxPages <= 0 {
		return DefaultMaxPages
	}
	return p.MaxPages
}

// ProductDetailParams identifies the product whose page is scraped.
type ProductDetailParams struct {
	ProductID string `json:"productId"`
}

func (ProductDetailParams) JobType() JobType { return JobTypeProductDetail }

func (p ProductDetailParams) Validate() error {
	if p.ProductID == "" {
		return fmt.Errorf("%w: productId is required for %s", utils.ErrInvalidParams, JobTypeProductDetail)
	}
	return nil
}

// CheckParams verifies that p is the params variant for t and is valid.
// Nil params are accepted, and defaulted, only for NAVIGATION.
func CheckParams(t JobType, p JobParams) (JobParams, error) {
	if p == nil {
		if t == JobTypeNavigation {
			return NavigationParams{}, nil
		}
		return nil, fmt.Errorf("%w: %s job requires parameters", utils.ErrInvalidParams, t)
	}
	if p.JobType() != t {
		return nil, fmt.Errorf("%w: %T does not belong to a %s job", utils.ErrInvalidParams, p, t)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// DecodeParams decodes the stored JSON params of a job of type t.
// Unknown types decode to nil so the job can still be loaded and failed.
func DecodeParams(t JobType, raw json.RawMessage) (JobParams, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	var (
		params JobParams
		err    error
	)
	switch t {
	case JobTypeNavigation:
		var p NavigationParams
		err = json.Unmarshal(raw, &p)
		params = p
	case JobTypeCategory:
		var p CategoryParams
		err = json.Unmarshal(raw, &p)
		params = p
	case JobTypeProduct:
		var p ProductParams
		err = json.Unmarshal(raw, &p)
		params = p
	case JobTypeProductDetail:
		var p ProductDetailParams
		err = json.Unmarshal(raw, &p)
		params = p
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s params JSON: %w", utils.ErrParsing, t, err)
	}
	return params, nil
}
