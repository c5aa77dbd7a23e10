package models

import (
	"fmt"
	"strings"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// JobStatus represents the lifecycle state of a scrape job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"   // Created, not yet dispatched
	JobStatusRunning   JobStatus = "RUNNING"   // Dispatched to a scraper
	JobStatusCompleted JobStatus = "COMPLETED" // Scraper returned without error
	JobStatusFailed    JobStatus = "FAILED"    // Scraper, dispatch or type resolution failed
)

// String implements fmt.Stringer for logging
func (s JobStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known lifecycle value
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobType selects which entity scraper handles a job
type JobType string

const (
	JobTypeNavigation    JobType = "NAVIGATION"
	JobTypeCategory      JobType = "CATEGORY"
	JobTypeProduct       JobType = "PRODUCT"
	JobTypeProductDetail JobType = "PRODUCT_DETAIL"
)

// AllJobTypes lists the supported job types in pipeline order
var AllJobTypes = []JobType{JobTypeNavigation, JobTypeCategory, JobTypeProduct, JobTypeProductDetail}

// String implements fmt.Stringer for logging
func (t JobType) String() string {
	if t == "" {
		return "unset"
	}
	return string(t)
}

// IsValid returns true if a scraper exists for the type
func (t JobType) IsValid() bool {
	switch t {
	case JobTypeNavigation, JobTypeCategory, JobTypeProduct, JobTypeProductDetail:
		return true
	}
	return false
}

// ParseJobType accepts the canonical names plus lowercase and dashed forms
// ("product-detail", "product_detail").
func ParseJobType(s string) (JobType, error) {
	t := JobType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", utils.ErrUnknownJobType, s)
	}
	return t, nil
}

// ParseJobStatus is the status counterpart of ParseJobType
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("unknown job status %q", s)
	}
	return st, nil
}
