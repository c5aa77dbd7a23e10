package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// JobResult summarises a COMPLETED job
type JobResult struct {
	Success   bool `json:"success"`
	ItemCount int  `json:"itemCount"`
}

// ScrapeJob is the unit of work and its audit record.
//
// Once Status is terminal exactly one of ErrorMessage and Result is set;
// neither is set while PENDING or RUNNING.
type ScrapeJob struct {
	ID             string     `json:"id"`
	Type           JobType    `json:"type"`
	Status         JobStatus  `json:"status"`
	URL            string     `json:"url"`
	Params         JobParams  `json:"-"` // Encoded as "params" by MarshalJSON
	ItemsTotal     int        `json:"itemsTotal"`
	ItemsProcessed int        `json:"itemsProcessed"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	Result         *JobResult `json:"result,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// NewScrapeJob returns a PENDING job.
func NewScrapeJob(id string, jobType JobType, url string, params JobParams, now time.Time) *ScrapeJob {
	return &ScrapeJob{
		ID:        id,
		Type:      jobType,
		Status:    JobStatusPending,
		URL:       url,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start moves a PENDING job to RUNNING.
func (j *ScrapeJob) Start(now time.Time) error {
	if j.Status != JobStatusPending {
		return fmt.Errorf("%w: %s -> %s", utils.ErrInvalidTransition, j.Status, JobStatusRunning)
	}
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

// Complete moves a RUNNING job to COMPLETED. found is the number of records
// extracted, processed the number reconciled into storage.
func (j *ScrapeJob) Complete(found, processed int, now time.Time) error {
	if j.Status != JobStatusRunning {
		return fmt.Errorf("%w: %s -> %s", utils.ErrInvalidTransition, j.Status, JobStatusCompleted)
	}
	j.Status = JobStatusCompleted
	j.ItemsTotal = found
	j.ItemsProcessed = processed
	j.Result = &JobResult{Success: true, ItemCount: processed}
	j.ErrorMessage = ""
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// Fail moves a PENDING or RUNNING job to FAILED.
func (j *ScrapeJob) Fail(message string, now time.Time) error {
	if j.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", utils.ErrInvalidTransition, j.Status, JobStatusFailed)
	}
	if message == "" {
		message = "job failed without an error message"
	}
	j.Status = JobStatusFailed
	j.ErrorMessage = message
	j.Result = nil
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// Clone returns a copy that shares no pointers with j.
func (j *ScrapeJob) Clone() *ScrapeJob {
	c := *j
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// MarshalJSON encodes Params under "params" in their typed shape.
func (j ScrapeJob) MarshalJSON() ([]byte, error) {
	type alias ScrapeJob
	params := json.RawMessage("{}")
	if j.Params != nil {
		b, err := json.Marshal(j.Params)
		if err != nil {
			return nil, err
		}
		params = b
	}
	return json.Marshal(struct {
		alias
		Params json.RawMessage `json:"params"`
	}{alias: alias(j), Params: params})
}

// UnmarshalJSON selects the params variant from the decoded job type.
func (j *ScrapeJob) UnmarshalJSON(data []byte) error {
	type alias ScrapeJob
	aux := struct {
		*alias
		Params json.RawMessage `json:"params"`
	}{alias: (*alias)(j)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	params, err := DecodeParams(j.Type, aux.Params)
	if err != nil {
		return err
	}
	j.Params = params
	return nil
}
