package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

func TestJobStatus_String(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   string
	}{
		{JobStatus(""), "unset"},
		{JobStatusPending, "PENDING"},
		{JobStatusRunning, "RUNNING"},
		{JobStatusCompleted, "COMPLETED"},
		{JobStatusFailed, "FAILED"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusPending, false},
		{JobStatusRunning, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
		{JobStatus("arbitrary"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.IsTerminal(), "JobStatus(%q).IsTerminal()", string(tt.status))
	}
}

func TestJobType_IsValid(t *testing.T) {
	for _, jt := range AllJobTypes {
		assert.True(t, jt.IsValid(), "%s should be valid", jt)
	}
	assert.False(t, JobType("SITEMAP").IsValid())
	assert.False(t, JobType("").IsValid())
}

func TestParseJobType(t *testing.T) {
	tests := []struct {
		in   string
		want JobType
	}{
		{"NAVIGATION", JobTypeNavigation},
		{"category", JobTypeCategory},
		{" product ", JobTypeProduct},
		{"product-detail", JobTypeProductDetail},
		{"product_detail", JobTypeProductDetail},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseJobType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseJobType("reviews")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrUnknownJobType)
}

func TestParseJobStatus(t *testing.T) {
	got, err := ParseJobStatus("failed")
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, got)

	_, err = ParseJobStatus("cancelled")
	assert.Error(t, err)
}
