package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

func TestCheckParams(t *testing.T) {
	tests := []struct {
		name    string
		jobType JobType
		params  JobParams
		wantErr bool
	}{
		{"navigation nil defaults", JobTypeNavigation, nil, false},
		{"category ok", JobTypeCategory, CategoryParams{NavigationID: "n1"}, false},
		{"category missing navigation", JobTypeCategory, CategoryParams{}, true},
		{"category nil", JobTypeCategory, nil, true},
		{"product ok", JobTypeProduct, ProductParams{CategoryID: "c1"}, false},
		{"product negative pages", JobTypeProduct, ProductParams{CategoryID: "c1", MaxPages: -1}, true},
		{"product missing category", JobTypeProduct, ProductParams{MaxPages: 2}, true},
		{"detail ok", JobTypeProductDetail, ProductDetailParams{ProductID: "p1"}, false},
		{"detail missing product", JobTypeProductDetail, ProductDetailParams{}, true},
		{"mismatched variant", JobTypeProduct, CategoryParams{NavigationID: "n1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckParams(tt.jobType, tt.params)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, utils.ErrInvalidParams)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.jobType, got.JobType())
		})
	}
}

func TestProductParams_Pages(t *testing.T) {
	assert.Equal(t, DefaultMaxPages, ProductParams{CategoryID: "c"}.Pages())
	assert.Equal(t, 2, ProductParams{CategoryID: "c", MaxPages: 2}.Pages())
}

func TestDecodeParams(t *testing.T) {
	p, err := DecodeParams(JobTypeCategory, json.RawMessage(`{"navigationId":"n1","parentId":"c9"}`))
	require.NoError(t, err)
	assert.Equal(t, CategoryParams{NavigationID: "n1", ParentID: "c9"}, p)

	p, err = DecodeParams(JobTypeNavigation, nil)
	require.NoError(t, err)
	assert.Equal(t, NavigationParams{}, p)

	p, err = DecodeParams(JobTypeProductDetail, json.RawMessage(`{"productId":"p1"}`))
	require.NoError(t, err)
	assert.Equal(t, ProductDetailParams{ProductID: "p1"}, p)

	_, err = DecodeParams(JobTypeProduct, json.RawMessage(`{"maxPages":"three"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrParsing)

	p, err = DecodeParams(JobType("OTHER"), json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Nil(t, p)
}
