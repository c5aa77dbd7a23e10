package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestNewScrapeJob_Pending(t *testing.T) {
	job := NewScrapeJob("j1", JobTypeCategory, "https://example.test/fiction", CategoryParams{NavigationID: "n1"}, testNow)

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)
	assert.Nil(t, job.Result)
	assert.Empty(t, job.ErrorMessage)
	assert.Equal(t, testNow, job.CreatedAt)
}

func TestScrapeJob_Lifecycle(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		job := NewScrapeJob("j1", JobTypeNavigation, "u", NavigationParams{}, testNow)
		require.NoError(t, job.Start(testNow.Add(time.Second)))
		assert.Equal(t, JobStatusRunning, job.Status)
		require.NotNil(t, job.StartedAt)

		require.NoError(t, job.Complete(7, 6, testNow.Add(2*time.Second)))
		assert.Equal(t, JobStatusCompleted, job.Status)
		assert.Equal(t, 7, job.ItemsTotal)
		assert.Equal(t, 6, job.ItemsProcessed)
		require.NotNil(t, job.Result)
		assert.Equal(t, JobResult{Success: true, ItemCount: 6}, *job.Result)
		assert.Empty(t, job.ErrorMessage)
		require.NotNil(t, job.CompletedAt)
	})

	t.Run("failed", func(t *testing.T) {
		job := NewScrapeJob("j2", JobTypeNavigation, "u", NavigationParams{}, testNow)
		require.NoError(t, job.Start(testNow))
		require.NoError(t, job.Fail("boom", testNow))
		assert.Equal(t, JobStatusFailed, job.Status)
		assert.Equal(t, "boom", job.ErrorMessage)
		assert.Nil(t, job.Result)
		require.NotNil(t, job.CompletedAt)
	})

	t.Run("pending can fail directly", func(t *testing.T) {
		job := NewScrapeJob("j3", JobType("BOGUS"), "u", nil, testNow)
		require.NoError(t, job.Fail("", testNow))
		assert.NotEmpty(t, job.ErrorMessage)
	})

	t.Run("terminal states are final", func(t *testing.T) {
		job := NewScrapeJob("j4", JobTypeNavigation, "u", NavigationParams{}, testNow)
		require.NoError(t, job.Start(testNow))
		require.NoError(t, job.Complete(1, 1, testNow))

		assert.ErrorIs(t, job.Start(testNow), utils.ErrInvalidTransition)
		assert.ErrorIs(t, job.Fail("late", testNow), utils.ErrInvalidTransition)
		assert.ErrorIs(t, job.Complete(2, 2, testNow), utils.ErrInvalidTransition)
		assert.Equal(t, JobStatusCompleted, job.Status)
	})

	t.Run("complete requires running", func(t *testing.T) {
		job := NewScrapeJob("j5", JobTypeNavigation, "u", NavigationParams{}, testNow)
		assert.ErrorIs(t, job.Complete(1, 1, testNow), utils.ErrInvalidTransition)
	})
}

func TestScrapeJob_JSONKeepsTypedParams(t *testing.T) {
	job := NewScrapeJob("j1", JobTypeProduct, "https://example.test/c/fiction", ProductParams{CategoryID: "c1", MaxPages: 3}, testNow)

	data, err := json.Marshal(job)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"params":{"categoryId":"c1","maxPages":3}`)
	assert.NotContains(t, string(data), "startedAt")

	var decoded ScrapeJob
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ProductParams{CategoryID: "c1", MaxPages: 3}, decoded.Params)
	assert.Equal(t, job.ID, decoded.ID)
	assert.Equal(t, JobStatusPending, decoded.Status)
}

func TestScrapeJob_JSONUnknownType(t *testing.T) {
	raw := `{"id":"x","type":"SITEMAP","status":"PENDING","url":"u","params":{"foo":1}}`
	var job ScrapeJob
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	assert.Nil(t, job.Params)
	assert.Equal(t, JobType("SITEMAP"), job.Type)
}

func TestScrapeJob_Clone(t *testing.T) {
	job := NewScrapeJob("j1", JobTypeNavigation, "u", NavigationParams{}, testNow)
	require.NoError(t, job.Start(testNow))
	require.NoError(t, job.Complete(1, 1, testNow))

	c := job.Clone()
	c.Result.ItemCount = 99
	*c.StartedAt = testNow.Add(time.Hour)

	assert.Equal(t, 1, job.Result.ItemCount)
	assert.Equal(t, testNow, *job.StartedAt)
}
