package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adintel-cli/internal/model"
	"github.com/sells-group/adintel-cli/pkg/adlibrary"
)

func TestLibraryAdsToModel(t *testing.T) {
	in := []adlibrary.LibraryAd{
		{
			ID:        "a1",
			PageID:    "p9",
			Headline:  "Save now",
			BodyText:  "body",
			ImageURL:  "https://cdn/a1.jpg",
			Platforms: []string{"facebook", "instagram"},
			StartedAt: "2026-07-01",
			IsActive:  true,
		},
		{ID: "a2", StartedAt: "2026-07-15T10:30:00Z"},
		{ID: "a3", StartedAt: "not a date"},
	}

	ads := libraryAdsToModel("Rival", "p1", in)
	require.Len(t, ads, 3)

	assert.Equal(t, "Rival", ads[0].Brand)
	assert.Equal(t, "p9", ads[0].PageID, "library page id wins over the resolved one")
	assert.Equal(t, "p1", ads[1].PageID, "resolved page id fills the gap")
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), ads[0].StartedAt)
	assert.Equal(t, time.Date(2026, 7, 15, 10, 30, 0, 0, time.UTC), ads[1].StartedAt)
	assert.True(t, ads[2].StartedAt.IsZero(), "malformed timestamp degrades to zero time")
}

func TestIngestionWritesAndCounts(t *testing.T) {
	st := newMockStore()
	p := New(newTestConfig(), st, &mockAdLib{}, &mockAI{}, &mockEmbedder{}, emptyRegistry())

	runState := &state{
		rc: testRunContext(false),
		brands: []model.Brand{
			{Name: "Rival One", PageID: "p1"},
			{Name: "Rival Two", PageID: "p2"},
		},
		adsByBrand: map[string][]model.Ad{
			"Rival One": {{ID: "a1", Brand: "Rival One"}, {ID: "a2", Brand: "Rival One"}},
			"Rival Two": {{ID: "b1", Brand: "Rival Two"}},
		},
	}
	stage := &ingestionStage{p: p, st: runState}

	res, err := stage.Execute(context.Background(), nil)
	require.NoError(t, err)

	ir, ok := res.(model.IngestionResult)
	require.True(t, ok)
	assert.Equal(t, 3, ir.TotalAds)
	assert.Equal(t, map[string]int{"Rival One": 2, "Rival Two": 1}, ir.AdsByBrand)
	assert.Equal(t, adsTableID, ir.TableID)
	assert.Len(t, st.ads["run-test"], 3)
}

func TestIngestionDryRunSkipsStore(t *testing.T) {
	st := newMockStore()
	p := New(newTestConfig(), st, &mockAdLib{}, &mockAI{}, &mockEmbedder{}, emptyRegistry())

	runState := &state{
		rc:     testRunContext(true),
		brands: []model.Brand{{Name: "Rival", PageID: "p1"}},
		adsByBrand: map[string][]model.Ad{
			"Rival": {{ID: "a1", Brand: "Rival"}},
		},
	}
	stage := &ingestionStage{p: p, st: runState}

	res, err := stage.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.(model.IngestionResult).TotalAds)
	assert.Empty(t, st.ads)
}
