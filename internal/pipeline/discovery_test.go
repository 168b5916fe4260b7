package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adintel-cli/internal/model"
	"github.com/sells-group/adintel-cli/internal/registry"
	"github.com/sells-group/adintel-cli/pkg/adlibrary"
)

func seedRegistry(vertical string, seeds ...registry.SeedBrand) *registry.Registry {
	return &registry.Registry{Verticals: map[string]registry.Vertical{
		vertical: {Brands: seeds},
	}}
}

func runDiscovery(t *testing.T, reg *registry.Registry, adlib *mockAdLib) (model.DiscoveryResult, error) {
	t.Helper()
	st := &state{
		rc:         &model.RunContext{Brand: "Acme Solar", Vertical: "solar", RunID: "r"},
		adsByBrand: map[string][]model.Ad{},
	}
	stage := &discoveryStage{p: New(newTestConfig(), newMockStore(), adlib, &mockAI{}, &mockEmbedder{}, reg), st: st}

	res, err := stage.Execute(context.Background(), nil)
	if err != nil {
		return model.DiscoveryResult{}, err
	}
	dr, ok := res.(model.DiscoveryResult)
	require.True(t, ok)
	return dr, nil
}

func TestDiscoveryResolvesSeedPages(t *testing.T) {
	reg := seedRegistry("solar",
		registry.SeedBrand{Name: "Pinned Rival", PageID: "p-pinned"},
		registry.SeedBrand{Name: "Loose Rival"},
	)
	adlib := &mockAdLib{pages: []adlibrary.Page{
		{ID: "p-wrong", Name: "Loose Rival Fan Club"},
		{ID: "p-loose", Name: "loose  rival", Verified: true},
	}}

	dr, err := runDiscovery(t, reg, adlib)
	require.NoError(t, err)

	assert.Equal(t, 2, dr.FromRegistry)
	assert.Equal(t, 2, dr.FromSearch)
	assert.Equal(t, 0, dr.UnresolvedPage)

	byName := map[string]string{}
	for _, c := range dr.Candidates {
		byName[c.Name] = c.PageID
	}
	assert.Equal(t, "p-pinned", byName["Pinned Rival"])
	assert.Equal(t, "p-loose", byName["Loose Rival"], "exact normalized match wins")
}

func TestDiscoveryKeepsUnresolvableSeeds(t *testing.T) {
	reg := seedRegistry("solar",
		registry.SeedBrand{Name: "Pinned Rival", PageID: "p-pinned"},
		registry.SeedBrand{Name: "Ghost Brand"},
	)
	adlib := &mockAdLib{searchErr: eris.New("rate limited")}

	dr, err := runDiscovery(t, reg, adlib)
	require.NoError(t, err, "seed candidates keep discovery alive through a search outage")

	assert.Equal(t, 2, dr.FromRegistry)
	assert.Equal(t, 0, dr.FromSearch)
	assert.Equal(t, 1, dr.UnresolvedPage)
	require.Len(t, dr.Candidates, 2)
	assert.Equal(t, "", dr.Candidates[1].PageID, "unresolved seed kept for curation to drop")
}

func TestDiscoveryFailsWithoutAnyCandidates(t *testing.T) {
	_, err := runDiscovery(t, emptyRegistry(), &mockAdLib{searchErr: eris.New("api down")})
	require.Error(t, err)
}

func TestDiscoveryDryRunSkipsAdLibrary(t *testing.T) {
	adlib := &mockAdLib{searchErr: eris.New("must not be called")}
	st := &state{
		rc:         &model.RunContext{Brand: "Acme Solar", Vertical: "solar", RunID: "r", DryRun: true},
		adsByBrand: map[string][]model.Ad{},
	}
	stage := &discoveryStage{p: New(newTestConfig(), newMockStore(), adlib, &mockAI{}, &mockEmbedder{}, emptyRegistry()), st: st}

	res, err := stage.Execute(context.Background(), nil)
	require.NoError(t, err)
	dr := res.(model.DiscoveryResult)
	assert.Len(t, dr.Candidates, 4)
	assert.Equal(t, "Acme Solar", dr.Candidates[0].Name)
}
