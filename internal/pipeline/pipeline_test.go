package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/adintel-cli/internal/model"
	"github.com/sells-group/adintel-cli/internal/store"
	"github.com/sells-group/adintel-cli/pkg/adlibrary"
)

func testRunContext(dryRun bool) *model.RunContext {
	return &model.RunContext{
		Brand:    "Acme Solar",
		Vertical: "solar",
		RunID:    "run-test",
		DryRun:   dryRun,
	}
}

func happyAdLib() *mockAdLib {
	return &mockAdLib{
		pages: []adlibrary.Page{
			{ID: "p-acme", Name: "Acme Solar", Verified: true},
			{ID: "p-rival1", Name: "Rival One", Verified: true},
			{ID: "p-rival2", Name: "Rival Two"},
		},
		adsByPage: map[string][]adlibrary.LibraryAd{
			"p-acme":   libAds("p-acme", 5),
			"p-rival1": libAds("p-rival1", 9),
			"p-rival2": libAds("p-rival2", 4),
		},
	}
}

func TestRunHappyPath(t *testing.T) {
	st := newMockStore()
	ai := &mockAI{}
	p := New(newTestConfig(), st, happyAdLib(), ai, &mockEmbedder{}, emptyRegistry())

	rc := testRunContext(false)
	report, err := p.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusComplete, report.Status)
	require.Len(t, report.Stages, 9)
	for _, s := range report.Stages {
		assert.Equal(t, model.StageStatusSuccess, s.Status, s.Name)
	}

	// The subject brand is curated out, so only the two rivals remain.
	assert.Equal(t, 2, report.Competitors)
	assert.Equal(t, 13, report.AdsIngested)
	assert.Equal(t, 13, report.AdsLabeled)
	assert.Equal(t, 13, report.Embeddings)
	assert.Positive(t, report.ImagesSampled)
	assert.Positive(t, report.TotalCost)
	assert.NotEmpty(t, report.Report)

	// Durable artifacts landed in the store.
	assert.Len(t, st.ads["run-test"], 13)
	assert.Len(t, st.labels["run-test"], 13)
	assert.Len(t, st.embeddings["run-test"], 13)
	assert.NotEmpty(t, st.plans["run-test"])
	assert.Len(t, st.stageRecords["run-test"], 9)

	run := st.runs["run-test"]
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusComplete, run.Status)
}

func TestRunRanksByVolume(t *testing.T) {
	st := newMockStore()
	p := New(newTestConfig(), st, happyAdLib(), &mockAI{}, &mockEmbedder{}, emptyRegistry())

	report, err := p.Run(context.Background(), testRunContext(false))
	require.NoError(t, err)

	var ranking model.RankingResult
	for _, s := range report.Stages {
		if r, ok := s.Result.(model.RankingResult); ok {
			ranking = r
		}
	}
	require.Len(t, ranking.Brands, 2)
	assert.Equal(t, "Rival One", ranking.Brands[0].Name)
	assert.Equal(t, 1, ranking.Brands[0].Rank)
	assert.Equal(t, 9, ranking.Brands[0].ActiveAds)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	st := newMockStore()
	ai := &mockAI{}
	p := New(newTestConfig(), st, &mockAdLib{searchErr: errors.New("must not be called")}, ai, &mockEmbedder{err: errors.New("must not be called")}, emptyRegistry())

	report, err := p.Run(context.Background(), testRunContext(true))
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusComplete, report.Status)
	assert.Len(t, report.Stages, 9)
	assert.NotEmpty(t, report.SamplingPlans, "allocator still plans in dry run")

	assert.Empty(t, st.runs, "dry run must not create a run row")
	assert.Empty(t, st.ads)
	assert.Empty(t, st.stageRecords)
	assert.Zero(t, ai.calls, "dry run must not call the model")
}

func TestRunLabelingFailureKeepsIndependentStages(t *testing.T) {
	st := newMockStore()
	ai := &mockAI{labelErr: errors.New("api down")}
	p := New(newTestConfig(), st, happyAdLib(), ai, &mockEmbedder{}, emptyRegistry())

	report, err := p.Run(context.Background(), testRunContext(false))
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusFailed, report.Status)

	byName := map[string]model.StageRecord{}
	for _, s := range report.Stages {
		byName[s.Name] = s
	}

	assert.Equal(t, model.StageStatusFailed, byName[model.StageLabeling].Status)
	// Embeddings and visual depend only on ingestion, so they still run.
	assert.Equal(t, model.StageStatusSuccess, byName[model.StageEmbeddings].Status)
	assert.Equal(t, model.StageStatusSuccess, byName[model.StageVisual].Status)
	// Strategy and intelligence hang off labeling and are skipped without
	// leaving records.
	_, ranStrategy := byName[model.StageStrategy]
	_, ranIntelligence := byName[model.StageIntelligence]
	assert.False(t, ranStrategy)
	assert.False(t, ranIntelligence)

	// Ingested artifacts survive the failure.
	assert.Len(t, st.ads["run-test"], 13)
	assert.NotEmpty(t, st.embeddings["run-test"])
}

// fakeStage drives the generic fail-stop driver directly.
type fakeStage struct {
	name    string
	deps    []string
	err     error
	calls   *int
	panicky bool
}

func (f *fakeStage) Name() string        { return f.name }
func (f *fakeStage) DependsOn() []string { return f.deps }

func (f *fakeStage) Execute(context.Context, model.StageResult) (model.StageResult, error) {
	*f.calls++
	if f.panicky {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return model.CurationResult{}, nil
}

func TestDriverFailStop(t *testing.T) {
	st := newMockStore()
	p := New(newTestConfig(), st, &mockAdLib{}, &mockAI{}, &mockEmbedder{}, emptyRegistry())

	var calls1, calls2, calls3 int
	stages := []Stage{
		&fakeStage{name: "one", calls: &calls1},
		&fakeStage{name: "two", deps: []string{"one"}, err: errors.New("query failed"), calls: &calls2},
		&fakeStage{name: "three", deps: []string{"two"}, calls: &calls3},
	}

	rc := testRunContext(false)
	report := p.runStages(context.Background(), zap.NewNop(), rc, stages)

	assert.Equal(t, 1, calls1)
	assert.Equal(t, 1, calls2)
	assert.Zero(t, calls3, "stage three must never be invoked")

	require.Len(t, report.Stages, 2, "skipped stages leave no record")
	assert.Equal(t, model.StageStatusSuccess, report.Stages[0].Status)
	assert.Equal(t, model.StageStatusFailed, report.Stages[1].Status)
	assert.Equal(t, model.RunStatusFailed, report.Status)
	assert.Contains(t, report.Error, "two")
}

func TestDriverRecoversPanics(t *testing.T) {
	st := newMockStore()
	p := New(newTestConfig(), st, &mockAdLib{}, &mockAI{}, &mockEmbedder{}, emptyRegistry())

	var calls1, calls2 int
	stages := []Stage{
		&fakeStage{name: "one", calls: &calls1, panicky: true},
		&fakeStage{name: "two", deps: []string{"one"}, calls: &calls2},
	}

	report := p.runStages(context.Background(), zap.NewNop(), testRunContext(false), stages)

	require.Len(t, report.Stages, 1)
	assert.Equal(t, model.StageStatusFailed, report.Stages[0].Status)
	assert.Contains(t, report.Stages[0].Error, "panicked")
	assert.Zero(t, calls2)
}

// Running the pipeline twice with the same run id must leave the second
// run's artifacts, not the sum of both.
func TestRunIdempotentPerRunID(t *testing.T) {
	sqlite, err := store.NewSQLite(filepath.Join(t.TempDir(), "adintel.db"))
	require.NoError(t, err)
	defer sqlite.Close()
	require.NoError(t, sqlite.Migrate(context.Background()))

	adlib := happyAdLib()
	p := New(newTestConfig(), sqlite, adlib, &mockAI{}, &mockEmbedder{}, emptyRegistry())

	rc := testRunContext(false)
	_, err = p.Run(context.Background(), rc)
	require.NoError(t, err)

	// Second run sees fewer ads for one rival.
	adlib.adsByPage["p-rival1"] = libAds("p-rival1", 6)
	report, err := p.Run(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, 10, report.AdsIngested)

	ads, err := sqlite.GetAds(context.Background(), rc.RunID)
	require.NoError(t, err)
	assert.Len(t, ads, 10, "second run overwrites, never appends")
}
