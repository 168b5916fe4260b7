package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/sells-group/adintel-cli/internal/config"
	"github.com/sells-group/adintel-cli/internal/cost"
	"github.com/sells-group/adintel-cli/internal/model"
	"github.com/sells-group/adintel-cli/internal/registry"
	"github.com/sells-group/adintel-cli/internal/sampling"
	"github.com/sells-group/adintel-cli/internal/store"
	"github.com/sells-group/adintel-cli/pkg/adlibrary"
	"github.com/sells-group/adintel-cli/pkg/anthropic"
	"github.com/sells-group/adintel-cli/pkg/openai"
)

func newTestConfig() *config.Config {
	return &config.Config{
		AdLibrary: config.AdLibraryConfig{
			MaxAdsPerBrand:  500,
			SearchPageLimit: 25,
		},
		Anthropic: config.AnthropicConfig{
			HaikuModel:  "claude-haiku-4-5-20251001",
			SonnetModel: "claude-sonnet-4-5-20250929",
			MaxTokens:   1024,
		},
		OpenAI:   config.OpenAIConfig{EmbeddingModel: "text-embedding-3-small"},
		Sampling: sampling.DefaultConfig(),
		Pipeline: config.PipelineConfig{MaxCompetitors: 10},
		Pricing:  cost.DefaultRates(),
	}
}

func emptyRegistry() *registry.Registry {
	return &registry.Registry{Verticals: map[string]registry.Vertical{}}
}

// mockStore is an in-memory Store that records what the pipeline wrote.
type mockStore struct {
	mu           sync.Mutex
	runs         map[string]*model.Run
	stageRecords map[string][]model.StageRecord
	ads          map[string][]model.Ad
	labels       map[string][]model.AdLabel
	embeddings   map[string][]model.AdEmbedding
	findings     map[string][]model.VisualFinding
	plans        map[string][]model.BrandSamplingPlan

	createRunErr error
	replaceErr   error
}

func newMockStore() *mockStore {
	return &mockStore{
		runs:         map[string]*model.Run{},
		stageRecords: map[string][]model.StageRecord{},
		ads:          map[string][]model.Ad{},
		labels:       map[string][]model.AdLabel{},
		embeddings:   map[string][]model.AdEmbedding{},
		findings:     map[string][]model.VisualFinding{},
		plans:        map[string][]model.BrandSamplingPlan{},
	}
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) CreateRun(_ context.Context, rc *model.RunContext) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createRunErr != nil {
		return nil, m.createRunErr
	}
	run := &model.Run{ID: rc.RunID, Brand: rc.Brand, Vertical: rc.Vertical, Status: model.RunStatusQueued}
	m.runs[rc.RunID] = run
	// A re-created run starts a fresh record chain.
	m.stageRecords[rc.RunID] = nil
	return run, nil
}

func (m *mockStore) UpdateRunStatus(_ context.Context, runID string, status model.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[runID]; ok {
		run.Status = status
	}
	return nil
}

func (m *mockStore) UpdateRunResult(_ context.Context, runID string, report *model.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[runID]; ok {
		run.Status = report.Status
		run.Result = report
	}
	return nil
}

func (m *mockStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return run, nil
}

func (m *mockStore) ListRuns(_ context.Context, _ store.RunFilter) ([]model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Run
	for _, r := range m.runs {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockStore) SaveStageRecord(_ context.Context, runID string, rec model.StageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stageRecords[runID] = append(m.stageRecords[runID], rec)
	return nil
}

func (m *mockStore) ReplaceAds(_ context.Context, runID string, ads []model.Ad) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return 0, m.replaceErr
	}
	m.ads[runID] = ads
	return int64(len(ads)), nil
}

func (m *mockStore) ReplaceLabels(_ context.Context, runID string, labels []model.AdLabel) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels[runID] = labels
	return int64(len(labels)), nil
}

func (m *mockStore) ReplaceEmbeddings(_ context.Context, runID string, embs []model.AdEmbedding) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[runID] = embs
	return int64(len(embs)), nil
}

func (m *mockStore) ReplaceVisualFindings(_ context.Context, runID string, findings []model.VisualFinding) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findings[runID] = findings
	return int64(len(findings)), nil
}

func (m *mockStore) ReplaceSamplingPlans(_ context.Context, runID string, plans []model.BrandSamplingPlan) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[runID] = plans
	return int64(len(plans)), nil
}

func (m *mockStore) GetAds(_ context.Context, runID string) ([]model.Ad, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ads[runID], nil
}

func (m *mockStore) GetLabels(_ context.Context, runID string) ([]model.AdLabel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.labels[runID], nil
}

func (m *mockStore) CountAdsWithImages(_ context.Context, runID string) ([]model.BrandPopulation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	for _, ad := range m.ads[runID] {
		if ad.ImageURL != "" {
			counts[ad.Brand]++
		}
	}
	var pops []model.BrandPopulation
	for b, n := range counts {
		pops = append(pops, model.BrandPopulation{Brand: b, Population: n})
	}
	return pops, nil
}

func (m *mockStore) CountLabelsForBrand(_ context.Context, runID, brand string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for _, l := range m.labels[runID] {
		if l.Brand == brand {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) Migrate(context.Context) error { return nil }
func (m *mockStore) Close() error                  { return nil }

// mockAdLib serves canned pages and per-page ad sets.
type mockAdLib struct {
	pages     []adlibrary.Page
	adsByPage map[string][]adlibrary.LibraryAd
	searchErr error
	adsErr    map[string]error
}

var _ adlibrary.Client = (*mockAdLib)(nil)

func (m *mockAdLib) SearchPages(_ context.Context, _ string, _ int) ([]adlibrary.Page, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.pages, nil
}

func (m *mockAdLib) GetActiveAds(_ context.Context, pageID string, limit int) ([]adlibrary.LibraryAd, error) {
	if err := m.adsErr[pageID]; err != nil {
		return nil, err
	}
	ads := m.adsByPage[pageID]
	if len(ads) > limit {
		ads = ads[:limit]
	}
	return ads, nil
}

// libAds fabricates n library ads for a page; every third is text-only.
func libAds(pageID string, n int) []adlibrary.LibraryAd {
	ads := make([]adlibrary.LibraryAd, 0, n)
	for i := 0; i < n; i++ {
		ad := adlibrary.LibraryAd{
			ID:       fmt.Sprintf("%s-%d", pageID, i),
			PageID:   pageID,
			Headline: fmt.Sprintf("headline %d", i),
			BodyText: "body",
			IsActive: true,
		}
		if i%3 != 2 {
			ad.ImageURL = fmt.Sprintf("https://cdn/%s/%d.jpg", pageID, i)
		}
		ads = append(ads, ad)
	}
	return ads
}

// mockAI answers by request shape: labeling gets label JSON, vision
// requests get a finding, anything else gets briefing prose.
type mockAI struct {
	mu           sync.Mutex
	calls        int
	labelErr     error
	labelTemp    *float64
	briefPayload string
}

var _ anthropic.Client = (*mockAI)(nil)

func (m *mockAI) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	usage := anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50}
	hasImages := len(req.Messages) > 0 && len(req.Messages[0].ImageURLs) > 0

	switch {
	case hasImages:
		return &anthropic.MessageResponse{
			Content: []anthropic.ContentBlock{{Type: "text", Text: `{"style":"lifestyle","has_faces":true,"has_text":false,"dominant_hues":["blue"],"summary":"a family at home"}`}},
			Usage:   usage,
		}, nil
	case req.System == labelSystemPrompt:
		if m.labelErr != nil {
			return nil, m.labelErr
		}
		m.mu.Lock()
		m.labelTemp = req.Temperature
		m.mu.Unlock()
		return &anthropic.MessageResponse{
			Content: []anthropic.ContentBlock{{Type: "text", Text: "```json\n{\"angle\":\"value\",\"offer\":\"discount\",\"funnel_stage\":\"conversion\",\"persona\":\"homeowners\",\"confidence\":0.88}\n```"}},
			Usage:   usage,
		}, nil
	default:
		if len(req.Messages) > 0 {
			m.mu.Lock()
			m.briefPayload = req.Messages[0].Content
			m.mu.Unlock()
		}
		return &anthropic.MessageResponse{
			Content: []anthropic.ContentBlock{{Type: "text", Text: "Competitors concentrate on value messaging."}},
			Usage:   usage,
		}, nil
	}
}

// mockEmbedder returns fixed-dimension vectors.
type mockEmbedder struct {
	err error
}

var _ openai.Client = (*mockEmbedder)(nil)

func (m *mockEmbedder) Embed(_ context.Context, _ string, inputs []string) (*openai.EmbedResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	vectors := make([][]float64, len(inputs))
	for i := range inputs {
		vectors[i] = []float64{0.1, 0.2, 0.3}
	}
	return &openai.EmbedResponse{Vectors: vectors, PromptTokens: int64(10 * len(inputs))}, nil
}
