package model

// Stage names, in execution order.
const (
	StageDiscovery    = "discovery"
	StageCuration     = "curation"
	StageRanking      = "ranking"
	StageIngestion    = "ingestion"
	StageLabeling     = "strategic_labeling"
	StageEmbeddings   = "embeddings"
	StageVisual       = "visual_intelligence"
	StageStrategy     = "strategic_analysis"
	StageIntelligence = "multi_dimensional_intelligence"
)

// DiscoveryResult lists the candidate competitor brands found for the
// subject's vertical.
type DiscoveryResult struct {
	Candidates     []Brand `json:"candidates"`
	FromRegistry   int     `json:"from_registry"`
	FromSearch     int     `json:"from_search"`
	UnresolvedPage int     `json:"unresolved_page"`
}

func (DiscoveryResult) StageName() string { return StageDiscovery }

// CurationResult holds the deduplicated, filtered candidate set.
type CurationResult struct {
	Brands  []Brand `json:"brands"`
	Dropped int     `json:"dropped"`
}

func (CurationResult) StageName() string { return StageCuration }

// RankingResult orders curated brands by active-ad volume.
type RankingResult struct {
	Brands []Brand `json:"brands"`
}

func (RankingResult) StageName() string { return StageRanking }

// IngestionResult reports the ads pulled from the ad library per brand.
type IngestionResult struct {
	AdsByBrand map[string]int `json:"ads_by_brand"`
	TotalAds   int            `json:"total_ads"`
	TableID    string         `json:"table_id"`
}

func (IngestionResult) StageName() string { return StageIngestion }

// LabelingResult reports the strategic classification pass.
type LabelingResult struct {
	LabeledAds   int     `json:"labeled_ads"`
	SkippedAds   int     `json:"skipped_ads"`
	TableID      string  `json:"table_id"`
	CostEstimate float64 `json:"cost_estimate"`
}

func (LabelingResult) StageName() string { return StageLabeling }

// EmbeddingsResult reports the embedding pass.
type EmbeddingsResult struct {
	EmbeddingCount int     `json:"embedding_count"`
	Dimensions     int     `json:"dimensions"`
	TableID        string  `json:"table_id"`
	CostEstimate   float64 `json:"cost_estimate"`
}

func (EmbeddingsResult) StageName() string { return StageEmbeddings }

// VisualResult reports the budget-constrained image analysis pass,
// including the realized sampling plan.
type VisualResult struct {
	Plans          []BrandSamplingPlan `json:"plans"`
	ImagesAnalyzed int                 `json:"images_analyzed"`
	BudgetSlack    int                 `json:"budget_slack"` // realized total minus budget, when the floor pushed it over
	TableID        string              `json:"table_id"`
	CostEstimate   float64             `json:"cost_estimate"`
}

func (VisualResult) StageName() string { return StageVisual }

// StrategyResult holds the per-brand strategy profiles.
type StrategyResult struct {
	Profiles []BrandStrategy `json:"profiles"`
}

func (StrategyResult) StageName() string { return StageStrategy }

// IntelligenceResult is the cross-brand rollup consumed by the report.
type IntelligenceResult struct {
	// PositioningMatrix maps message dimension -> brand -> share of that
	// brand's ads carrying the dimension.
	PositioningMatrix map[string]map[string]float64 `json:"positioning_matrix"`
	Brands            []string                      `json:"brands"`
	Report            string                        `json:"report"`
}

func (IntelligenceResult) StageName() string { return StageIntelligence }
