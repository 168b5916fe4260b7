package store

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/sells-group/adintel-cli/internal/model"
)

func newID() string { return uuid.NewString() }

func itoa(n int) string { return strconv.Itoa(n) }

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Brand  string          `json:"brand,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the warehouse interface for the intelligence pipeline.
// Every stage-output write replaces the rows for its run id, so re-running
// a stage with the same run id overwrites rather than appends.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, rc *model.RunContext) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, report *model.RunReport) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Stage records
	SaveStageRecord(ctx context.Context, runID string, rec model.StageRecord) error

	// Stage outputs, overwritten per run id
	ReplaceAds(ctx context.Context, runID string, ads []model.Ad) (int64, error)
	ReplaceLabels(ctx context.Context, runID string, labels []model.AdLabel) (int64, error)
	ReplaceEmbeddings(ctx context.Context, runID string, embs []model.AdEmbedding) (int64, error)
	ReplaceVisualFindings(ctx context.Context, runID string, findings []model.VisualFinding) (int64, error)
	ReplaceSamplingPlans(ctx context.Context, runID string, plans []model.BrandSamplingPlan) (int64, error)

	// Reads consumed by downstream stages
	GetAds(ctx context.Context, runID string) ([]model.Ad, error)
	GetLabels(ctx context.Context, runID string) ([]model.AdLabel, error)
	CountAdsWithImages(ctx context.Context, runID string) ([]model.BrandPopulation, error)
	CountLabelsForBrand(ctx context.Context, runID, brand string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
