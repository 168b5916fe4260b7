package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// RunStatus represents the current state of an intelligence run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// StageStatus represents the outcome of a single stage execution.
type StageStatus string

const (
	StageStatusRunning StageStatus = "running"
	StageStatusSuccess StageStatus = "success"
	StageStatusFailed  StageStatus = "failed"
)

// RunContext carries the immutable configuration for one pipeline run.
// It is constructed once at the CLI boundary and read by every stage;
// core packages never reach into the environment themselves.
type RunContext struct {
	Brand    string `json:"brand"`
	Vertical string `json:"vertical"`
	RunID    string `json:"run_id"`
	DryRun   bool   `json:"dry_run"`
	Verbose  bool   `json:"verbose"`
}

// NewRunContext validates required fields and assigns a run id when the
// caller did not supply one.
func NewRunContext(brand, vertical, runID string, dryRun, verbose bool) (*RunContext, error) {
	brand = strings.TrimSpace(brand)
	vertical = strings.TrimSpace(vertical)
	if brand == "" {
		return nil, eris.New("model: run context requires a brand")
	}
	if vertical == "" {
		return nil, eris.New("model: run context requires a vertical")
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	return &RunContext{
		Brand:    brand,
		Vertical: vertical,
		RunID:    runID,
		DryRun:   dryRun,
		Verbose:  verbose,
	}, nil
}

// StageResult is implemented by every stage's typed output. Each stage has
// a fixed result schema so a missing field is a compile error, not a
// runtime default.
type StageResult interface {
	StageName() string
}

// StageRecord captures one executed stage: its status, timing, and result.
// Result holds the stage's typed StageResult at write time; after a JSON
// round-trip through the store it decodes generically. Stages whose
// dependency failed are never invoked and produce no record.
type StageRecord struct {
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	DurationMS int64       `json:"duration_ms"`
	Result     any         `json:"result,omitempty"`
}

// Run represents a single pipeline invocation.
type Run struct {
	ID        string     `json:"id"`
	Brand     string     `json:"brand"`
	Vertical  string     `json:"vertical"`
	Status    RunStatus  `json:"status"`
	Result    *RunReport `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunReport holds the final outcome of a run: the per-stage records plus
// rollup metrics for the dashboard.
type RunReport struct {
	Status        RunStatus           `json:"status"`
	Stages        []StageRecord       `json:"stages"`
	Competitors   int                 `json:"competitors"`
	AdsIngested   int                 `json:"ads_ingested"`
	AdsLabeled    int                 `json:"ads_labeled"`
	Embeddings    int                 `json:"embeddings"`
	ImagesSampled int                 `json:"images_sampled"`
	SamplingPlans []BrandSamplingPlan `json:"sampling_plans,omitempty"`
	TotalCost     float64             `json:"total_cost"`
	Report        string              `json:"report,omitempty"`
	Error         string              `json:"error,omitempty"`
}

// Succeeded reports whether every recorded stage completed successfully.
func (r *RunReport) Succeeded() bool {
	for _, s := range r.Stages {
		if s.Status != StageStatusSuccess {
			return false
		}
	}
	return len(r.Stages) > 0
}
