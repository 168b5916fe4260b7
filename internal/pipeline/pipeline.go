// Package pipeline orchestrates the nine-stage competitive advertising
// intelligence run: discovery through multi-dimensional intelligence.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adintel-cli/internal/config"
	"github.com/sells-group/adintel-cli/internal/cost"
	"github.com/sells-group/adintel-cli/internal/model"
	"github.com/sells-group/adintel-cli/internal/registry"
	"github.com/sells-group/adintel-cli/internal/store"
	"github.com/sells-group/adintel-cli/pkg/adlibrary"
	"github.com/sells-group/adintel-cli/pkg/anthropic"
	"github.com/sells-group/adintel-cli/pkg/openai"
)

// Stage is one unit of the pipeline. Execute receives the result of the
// stage's primary dependency (nil for the first stage) and returns its own
// typed result. Stages are stateless beyond construction and run strictly
// sequentially: each one only ever observes fully-committed upstream
// output.
type Stage interface {
	Name() string
	// DependsOn lists the stages whose success this stage requires. The
	// first entry is the primary dependency whose result is passed to
	// Execute.
	DependsOn() []string
	Execute(ctx context.Context, prev model.StageResult) (model.StageResult, error)
}

// Pipeline wires the stages to their external collaborators.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	adlib    adlibrary.Client
	ai       anthropic.Client
	embedder openai.Client
	registry *registry.Registry
	costCalc *cost.Calculator
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	adlib adlibrary.Client,
	ai anthropic.Client,
	embedder openai.Client,
	reg *registry.Registry,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		adlib:    adlib,
		ai:       ai,
		embedder: embedder,
		registry: reg,
		costCalc: cost.NewCalculator(cfg.Pricing),
	}
}

// state carries the working set handed from stage to stage within one run.
// Sequential execution means no locking: a stage writes its slice, the
// next stage reads it.
type state struct {
	rc         *model.RunContext
	candidates []model.Brand
	brands     []model.Brand
	adsByBrand map[string][]model.Ad
	ads        []model.Ad
	labels     []model.AdLabel
	findings   []model.VisualFinding
	strategies []model.BrandStrategy
}

// stages returns the run's stage chain in execution order.
func (p *Pipeline) stages(st *state) []Stage {
	return []Stage{
		&discoveryStage{p: p, st: st},
		&curationStage{p: p, st: st},
		&rankingStage{p: p, st: st},
		&ingestionStage{p: p, st: st},
		&labelingStage{p: p, st: st},
		&embeddingsStage{p: p, st: st},
		&visualStage{p: p, st: st},
		&strategyStage{p: p, st: st},
		&intelligenceStage{p: p, st: st},
	}
}

// Run executes the full pipeline for one run context. A stage error marks
// that stage failed and skips its dependents; independent stages still
// run, so already-computed artifacts survive a late failure. The returned
// report always covers every stage that actually executed. In dry-run mode
// nothing durable is written.
func (p *Pipeline) Run(ctx context.Context, rc *model.RunContext) (*model.RunReport, error) {
	log := zap.L().With(
		zap.String("run_id", rc.RunID),
		zap.String("brand", rc.Brand),
		zap.String("vertical", rc.Vertical),
	)
	log.Info("pipeline: starting run", zap.Bool("dry_run", rc.DryRun))

	if !rc.DryRun {
		if _, err := p.store.CreateRun(ctx, rc); err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		if err := p.store.UpdateRunStatus(ctx, rc.RunID, model.RunStatusRunning); err != nil {
			log.Warn("pipeline: failed to update status", zap.Error(err))
		}
	}

	st := &state{rc: rc, adsByBrand: map[string][]model.Ad{}}
	report := p.runStages(ctx, log, rc, p.stages(st))

	if !rc.DryRun {
		if err := p.store.UpdateRunResult(ctx, rc.RunID, report); err != nil {
			log.Warn("pipeline: failed to persist run result", zap.Error(err))
		}
	}

	log.Info("pipeline: run finished",
		zap.String("status", string(report.Status)),
		zap.Int("stages", len(report.Stages)),
		zap.Float64("total_cost", report.TotalCost),
	)
	return report, nil
}

// runStages drives the chain with fail-stop semantics: a stage whose
// dependency failed (or was itself skipped) is never invoked and leaves no
// record.
func (p *Pipeline) runStages(ctx context.Context, log *zap.Logger, rc *model.RunContext, stages []Stage) *model.RunReport {
	report := &model.RunReport{Status: model.RunStatusComplete}
	done := make(map[string]model.StageRecord, len(stages))
	results := make(map[string]model.StageResult, len(stages))

	for _, s := range stages {
		deps := s.DependsOn()
		if blocked, why := blockedBy(deps, done); blocked {
			log.Warn("pipeline: skipping stage",
				zap.String("stage", s.Name()),
				zap.String("reason", why),
			)
			continue
		}

		var prev model.StageResult
		if len(deps) > 0 {
			prev = results[deps[0]]
		}

		start := time.Now()
		res, err := executeStage(ctx, s, prev)
		duration := time.Since(start).Milliseconds()

		rec := model.StageRecord{
			Name:       s.Name(),
			Status:     model.StageStatusSuccess,
			DurationMS: duration,
		}
		if res != nil {
			rec.Result = res
			results[s.Name()] = res
		}
		if err != nil {
			rec.Status = model.StageStatusFailed
			rec.Error = err.Error()
			report.Status = model.RunStatusFailed
			if report.Error == "" {
				report.Error = fmt.Sprintf("%s: %s", s.Name(), err.Error())
			}
			log.Error("pipeline: stage failed",
				zap.String("stage", s.Name()),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
		} else {
			log.Info("pipeline: stage complete",
				zap.String("stage", s.Name()),
				zap.Int64("duration_ms", duration),
			)
		}

		if !rc.DryRun {
			if saveErr := p.store.SaveStageRecord(ctx, rc.RunID, rec); saveErr != nil {
				log.Warn("pipeline: failed to save stage record",
					zap.String("stage", s.Name()),
					zap.Error(saveErr),
				)
			}
		}

		done[s.Name()] = rec
		report.Stages = append(report.Stages, rec)
		rollup(report, res)
	}

	return report
}

// executeStage recovers panics at the stage boundary so one bad stage
// degrades the run instead of killing the process.
func executeStage(ctx context.Context, s Stage, prev model.StageResult) (res model.StageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = eris.Errorf("pipeline: stage %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Execute(ctx, prev)
}

// blockedBy reports whether any dependency is missing or failed.
func blockedBy(deps []string, done map[string]model.StageRecord) (bool, string) {
	var reasons []string
	for _, d := range deps {
		rec, ok := done[d]
		switch {
		case !ok:
			reasons = append(reasons, d+" did not run")
		case rec.Status != model.StageStatusSuccess:
			reasons = append(reasons, d+" failed")
		}
	}
	if len(reasons) == 0 {
		return false, ""
	}
	return true, strings.Join(reasons, "; ")
}

// rollup folds a stage's typed result into the report's summary metrics.
func rollup(report *model.RunReport, res model.StageResult) {
	switch r := res.(type) {
	case model.RankingResult:
		report.Competitors = len(r.Brands)
	case model.IngestionResult:
		report.AdsIngested = r.TotalAds
	case model.LabelingResult:
		report.AdsLabeled = r.LabeledAds
		report.TotalCost += r.CostEstimate
	case model.EmbeddingsResult:
		report.Embeddings = r.EmbeddingCount
		report.TotalCost += r.CostEstimate
	case model.VisualResult:
		report.ImagesSampled = r.ImagesAnalyzed
		report.SamplingPlans = r.Plans
		report.TotalCost += r.CostEstimate
	case model.IntelligenceResult:
		report.Report = r.Report
	}
}
