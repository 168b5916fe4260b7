package pipeline

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/adintel-cli/internal/model"
	"github.com/sells-group/adintel-cli/internal/sampling"
	"github.com/sells-group/adintel-cli/pkg/anthropic"
)

const findingsTableID = "visual_findings"

// visionOutputTokens approximates the answer size of one image analysis
// for cost estimation.
const visionOutputTokens = 200

const visualSystemPrompt = `You analyze advertising creative images. Describe the visual execution. Respond with only a valid JSON object:
{"style": "<lifestyle|product_shot|ugc|illustration|text_heavy|other>", "has_faces": <bool>, "has_text": <bool>, "dominant_hues": ["<color>", ...], "summary": "<one sentence>"}`

// visualAnswer is the JSON shape the vision model returns.
type visualAnswer struct {
	Style        string   `json:"style"`
	HasFaces     bool     `json:"has_faces"`
	HasText      bool     `json:"has_text"`
	DominantHues []string `json:"dominant_hues"`
	Summary      string   `json:"summary"`
}

// visualStage is the budget-constrained stage: it counts each brand's
// image creatives, runs the adaptive sampling allocator against the global
// image budget, and analyzes only the sampled creatives with the vision
// model. The realized plan is persisted so a report can show coverage per
// brand.
type visualStage struct {
	p  *Pipeline
	st *state
}

func (s *visualStage) Name() string        { return model.StageVisual }
func (s *visualStage) DependsOn() []string { return []string{model.StageIngestion} }

func (s *visualStage) Execute(ctx context.Context, _ model.StageResult) (model.StageResult, error) {
	log := zap.L().With(zap.String("stage", s.Name()))

	eligible := s.eligibleByBrand()
	populations := make([]model.BrandPopulation, 0, len(eligible))
	for _, brand := range sortedBrands(eligible) {
		populations = append(populations, model.BrandPopulation{
			Brand:      brand,
			Population: len(eligible[brand]),
		})
	}

	plans, err := sampling.Allocate(populations, s.p.cfg.Sampling)
	if err != nil {
		return nil, err
	}

	result := model.VisualResult{
		Plans:       plans,
		BudgetSlack: sampling.Slack(plans, s.p.cfg.Sampling),
		TableID:     findingsTableID,
	}

	if s.st.rc.DryRun {
		for _, plan := range plans {
			result.ImagesAnalyzed += plan.FinalSampleSize
		}
		return result, nil
	}

	if _, err := s.p.store.ReplaceSamplingPlans(ctx, s.st.rc.RunID, plans); err != nil {
		return nil, err
	}

	var findings []model.VisualFinding
	for _, plan := range plans {
		pool := eligible[plan.Brand]
		for _, ad := range pool[:min(plan.FinalSampleSize, len(pool))] {
			finding, err := s.analyzeImage(ctx, ad)
			if err != nil {
				log.Warn("visual: image analysis failed",
					zap.String("ad_id", ad.ID),
					zap.Error(err),
				)
				continue
			}
			findings = append(findings, finding)
		}
	}

	if _, err := s.p.store.ReplaceVisualFindings(ctx, s.st.rc.RunID, findings); err != nil {
		return nil, err
	}
	s.st.findings = findings

	result.ImagesAnalyzed = len(findings)
	result.CostEstimate = s.p.costCalc.VisionImages(s.p.cfg.Anthropic.SonnetModel, len(findings), visionOutputTokens)

	log.Info("visual: sampled creatives analyzed",
		zap.Int("images", result.ImagesAnalyzed),
		zap.Int("budget_slack", result.BudgetSlack),
		zap.Float64("cost", result.CostEstimate),
	)
	return result, nil
}

// eligibleByBrand groups the run's image-bearing ads per brand.
func (s *visualStage) eligibleByBrand() map[string][]model.Ad {
	out := make(map[string][]model.Ad)
	for _, ad := range s.st.ads {
		if ad.ImageURL != "" {
			out[ad.Brand] = append(out[ad.Brand], ad)
		}
	}
	return out
}

func sortedBrands(m map[string][]model.Ad) []string {
	brands := make([]string, 0, len(m))
	for b := range m {
		brands = append(brands, b)
	}
	sort.Strings(brands)
	return brands
}

func (s *visualStage) analyzeImage(ctx context.Context, ad model.Ad) (model.VisualFinding, error) {
	resp, err := s.p.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.p.cfg.Anthropic.SonnetModel,
		MaxTokens: s.p.cfg.Anthropic.MaxTokens,
		System:    visualSystemPrompt,
		Messages: []anthropic.Message{
			{
				Role:      "user",
				Content:   fmt.Sprintf("Brand: %s\nHeadline: %s", ad.Brand, ad.Headline),
				ImageURLs: []string{ad.ImageURL},
			},
		},
	})
	if err != nil {
		return model.VisualFinding{}, err
	}

	var ans visualAnswer
	if err := decodeModelJSON(resp.Text(), &ans); err != nil {
		return model.VisualFinding{}, err
	}

	return model.VisualFinding{
		AdID:         ad.ID,
		Brand:        ad.Brand,
		Style:        ans.Style,
		HasFaces:     ans.HasFaces,
		HasText:      ans.HasText,
		DominantHues: ans.DominantHues,
		Summary:      ans.Summary,
	}, nil
}
