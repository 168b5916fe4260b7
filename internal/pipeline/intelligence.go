package pipeline

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adintel-cli/internal/model"
	"github.com/sells-group/adintel-cli/pkg/anthropic"
)

const intelligenceSystemPrompt = `You are a competitive advertising strategist. Given per-brand strategy profiles, a positioning matrix, and (when present) sampled visual style counts, write a concise competitive intelligence briefing: where each brand concentrates its messaging, where the whitespace is, and what the subject brand should consider. Plain prose, no markdown headings.`

// intelligenceStage performs the cross-brand rollup: a positioning matrix
// of message dimensions against brands, plus a written briefing from the
// strategist model. Only strategic analysis is a hard requirement; visual
// findings enrich the briefing when that stage ran.
type intelligenceStage struct {
	p  *Pipeline
	st *state
}

func (s *intelligenceStage) Name() string        { return model.StageIntelligence }
func (s *intelligenceStage) DependsOn() []string { return []string{model.StageStrategy} }

func (s *intelligenceStage) Execute(ctx context.Context, prev model.StageResult) (model.StageResult, error) {
	strategyRes, ok := prev.(model.StrategyResult)
	if !ok {
		return nil, eris.Errorf("intelligence: unexpected upstream result %T", prev)
	}

	result := model.IntelligenceResult{
		PositioningMatrix: buildMatrix(strategyRes.Profiles),
	}
	for _, p := range strategyRes.Profiles {
		result.Brands = append(result.Brands, p.Brand)
	}

	if s.st.rc.DryRun {
		result.Report = "Simulated briefing: dry run performed no strategist call."
		return result, nil
	}

	briefing, err := s.writeBriefing(ctx, strategyRes.Profiles, result.PositioningMatrix, styleMixByBrand(s.st.findings))
	if err != nil {
		return nil, err
	}
	result.Report = briefing

	zap.L().Info("intelligence: briefing written",
		zap.Int("brands", len(result.Brands)),
		zap.Int("dimensions", len(result.PositioningMatrix)),
	)
	return result, nil
}

// buildMatrix pivots the strategy profiles into message dimension -> brand
// -> share of that brand's ads. Dimensions are namespaced by attribute so
// an angle and an offer with the same word stay distinct.
func buildMatrix(profiles []model.BrandStrategy) map[string]map[string]float64 {
	matrix := make(map[string]map[string]float64)
	add := func(kind, key, brand string, share float64) {
		dim := kind + ":" + key
		if matrix[dim] == nil {
			matrix[dim] = make(map[string]float64)
		}
		matrix[dim][brand] = share
	}
	for _, p := range profiles {
		for k, v := range p.AngleMix {
			add("angle", k, p.Brand, v)
		}
		for k, v := range p.OfferMix {
			add("offer", k, p.Brand, v)
		}
		for k, v := range p.FunnelMix {
			add("funnel", k, p.Brand, v)
		}
	}
	return matrix
}

// styleMixByBrand counts the sampled visual styles per brand. Empty when
// the visual stage did not run or analyzed nothing.
func styleMixByBrand(findings []model.VisualFinding) map[string]map[string]int {
	if len(findings) == 0 {
		return nil
	}
	mix := make(map[string]map[string]int)
	for _, f := range findings {
		if mix[f.Brand] == nil {
			mix[f.Brand] = make(map[string]int)
		}
		mix[f.Brand][f.Style]++
	}
	return mix
}

func (s *intelligenceStage) writeBriefing(ctx context.Context, profiles []model.BrandStrategy, matrix map[string]map[string]float64, visualMix map[string]map[string]int) (string, error) {
	payload, err := json.Marshal(struct {
		Subject   string                        `json:"subject_brand"`
		Vertical  string                        `json:"vertical"`
		Profiles  []model.BrandStrategy         `json:"profiles"`
		Matrix    map[string]map[string]float64 `json:"positioning_matrix"`
		VisualMix map[string]map[string]int     `json:"visual_styles,omitempty"`
	}{
		Subject:   s.st.rc.Brand,
		Vertical:  s.st.rc.Vertical,
		Profiles:  profiles,
		Matrix:    matrix,
		VisualMix: visualMix,
	})
	if err != nil {
		return "", err
	}

	resp, err := s.p.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.p.cfg.Anthropic.SonnetModel,
		MaxTokens: s.p.cfg.Anthropic.MaxTokens,
		System:    intelligenceSystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: string(payload)},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
