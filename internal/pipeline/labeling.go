package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/adintel-cli/internal/model"
	"github.com/sells-group/adintel-cli/pkg/anthropic"
)

const labelsTableID = "ad_labels"

const labelSystemPrompt = `You analyze competitor advertising creatives. Classify the ad's strategic attributes. Respond with only a valid JSON object:
{"angle": "<social_proof|urgency|value|authority|emotion|curiosity|other>", "offer": "<discount|free_trial|bundle|financing|none|other>", "funnel_stage": "<awareness|consideration|conversion>", "persona": "<short description of the target persona>", "confidence": <0.0-1.0>}`

const labelUserPrompt = `Brand: %s

Ad creative:
%s`

// labelAnswer is the JSON shape the classifier returns.
type labelAnswer struct {
	Angle       string  `json:"angle"`
	Offer       string  `json:"offer"`
	FunnelStage string  `json:"funnel_stage"`
	Persona     string  `json:"persona"`
	Confidence  float64 `json:"confidence"`
}

// labelingStage classifies every ingested ad's strategic attributes with
// the fast model. Ads with no creative text, and answers the model mangles
// past parseability, are skipped rather than failing the stage.
type labelingStage struct {
	p  *Pipeline
	st *state
}

func (s *labelingStage) Name() string        { return model.StageLabeling }
func (s *labelingStage) DependsOn() []string { return []string{model.StageIngestion} }

func (s *labelingStage) Execute(ctx context.Context, _ model.StageResult) (model.StageResult, error) {
	if s.st.rc.DryRun {
		return s.dryRun(), nil
	}

	log := zap.L().With(zap.String("stage", s.Name()))
	result := model.LabelingResult{TableID: labelsTableID}
	labels := make([]model.AdLabel, 0, len(s.st.ads))
	var usage anthropic.TokenUsage

	for _, ad := range s.st.ads {
		text := ad.CreativeText()
		if strings.TrimSpace(text) == "" {
			result.SkippedAds++
			continue
		}

		// Classification wants reproducible answers, not creative ones.
		temperature := 0.0
		resp, err := s.p.ai.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       s.p.cfg.Anthropic.HaikuModel,
			MaxTokens:   s.p.cfg.Anthropic.MaxTokens,
			System:      labelSystemPrompt,
			Temperature: &temperature,
			Messages: []anthropic.Message{
				{Role: "user", Content: fmt.Sprintf(labelUserPrompt, ad.Brand, text)},
			},
		})
		if err != nil {
			return nil, err
		}
		usage.Add(resp.Usage)

		var ans labelAnswer
		if err := decodeModelJSON(resp.Text(), &ans); err != nil {
			log.Warn("labeling: unparseable answer",
				zap.String("ad_id", ad.ID),
				zap.Error(err),
			)
			result.SkippedAds++
			continue
		}

		labels = append(labels, model.AdLabel{
			AdID:        ad.ID,
			Brand:       ad.Brand,
			Angle:       ans.Angle,
			Offer:       ans.Offer,
			FunnelStage: ans.FunnelStage,
			Persona:     ans.Persona,
			Confidence:  ans.Confidence,
		})
	}

	if _, err := s.p.store.ReplaceLabels(ctx, s.st.rc.RunID, labels); err != nil {
		return nil, err
	}

	result.LabeledAds = len(labels)
	result.CostEstimate = s.p.costCalc.Claude(s.p.cfg.Anthropic.HaikuModel, int(usage.InputTokens), int(usage.OutputTokens))
	s.st.labels = labels
	usage.LogUsage(s.p.cfg.Anthropic.HaikuModel, s.Name())

	log.Info("labeling: ads classified",
		zap.Int("labeled", result.LabeledAds),
		zap.Int("skipped", result.SkippedAds),
		zap.Float64("cost", result.CostEstimate),
	)
	return result, nil
}

// dryRun fabricates labels by cycling the classification vocabulary so
// strategy aggregation still has distributions to work with.
func (s *labelingStage) dryRun() model.LabelingResult {
	angles := []string{"social_proof", "urgency", "value"}
	offers := []string{"discount", "none", "free_trial"}
	funnels := []string{"awareness", "consideration", "conversion"}

	labels := make([]model.AdLabel, 0, len(s.st.ads))
	for i, ad := range s.st.ads {
		labels = append(labels, model.AdLabel{
			AdID:        ad.ID,
			Brand:       ad.Brand,
			Angle:       angles[i%len(angles)],
			Offer:       offers[i%len(offers)],
			FunnelStage: funnels[i%len(funnels)],
			Persona:     "simulated persona",
			Confidence:  0.9,
		})
	}
	s.st.labels = labels
	return model.LabelingResult{LabeledAds: len(labels), TableID: labelsTableID}
}
