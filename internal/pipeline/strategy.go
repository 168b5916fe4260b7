package pipeline

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/adintel-cli/internal/model"
)

// strategyStage folds the per-ad labels into one strategy profile per
// brand: the mix of angles, offers, and funnel stages, and the dominant
// entries of each. Pure aggregation, no external calls.
type strategyStage struct {
	p  *Pipeline
	st *state
}

func (s *strategyStage) Name() string        { return model.StageStrategy }
func (s *strategyStage) DependsOn() []string { return []string{model.StageLabeling} }

func (s *strategyStage) Execute(_ context.Context, _ model.StageResult) (model.StageResult, error) {
	byBrand := make(map[string][]model.AdLabel)
	for _, l := range s.st.labels {
		byBrand[l.Brand] = append(byBrand[l.Brand], l)
	}

	brands := make([]string, 0, len(byBrand))
	for b := range byBrand {
		brands = append(brands, b)
	}
	sort.Strings(brands)

	profiles := make([]model.BrandStrategy, 0, len(brands))
	for _, brand := range brands {
		profiles = append(profiles, buildProfile(brand, byBrand[brand]))
	}

	zap.L().Info("strategy: profiles built", zap.Int("brands", len(profiles)))

	s.st.strategies = profiles
	return model.StrategyResult{Profiles: profiles}, nil
}

func buildProfile(brand string, labels []model.AdLabel) model.BrandStrategy {
	angleCounts := map[string]int{}
	offerCounts := map[string]int{}
	funnelCounts := map[string]int{}
	for _, l := range labels {
		angleCounts[l.Angle]++
		offerCounts[l.Offer]++
		funnelCounts[l.FunnelStage]++
	}

	return model.BrandStrategy{
		Brand:         brand,
		AdCount:       len(labels),
		AngleMix:      toShares(angleCounts, len(labels)),
		OfferMix:      toShares(offerCounts, len(labels)),
		FunnelMix:     toShares(funnelCounts, len(labels)),
		DominantAngle: dominantKey(angleCounts),
		DominantOffer: dominantKey(offerCounts),
	}
}

// toShares converts counts into fractions of the total.
func toShares(counts map[string]int, total int) map[string]float64 {
	shares := make(map[string]float64, len(counts))
	for k, n := range counts {
		shares[k] = float64(n) / float64(total)
	}
	return shares
}

// dominantKey picks the most frequent key, breaking ties alphabetically so
// the profile is deterministic.
func dominantKey(counts map[string]int) string {
	var best string
	bestN := -1
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}
