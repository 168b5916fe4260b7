package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adintel-cli/internal/model"
)

// rankingStage orders the curated brands by active-ad volume and caps the
// field to max_competitors. The fetched ads are cached on the run state so
// ingestion persists them without a second pass over the ad library.
type rankingStage struct {
	p  *Pipeline
	st *state
}

func (s *rankingStage) Name() string        { return model.StageRanking }
func (s *rankingStage) DependsOn() []string { return []string{model.StageCuration} }

func (s *rankingStage) Execute(ctx context.Context, _ model.StageResult) (model.StageResult, error) {
	if s.st.rc.DryRun {
		return s.dryRun(), nil
	}

	log := zap.L().With(zap.String("stage", s.Name()))
	brands := make([]model.Brand, 0, len(s.st.brands))

	for _, b := range s.st.brands {
		ads, err := s.p.adlib.GetActiveAds(ctx, b.PageID, s.p.cfg.AdLibrary.MaxAdsPerBrand)
		if err != nil {
			// One unreachable page should not sink the field; the brand
			// ranks last with zero volume.
			log.Warn("ranking: could not fetch ads",
				zap.String("brand", b.Name),
				zap.Error(err),
			)
			continue
		}
		b.ActiveAds = len(ads)
		s.st.adsByBrand[b.Name] = libraryAdsToModel(b.Name, b.PageID, ads)
		brands = append(brands, b)
	}

	if len(brands) == 0 {
		return nil, eris.New("ranking: no brand had fetchable ads")
	}

	sort.SliceStable(brands, func(i, j int) bool {
		return brands[i].ActiveAds > brands[j].ActiveAds
	})
	if max := s.p.cfg.Pipeline.MaxCompetitors; max > 0 && len(brands) > max {
		for _, cut := range brands[max:] {
			delete(s.st.adsByBrand, cut.Name)
		}
		brands = brands[:max]
	}
	for i := range brands {
		brands[i].Rank = i + 1
	}

	log.Info("ranking: field set",
		zap.Int("competitors", len(brands)),
		zap.String("leader", brands[0].Name),
	)

	s.st.brands = brands
	return model.RankingResult{Brands: brands}, nil
}

// dryRun assigns synthetic ad volumes so the downstream stages and the
// sampling allocator still produce a meaningful plan preview.
func (s *rankingStage) dryRun() model.StageResult {
	volumes := []int{30, 12, 8, 4}
	brands := make([]model.Brand, 0, len(s.st.brands))
	for i, b := range s.st.brands {
		b.ActiveAds = volumes[i%len(volumes)]
		b.Rank = i + 1
		s.st.adsByBrand[b.Name] = syntheticAds(b.Name, b.PageID, b.ActiveAds)
		brands = append(brands, b)
	}
	s.st.brands = brands
	return model.RankingResult{Brands: brands}
}

// syntheticAds fabricates a deterministic ad set for dry runs. Every third
// ad is text-only so the visual stage's eligible population differs from
// the raw count.
func syntheticAds(brand, pageID string, n int) []model.Ad {
	ads := make([]model.Ad, 0, n)
	for i := 0; i < n; i++ {
		ad := model.Ad{
			ID:       fmt.Sprintf("%s-ad-%d", pageID, i),
			Brand:    brand,
			PageID:   pageID,
			Headline: fmt.Sprintf("%s offer %d", brand, i),
			BodyText: "Simulated creative body.",
			Active:   true,
		}
		if i%3 != 2 {
			ad.ImageURL = fmt.Sprintf("https://cdn.example.com/%s/%d.jpg", pageID, i)
		}
		ads = append(ads, ad)
	}
	return ads
}
