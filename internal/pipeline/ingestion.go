package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/adintel-cli/internal/model"
	"github.com/sells-group/adintel-cli/pkg/adlibrary"
)

const adsTableID = "ads"

// ingestionStage persists the ads fetched during ranking. The write is
// keyed by run id and overwrites any previous rows for the run, so
// retrying a run never accumulates duplicates.
type ingestionStage struct {
	p  *Pipeline
	st *state
}

func (s *ingestionStage) Name() string        { return model.StageIngestion }
func (s *ingestionStage) DependsOn() []string { return []string{model.StageRanking} }

func (s *ingestionStage) Execute(ctx context.Context, _ model.StageResult) (model.StageResult, error) {
	result := model.IngestionResult{
		AdsByBrand: make(map[string]int, len(s.st.brands)),
		TableID:    adsTableID,
	}

	var ads []model.Ad
	for _, b := range s.st.brands {
		brandAds := s.st.adsByBrand[b.Name]
		result.AdsByBrand[b.Name] = len(brandAds)
		result.TotalAds += len(brandAds)
		ads = append(ads, brandAds...)
	}
	s.st.ads = ads

	if !s.st.rc.DryRun {
		n, err := s.p.store.ReplaceAds(ctx, s.st.rc.RunID, ads)
		if err != nil {
			return nil, err
		}
		zap.L().Info("ingestion: ads written",
			zap.Int64("rows", n),
			zap.Int("brands", len(s.st.brands)),
		)
	}

	return result, nil
}

// libraryAdsToModel converts ad-library rows into the domain ad type,
// tagging each with the resolved brand display name.
func libraryAdsToModel(brand, pageID string, in []adlibrary.LibraryAd) []model.Ad {
	ads := make([]model.Ad, 0, len(in))
	for _, la := range in {
		ad := model.Ad{
			ID:         la.ID,
			Brand:      brand,
			PageID:     pageID,
			Headline:   la.Headline,
			BodyText:   la.BodyText,
			CTAText:    la.CTAText,
			ImageURL:   la.ImageURL,
			LandingURL: la.LandingURL,
			Platforms:  la.Platforms,
			Active:     la.IsActive,
		}
		if la.PageID != "" {
			ad.PageID = la.PageID
		}
		ad.StartedAt = parseAdTime(la.StartedAt)
		ads = append(ads, ad)
	}
	return ads
}

// parseAdTime handles the two timestamp shapes the library returns; a
// malformed value degrades to the zero time rather than dropping the ad.
func parseAdTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
