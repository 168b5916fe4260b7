package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/adintel-cli/internal/model"
	"github.com/sells-group/adintel-cli/pkg/adlibrary"
)

// discoveryStage seeds the competitor candidate list for the vertical:
// curated registry entries first, then advertiser page search. Candidates
// without a resolvable page id are kept here and dropped by curation so
// the discovery result reports how many were unresolvable.
type discoveryStage struct {
	p  *Pipeline
	st *state
}

func (s *discoveryStage) Name() string        { return model.StageDiscovery }
func (s *discoveryStage) DependsOn() []string { return nil }

func (s *discoveryStage) Execute(ctx context.Context, _ model.StageResult) (model.StageResult, error) {
	if s.st.rc.DryRun {
		return s.dryRun(), nil
	}

	log := zap.L().With(zap.String("stage", s.Name()))
	result := model.DiscoveryResult{}

	// Registry seeds. Entries without a pinned page id are resolved
	// against page search; unresolvable seeds stay in the candidate list
	// with an empty page id.
	seeds := s.p.registry.SeedBrands(s.st.rc.Vertical)
	for _, seed := range seeds {
		if seed.PageID == "" {
			pageID, err := adlibrary.ResolvePageID(ctx, s.p.adlib, seed.Name, s.p.cfg.AdLibrary.SearchPageLimit)
			if err != nil {
				log.Warn("discovery: could not resolve seed page",
					zap.String("brand", seed.Name),
					zap.Error(err),
				)
				result.UnresolvedPage++
			} else {
				seed.PageID = pageID
			}
		}
		result.Candidates = append(result.Candidates, seed)
		result.FromRegistry++
	}

	// Page search on the vertical keyword surfaces advertisers the
	// registry does not know about.
	pages, err := s.p.adlib.SearchPages(ctx, s.st.rc.Vertical, s.p.cfg.AdLibrary.SearchPageLimit)
	if err != nil {
		// Search is supplemental: with registry seeds in hand a search
		// outage degrades discovery instead of failing it.
		if len(result.Candidates) == 0 {
			return nil, err
		}
		log.Warn("discovery: page search failed, using registry seeds only", zap.Error(err))
	}
	for _, page := range pages {
		result.Candidates = append(result.Candidates, model.Brand{
			Name:   page.Name,
			PageID: page.ID,
			Source: "search",
		})
		result.FromSearch++
	}

	log.Info("discovery: candidates found",
		zap.Int("from_registry", result.FromRegistry),
		zap.Int("from_search", result.FromSearch),
		zap.Int("unresolved", result.UnresolvedPage),
	)

	s.st.candidates = result.Candidates
	return result, nil
}

// dryRun fabricates a small candidate set so downstream stages have
// something deterministic to chew on without touching the ad library.
func (s *discoveryStage) dryRun() model.DiscoveryResult {
	candidates := []model.Brand{
		{Name: s.st.rc.Brand, PageID: "dry-0", Source: "registry"},
		{Name: "Rival One", PageID: "dry-1", Source: "registry"},
		{Name: "Rival Two", PageID: "dry-2", Source: "search"},
		{Name: "Rival Three", PageID: "dry-3", Source: "search"},
	}
	s.st.candidates = candidates
	return model.DiscoveryResult{
		Candidates:   candidates,
		FromRegistry: 2,
		FromSearch:   2,
	}
}
