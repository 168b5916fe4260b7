package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/adintel-cli/internal/model"
	"github.com/sells-group/adintel-cli/pkg/adlibrary"
)

// curationStage dedupes and filters the discovery candidates: the subject
// brand itself is removed, duplicate names collapse to one entry, and
// candidates without a page id are dropped since no ads can be fetched for
// them.
type curationStage struct {
	p  *Pipeline
	st *state
}

func (s *curationStage) Name() string        { return model.StageCuration }
func (s *curationStage) DependsOn() []string { return []string{model.StageDiscovery} }

func (s *curationStage) Execute(_ context.Context, _ model.StageResult) (model.StageResult, error) {
	subject := adlibrary.NormalizeBrandName(s.st.rc.Brand)
	seen := make(map[string]bool, len(s.st.candidates))
	result := model.CurationResult{}

	for _, c := range s.st.candidates {
		key := adlibrary.NormalizeBrandName(c.Name)
		switch {
		case key == "" || key == subject:
			result.Dropped++
		case c.PageID == "":
			result.Dropped++
		case seen[key]:
			// Registry seeds precede search hits, so the curated entry
			// keeps the more trusted source.
			result.Dropped++
		default:
			seen[key] = true
			c.Name = adlibrary.DisplayBrandName(c.Name)
			result.Brands = append(result.Brands, c)
		}
	}

	zap.L().Info("curation: candidates filtered",
		zap.Int("kept", len(result.Brands)),
		zap.Int("dropped", result.Dropped),
	)

	s.st.brands = result.Brands
	return result, nil
}
