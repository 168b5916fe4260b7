package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/adintel-cli/internal/model"
)

const embeddingsTableID = "ad_embeddings"

// embedBatchSize bounds one embedding request's input array.
const embedBatchSize = 100

// embeddingsStage embeds every ad's creative text for similarity analysis
// downstream of this tool. Runs off ingestion directly, in parallel with
// labeling in the dependency graph (though execution stays sequential).
type embeddingsStage struct {
	p  *Pipeline
	st *state
}

func (s *embeddingsStage) Name() string        { return model.StageEmbeddings }
func (s *embeddingsStage) DependsOn() []string { return []string{model.StageIngestion} }

func (s *embeddingsStage) Execute(ctx context.Context, _ model.StageResult) (model.StageResult, error) {
	eligible := make([]model.Ad, 0, len(s.st.ads))
	for _, ad := range s.st.ads {
		if strings.TrimSpace(ad.CreativeText()) != "" {
			eligible = append(eligible, ad)
		}
	}

	if s.st.rc.DryRun {
		return model.EmbeddingsResult{
			EmbeddingCount: len(eligible),
			Dimensions:     1536,
			TableID:        embeddingsTableID,
		}, nil
	}

	modelName := s.p.cfg.OpenAI.EmbeddingModel
	embs := make([]model.AdEmbedding, 0, len(eligible))
	var totalTokens int64
	var dims int

	for start := 0; start < len(eligible); start += embedBatchSize {
		end := min(start+embedBatchSize, len(eligible))
		batch := eligible[start:end]

		inputs := make([]string, len(batch))
		for i, ad := range batch {
			inputs[i] = ad.CreativeText()
		}

		resp, err := s.p.embedder.Embed(ctx, modelName, inputs)
		if err != nil {
			return nil, err
		}
		totalTokens += resp.PromptTokens
		dims = resp.Dimensions()

		for i, ad := range batch {
			embs = append(embs, model.AdEmbedding{
				AdID:   ad.ID,
				Brand:  ad.Brand,
				Model:  modelName,
				Vector: resp.Vectors[i],
			})
		}
	}

	if _, err := s.p.store.ReplaceEmbeddings(ctx, s.st.rc.RunID, embs); err != nil {
		return nil, err
	}

	result := model.EmbeddingsResult{
		EmbeddingCount: len(embs),
		Dimensions:     dims,
		TableID:        embeddingsTableID,
		CostEstimate:   s.p.costCalc.Embedding(int(totalTokens)),
	}

	zap.L().Info("embeddings: creatives embedded",
		zap.Int("count", result.EmbeddingCount),
		zap.Int("dimensions", result.Dimensions),
		zap.Float64("cost", result.CostEstimate),
	)
	return result, nil
}
