package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adintel-cli/internal/model"
)

func TestLabelingStageClassifiesDeterministically(t *testing.T) {
	st := newMockStore()
	ai := &mockAI{}
	p := New(newTestConfig(), st, &mockAdLib{}, ai, &mockEmbedder{}, emptyRegistry())

	runState := &state{rc: testRunContext(false)}
	runState.ads = textAds("alpha", 3)
	runState.ads = append(runState.ads, model.Ad{ID: "blank", Brand: "alpha"})

	stage := &labelingStage{p: p, st: runState}
	res, err := stage.Execute(context.Background(), nil)
	require.NoError(t, err)

	lr, ok := res.(model.LabelingResult)
	require.True(t, ok)
	assert.Equal(t, 3, lr.LabeledAds)
	assert.Equal(t, 1, lr.SkippedAds, "text-less ads are skipped, not failed")
	assert.Len(t, st.labels["run-test"], 3)
	assert.Positive(t, lr.CostEstimate)

	require.NotNil(t, ai.labelTemp, "classification requests pin the temperature")
	assert.Zero(t, *ai.labelTemp)
}
