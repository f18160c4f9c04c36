package contentfilter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptguard/promptguard/pkg/detectors/contentfilter"
	"github.com/promptguard/promptguard/pkg/types"
)

type stubClassifier struct {
	scores map[string]float64
	err    error
}

func (s *stubClassifier) Classify(_ context.Context, _ string) (map[string]float64, error) {
	return s.scores, s.err
}

func TestDetector_ScoreIsMaxCategory(t *testing.T) {
	d := contentfilter.New(logrus.New(), &stubClassifier{scores: map[string]float64{
		"hate":     0.1,
		"violence": 0.7,
		"sexual":   0.3,
	}})

	outcome, err := d.Evaluate(context.Background(), &types.ScanRequest{Text: "some text"})
	require.NoError(t, err)

	assert.InDelta(t, 0.7, outcome.Score, 0.001)

	// Only categories above the finding threshold are reported.
	entityTypes := make([]string, 0, len(outcome.Findings))
	for _, f := range outcome.Findings {
		entityTypes = append(entityTypes, f.EntityType)
		assert.Equal(t, types.CategoryContentPolicy, f.Category)
	}
	assert.ElementsMatch(t, []string{"violence", "sexual"}, entityTypes)
}

func TestDetector_CleanContent(t *testing.T) {
	d := contentfilter.New(logrus.New(), &stubClassifier{scores: map[string]float64{
		"hate": 0.0, "violence": 0.0,
	}})

	outcome, err := d.Evaluate(context.Background(), &types.ScanRequest{Text: "a nice poem"})
	require.NoError(t, err)
	assert.Zero(t, outcome.Score)
	assert.Empty(t, outcome.Findings)
}

func TestDetector_ClassifierErrorPropagates(t *testing.T) {
	d := contentfilter.New(logrus.New(), &stubClassifier{err: errors.New("service down")})

	_, err := d.Evaluate(context.Background(), &types.ScanRequest{Text: "anything"})
	assert.Error(t, err)
}
