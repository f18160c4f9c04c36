package pii_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptguard/promptguard/pkg/detectors/pii"
	"github.com/promptguard/promptguard/pkg/infra/recognizer"
	"github.com/promptguard/promptguard/pkg/types"
)

type stubRecognizer struct {
	entities []recognizer.Entity
	err      error
}

func (s *stubRecognizer) Recognize(_ context.Context, _ string) ([]recognizer.Entity, error) {
	return s.entities, s.err
}

func TestDetector_FiltersByMinConfidence(t *testing.T) {
	rec := &stubRecognizer{entities: []recognizer.Entity{
		{Type: "EMAIL", Span: types.Span{Start: 0, End: 15}, Confidence: 0.95},
		{Type: "DATE_OF_BIRTH", Span: types.Span{Start: 20, End: 30}, Confidence: 0.4},
	}}
	d := pii.New(logrus.New(), rec, 0.5)

	outcome, err := d.Evaluate(context.Background(), &types.ScanRequest{Text: "bob@example.com ..."})
	require.NoError(t, err)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "EMAIL", outcome.Findings[0].EntityType)
	assert.Equal(t, types.CategoryPII, outcome.Findings[0].Category)
	assert.InDelta(t, 0.95, outcome.Score, 0.001)
}

func TestDetector_WithRegexRecognizer(t *testing.T) {
	d := pii.New(logrus.New(), recognizer.NewRegexRecognizer(), 0.5)
	text := "Contact john.doe@example.com, SSN 123-45-6789."

	outcome, err := d.Evaluate(context.Background(), &types.ScanRequest{Text: text})
	require.NoError(t, err)

	entityTypes := make([]string, 0, len(outcome.Findings))
	for _, f := range outcome.Findings {
		entityTypes = append(entityTypes, f.EntityType)
		require.NotNil(t, f.Span)
		assert.Equal(t, types.SeverityMedium, f.Severity)
	}
	assert.Contains(t, entityTypes, "EMAIL")
	assert.Contains(t, entityTypes, "SSN")
	assert.InDelta(t, 0.8, outcome.Score, 0.001)
}

func TestDetector_RecognizerErrorPropagates(t *testing.T) {
	rec := &stubRecognizer{err: errors.New("recognizer unavailable")}
	d := pii.New(logrus.New(), rec, 0.5)

	_, err := d.Evaluate(context.Background(), &types.ScanRequest{Text: "anything"})
	assert.Error(t, err)
}

func TestDetector_NoEntities(t *testing.T) {
	d := pii.New(logrus.New(), &stubRecognizer{}, 0.5)

	outcome, err := d.Evaluate(context.Background(), &types.ScanRequest{Text: "nothing personal here"})
	require.NoError(t, err)
	assert.Zero(t, outcome.Score)
	assert.Empty(t, outcome.Findings)
}
