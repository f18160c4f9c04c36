package pii

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/promptguard/promptguard/pkg/infra/recognizer"
	"github.com/promptguard/promptguard/pkg/types"
)

const DetectorName = "pii"

// Detector delegates span recognition to the entity-recognition capability
// and filters the result by a minimum confidence. Masking is the
// transformer's job, not the detector's, so a scan-only consumer sees
// detections without forced rewriting.
type Detector struct {
	logger        *logrus.Logger
	recognizer    recognizer.Recognizer
	minConfidence float64
}

func New(logger *logrus.Logger, rec recognizer.Recognizer, minConfidence float64) *Detector {
	return &Detector{
		logger:        logger,
		recognizer:    rec,
		minConfidence: minConfidence,
	}
}

func (d *Detector) Name() string {
	return DetectorName
}

func (d *Detector) Category() types.Category {
	return types.CategoryPII
}

func (d *Detector) Evaluate(ctx context.Context, req *types.ScanRequest) (*types.DetectorOutcome, error) {
	entities, err := d.recognizer.Recognize(ctx, req.Text)
	if err != nil {
		return nil, fmt.Errorf("entity recognition failed: %w", err)
	}

	outcome := &types.DetectorOutcome{
		DetectorName: DetectorName,
		Status:       types.StatusOK,
	}

	var best float64
	for _, e := range entities {
		if e.Confidence < d.minConfidence {
			continue
		}
		if e.Confidence > best {
			best = e.Confidence
		}
		span := e.Span
		outcome.Findings = append(outcome.Findings, types.Finding{
			Category:    types.CategoryPII,
			Severity:    types.SeverityMedium,
			Description: fmt.Sprintf("%s entity recognized", e.Type),
			EntityType:  e.Type,
			Confidence:  e.Confidence,
			Span:        &span,
		})
	}

	outcome.Score = best

	if len(outcome.Findings) > 0 {
		d.logger.WithFields(logrus.Fields{
			"detector":   DetectorName,
			"request_id": req.Context.RequestID,
			"entities":   len(outcome.Findings),
		}).Info("pii entities recognized")
	}

	return outcome, nil
}
