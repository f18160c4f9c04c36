package recognizer

import (
	"context"

	"github.com/promptguard/promptguard/pkg/types"
)

// Entity is one typed span returned by an entity recognizer.
type Entity struct {
	Type       string     `json:"entity_type"`
	Span       types.Span `json:"span"`
	Confidence float64    `json:"confidence"`
}

// Recognizer is the external entity-recognition capability consumed by the
// PII detector. Implementations must be safe for concurrent use.
//
//go:generate mockery --name=Recognizer --dir=. --output=./mocks --filename=recognizer_mock.go --case=underscore --with-expecter
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Entity, error)
}
