package detectors

import (
	"context"

	"github.com/promptguard/promptguard/pkg/types"
)

// Detector is the capability interface every classifier implements.
//
// Evaluate must be safe to call concurrently from many goroutines against
// shared, read-only detector state (compiled pattern sets, client handles).
// Implementations must respect ctx: on cancellation they return promptly and
// let the orchestrator record the degraded outcome.
type Detector interface {
	// Name returns the detector's unique identifier (e.g. "prompt_injection").
	Name() string

	// Category returns the threat category this detector covers.
	Category() types.Category

	// Evaluate classifies the request text and returns a score in [0,1]
	// plus zero or more findings.
	Evaluate(ctx context.Context, req *types.ScanRequest) (*types.DetectorOutcome, error)
}
