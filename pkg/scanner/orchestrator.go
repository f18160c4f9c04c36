package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/promptguard/promptguard/pkg/config"
	"github.com/promptguard/promptguard/pkg/detectors"
	"github.com/promptguard/promptguard/pkg/types"
)

// Orchestrator dispatches every enabled detector concurrently against one
// request and waits for all of them to resolve. It is wait-for-all, not
// first-completed: a slow detector's absence must not silently pass a
// dangerous request.
type Orchestrator struct {
	logger   *logrus.Logger
	registry *detectors.Registry
}

func NewOrchestrator(logger *logrus.Logger, registry *detectors.Registry) *Orchestrator {
	return &Orchestrator{logger: logger, registry: registry}
}

// Run executes the enabled detector set under the policy's total scan
// deadline. A detector that times out, errors or panics is recorded as a
// degraded outcome and never aborts its siblings; the orchestrator always
// returns one outcome per enabled detector.
func (o *Orchestrator) Run(ctx context.Context, policy *config.PolicyConfig, req *types.ScanRequest) []types.DetectorOutcome {
	enabled := o.registry.Enabled()
	if len(enabled) == 0 {
		return nil
	}

	scanCtx, cancel := context.WithTimeout(ctx, policy.ScanTimeout)
	defer cancel()

	resultChan := make(chan types.DetectorOutcome, len(enabled))

	var wg sync.WaitGroup
	for _, d := range enabled {
		wg.Add(1)
		go func(d detectors.Detector) {
			defer wg.Done()
			resultChan <- o.evaluate(scanCtx, d, req)
		}(d)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	outcomes := make([]types.DetectorOutcome, 0, len(enabled))
	for outcome := range resultChan {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (o *Orchestrator) evaluate(scanCtx context.Context, d detectors.Detector, req *types.ScanRequest) types.DetectorOutcome {
	policy := o.registry.Policy(d.Name())

	detectorCtx, cancel := context.WithTimeout(scanCtx, policy.Timeout)
	defer cancel()

	type evaluation struct {
		outcome *types.DetectorOutcome
		err     error
	}
	done := make(chan evaluation, 1)
	start := time.Now()

	go func() {
		// A panicking detector is contained the same way as an erroring
		// one.
		defer func() {
			if r := recover(); r != nil {
				o.logger.WithFields(logrus.Fields{
					"detector":   d.Name(),
					"request_id": req.Context.RequestID,
					"panic":      fmt.Sprintf("%v", r),
				}).Error("detector panicked")
				done <- evaluation{err: fmt.Errorf("detector panicked: %v", r)}
			}
		}()
		outcome, err := d.Evaluate(detectorCtx, req)
		done <- evaluation{outcome: outcome, err: err}
	}()

	select {
	case ev := <-done:
		elapsed := time.Since(start)
		if ev.err != nil {
			status := types.StatusError
			if errors.Is(ev.err, context.DeadlineExceeded) || errors.Is(detectorCtx.Err(), context.DeadlineExceeded) {
				status = types.StatusTimeout
			}
			o.logger.WithError(ev.err).WithFields(logrus.Fields{
				"detector":    d.Name(),
				"request_id":  req.Context.RequestID,
				"status":      string(status),
				"duration_ms": elapsed.Milliseconds(),
			}).Warn("detector degraded")
			return o.degraded(d, policy, status)
		}
		outcome := *ev.outcome
		outcome.DetectorName = d.Name()
		if outcome.Status == "" {
			outcome.Status = types.StatusOK
		}
		return outcome
	case <-detectorCtx.Done():
		// The detector ignored its deadline; abandon the straggler
		// goroutine rather than waiting it out.
		o.logger.WithFields(logrus.Fields{
			"detector":    d.Name(),
			"request_id":  req.Context.RequestID,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Warn("detector exceeded deadline")
		return o.degraded(d, policy, types.StatusTimeout)
	}
}

// degraded builds the outcome for a detector that failed to resolve. A
// fail-open detector contributes nothing to the risk score, only a
// low-severity finding documenting the gap. A fail-closed detector raises
// its category's presence to 1.0 so the degradation can never silently
// allow a request it was supposed to inspect.
func (o *Orchestrator) degraded(d detectors.Detector, policy config.DetectorPolicy, status types.DetectorStatus) types.DetectorOutcome {
	score := 0.0
	severity := types.SeverityLow
	description := fmt.Sprintf("detector %s did not resolve (%s); continuing without its verdict", d.Name(), status)
	if !policy.FailOpen {
		score = 1.0
		severity = types.SeverityHigh
		description = fmt.Sprintf("detector %s did not resolve (%s); fail-closed policy escalates the request", d.Name(), status)
	}

	return types.DetectorOutcome{
		DetectorName: d.Name(),
		Score:        score,
		Status:       status,
		Findings: []types.Finding{{
			Category:       d.Category(),
			Severity:       severity,
			Description:    description,
			MatchedPattern: types.DegradedPattern,
		}},
	}
}
