package scanner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/promptguard/promptguard/pkg/config"
	"github.com/promptguard/promptguard/pkg/detectors"
	"github.com/promptguard/promptguard/pkg/infra/audit"
	"github.com/promptguard/promptguard/pkg/infra/prometheus"
	"github.com/promptguard/promptguard/pkg/infra/ratelimit"
	"github.com/promptguard/promptguard/pkg/types"
)

// pipeline bundles a policy with the detector set built from it. The two
// are swapped together so a reload can never mix an old policy with a new
// detector registry.
type pipeline struct {
	policy   *config.PolicyConfig
	registry *detectors.Registry
}

// Scanner is the single entry point for scanning LLM-bound text. It owns
// the rate limit fast path, detector orchestration, aggregation, policy
// decision, PII masking and asynchronous audit emission.
type Scanner struct {
	logger       *logrus.Logger
	aggregator   *Aggregator
	policyEngine *PolicyEngine
	masker       *Masker
	limiter      *ratelimit.Limiter
	audit        *audit.Dispatcher
	registryDI   detectors.RegistryDI

	pipeline atomic.Pointer[pipeline]
}

// DI carries the scanner's optional external dependencies. Limiter and
// Audit may be nil; the corresponding features are then skipped.
type DI struct {
	Logger   *logrus.Logger
	Registry detectors.RegistryDI
	Limiter  *ratelimit.Limiter
	Audit    *audit.Dispatcher
}

func New(policy *config.PolicyConfig, di DI) (*Scanner, error) {
	s := &Scanner{
		logger:       di.Logger,
		aggregator:   NewAggregator(),
		policyEngine: NewPolicyEngine(),
		masker:       NewMasker(),
		limiter:      di.Limiter,
		audit:        di.Audit,
	}
	s.registryDI = di.Registry
	if err := s.Reload(policy); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload rebuilds the detector set from a validated policy and swaps it in
// atomically. In-flight scans keep the pipeline they started with.
func (s *Scanner) Reload(policy *config.PolicyConfig) error {
	policy.ApplyDefaults()
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	registry, err := detectors.NewRegistry(policy, s.registryDI)
	if err != nil {
		return fmt.Errorf("failed to build detector registry: %w", err)
	}
	s.pipeline.Store(&pipeline{policy: policy, registry: registry})
	s.logger.Info("scanner pipeline reloaded")
	return nil
}

// Scan inspects one request and returns the verdict. It never returns an
// error for degraded detectors; only a cancelled parent context or an
// unavailable rate limit backend surfaces as an error. The caller's
// request is not modified; the assigned request id is reported on the
// result.
func (s *Scanner) Scan(ctx context.Context, req *types.ScanRequest) (*types.ScanResult, error) {
	start := time.Now()
	p := s.pipeline.Load()

	local := *req
	req = &local
	if req.Context.RequestID == "" {
		req.Context.RequestID = uuid.NewString()
	}
	if req.Context.Timestamp.IsZero() {
		req.Context.Timestamp = start.UTC()
	}

	if blocked, err := s.checkRateLimit(ctx, p.policy, req); err != nil {
		return nil, err
	} else if blocked {
		result := &types.ScanResult{
			RequestID:      req.Context.RequestID,
			Passed:         false,
			Action:         types.ActionBlock,
			ActionReason:   "rate_limited",
			ScanDurationMs: durationMs(start),
		}
		s.finish(req, result)
		return result, nil
	}

	if req.Text == "" {
		result := &types.ScanResult{
			RequestID:      req.Context.RequestID,
			Passed:         true,
			Action:         types.ActionAllow,
			ActionReason:   "no_threats_detected",
			ScanDurationMs: durationMs(start),
		}
		s.finish(req, result)
		return result, nil
	}

	orchestrator := NewOrchestrator(s.logger, p.registry)
	outcomes := orchestrator.Run(ctx, p.policy, req)
	agg := s.aggregator.Aggregate(outcomes)
	decision := s.policyEngine.Decide(p.policy, agg)

	result := &types.ScanResult{
		RequestID:        req.Context.RequestID,
		Passed:           decision.Action != types.ActionBlock,
		Action:           decision.Action,
		ActionReason:     decision.Reason,
		OverallRiskScore: agg.OverallRiskScore,
		PromptInjection:  agg.CategoryScores[types.CategoryPromptInjection],
		Jailbreak:        agg.CategoryScores[types.CategoryJailbreak],
		ContentPolicy:    agg.CategoryScores[types.CategoryContentPolicy],
		Threats:          agg.Threats,
		SecretDetections: agg.SecretFindings,
		Transformations:  decision.Transformations,
		DetectorStatuses: agg.Statuses,
	}

	masked, detections := s.masker.Mask(req.Text, agg.PIIFindings)
	result.PIIDetections = detections
	if decision.Action == types.ActionFilter {
		// masked_text is always present on filter so the gateway has a
		// substitute body even when no PII span survived.
		result.MaskedText = &masked
	}

	result.ScanDurationMs = durationMs(start)
	s.finish(req, result)
	return result, nil
}

func (s *Scanner) checkRateLimit(ctx context.Context, policy *config.PolicyConfig, req *types.ScanRequest) (bool, error) {
	rl := policy.RateLimit
	if !rl.Enabled || s.limiter == nil || req.Context.ClientKey == "" {
		return false, nil
	}
	status, err := s.limiter.CheckAndIncrement(ctx, req.Context.ClientKey, rl.Limit, rl.Window)
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	if status.Exceeded {
		prometheus.RateLimitedTotal.Inc()
		return true, nil
	}
	return false, nil
}

// finish records metrics and emits the audit record. It must never block
// the caller.
func (s *Scanner) finish(req *types.ScanRequest, result *types.ScanResult) {
	prometheus.ScanTotal.WithLabelValues(string(result.Action)).Inc()
	if prometheus.Config.EnableLatency {
		prometheus.ScanLatency.WithLabelValues(string(result.Action)).Observe(result.ScanDurationMs)
	}
	for name, status := range result.DetectorStatuses {
		prometheus.DetectorOutcomes.WithLabelValues(name, string(status)).Inc()
	}

	if s.audit == nil {
		return
	}
	statuses := make(map[string]string, len(result.DetectorStatuses))
	for name, status := range result.DetectorStatuses {
		statuses[name] = string(status)
	}
	s.audit.Emit(&audit.Record{
		RequestID:        req.Context.RequestID,
		ClientKey:        req.Context.ClientKey,
		Endpoint:         req.Context.Endpoint,
		Model:            req.Context.Model,
		Timestamp:        req.Context.Timestamp,
		Action:           result.Action,
		Reason:           result.ActionReason,
		OverallRiskScore: result.OverallRiskScore,
		CategoryScores: map[string]float64{
			string(types.CategoryPromptInjection): result.PromptInjection,
			string(types.CategoryJailbreak):       result.Jailbreak,
			string(types.CategoryContentPolicy):   result.ContentPolicy,
		},
		ThreatCount:      len(result.Threats),
		PIICount:         len(result.PIIDetections),
		SecretCount:      len(result.SecretDetections),
		ScanDurationMs:   result.ScanDurationMs,
		DetectorStatuses: statuses,
	})
}

func durationMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
