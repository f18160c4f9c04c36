package detectors

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/promptguard/promptguard/pkg/config"
	"github.com/promptguard/promptguard/pkg/detectors/contentfilter"
	"github.com/promptguard/promptguard/pkg/detectors/jailbreak"
	"github.com/promptguard/promptguard/pkg/detectors/pii"
	"github.com/promptguard/promptguard/pkg/detectors/promptinjection"
	"github.com/promptguard/promptguard/pkg/detectors/secrets"
	"github.com/promptguard/promptguard/pkg/infra/contentsafety"
	"github.com/promptguard/promptguard/pkg/infra/recognizer"
)

// Registry holds the enabled detector set built from the policy at startup.
// Detector state is read-only after construction and shared across all
// concurrent scans.
type Registry struct {
	detectors []Detector
	policies  map[string]config.DetectorPolicy
}

// RegistryDI carries the external capabilities the detector set depends on.
type RegistryDI struct {
	Logger     *logrus.Logger
	Recognizer recognizer.Recognizer
	Classifier contentsafety.Classifier
}

// NewRegistry builds the enabled detector set from an immutable policy.
func NewRegistry(policy *config.PolicyConfig, di RegistryDI) (*Registry, error) {
	r := &Registry{policies: make(map[string]config.DetectorPolicy)}

	if policy.PromptInjection.Enabled {
		d, err := promptinjection.New(di.Logger, policy.CustomInjectionPatterns)
		if err != nil {
			return nil, fmt.Errorf("failed to build prompt injection detector: %w", err)
		}
		r.register(d, policy.PromptInjection)
	}

	if policy.Jailbreak.Enabled {
		d, err := jailbreak.New(di.Logger, policy.CustomJailbreakPatterns)
		if err != nil {
			return nil, fmt.Errorf("failed to build jailbreak detector: %w", err)
		}
		r.register(d, policy.Jailbreak)
	}

	if policy.PII.Enabled {
		if di.Recognizer == nil {
			return nil, fmt.Errorf("pii detector enabled but no entity recognizer configured")
		}
		r.register(pii.New(di.Logger, di.Recognizer, policy.PIIMinConfidence), policy.PII)
	}

	if policy.Secrets.Enabled {
		r.register(secrets.New(di.Logger), policy.Secrets)
	}

	if policy.ContentFilter.Enabled {
		if di.Classifier == nil {
			return nil, fmt.Errorf("content filter enabled but no content safety classifier configured")
		}
		r.register(contentfilter.New(di.Logger, di.Classifier), policy.ContentFilter)
	}

	return r, nil
}

// NewStaticRegistry wires an explicit detector set with per-detector
// policies, bypassing policy-driven construction. Useful for tests and
// embedded setups.
func NewStaticRegistry(ds []Detector, policies map[string]config.DetectorPolicy) *Registry {
	r := &Registry{policies: make(map[string]config.DetectorPolicy)}
	for _, d := range ds {
		r.register(d, policies[d.Name()])
	}
	return r
}

func (r *Registry) register(d Detector, p config.DetectorPolicy) {
	r.detectors = append(r.detectors, d)
	r.policies[d.Name()] = p
}

// Enabled returns the detector set in registration order.
func (r *Registry) Enabled() []Detector {
	return r.detectors
}

// Policy returns the per-detector policy for a registered detector.
func (r *Registry) Policy(name string) config.DetectorPolicy {
	return r.policies[name]
}
