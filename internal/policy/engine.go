package policy

import (
	"context"
	"path"
	"strings"

	"github.com/org/creditledger/pkg/models"
)

// Store is the minimal interface the Engine needs to resolve policies.
type Store interface {
	GetPolicy(ctx context.Context, name string) (*models.Policy, error)
	// PoliciesFor returns the policy names bound to a signer address.
	PoliciesFor(ctx context.Context, signer string) []string
}

// Engine evaluates ledger key access for signers.
type Engine struct {
	store Store
}

// NewEngine creates a new policy Engine backed by the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Allowed reports whether signer holds capability on key through any of
// its bound policies.
func (e *Engine) Allowed(ctx context.Context, signer, capability, key string) bool {
	return e.IsAllowed(ctx, e.store.PoliciesFor(ctx, signer), capability, key)
}

// IsAllowed returns true if any of the named policies grant the capability on key.
func (e *Engine) IsAllowed(ctx context.Context, policies []string, capability, key string) bool {
	for _, name := range policies {
		pol, err := e.store.GetPolicy(ctx, name)
		if err != nil || pol == nil {
			continue
		}
		if policyAllows(pol, capability, key) {
			return true
		}
	}
	return false
}

func policyAllows(pol *models.Policy, capability, key string) bool {
	for pattern, rule := range pol.Rules {
		if matchKey(pattern, key) && rule.HasCapability(capability) {
			return true
		}
	}
	return false
}

// matchKey matches a ledger key against a glob pattern.
// "*" alone matches every key; otherwise path.Match syntax applies
// ("record_*", "record_?", "[a-z]*").
func matchKey(pattern, key string) bool {
	if pattern == "*" {
		return true
	}
	matched, err := path.Match(pattern, key)
	if err != nil {
		return false
	}
	return matched
}

// GetEffectiveCapabilities returns all capabilities the signer holds on key.
func (e *Engine) GetEffectiveCapabilities(ctx context.Context, signer, key string) []string {
	capSet := map[string]bool{}
	for _, name := range e.store.PoliciesFor(ctx, signer) {
		pol, err := e.store.GetPolicy(ctx, name)
		if err != nil || pol == nil {
			continue
		}
		for pattern, rule := range pol.Rules {
			if matchKey(pattern, key) {
				for _, c := range rule.Capabilities {
					capSet[c] = true
				}
			}
		}
	}
	caps := make([]string, 0, len(capSet))
	for c := range capSet {
		caps = append(caps, c)
	}
	return caps
}

// StaticStore serves policies and signer bindings loaded from configuration.
// The binding "*" applies to every signer in addition to its own bindings.
type StaticStore struct {
	policies map[string]*models.Policy
	bindings map[string][]string
}

// NewStaticStore builds a StaticStore. Signer addresses are matched
// case-insensitively.
func NewStaticStore(policies []*models.Policy, bindings map[string][]string) *StaticStore {
	s := &StaticStore{
		policies: make(map[string]*models.Policy, len(policies)),
		bindings: make(map[string][]string, len(bindings)),
	}
	for _, p := range policies {
		s.policies[p.Name] = p
	}
	for signer, names := range bindings {
		s.bindings[strings.ToLower(signer)] = names
	}
	return s
}

func (s *StaticStore) GetPolicy(_ context.Context, name string) (*models.Policy, error) {
	p, ok := s.policies[name]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (s *StaticStore) PoliciesFor(_ context.Context, signer string) []string {
	names := append([]string(nil), s.bindings["*"]...)
	if signer != "" {
		names = append(names, s.bindings[strings.ToLower(signer)]...)
	}
	return names
}
