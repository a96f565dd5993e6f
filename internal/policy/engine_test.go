package policy

import (
	"context"
	"sort"
	"testing"

	"github.com/org/creditledger/pkg/models"
)

func newStore(bindings map[string][]string, pols ...*models.Policy) *StaticStore {
	return NewStaticStore(pols, bindings)
}

func TestPolicyExactMatch(t *testing.T) {
	pol := &models.Policy{
		Name: "test",
		Rules: map[string]models.KeyRule{
			"record_keys": {Capabilities: []string{"read"}},
		},
	}
	eng := NewEngine(newStore(nil, pol))
	ctx := context.Background()

	if !eng.IsAllowed(ctx, []string{"test"}, "read", "record_keys") {
		t.Error("expected read to be allowed on exact match")
	}
	if eng.IsAllowed(ctx, []string{"test"}, "write", "record_keys") {
		t.Error("expected write to be denied")
	}
}

func TestPolicyWildcard(t *testing.T) {
	pol := &models.Policy{
		Name: "test",
		Rules: map[string]models.KeyRule{
			"record_*": {Capabilities: []string{"read", "write"}},
		},
	}
	eng := NewEngine(newStore(nil, pol))
	ctx := context.Background()

	cases := []struct {
		key     string
		allowed bool
	}{
		{"record_1700000000000-abc1234", true},
		{"record_keys", true},
		{"record_", true},
		{"config_fee", false},
		{"records", false},
	}
	for _, tc := range cases {
		got := eng.IsAllowed(ctx, []string{"test"}, "write", tc.key)
		if got != tc.allowed {
			t.Errorf("key %q: expected allowed=%v, got %v", tc.key, tc.allowed, got)
		}
	}
}

func TestPolicySudoGrantsEverything(t *testing.T) {
	root := &models.Policy{
		Name:  "root",
		Rules: map[string]models.KeyRule{"*": {Capabilities: []string{"sudo"}}},
	}
	eng := NewEngine(newStore(nil, root))
	ctx := context.Background()
	for _, c := range []string{"read", "write", "sudo"} {
		if !eng.IsAllowed(ctx, []string{"root"}, c, "anything") {
			t.Errorf("expected root to hold %q", c)
		}
	}
}

func TestPolicyUnknownPolicyDenied(t *testing.T) {
	eng := NewEngine(newStore(nil))
	if eng.IsAllowed(context.Background(), []string{"missing"}, "read", "record_keys") {
		t.Error("expected missing policy to deny")
	}
}

func TestSignerBindings(t *testing.T) {
	admin := &models.Policy{
		Name:  "admin",
		Rules: map[string]models.KeyRule{"config_*": {Capabilities: []string{"write"}}},
	}
	eng := NewEngine(newStore(map[string][]string{
		"*":          {"default"},
		"0xABCDEF01": {"admin"},
	}, models.DefaultPolicy(), admin))
	ctx := context.Background()

	if !eng.Allowed(ctx, "0x1111", "write", "record_abc") {
		t.Error("default binding should let any signer write records")
	}
	if eng.Allowed(ctx, "0x1111", "write", "config_fee") {
		t.Error("unbound signer must not write config keys")
	}
	if !eng.Allowed(ctx, "0xabcdef01", "write", "config_fee") {
		t.Error("bindings should match signer addresses case-insensitively")
	}
}

func TestEffectiveCapabilities(t *testing.T) {
	p1 := &models.Policy{Name: "p1", Rules: map[string]models.KeyRule{"record_*": {Capabilities: []string{"read"}}}}
	p2 := &models.Policy{Name: "p2", Rules: map[string]models.KeyRule{"record_keys": {Capabilities: []string{"write"}}}}
	eng := NewEngine(newStore(map[string][]string{"*": {"p1", "p2"}}, p1, p2))

	caps := eng.GetEffectiveCapabilities(context.Background(), "0x1", "record_keys")
	sort.Strings(caps)
	if len(caps) != 2 || caps[0] != "read" || caps[1] != "write" {
		t.Errorf("unexpected capabilities %v", caps)
	}
}
