package models

import "time"

// Capability constants for policy key rules.
const (
	CapRead  = "read"
	CapWrite = "write"
	CapSudo  = "sudo"
)

// KeyRule defines what capabilities are allowed on a ledger key pattern.
type KeyRule struct {
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
}

// HasCapability returns true if the rule grants the given capability.
func (k KeyRule) HasCapability(cap string) bool {
	for _, c := range k.Capabilities {
		if c == cap || c == CapSudo {
			return true
		}
	}
	return false
}

// Policy is a named set of key-based access rules.
type Policy struct {
	Name      string             `json:"name" yaml:"name"`
	Rules     map[string]KeyRule `json:"keys" yaml:"keys"` // key glob → capabilities
	CreatedAt time.Time          `json:"created_at,omitempty" yaml:"-"`
}

// DefaultPolicy lets any signer maintain the record index and record blobs.
func DefaultPolicy() *Policy {
	return &Policy{
		Name: "default",
		Rules: map[string]KeyRule{
			"record_keys": {Capabilities: []string{CapRead, CapWrite}},
			"record_*":    {Capabilities: []string{CapRead, CapWrite}},
		},
	}
}
