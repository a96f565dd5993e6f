package core

import (
	"errors"
	"sync"
	"time"
)

// ErrPaused is returned by Check while the ledger is paused.
var ErrPaused = errors.New("ledger is paused")

// Availability manages the ledger's paused/available state.
// While paused the ledger answers isAvailable with false and refuses reads
// and writes.
type Availability struct {
	mu      sync.RWMutex
	paused  bool
	reason  string
	changed time.Time
}

// NewAvailability creates an Availability in the available state.
func NewAvailability() *Availability {
	return &Availability{changed: time.Now().UTC()}
}

// IsAvailable returns whether the ledger currently serves requests.
func (a *Availability) IsAvailable() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return !a.paused
}

// Check returns ErrPaused when the ledger is paused.
func (a *Availability) Check() error {
	if !a.IsAvailable() {
		return ErrPaused
	}
	return nil
}

// Pause stops serving requests. Pausing an already paused ledger only
// updates the reason.
func (a *Availability) Pause(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.paused {
		a.changed = time.Now().UTC()
	}
	a.paused = true
	a.reason = reason
}

// Resume makes the ledger available again.
func (a *Availability) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.paused {
		a.changed = time.Now().UTC()
	}
	a.paused = false
	a.reason = ""
}

// Status returns the pause flag, its reason and when it last changed.
func (a *Availability) Status() (paused bool, reason string, since time.Time) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.paused, a.reason, a.changed
}
