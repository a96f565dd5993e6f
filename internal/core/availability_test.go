package core

import (
	"errors"
	"testing"
)

func TestAvailabilityPauseResume(t *testing.T) {
	a := NewAvailability()
	if !a.IsAvailable() {
		t.Fatal("new availability should be available")
	}
	if err := a.Check(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a.Pause("maintenance")
	if a.IsAvailable() {
		t.Error("expected paused ledger to be unavailable")
	}
	if err := a.Check(); !errors.Is(err, ErrPaused) {
		t.Errorf("expected ErrPaused, got %v", err)
	}
	paused, reason, since := a.Status()
	if !paused || reason != "maintenance" || since.IsZero() {
		t.Errorf("unexpected status: %v %q %v", paused, reason, since)
	}

	// Re-pausing keeps the original timestamp.
	a.Pause("still down")
	_, reason, since2 := a.Status()
	if reason != "still down" || !since2.Equal(since) {
		t.Errorf("re-pause should only update reason, got %q %v", reason, since2)
	}

	a.Resume()
	if !a.IsAvailable() {
		t.Error("expected resumed ledger to be available")
	}
}
