package sim

import "testing"

func TestEnsureIsFirstWriteWins(t *testing.T) {
	timers := NewTimerRegistry()

	if got := timers.EnsureDischarge("p1", 15); got != 15 {
		t.Errorf("Expected 15, got %d", got)
	}
	// A later ensure with a different deadline keeps the original
	if got := timers.EnsureDischarge("p1", 99); got != 15 {
		t.Errorf("Expected original deadline 15, got %d", got)
	}

	if got := timers.EnsureWaitOverdue("p1", 20); got != 20 {
		t.Errorf("Expected 20, got %d", got)
	}
	if got := timers.EnsureWaitOverdue("p1", 7); got != 20 {
		t.Errorf("Expected original deadline 20, got %d", got)
	}
}

func TestClearAndReset(t *testing.T) {
	timers := NewTimerRegistry()
	timers.EnsureDischarge("p1", 10)
	timers.EnsureWaitOverdue("p2", 30)

	timers.ClearDischarge("p1")
	if _, ok := timers.DischargeReadyAt("p1"); ok {
		t.Error("Expected discharge deadline cleared")
	}
	if _, ok := timers.WaitOverdueAt("p2"); !ok {
		t.Error("Expected wait deadline untouched")
	}

	timers.Reset()
	if _, ok := timers.WaitOverdueAt("p2"); ok {
		t.Error("Expected reset to drop all deadlines")
	}
}
