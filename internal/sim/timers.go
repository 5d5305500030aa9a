package sim

import "sync"

// TimerRegistry tracks per-patient deadlines the tick processor works
// against: when a bedded patient becomes ready for discharge flagging,
// and when a waiting patient counts as overdue. Deadlines are created
// lazily the first time a patient is considered and survive until the
// patient leaves the relevant status or the simulation resets.
type TimerRegistry struct {
	mu             sync.Mutex
	dischargeReady map[string]int64
	waitOverdue    map[string]int64
}

// NewTimerRegistry creates an empty registry
func NewTimerRegistry() *TimerRegistry {
	return &TimerRegistry{
		dischargeReady: make(map[string]int64),
		waitOverdue:    make(map[string]int64),
	}
}

// EnsureDischarge records readyAt for the patient if no discharge
// deadline exists yet, and returns the effective deadline.
func (t *TimerRegistry) EnsureDischarge(pid string, readyAt int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if at, ok := t.dischargeReady[pid]; ok {
		return at
	}
	t.dischargeReady[pid] = readyAt
	return readyAt
}

// DischargeReadyAt returns the patient's discharge deadline, if any
func (t *TimerRegistry) DischargeReadyAt(pid string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.dischargeReady[pid]
	return at, ok
}

// ClearDischarge removes the patient's discharge deadline
func (t *TimerRegistry) ClearDischarge(pid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.dischargeReady, pid)
}

// EnsureWaitOverdue records overdueAt for the patient if no waiting
// deadline exists yet, and returns the effective deadline.
func (t *TimerRegistry) EnsureWaitOverdue(pid string, overdueAt int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if at, ok := t.waitOverdue[pid]; ok {
		return at
	}
	t.waitOverdue[pid] = overdueAt
	return overdueAt
}

// WaitOverdueAt returns the patient's waiting deadline, if any
func (t *TimerRegistry) WaitOverdueAt(pid string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.waitOverdue[pid]
	return at, ok
}

// ClearWait removes the patient's waiting deadline
func (t *TimerRegistry) ClearWait(pid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.waitOverdue, pid)
}

// Reset drops all deadlines
func (t *TimerRegistry) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dischargeReady = make(map[string]int64)
	t.waitOverdue = make(map[string]int64)
}
