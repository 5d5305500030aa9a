package patient

import (
	"context"
	"sync"
	"time"
)

// Syncer mirrors local mutations to a remote store. Implementations must
// not block: the in-memory store is authoritative and sync is best-effort.
type Syncer interface {
	SyncPatient(ctx context.Context, p Patient)
	DeletePatient(ctx context.Context, pid string)
}

// Store is the in-memory patient collection. All mutation goes through the
// same version-bumping primitives so simulation-initiated and UI-initiated
// changes never silently clobber each other; the version counter is the
// sole conflict-resolution mechanism.
type Store struct {
	mu       sync.RWMutex
	patients map[string]*Patient
	order    []string
	bedCount int
	syncer   Syncer
}

// NewStore creates a store with the given number of ER beds
func NewStore(bedCount int) *Store {
	return &Store{
		patients: make(map[string]*Patient),
		bedCount: bedCount,
	}
}

// SetSyncer installs the best-effort persistence mirror
func (s *Store) SetSyncer(sy Syncer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncer = sy
}

// BedCount returns the number of ER beds
func (s *Store) BedCount() int {
	return s.bedCount
}

// Add inserts a patient. Idempotent: a patient with a known pid is left
// untouched and false is returned, guarding against duplicate delivery
// from concurrent injection paths.
func (s *Store) Add(p Patient) bool {
	s.mu.Lock()
	if _, exists := s.patients[p.PID]; exists {
		s.mu.Unlock()
		return false
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	cp := p.Clone()
	s.patients[p.PID] = &cp
	s.order = append(s.order, p.PID)
	snapshot := cp.Clone()
	s.mu.Unlock()

	s.sync(snapshot)
	return true
}

// Get returns a copy of the patient
func (s *Store) Get(pid string) (Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[pid]
	if !ok {
		return Patient{}, false
	}
	return p.Clone(), true
}

// List returns copies of all patients in insertion order
func (s *Store) List() []Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Patient, 0, len(s.order))
	for _, pid := range s.order {
		if p, ok := s.patients[pid]; ok {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Len returns the number of patients
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patients)
}

// Update merges a partial change into the record. The change is applied
// only when version is nil or greater than the stored version; a stale
// version is silently dropped (expected under eventual consistency). An
// applied update bumps the stored version by 1, or adopts the supplied
// version when one is given.
func (s *Store) Update(pid string, patch Patch, version *int64) (Patient, bool) {
	return s.mutate(pid, func(p *Patient) bool {
		if version != nil && *version <= p.Version {
			return false
		}
		p.applyPatch(patch)
		if version != nil {
			// adopt the supplied version instead of the usual +1 bump
			p.Version = *version - 1
		}
		return true
	})
}

// Remove deletes a patient
func (s *Store) Remove(pid string) bool {
	s.mu.Lock()
	if _, ok := s.patients[pid]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.patients, pid)
	for i, id := range s.order {
		if id == pid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	syncer := s.syncer
	s.mu.Unlock()

	if syncer != nil {
		go syncer.DeletePatient(context.Background(), pid)
	}
	return true
}

// Accept moves a called-in patient to the waiting room
func (s *Store) Accept(pid string, tick int64) (Patient, bool) {
	return s.mutate(pid, func(p *Patient) bool {
		if p.Status != StatusCalledIn {
			return false
		}
		p.Status = StatusWaitingRoom
		p.EnteredStatusTick = tick
		return true
	})
}

// AssignBed moves a waiting patient into a bed. The bed must be within
// range and unoccupied among er_bed patients; automatic assignment always
// computes the next free bed from current occupancy rather than trusting
// caller-supplied numbers.
func (s *Store) AssignBed(pid string, bed int, tick int64) (Patient, bool) {
	s.mu.Lock()
	p, ok := s.patients[pid]
	if !ok {
		s.mu.Unlock()
		return Patient{}, false
	}
	occupied := s.occupiedBedsLocked()
	if p.Status != StatusWaitingRoom || bed < 1 || bed > s.bedCount || occupied[bed] {
		snapshot := p.Clone()
		s.mu.Unlock()
		return snapshot, false
	}
	b := bed
	p.Status = StatusERBed
	p.BedNumber = &b
	p.EnteredStatusTick = tick
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	snapshot := p.Clone()
	s.mu.Unlock()

	s.sync(snapshot)
	return snapshot, true
}

// NextFreeBed returns the lowest unused bed number among er_bed patients
func (s *Store) NextFreeBed() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	occupied := s.occupiedBedsLocked()
	for bed := 1; bed <= s.bedCount; bed++ {
		if !occupied[bed] {
			return bed, true
		}
	}
	return 0, false
}

func (s *Store) occupiedBedsLocked() map[int]bool {
	occupied := make(map[int]bool)
	for _, p := range s.patients {
		if p.Status == StatusERBed && p.BedNumber != nil {
			occupied[*p.BedNumber] = true
		}
	}
	return occupied
}

// MarkRed flips a bedded patient red for an unacknowledged surprising
// lab. Green and already-red patients are left alone.
func (s *Store) MarkRed(pid string) (Patient, bool) {
	return s.mutate(pid, func(p *Patient) bool {
		if p.Status != StatusERBed || p.Color == ColorRed || p.Color == ColorGreen {
			return false
		}
		p.Color = ColorRed
		return true
	})
}

// FlagForDischarge marks a bedded patient ready for discharge (color
// green, status unchanged). A red patient cannot be flagged until its
// surprising lab is acknowledged.
func (s *Store) FlagForDischarge(pid string) (Patient, bool) {
	return s.mutate(pid, func(p *Patient) bool {
		if p.Status != StatusERBed || p.Color == ColorGreen || p.Color == ColorRed {
			return false
		}
		p.Color = ColorGreen
		return true
	})
}

// Discharge completes a bedded patient's stay
func (s *Store) Discharge(pid string, tick int64) (Patient, bool) {
	return s.mutate(pid, func(p *Patient) bool {
		if p.Status != StatusERBed {
			return false
		}
		p.Status = StatusDone
		p.BedNumber = nil
		p.Color = ColorGreen
		p.EnteredStatusTick = tick
		return true
	})
}

// Transfer moves a bedded patient to the OR or ICU, freeing the bed
func (s *Store) Transfer(pid string, to Status, tick int64) (Patient, bool) {
	if to != StatusOR && to != StatusICU {
		return Patient{}, false
	}
	return s.mutate(pid, func(p *Patient) bool {
		if p.Status != StatusERBed {
			return false
		}
		p.Status = to
		p.BedNumber = nil
		p.EnteredStatusTick = tick
		return true
	})
}

// MarkDone completes an OR/ICU patient
func (s *Store) MarkDone(pid string, tick int64) (Patient, bool) {
	return s.mutate(pid, func(p *Patient) bool {
		if p.Status != StatusOR && p.Status != StatusICU {
			return false
		}
		p.Status = StatusDone
		p.BedNumber = nil
		p.EnteredStatusTick = tick
		return true
	})
}

// RejectDischarge reverses a discharge flag after adjudication: the
// patient returns to its default color, picks up a fresh discharge
// delay, and records the ordered follow-up labs and rejection note.
func (s *Store) RejectDischarge(pid string, timeToDischarge int64, labs []LabResult, note string) (Patient, bool) {
	return s.mutate(pid, func(p *Patient) bool {
		if p.Status != StatusERBed || p.Color != ColorGreen {
			return false
		}
		p.Color = p.DefaultColor()
		p.TimeToDischarge = &timeToDischarge
		p.LabResults = append(p.LabResults, labs...)
		if note != "" {
			p.RejectionNotes = append(p.RejectionNotes, note)
		}
		return true
	})
}

// AcknowledgeLabs acknowledges all surprising labs and returns the
// patient's color to its default if it was red
func (s *Store) AcknowledgeLabs(pid string) (Patient, bool) {
	return s.mutate(pid, func(p *Patient) bool {
		changed := false
		for i := range p.LabResults {
			if p.LabResults[i].IsSurprising && !p.LabResults[i].Acknowledged {
				p.LabResults[i].Acknowledged = true
				changed = true
			}
		}
		if p.Color == ColorRed {
			p.Color = p.DefaultColor()
			changed = true
		}
		return changed
	})
}

// Clear removes all patients (simulation reset)
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients = make(map[string]*Patient)
	s.order = nil
}

// CountsByStatus returns the per-status patient counts and the number of
// occupied beds
func (s *Store) CountsByStatus() (map[string]int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]int{
		string(StatusCalledIn):    0,
		string(StatusWaitingRoom): 0,
		string(StatusERBed):       0,
		string(StatusOR):          0,
		string(StatusICU):         0,
		string(StatusDone):        0,
	}
	beds := 0
	for _, p := range s.patients {
		counts[string(p.Status)]++
		if p.Status == StatusERBed && p.BedNumber != nil {
			beds++
		}
	}
	return counts, beds
}

// mutate applies a guarded field change. The guard returns false to make
// the call a caller-visible no-op; an applied change bumps the version and
// fires the best-effort sync.
func (s *Store) mutate(pid string, fn func(*Patient) bool) (Patient, bool) {
	s.mu.Lock()
	p, ok := s.patients[pid]
	if !ok {
		s.mu.Unlock()
		return Patient{}, false
	}
	if !fn(p) {
		snapshot := p.Clone()
		s.mu.Unlock()
		return snapshot, false
	}
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	snapshot := p.Clone()
	s.mu.Unlock()

	s.sync(snapshot)
	return snapshot, true
}

func (s *Store) sync(p Patient) {
	s.mu.RLock()
	syncer := s.syncer
	s.mu.RUnlock()
	if syncer == nil {
		return
	}
	go syncer.SyncPatient(context.Background(), p)
}
