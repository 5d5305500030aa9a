package patient

import (
	"testing"

	"github.com/google/uuid"
)

func newTestPatient(name string) Patient {
	return Patient{
		PID:         uuid.New().String(),
		Name:        name,
		Status:      StatusCalledIn,
		Color:       ColorGrey,
		IsSimulated: true,
	}
}

func TestAddIsIdempotent(t *testing.T) {
	store := NewStore(16)
	p := newTestPatient("James Walker")

	if !store.Add(p) {
		t.Fatal("Expected first Add to succeed")
	}
	if store.Add(p) {
		t.Error("Expected duplicate Add to be rejected")
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 patient, got %d", store.Len())
	}
}

func TestListPreservesInsertionOrder(t *testing.T) {
	store := NewStore(16)
	names := []string{"Ana", "Boris", "Carla"}
	for _, name := range names {
		store.Add(newTestPatient(name))
	}

	list := store.List()
	if len(list) != len(names) {
		t.Fatalf("Expected %d patients, got %d", len(names), len(list))
	}
	for i, name := range names {
		if list[i].Name != name {
			t.Errorf("Expected %s at position %d, got %s", name, i, list[i].Name)
		}
	}
}

func TestVersionGatedUpdate(t *testing.T) {
	store := NewStore(16)
	p := newTestPatient("Dorothy Chen")
	store.Add(p)

	newName := "Dorothy M. Chen"

	t.Run("nil version always applies", func(t *testing.T) {
		updated, applied := store.Update(p.PID, Patch{Name: &newName}, nil)
		if !applied {
			t.Fatal("Expected update to apply")
		}
		if updated.Version != 1 {
			t.Errorf("Expected version 1, got %d", updated.Version)
		}
	})

	t.Run("stale version is dropped", func(t *testing.T) {
		stale := int64(1)
		other := "Wrong Name"
		updated, applied := store.Update(p.PID, Patch{Name: &other}, &stale)
		if applied {
			t.Error("Expected stale update to be dropped")
		}
		if updated.Name != newName {
			t.Errorf("Expected name unchanged, got %s", updated.Name)
		}
	})

	t.Run("higher version is adopted", func(t *testing.T) {
		v := int64(7)
		other := "Dorothy Chen-Park"
		updated, applied := store.Update(p.PID, Patch{Name: &other}, &v)
		if !applied {
			t.Fatal("Expected update to apply")
		}
		if updated.Version != 7 {
			t.Errorf("Expected adopted version 7, got %d", updated.Version)
		}
	})
}

func TestVersionIncreasesOnEveryMutation(t *testing.T) {
	store := NewStore(16)
	p := newTestPatient("Ryan O'Brien")
	store.Add(p)

	last := int64(0)
	accepted, _ := store.Accept(p.PID, 1)
	if accepted.Version <= last {
		t.Errorf("Expected version to increase, got %d", accepted.Version)
	}
	last = accepted.Version

	bedded, _ := store.AssignBed(p.PID, 1, 2)
	if bedded.Version <= last {
		t.Errorf("Expected version to increase, got %d", bedded.Version)
	}
}

func TestGuardedTransitions(t *testing.T) {
	tests := []struct {
		name string
		run  func(store *Store, pid string) (Patient, bool)
		from Status
		ok   bool
	}{
		{"accept from called_in", func(s *Store, pid string) (Patient, bool) { return s.Accept(pid, 1) }, StatusCalledIn, true},
		{"accept from er_bed", func(s *Store, pid string) (Patient, bool) { return s.Accept(pid, 1) }, StatusERBed, false},
		{"discharge from er_bed", func(s *Store, pid string) (Patient, bool) { return s.Discharge(pid, 1) }, StatusERBed, true},
		{"discharge from waiting_room", func(s *Store, pid string) (Patient, bool) { return s.Discharge(pid, 1) }, StatusWaitingRoom, false},
		{"transfer to or from er_bed", func(s *Store, pid string) (Patient, bool) { return s.Transfer(pid, StatusOR, 1) }, StatusERBed, true},
		{"transfer from called_in", func(s *Store, pid string) (Patient, bool) { return s.Transfer(pid, StatusICU, 1) }, StatusCalledIn, false},
		{"mark done from or", func(s *Store, pid string) (Patient, bool) { return s.MarkDone(pid, 1) }, StatusOR, true},
		{"mark done from er_bed", func(s *Store, pid string) (Patient, bool) { return s.MarkDone(pid, 1) }, StatusERBed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(16)
			p := newTestPatient("Test Patient")
			p.Status = tt.from
			store.Add(p)

			before, _ := store.Get(p.PID)
			updated, ok := tt.run(store, p.PID)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if !tt.ok && updated.Status != before.Status {
				t.Errorf("Expected rejected transition to leave status %s, got %s", before.Status, updated.Status)
			}
			if !tt.ok && updated.Version != before.Version {
				t.Errorf("Expected rejected transition to leave version %d, got %d", before.Version, updated.Version)
			}
		})
	}
}

func TestTransferClearsBed(t *testing.T) {
	store := NewStore(16)
	p := newTestPatient("Emily Torres")
	p.Status = StatusWaitingRoom
	store.Add(p)

	store.AssignBed(p.PID, 4, 1)
	updated, ok := store.Transfer(p.PID, StatusOR, 2)
	if !ok {
		t.Fatal("Expected transfer to succeed")
	}
	if updated.BedNumber != nil {
		t.Errorf("Expected bed cleared, got %d", *updated.BedNumber)
	}
}

func TestBedExclusivity(t *testing.T) {
	store := NewStore(2)

	a := newTestPatient("A")
	a.Status = StatusWaitingRoom
	b := newTestPatient("B")
	b.Status = StatusWaitingRoom
	c := newTestPatient("C")
	c.Status = StatusWaitingRoom
	store.Add(a)
	store.Add(b)
	store.Add(c)

	if _, ok := store.AssignBed(a.PID, 1, 1); !ok {
		t.Fatal("Expected bed 1 assignment to succeed")
	}
	if _, ok := store.AssignBed(b.PID, 1, 1); ok {
		t.Error("Expected occupied bed 1 to be rejected")
	}

	bed, free := store.NextFreeBed()
	if !free || bed != 2 {
		t.Errorf("Expected next free bed 2, got %d (free=%v)", bed, free)
	}

	store.AssignBed(b.PID, 2, 1)
	if _, free := store.NextFreeBed(); free {
		t.Error("Expected no free beds")
	}
	if _, ok := store.AssignBed(c.PID, 3, 1); ok {
		t.Error("Expected out-of-range bed to be rejected")
	}
}

func TestFlagForDischargeGuards(t *testing.T) {
	store := NewStore(16)
	p := newTestPatient("Linda Okafor")
	p.Status = StatusWaitingRoom
	store.Add(p)
	store.AssignBed(p.PID, 1, 1)

	t.Run("red patient cannot be flagged", func(t *testing.T) {
		store.MarkRed(p.PID)
		if _, ok := store.FlagForDischarge(p.PID); ok {
			t.Error("Expected red patient to be rejected")
		}
	})

	t.Run("acknowledged patient can be flagged", func(t *testing.T) {
		store.AcknowledgeLabs(p.PID)
		updated, ok := store.FlagForDischarge(p.PID)
		if !ok {
			t.Fatal("Expected flag to succeed after acknowledgement")
		}
		if updated.Color != ColorGreen {
			t.Errorf("Expected color green, got %s", updated.Color)
		}
		if updated.Status != StatusERBed {
			t.Errorf("Expected status unchanged, got %s", updated.Status)
		}
	})

	t.Run("flag is idempotent-rejecting", func(t *testing.T) {
		if _, ok := store.FlagForDischarge(p.PID); ok {
			t.Error("Expected already-green patient to be rejected")
		}
	})
}

func TestAcknowledgeLabsRestoresDefaultColor(t *testing.T) {
	store := NewStore(16)
	p := newTestPatient("Fatima Al-Hassan")
	p.Status = StatusERBed
	bed := 2
	p.BedNumber = &bed
	p.LabResults = []LabResult{
		{Test: "BNP", Result: "2400 pg/mL", IsSurprising: true, ArrivesAtTick: 5},
	}
	store.Add(p)

	store.MarkRed(p.PID)
	updated, ok := store.AcknowledgeLabs(p.PID)
	if !ok {
		t.Fatal("Expected acknowledgement to succeed")
	}
	if updated.Color != ColorGrey {
		t.Errorf("Expected default color grey, got %s", updated.Color)
	}
	for _, lab := range updated.LabResults {
		if lab.IsSurprising && !lab.Acknowledged {
			t.Error("Expected surprising labs to be acknowledged")
		}
	}
}

func TestRejectDischarge(t *testing.T) {
	store := NewStore(16)
	p := newTestPatient("Kevin Brooks")
	p.Status = StatusWaitingRoom
	store.Add(p)
	store.AssignBed(p.PID, 8, 1)
	store.FlagForDischarge(p.PID)

	labs := []LabResult{{Test: "CBC", Result: "pending", ArrivesAtTick: 12}}
	updated, ok := store.RejectDischarge(p.PID, 9, labs, "wants repeat CBC before discharge")
	if !ok {
		t.Fatal("Expected rejection to apply")
	}
	if updated.Color == ColorGreen {
		t.Error("Expected green flag to be reversed")
	}
	if updated.TimeToDischarge == nil || *updated.TimeToDischarge != 9 {
		t.Error("Expected time_to_discharge 9")
	}
	if len(updated.LabResults) != 1 {
		t.Errorf("Expected 1 lab, got %d", len(updated.LabResults))
	}
	if len(updated.RejectionNotes) != 1 {
		t.Errorf("Expected 1 rejection note, got %d", len(updated.RejectionNotes))
	}

	t.Run("rejecting an unflagged patient fails", func(t *testing.T) {
		if _, ok := store.RejectDischarge(p.PID, 5, nil, "again"); ok {
			t.Error("Expected rejection of non-green patient to fail")
		}
	})
}

func TestCountsByStatus(t *testing.T) {
	store := NewStore(16)

	a := newTestPatient("A")
	store.Add(a)
	b := newTestPatient("B")
	b.Status = StatusWaitingRoom
	store.Add(b)
	c := newTestPatient("C")
	c.Status = StatusWaitingRoom
	store.Add(c)
	store.AssignBed(c.PID, 1, 1)

	counts, beds := store.CountsByStatus()
	if counts[string(StatusCalledIn)] != 1 {
		t.Errorf("Expected 1 called_in, got %d", counts[string(StatusCalledIn)])
	}
	if counts[string(StatusWaitingRoom)] != 1 {
		t.Errorf("Expected 1 waiting_room, got %d", counts[string(StatusWaitingRoom)])
	}
	if counts[string(StatusERBed)] != 1 {
		t.Errorf("Expected 1 er_bed, got %d", counts[string(StatusERBed)])
	}
	if beds != 1 {
		t.Errorf("Expected 1 occupied bed, got %d", beds)
	}
}
