package intake

import (
	"context"
	"sync"

	"github.com/docbox-health/docbox/internal/patient"
	"github.com/google/uuid"
)

// fixture is the template a FixtureSource stamps new arrivals from.
// Lab arrival ticks are relative offsets, rebased against the current
// tick when the patient is produced.
type fixture struct {
	name           string
	sex            string
	age            int
	chiefComplaint string
	hpi            string
	esi            int
	labs           []patient.LabResult
}

var defaultFixtures = []fixture{
	{
		name: "James Walker", sex: "male", age: 58,
		chiefComplaint: "Chest pain radiating to left arm",
		hpi:            "58-year-old male with 2 hours of substernal chest pressure, diaphoresis, and nausea.",
		esi:            2,
		labs: []patient.LabResult{
			{Test: "Troponin I", Result: "0.02 ng/mL (normal)", ArrivesAtTick: 6},
			{Test: "ECG", Result: "Nonspecific ST changes", ArrivesAtTick: 3},
		},
	},
	{
		name: "Dorothy Chen", sex: "female", age: 81,
		chiefComplaint: "Acute confusion",
		hpi:            "81-year-old female brought in by family for new confusion and low-grade fever since this morning.",
		esi:            2,
		labs: []patient.LabResult{
			{Test: "Urinalysis", Result: "Positive leukocyte esterase, nitrites", ArrivesAtTick: 5},
			{Test: "Lactate", Result: "4.1 mmol/L (elevated)", IsSurprising: true, ArrivesAtTick: 8},
		},
	},
	{
		name: "David Park", sex: "male", age: 34,
		chiefComplaint: "Severe migraine",
		hpi:            "34-year-old male with throbbing unilateral headache, photophobia, similar to prior migraines.",
		esi:            4,
	},
	{
		name: "Carmen Reyes", sex: "female", age: 45,
		chiefComplaint: "Lower back pain",
		hpi:            "45-year-old female with 3 days of lumbar pain after lifting, no red-flag symptoms.",
		esi:            4,
	},
	{
		name: "Ryan O'Brien", sex: "male", age: 29,
		chiefComplaint: "Flank pain",
		hpi:            "29-year-old male with colicky right flank pain radiating to the groin, hematuria.",
		esi:            3,
		labs: []patient.LabResult{
			{Test: "CT abdomen/pelvis", Result: "4mm distal ureteral stone", ArrivesAtTick: 10},
		},
	},
	{
		name: "Linda Okafor", sex: "female", age: 67,
		chiefComplaint: "Dizziness on warfarin",
		hpi:            "67-year-old female on warfarin with lightheadedness and a minor fall yesterday.",
		esi:            3,
		labs: []patient.LabResult{
			{Test: "INR", Result: "7.2 (critical)", IsSurprising: true, ArrivesAtTick: 7},
		},
	},
	{
		name: "Susan Williams", sex: "female", age: 39,
		chiefComplaint: "Allergic reaction",
		hpi:            "39-year-old female with facial swelling and hives after shellfish, no airway compromise.",
		esi:            3,
	},
	{
		name: "Thomas Anderson", sex: "male", age: 72,
		chiefComplaint: "Syncope",
		hpi:            "72-year-old male with brief loss of consciousness while standing, no prodrome.",
		esi:            2,
		labs: []patient.LabResult{
			{Test: "ECG", Result: "Sinus rhythm, no acute changes", ArrivesAtTick: 4},
		},
	},
}

// FixtureSource cycles through built-in patient templates. It never
// fails, which makes it the fallback behind the AI source and the
// default source in tests and offline development.
type FixtureSource struct {
	mu       sync.Mutex
	fixtures []fixture
	next     int
}

// NewFixtureSource creates a source over the built-in templates
func NewFixtureSource() *FixtureSource {
	return &FixtureSource{fixtures: defaultFixtures}
}

// Next produces the next templated patient with a fresh id and lab
// ticks rebased to the current tick.
func (s *FixtureSource) Next(ctx context.Context, tick int64) (patient.Patient, error) {
	s.mu.Lock()
	f := s.fixtures[s.next%len(s.fixtures)]
	s.next++
	s.mu.Unlock()

	age := f.age
	esi := f.esi
	p := patient.Patient{
		PID:            uuid.New().String(),
		Name:           f.name,
		Sex:            f.sex,
		Age:            &age,
		ChiefComplaint: f.chiefComplaint,
		HPI:            f.hpi,
		ESIScore:       &esi,
	}
	for _, lab := range f.labs {
		lab.ArrivesAtTick += tick
		p.LabResults = append(p.LabResults, lab)
	}

	normalize(&p, tick)
	return p, nil
}

// normalize forces the invariants every arrival must satisfy before it
// joins the board.
func normalize(p *patient.Patient, tick int64) {
	if p.PID == "" {
		p.PID = uuid.New().String()
	}
	p.Status = patient.StatusCalledIn
	p.Color = patient.ColorGrey
	p.IsSimulated = true
	p.BedNumber = nil
	p.Version = 0
	p.EnteredStatusTick = tick
}
