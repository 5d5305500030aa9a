package patient

import (
	"time"
)

// Status is the patient's position in the ER pipeline. The pipeline is a
// DAG, not a chain: er_bed branches to or/icu, both converging on done.
type Status string

const (
	StatusCalledIn    Status = "called_in"
	StatusWaitingRoom Status = "waiting_room"
	StatusERBed       Status = "er_bed"
	StatusOR          Status = "or"
	StatusICU         Status = "icu"
	StatusDischarge   Status = "discharge"
	StatusDone        Status = "done"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusCalledIn, StatusWaitingRoom, StatusERBed, StatusOR, StatusICU, StatusDischarge, StatusDone:
		return true
	}
	return false
}

// Color is advisory acuity metadata layered on top of status, not a
// replacement for it: green = flagged ready for discharge while still in
// a bed, red = an unacknowledged surprising lab result.
type Color string

const (
	ColorGrey   Color = "grey"
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
	ColorRed    Color = "red"
)

// LabResult is a single lab order; it becomes visible and actionable once
// the simulation reaches ArrivesAtTick.
type LabResult struct {
	Test          string `json:"test"`
	Result        string `json:"result"`
	IsSurprising  bool   `json:"is_surprising"`
	ArrivesAtTick int64  `json:"arrives_at_tick"`
	Acknowledged  bool   `json:"acknowledged,omitempty"`
}

// Patient is one person in the ER pipeline. The clinical narrative fields
// are opaque to the simulation engine; it only reads ESIScore, Color and
// LabResults.
type Patient struct {
	PID  string `json:"pid"`
	Name string `json:"name"`

	Sex                 string `json:"sex,omitempty"`
	Age                 *int   `json:"age,omitempty"`
	DOB                 string `json:"dob,omitempty"`
	ChiefComplaint      string `json:"chief_complaint,omitempty"`
	HPI                 string `json:"hpi,omitempty"`
	PMH                 string `json:"pmh,omitempty"`
	FamilySocialHistory string `json:"family_social_history,omitempty"`
	ReviewOfSystems     string `json:"review_of_systems,omitempty"`
	Objective           string `json:"objective,omitempty"`
	PrimaryDiagnoses    string `json:"primary_diagnoses,omitempty"`
	Justification       string `json:"justification,omitempty"`
	Plan                string `json:"plan,omitempty"`
	TriageNotes         string `json:"triage_notes,omitempty"`

	// ESIScore is the Emergency Severity Index, 1 (most urgent) to 5
	ESIScore *int `json:"esi_score,omitempty"`

	Color  Color  `json:"color"`
	Status Status `json:"status"`

	// BedNumber is set only while status is er_bed
	BedNumber *int `json:"bed_number,omitempty"`

	IsSimulated bool  `json:"is_simulated"`
	Version     int64 `json:"version"`

	LabResults []LabResult `json:"lab_results,omitempty"`

	// TimeToDischarge overrides the randomized discharge-flag delay
	TimeToDischarge *int64 `json:"time_to_discharge,omitempty"`

	RejectionNotes []string `json:"rejection_notes,omitempty"`

	// EnteredStatusTick records when the patient entered its current status
	EnteredStatusTick int64 `json:"entered_current_status_tick"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// HasUnacknowledgedSurprise reports whether any surprising lab has arrived
// by the given tick and not been acknowledged.
func (p *Patient) HasUnacknowledgedSurprise(tick int64) bool {
	for _, lab := range p.LabResults {
		if lab.IsSurprising && !lab.Acknowledged && lab.ArrivesAtTick <= tick {
			return true
		}
	}
	return false
}

// ESIOrDefault returns the ESI score, treating a missing score as lowest
// priority (5).
func (p *Patient) ESIOrDefault() int {
	if p.ESIScore == nil {
		return 5
	}
	return *p.ESIScore
}

// DefaultColor is the color a patient returns to when leaving red:
// externally injected patients show yellow, synthetic ones grey.
func (p *Patient) DefaultColor() Color {
	if !p.IsSimulated {
		return ColorYellow
	}
	return ColorGrey
}

// Clone returns a deep copy of the patient
func (p *Patient) Clone() Patient {
	out := *p
	if p.Age != nil {
		age := *p.Age
		out.Age = &age
	}
	if p.ESIScore != nil {
		esi := *p.ESIScore
		out.ESIScore = &esi
	}
	if p.BedNumber != nil {
		bed := *p.BedNumber
		out.BedNumber = &bed
	}
	if p.TimeToDischarge != nil {
		ttd := *p.TimeToDischarge
		out.TimeToDischarge = &ttd
	}
	if p.LabResults != nil {
		out.LabResults = make([]LabResult, len(p.LabResults))
		copy(out.LabResults, p.LabResults)
	}
	if p.RejectionNotes != nil {
		out.RejectionNotes = make([]string, len(p.RejectionNotes))
		copy(out.RejectionNotes, p.RejectionNotes)
	}
	return out
}

// Patch is a partial update; nil fields are left untouched
type Patch struct {
	Name             *string      `json:"name,omitempty"`
	Sex              *string      `json:"sex,omitempty"`
	Age              *int         `json:"age,omitempty"`
	ChiefComplaint   *string      `json:"chief_complaint,omitempty"`
	HPI              *string      `json:"hpi,omitempty"`
	PMH              *string      `json:"pmh,omitempty"`
	PrimaryDiagnoses *string      `json:"primary_diagnoses,omitempty"`
	Plan             *string      `json:"plan,omitempty"`
	TriageNotes      *string      `json:"triage_notes,omitempty"`
	ESIScore         *int         `json:"esi_score,omitempty"`
	Color            *Color       `json:"color,omitempty"`
	Status           *Status      `json:"status,omitempty"`
	TimeToDischarge  *int64       `json:"time_to_discharge,omitempty"`
	LabResults       *[]LabResult `json:"lab_results,omitempty"`
	RejectionNotes   *[]string    `json:"rejection_notes,omitempty"`
}

func (p *Patient) applyPatch(patch Patch) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Sex != nil {
		p.Sex = *patch.Sex
	}
	if patch.Age != nil {
		p.Age = patch.Age
	}
	if patch.ChiefComplaint != nil {
		p.ChiefComplaint = *patch.ChiefComplaint
	}
	if patch.HPI != nil {
		p.HPI = *patch.HPI
	}
	if patch.PMH != nil {
		p.PMH = *patch.PMH
	}
	if patch.PrimaryDiagnoses != nil {
		p.PrimaryDiagnoses = *patch.PrimaryDiagnoses
	}
	if patch.Plan != nil {
		p.Plan = *patch.Plan
	}
	if patch.TriageNotes != nil {
		p.TriageNotes = *patch.TriageNotes
	}
	if patch.ESIScore != nil {
		p.ESIScore = patch.ESIScore
	}
	if patch.Color != nil {
		p.Color = *patch.Color
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.TimeToDischarge != nil {
		p.TimeToDischarge = patch.TimeToDischarge
	}
	if patch.LabResults != nil {
		p.LabResults = *patch.LabResults
	}
	if patch.RejectionNotes != nil {
		p.RejectionNotes = *patch.RejectionNotes
	}
}
