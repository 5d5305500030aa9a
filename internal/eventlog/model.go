package eventlog

import "time"

// Event kinds recorded in the activity log. Each corresponds to one
// patient transition or notable observation during a tick.
const (
	EventCalledIn         = "called_in"
	EventAccepted         = "accepted"
	EventAssignedBed      = "assigned_bed"
	EventFlaggedDischarge = "flagged_discharge"
	EventDischarged       = "discharged"
	EventMarkedDone       = "marked_done"
	EventTransferred      = "transferred"
	EventTurnedRed        = "turned_red"
	EventLabArrived       = "lab_arrived"
)

// Entry is one line of the append-only activity log
type Entry struct {
	ID          string    `json:"id"`
	PID         string    `json:"pid"`
	PatientName string    `json:"patient_name"`
	Event       string    `json:"event"`
	Detail      string    `json:"detail,omitempty"`
	Tick        int64     `json:"tick"`
	Timestamp   time.Time `json:"timestamp"`
}
