package sim

// Mode controls which transitions the simulation performs on its own and
// which are left to clinical staff.
type Mode string

const (
	// ModeManual leaves every transition to staff
	ModeManual Mode = "manual"
	// ModeNurseManual automates discharges but leaves intake to staff
	ModeNurseManual Mode = "nurse-manual"
	// ModeDoctorManual automates intake but leaves discharges to staff
	ModeDoctorManual Mode = "doctor-manual"
	// ModeAuto automates both
	ModeAuto Mode = "auto"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	switch m {
	case ModeManual, ModeNurseManual, ModeDoctorManual, ModeAuto:
		return true
	}
	return false
}

// AutoAccept reports whether the simulation accepts called-in patients
// into the waiting room on its own.
func (m Mode) AutoAccept() bool {
	return m == ModeDoctorManual || m == ModeAuto
}

// AutoDischarge reports whether the simulation discharges green bedded
// patients and completes OR/ICU stays on its own.
func (m Mode) AutoDischarge() bool {
	return m == ModeNurseManual || m == ModeAuto
}

const (
	// MinSpeed and MaxSpeed bound the speed multiplier; valid values step
	// by 0.5 between them.
	MinSpeed = 0.5
	MaxSpeed = 5.0
)

// ValidSpeed reports whether s is an allowed speed multiplier
func ValidSpeed(s float64) bool {
	if s < MinSpeed || s > MaxSpeed {
		return false
	}
	doubled := s * 2
	return doubled == float64(int64(doubled))
}

// State is the externally visible simulation state
type State struct {
	CurrentTick     int64   `json:"current_tick"`
	SpeedMultiplier float64 `json:"speed_multiplier"`
	Mode            Mode    `json:"mode"`
	IsRunning       bool    `json:"is_running"`
}
