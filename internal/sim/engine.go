package sim

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/docbox-health/docbox/internal/eventlog"
	"github.com/docbox-health/docbox/internal/patient"
	"github.com/docbox-health/docbox/internal/shared/config"
	"github.com/docbox-health/docbox/internal/shared/errors"
	"github.com/docbox-health/docbox/internal/shared/metrics"
)

// Engine bundles the simulation pieces and exposes every transition —
// automatic and staff-initiated — through one surface, so each goes
// through the same version bumping, logging and metrics paths.
type Engine struct {
	Store     *patient.Store
	Log       *eventlog.Log
	Timers    *TimerRegistry
	Clock     *Clock
	Processor *Processor

	cfg config.SimConfig
}

// NewEngine wires a simulation engine. A nil rng seeds from the wall
// clock; tests inject a seeded one.
func NewEngine(store *patient.Store, lg *eventlog.Log, source ArrivalSource, cfg config.SimConfig, rng *rand.Rand) *Engine {
	timers := NewTimerRegistry()
	processor := NewProcessor(store, lg, timers, source, cfg, rng)
	clock := NewClock(time.Duration(cfg.BaseIntervalMs)*time.Millisecond, cfg.DefaultSpeed, Mode(cfg.DefaultMode), processor.Tick)

	return &Engine{
		Store:     store,
		Log:       lg,
		Timers:    timers,
		Clock:     clock,
		Processor: processor,
		cfg:       cfg,
	}
}

// Start resumes the clock
func (e *Engine) Start() {
	e.Clock.Start()
}

// Stop pauses the clock, preserving all state
func (e *Engine) Stop() {
	e.Clock.Stop()
}

// Reset stops the clock and clears patients, log entries, deadlines and
// the tick counter. Speed and mode are left as the operator set them.
func (e *Engine) Reset() {
	e.Clock.Reset()
	e.Store.Clear()
	e.Timers.Reset()
	e.Log.Reset()
}

// Step advances exactly one tick
func (e *Engine) Step() int64 {
	return e.Clock.Step()
}

// SetSpeed changes the speed multiplier
func (e *Engine) SetSpeed(speed float64) error {
	if !e.Clock.SetSpeed(speed) {
		return errors.Validation("invalid speed multiplier", map[string]string{
			"speed": fmt.Sprintf("must be between %.1f and %.1f in steps of 0.5", MinSpeed, MaxSpeed),
		})
	}
	return nil
}

// SetMode changes the simulation mode
func (e *Engine) SetMode(mode Mode) error {
	if !e.Clock.SetMode(mode) {
		return errors.Validation("invalid mode", map[string]string{
			"mode": "must be one of manual, nurse-manual, doctor-manual, auto",
		})
	}
	return nil
}

// State returns the externally visible simulation state
func (e *Engine) State() State {
	return e.Clock.State()
}

// Tick returns the current tick number
func (e *Engine) Tick() int64 {
	return e.Clock.Tick()
}

// Patient returns a snapshot of one patient
func (e *Engine) Patient(pid string) (patient.Patient, bool) {
	return e.Store.Get(pid)
}

// InjectNow adds a patient to the board immediately with status
// called_in, bypassing the stochastic arrival path.
func (e *Engine) InjectNow(p patient.Patient) (patient.Patient, error) {
	tick := e.Clock.Tick()
	p.Status = patient.StatusCalledIn
	p.EnteredStatusTick = tick
	if !e.Store.Add(p) {
		return patient.Patient{}, errors.Conflict("patient already exists")
	}
	e.Log.Record(p.PID, p.Name, eventlog.EventCalledIn, "", tick)
	metrics.RecordArrival()
	added, _ := e.Store.Get(p.PID)
	return added, nil
}

// Delete removes a patient from the board along with any deadlines
// held for it, so the registry only tracks active patients.
func (e *Engine) Delete(pid string) bool {
	if !e.Store.Remove(pid) {
		return false
	}
	e.Timers.ClearDischarge(pid)
	e.Timers.ClearWait(pid)
	return true
}

// Accept moves a called-in patient to the waiting room
func (e *Engine) Accept(pid string) (patient.Patient, error) {
	return e.transition(pid, eventlog.EventAccepted, "", func(tick int64) (patient.Patient, bool) {
		return e.Store.Accept(pid, tick)
	})
}

// AssignBed places a waiting patient in a specific bed
func (e *Engine) AssignBed(pid string, bed int) (patient.Patient, error) {
	return e.transition(pid, eventlog.EventAssignedBed, fmt.Sprintf("bed %d", bed), func(tick int64) (patient.Patient, bool) {
		updated, ok := e.Store.AssignBed(pid, bed, tick)
		if ok {
			e.Timers.ClearWait(pid)
		}
		return updated, ok
	})
}

// AutoAssignBed places a waiting patient in the lowest free bed
func (e *Engine) AutoAssignBed(pid string) (patient.Patient, error) {
	bed, free := e.Store.NextFreeBed()
	if !free {
		return patient.Patient{}, errors.Conflict("no free beds")
	}
	return e.AssignBed(pid, bed)
}

// FlagForDischarge marks a bedded patient ready for discharge
func (e *Engine) FlagForDischarge(pid string) (patient.Patient, error) {
	return e.transition(pid, eventlog.EventFlaggedDischarge, "", func(tick int64) (patient.Patient, bool) {
		updated, ok := e.Store.FlagForDischarge(pid)
		if ok {
			e.Timers.ClearDischarge(pid)
		}
		return updated, ok
	})
}

// Discharge completes a bedded patient's stay
func (e *Engine) Discharge(pid string) (patient.Patient, error) {
	return e.transition(pid, eventlog.EventDischarged, "", func(tick int64) (patient.Patient, bool) {
		updated, ok := e.Store.Discharge(pid, tick)
		if ok {
			e.Timers.ClearDischarge(pid)
		}
		return updated, ok
	})
}

// Transfer moves a bedded patient to the OR or ICU
func (e *Engine) Transfer(pid string, to patient.Status) (patient.Patient, error) {
	if to != patient.StatusOR && to != patient.StatusICU {
		return patient.Patient{}, errors.BadRequest("transfer target must be or/icu")
	}
	return e.transition(pid, eventlog.EventTransferred, "to "+string(to), func(tick int64) (patient.Patient, bool) {
		updated, ok := e.Store.Transfer(pid, to, tick)
		if ok {
			e.Timers.ClearDischarge(pid)
		}
		return updated, ok
	})
}

// MarkDone completes an OR/ICU patient
func (e *Engine) MarkDone(pid string) (patient.Patient, error) {
	return e.transition(pid, eventlog.EventMarkedDone, "", func(tick int64) (patient.Patient, bool) {
		return e.Store.MarkDone(pid, tick)
	})
}

// AcknowledgeLabs acknowledges a patient's surprising labs, returning
// the color to its default.
func (e *Engine) AcknowledgeLabs(pid string) (patient.Patient, error) {
	if _, ok := e.Store.Get(pid); !ok {
		return patient.Patient{}, errors.NotFound("patient", pid)
	}
	updated, ok := e.Store.AcknowledgeLabs(pid)
	if !ok {
		return updated, errors.Conflict("no unacknowledged labs")
	}
	return updated, nil
}

// RejectDischarge applies an adjudicated discharge rejection: the flag
// is reversed, the new discharge delay recorded and any ordered
// follow-up labs attached. The stale discharge deadline is dropped so
// the next tick schedules from the adjudicated delay.
func (e *Engine) RejectDischarge(pid string, timeToDischarge int64, labs []patient.LabResult, note string) (patient.Patient, error) {
	if _, ok := e.Store.Get(pid); !ok {
		return patient.Patient{}, errors.NotFound("patient", pid)
	}
	updated, ok := e.Store.RejectDischarge(pid, timeToDischarge, labs, note)
	if !ok {
		return updated, errors.Conflict("patient is not flagged for discharge")
	}
	e.Timers.ClearDischarge(pid)
	return updated, nil
}

// transition runs a guarded store mutation at the current tick and, on
// success, records the log entry and metric for it.
func (e *Engine) transition(pid, event, detail string, fn func(tick int64) (patient.Patient, bool)) (patient.Patient, error) {
	if _, ok := e.Store.Get(pid); !ok {
		return patient.Patient{}, errors.NotFound("patient", pid)
	}
	tick := e.Clock.Tick()
	updated, ok := fn(tick)
	if !ok {
		return updated, errors.Conflict(fmt.Sprintf("%s not allowed from the patient's current state", event))
	}
	e.Log.Record(updated.PID, updated.Name, event, detail, tick)
	metrics.RecordTransition(event)
	return updated, nil
}
