package sim

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/docbox-health/docbox/internal/eventlog"
	"github.com/docbox-health/docbox/internal/patient"
	"github.com/docbox-health/docbox/internal/shared/config"
	"github.com/docbox-health/docbox/internal/shared/metrics"
)

// ArrivalSource produces new patients for stochastic arrivals
type ArrivalSource interface {
	Next(ctx context.Context, tick int64) (patient.Patient, error)
}

// Processor runs one simulation tick. Each tick performs, in order:
// surprising-lab red flips (deterministic), candidate collection for the
// mode-gated automatic transitions, priority-based waiting-room bed
// assignment, a single uniform-random commit from the candidate pool,
// and a stochastic arrival request. At most one non-deterministic
// transition commits per tick; everything else waits for a later tick.
type Processor struct {
	store  *patient.Store
	log    *eventlog.Log
	timers *TimerRegistry
	source ArrivalSource
	cfg    config.SimConfig

	rngMu sync.Mutex
	rng   *rand.Rand

	// pending holds arrivals produced by the source; they are drained
	// into the store at the start of the next tick so arrival side
	// effects never race the tick that requested them.
	pending chan patient.Patient
}

// candidate is one possible transition for the current tick. commit
// applies it and reports whether the guarded mutation took effect.
type candidate struct {
	pid    string
	event  string
	detail string
	commit func() (patient.Patient, bool)
}

// NewProcessor creates a tick processor
func NewProcessor(store *patient.Store, lg *eventlog.Log, timers *TimerRegistry, source ArrivalSource, cfg config.SimConfig, rng *rand.Rand) *Processor {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Processor{
		store:   store,
		log:     lg,
		timers:  timers,
		source:  source,
		cfg:     cfg,
		rng:     rng,
		pending: make(chan patient.Patient, 32),
	}
}

// Enqueue stages an arrival for the next tick
func (pr *Processor) Enqueue(p patient.Patient) bool {
	select {
	case pr.pending <- p:
		return true
	default:
		log.Printf("sim: pending arrival queue full, dropping patient %s", p.PID)
		return false
	}
}

// Tick runs one full simulation tick at tick number T under the given
// mode.
func (pr *Processor) Tick(tick int64, mode Mode) {
	pr.drainArrivals(tick)

	flipped := pr.flipSurprisingLabs(tick)

	pool := pr.collectCandidates(tick, mode, flipped)
	pool = append(pool, pr.assignBeds(tick)...)

	pr.commitOne(tick, pool)

	pr.requestArrival(tick)

	counts, beds := pr.store.CountsByStatus()
	metrics.RecordPatientCounts(counts, beds)
	metrics.RecordTick()
}

// drainArrivals adds staged arrivals to the store
func (pr *Processor) drainArrivals(tick int64) {
	for {
		select {
		case p := <-pr.pending:
			p.Status = patient.StatusCalledIn
			p.EnteredStatusTick = tick
			if p.Color == "" {
				p.Color = p.DefaultColor()
			}
			if pr.store.Add(p) {
				pr.log.Record(p.PID, p.Name, eventlog.EventCalledIn, "", tick)
				metrics.RecordArrival()
			}
		default:
			return
		}
	}
}

// flipSurprisingLabs turns bedded patients red when a surprising lab has
// arrived unacknowledged. A flip clears any pending discharge deadline
// and removes the patient from this tick's candidate pool. It also
// records informational entries for non-surprising labs arriving this
// tick.
func (pr *Processor) flipSurprisingLabs(tick int64) map[string]bool {
	flipped := make(map[string]bool)
	for _, p := range pr.store.List() {
		for _, lab := range p.LabResults {
			if !lab.IsSurprising && lab.ArrivesAtTick == tick {
				pr.log.Record(p.PID, p.Name, eventlog.EventLabArrived, lab.Test, tick)
			}
		}
		if p.Status != patient.StatusERBed || p.Color == patient.ColorRed || p.Color == patient.ColorGreen {
			continue
		}
		if !p.HasUnacknowledgedSurprise(tick) {
			continue
		}
		if updated, ok := pr.store.MarkRed(p.PID); ok {
			pr.timers.ClearDischarge(p.PID)
			pr.log.Record(updated.PID, updated.Name, eventlog.EventTurnedRed, "", tick)
			metrics.RecordTransition(eventlog.EventTurnedRed)
			flipped[p.PID] = true
		}
	}
	return flipped
}

// collectCandidates builds the uniform pool of mode-gated automatic
// transitions.
func (pr *Processor) collectCandidates(tick int64, mode Mode, skip map[string]bool) []candidate {
	var pool []candidate
	for _, p := range pr.store.List() {
		if skip[p.PID] {
			continue
		}
		pid := p.PID

		// Only bedded patients hold a discharge deadline
		if p.Status != patient.StatusERBed {
			pr.timers.ClearDischarge(pid)
		}

		switch {
		case p.Status == patient.StatusCalledIn && mode.AutoAccept():
			pool = append(pool, candidate{
				pid:   pid,
				event: eventlog.EventAccepted,
				commit: func() (patient.Patient, bool) {
					return pr.store.Accept(pid, tick)
				},
			})

		case p.Status == patient.StatusERBed && p.Color == patient.ColorGreen && mode.AutoDischarge():
			pool = append(pool, candidate{
				pid:   pid,
				event: eventlog.EventDischarged,
				commit: func() (patient.Patient, bool) {
					pr.timers.ClearDischarge(pid)
					return pr.store.Discharge(pid, tick)
				},
			})

		case (p.Status == patient.StatusOR || p.Status == patient.StatusICU) && mode.AutoDischarge():
			pool = append(pool, candidate{
				pid:   pid,
				event: eventlog.EventMarkedDone,
				commit: func() (patient.Patient, bool) {
					return pr.store.MarkDone(pid, tick)
				},
			})

		case p.Status == patient.StatusERBed && p.Color != patient.ColorGreen && p.Color != patient.ColorRed && mode != ModeManual:
			delay := int64(pr.randInt(pr.cfg.DischargeDelayMin, pr.cfg.DischargeDelayMax))
			if p.TimeToDischarge != nil {
				delay = *p.TimeToDischarge
			}
			readyAt := pr.timers.EnsureDischarge(pid, tick+delay)
			if tick >= readyAt {
				pool = append(pool, candidate{
					pid:   pid,
					event: eventlog.EventFlaggedDischarge,
					commit: func() (patient.Patient, bool) {
						updated, ok := pr.store.FlagForDischarge(pid)
						if ok {
							pr.timers.ClearDischarge(pid)
						}
						return updated, ok
					},
				})
			}
		}
	}
	return pool
}

// waitingCandidate pairs a waiting patient with its overdue state
type waitingCandidate struct {
	p       patient.Patient
	overdue bool
}

// assignBeds handles waiting-room ordering. The single highest-priority
// waiting patient is considered: an overdue one takes the next free bed
// immediately, bypassing the random pool; otherwise a bed-assignment
// candidate joins the pool. Priority is overdue-first, then ascending
// ESI with a missing score treated as 5.
func (pr *Processor) assignBeds(tick int64) []candidate {
	var waiting []waitingCandidate
	for _, p := range pr.store.List() {
		if p.Status != patient.StatusWaitingRoom {
			pr.timers.ClearWait(p.PID)
			continue
		}
		overdueAt := pr.timers.EnsureWaitOverdue(p.PID, tick+int64(pr.randInt(pr.cfg.WaitThresholdMin, pr.cfg.WaitThresholdMax)))
		waiting = append(waiting, waitingCandidate{p: p, overdue: tick >= overdueAt})
	}
	if len(waiting) == 0 {
		return nil
	}

	sort.SliceStable(waiting, func(i, j int) bool {
		if waiting[i].overdue != waiting[j].overdue {
			return waiting[i].overdue
		}
		return waiting[i].p.ESIOrDefault() < waiting[j].p.ESIOrDefault()
	})
	top := waiting[0]

	bed, free := pr.store.NextFreeBed()
	if !free {
		return nil
	}

	if top.overdue {
		if updated, ok := pr.store.AssignBed(top.p.PID, bed, tick); ok {
			pr.timers.ClearWait(top.p.PID)
			pr.log.Record(updated.PID, updated.Name, eventlog.EventAssignedBed, fmt.Sprintf("bed %d", bed), tick)
			metrics.RecordTransition(eventlog.EventAssignedBed)
		}
		return nil
	}

	pid := top.p.PID
	return []candidate{{
		pid:    pid,
		event:  eventlog.EventAssignedBed,
		detail: fmt.Sprintf("bed %d", bed),
		commit: func() (patient.Patient, bool) {
			// recompute occupancy at commit time
			b, ok := pr.store.NextFreeBed()
			if !ok {
				return patient.Patient{}, false
			}
			updated, ok := pr.store.AssignBed(pid, b, tick)
			if ok {
				pr.timers.ClearWait(pid)
			}
			return updated, ok
		},
	}}
}

// commitOne draws one candidate uniformly at random and commits it
func (pr *Processor) commitOne(tick int64, pool []candidate) {
	if len(pool) == 0 {
		return
	}
	pr.rngMu.Lock()
	pick := pool[pr.rng.Intn(len(pool))]
	pr.rngMu.Unlock()

	updated, ok := pick.commit()
	if !ok {
		return
	}
	detail := pick.detail
	if pick.event == eventlog.EventAssignedBed && updated.BedNumber != nil {
		detail = fmt.Sprintf("bed %d", *updated.BedNumber)
	}
	pr.log.Record(updated.PID, updated.Name, pick.event, detail, tick)
	metrics.RecordTransition(pick.event)
}

// requestArrival fires an asynchronous request for one new patient with
// the configured per-tick probability. The produced patient is staged
// and joins the board at the start of a later tick.
func (pr *Processor) requestArrival(tick int64) {
	pr.rngMu.Lock()
	roll := pr.rng.Float64()
	pr.rngMu.Unlock()
	if roll >= pr.cfg.ArrivalProbability || pr.source == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		p, err := pr.source.Next(ctx, tick)
		if err != nil {
			log.Printf("sim: arrival request failed: %v", err)
			return
		}
		pr.Enqueue(p)
	}()
}

func (pr *Processor) randInt(min, max int) int {
	pr.rngMu.Lock()
	defer pr.rngMu.Unlock()
	if max <= min {
		return min
	}
	return min + pr.rng.Intn(max-min+1)
}
