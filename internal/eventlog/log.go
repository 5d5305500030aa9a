package eventlog

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/docbox-health/docbox/internal/shared/events"
	"github.com/docbox-health/docbox/internal/shared/metrics"
	"github.com/google/uuid"
)

// Log is the append-only activity feed shown to operators. Entries are
// held in memory in append order and mirrored to the event bus on a
// best-effort basis.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	bus     events.EventBus
}

// NewLog creates an empty log mirroring to the given bus
func NewLog(bus events.EventBus) *Log {
	return &Log{bus: bus}
}

// Record appends an entry for the given patient event and returns it
func (l *Log) Record(pid, patientName, event, detail string, tick int64) Entry {
	entry := Entry{
		ID:          uuid.New().String(),
		PID:         pid,
		PatientName: patientName,
		Event:       event,
		Detail:      detail,
		Tick:        tick,
		Timestamp:   time.Now().UTC(),
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	metrics.RecordLogEntry()
	l.mirror(entry)
	return entry
}

// Entries returns a copy of all entries in append order
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Reset clears the log (simulation reset)
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

func (l *Log) mirror(entry Entry) {
	if l.bus == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		event := events.NewEvent("activity."+entry.Event, "docbox-sim", entry).
			WithSubject(entry.PID, entry.Tick)
		if err := l.bus.Publish(ctx, event); err != nil {
			log.Printf("eventlog: failed to mirror %s entry: %v", entry.Event, err)
		}
	}()
}
