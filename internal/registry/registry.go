// Package registry owns the live fleet state: one snapshot, one telemetry
// accumulator and at most one transport session per registered printer.
package registry

import (
	"sort"
	"sync"

	"pulseprint"
	"pulseprint/internal/telemetry"
)

// Session is the transport handle pooled for a connected printer. Publishes
// are fire-and-forget. Implemented by the MQTT layer; an interface here so
// dispatch is testable without a broker.
type Session interface {
	Publish(topic string, payload []byte) error
}

// Registry guards the three maps with a single RWMutex: many concurrent
// readers or one writer, never both. The lock is held only for map access,
// never across a network call, and only clones leave it.
type Registry struct {
	mu        sync.RWMutex
	printers  map[string]*pulseprint.Printer
	telemetry map[string]map[string]any
	sessions  map[string]Session

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

func New() *Registry {
	return &Registry{
		printers:  make(map[string]*pulseprint.Printer),
		telemetry: make(map[string]map[string]any),
		sessions:  make(map[string]Session),
		subs:      make(map[int]chan Event),
	}
}

// Add inserts the initial snapshot for a newly registered printer together
// with an empty accumulator, and broadcasts the snapshot. Returns false if
// the id is already registered.
func (r *Registry) Add(p *pulseprint.Printer) bool {
	r.mu.Lock()
	if _, ok := r.printers[p.ID]; ok {
		r.mu.Unlock()
		return false
	}
	r.printers[p.ID] = p.Clone()
	r.telemetry[p.ID] = map[string]any{}
	snapshot := p.Clone()
	r.mu.Unlock()

	r.broadcast(Event{Type: EventPrinterUpdate, PrinterID: p.ID, Printer: snapshot})
	return true
}

// Remove deletes the snapshot, the accumulator and any pooled session.
// Exactly one removal notice is broadcast; removing an unknown id is a
// defined no-op.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, existed := r.printers[id]
	delete(r.printers, id)
	delete(r.telemetry, id)
	delete(r.sessions, id)
	r.mu.Unlock()

	if existed {
		r.broadcast(Event{Type: EventPrinterRemoved, PrinterID: id})
	}
	return existed
}

// Update mutates one snapshot under the write lock and broadcasts the
// result. The callback must not block. Returns false for unknown ids.
func (r *Registry) Update(id string, fn func(*pulseprint.Printer)) bool {
	r.mu.Lock()
	p, ok := r.printers[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	fn(p)
	snapshot := p.Clone()
	r.mu.Unlock()

	r.broadcast(Event{Type: EventPrinterUpdate, PrinterID: id, Printer: snapshot})
	return true
}

// Get returns a clone of one snapshot.
func (r *Registry) Get(id string) (*pulseprint.Printer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.printers[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// List returns a point-in-time copy of every snapshot, ordered by id.
func (r *Registry) List() []pulseprint.Printer {
	r.mu.RLock()
	out := make([]pulseprint.Printer, 0, len(r.printers))
	for _, p := range r.printers {
		out = append(out, *p.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MergeTelemetry folds one delta into the printer's accumulated tree and
// returns the merged result. ok is false when the printer was removed while
// the report was in flight. The returned tree is never mutated afterwards
// (merges build fresh nodes), so callers may read it outside the lock.
func (r *Registry) MergeTelemetry(id string, delta map[string]any) (map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.telemetry[id]
	if !ok {
		return nil, false
	}
	merged := telemetry.Merge(existing, delta).(map[string]any)
	r.telemetry[id] = merged
	return merged, true
}

// SetSession pools the transport handle for a connected printer. Ignored if
// the printer was removed in the meantime.
func (r *Registry) SetSession(id string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.printers[id]; ok {
		r.sessions[id] = s
	}
}

// Session clones the pooled handle out of the lock.
func (r *Registry) Session(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}
