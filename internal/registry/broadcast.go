package registry

import "pulseprint"

// Event types emitted by the broadcaster.
const (
	EventPrinterUpdate  = "printer-update"
	EventPrinterRemoved = "printer-removed"
)

// Event is one broadcast notification. Printer is a clone and safe to keep;
// it is nil for removal notices.
type Event struct {
	Type      string              `json:"type"`
	PrinterID string              `json:"printer_id"`
	Printer   *pulseprint.Printer `json:"printer,omitempty"`
}

const subscriberBuffer = 16

// Subscribe registers a listener for fleet events. The returned cancel
// function releases the channel; it is safe to call more than once. Every
// mutation broadcasts a full snapshot, not a diff.
func (r *Registry) Subscribe() (<-chan Event, func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	id := r.nextSub
	r.nextSub++
	ch := make(chan Event, subscriberBuffer)
	r.subs[id] = ch

	cancel := func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		if sub, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// broadcast fans the event out without blocking: a listener that cannot
// keep up loses events rather than stalling registry writers.
func (r *Registry) broadcast(ev Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
