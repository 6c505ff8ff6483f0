package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pulseprint"
	"pulseprint/internal/logger"
	"pulseprint/internal/registry"
)

var (
	// ErrUnsupportedAction rejects a command outside the device surface at
	// submission time; such commands never reach the queue.
	ErrUnsupportedAction = errors.New("unsupported command action")

	// ErrDispatcherClosed rejects submissions after shutdown.
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

// SupportedAction reports whether the action is part of the device command
// surface.
func SupportedAction(action string) bool {
	switch action {
	case pulseprint.ActionPause, pulseprint.ActionResume, pulseprint.ActionStop, pulseprint.ActionGetStatus:
		return true
	}
	return false
}

type queuedCommand struct {
	printerID string
	action    string
}

// Dispatcher serializes outbound control commands: an unbounded FIFO
// drained by exactly one worker, so commands go out in global submission
// order. Delivery is at-most-once: a missing printer or session means the
// command is logged and dropped, never retried.
type Dispatcher struct {
	reg *registry.Registry
	log *logger.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []queuedCommand
	closed bool
}

func NewDispatcher(reg *registry.Registry, log *logger.Logger) *Dispatcher {
	d := &Dispatcher{reg: reg, log: log}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Submit validates and enqueues a command. A nil return acknowledges
// acceptance, not delivery.
func (d *Dispatcher) Submit(printerID string, cmd pulseprint.Command) error {
	if !SupportedAction(cmd.Action) {
		return fmt.Errorf("%w: %q", ErrUnsupportedAction, cmd.Action)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.queue = append(d.queue, queuedCommand{printerID: printerID, action: cmd.Action})
	d.cond.Signal()
	return nil
}

// Run drains the queue until ctx is cancelled, then finishes whatever was
// already accepted. It is the single consumer: a slow resolution for one
// printer delays dispatch to all others.
func (d *Dispatcher) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		d.mu.Lock()
		d.closed = true
		d.cond.Broadcast()
		d.mu.Unlock()
	}()

	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		item := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.deliver(item)
	}
}

// deliver resolves the serial and pooled session for one queued command and
// publishes the envelope fire-and-forget.
func (d *Dispatcher) deliver(item queuedCommand) {
	printer, ok := d.reg.Get(item.printerID)
	if !ok {
		d.log.Errorw("command_dropped_unknown_printer", "printer_id", item.printerID, "action", item.action)
		return
	}
	session, ok := d.reg.Session(item.printerID)
	if !ok {
		d.log.Errorw("command_dropped_no_session", "printer_id", item.printerID, "action", item.action)
		return
	}

	if err := session.Publish(requestTopic(printer.Serial), commandEnvelope(item.action)); err != nil {
		d.log.Errorw("command_publish_failed", "printer_id", item.printerID, "action", item.action, "err", err)
		return
	}
	d.log.Infow("command_sent", "printer_id", item.printerID, "action", item.action)
}
