// Package mqtt owns the device-facing transport: one long-lived TLS session
// per registered printer, plus the serialized command dispatcher.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"pulseprint"
	"pulseprint/internal/logger"
	"pulseprint/internal/registry"
	"pulseprint/internal/telemetry"
)

const (
	devicePort     = 8883
	deviceUser     = "bblp"
	keepAlive      = 60 * time.Second
	connectWait    = 60 * time.Second
	reconnectDelay = 5 * time.Second

	qosAtMostOnce       = 0
	disconnectQuiesceMs = 250
)

func reportTopic(serial string) string {
	return fmt.Sprintf("device/%s/report", serial)
}

func requestTopic(serial string) string {
	return fmt.Sprintf("device/%s/request", serial)
}

// commandEnvelope builds the wire payload for a control command. The
// sequence id is the wall clock in milliseconds, as a string.
func commandEnvelope(action string) []byte {
	payload, _ := json.Marshal(map[string]any{
		"print": map[string]any{
			"command":     action,
			"sequence_id": fmt.Sprintf("%d", time.Now().UnixMilli()),
		},
	})
	return payload
}

// pahoSession adapts a paho client to the registry session interface.
// Publishes are QoS 0 and the token is not awaited: fire-and-forget.
type pahoSession struct {
	client paho.Client
}

func (s *pahoSession) Publish(topic string, payload []byte) error {
	if tok := s.client.Publish(topic, qosAtMostOnce, false, payload); tok.Error() != nil {
		return tok.Error()
	}
	return nil
}

// Connector owns one connection task per registered printer. Tasks run
// under a per-printer context derived from the base context, so removing a
// printer cancels its loop promptly.
type Connector struct {
	base context.Context
	reg  *registry.Registry
	log  *logger.Logger

	mu    sync.Mutex
	tasks map[string]context.CancelFunc
}

func NewConnector(base context.Context, reg *registry.Registry, log *logger.Logger) *Connector {
	return &Connector{
		base:  base,
		reg:   reg,
		log:   log,
		tasks: make(map[string]context.CancelFunc),
	}
}

// Start launches the connection loop for one printer. A previous task for
// the same id is cancelled first.
func (c *Connector) Start(cfg pulseprint.PrinterConfig) {
	ctx, cancel := context.WithCancel(c.base)
	c.mu.Lock()
	if prev, ok := c.tasks[cfg.ID]; ok {
		prev()
	}
	c.tasks[cfg.ID] = cancel
	c.mu.Unlock()

	go c.run(ctx, cfg)
}

// Stop cancels the printer's connection loop. Safe for unknown ids.
func (c *Connector) Stop(id string) {
	c.mu.Lock()
	cancel, ok := c.tasks[id]
	delete(c.tasks, id)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// run is the reconnect loop: connect, serve until the transport fails, mark
// the printer offline, wait a fixed delay, try again. No backoff growth and
// no give-up while the printer stays registered.
func (c *Connector) run(ctx context.Context, cfg pulseprint.PrinterConfig) {
	for {
		err := c.serve(ctx, cfg)
		if ctx.Err() != nil {
			return
		}
		c.log.Errorw("printer_connection_failed", "printer", cfg.Name, "ip", cfg.IP, "err", err)
		c.markOffline(cfg.ID)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// serve runs a single session: handshake, subscribe, one status probe, then
// event-driven pushes until the connection drops. There is deliberately no
// periodic re-polling: frequent status requests cause control-plane lag on
// some hardware.
func (c *Connector) serve(ctx context.Context, cfg pulseprint.PrinterConfig) error {
	lost := make(chan error, 1)

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("ssl://%s:%d", cfg.IP, devicePort)).
		SetClientID(fmt.Sprintf("pulseprint_%s_%s", cfg.ID, uuid.NewString())).
		SetUsername(deviceUser).
		SetPassword(cfg.AccessCode).
		SetKeepAlive(keepAlive).
		SetConnectTimeout(connectWait).
		// Printers ship self-signed certificates and the operator already
		// controls network access, so server-cert validation is disabled.
		SetTLSConfig(&tls.Config{InsecureSkipVerify: true}).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			select {
			case lost <- err:
			default:
			}
		})

	client := paho.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return fmt.Errorf("connect %s: %w", cfg.IP, tok.Error())
	}
	defer client.Disconnect(disconnectQuiesceMs)

	c.log.Infow("printer_connected", "printer", cfg.Name, "ip", cfg.IP)

	topic := reportTopic(cfg.Serial)
	if tok := client.Subscribe(topic, qosAtMostOnce, func(_ paho.Client, msg paho.Message) {
		c.handleReport(cfg, msg.Payload())
	}); tok.Wait() && tok.Error() != nil {
		// Non-fatal: the probe below can still trigger a pushed report.
		c.log.Errorw("printer_subscribe_failed", "topic", topic, "err", tok.Error())
	}

	session := &pahoSession{client: client}
	if err := session.Publish(requestTopic(cfg.Serial), commandEnvelope(pulseprint.ActionGetStatus)); err != nil {
		c.log.Errorw("printer_probe_failed", "printer", cfg.Name, "err", err)
	}

	c.reg.Update(cfg.ID, func(p *pulseprint.Printer) {
		p.Online = true
		p.Status = pulseprint.StatusIdle
		p.ConnectionState = "connected"
		p.LastUpdate = time.Now().UTC()
	})
	c.reg.SetSession(cfg.ID, session)

	select {
	case <-ctx.Done():
		return nil
	case err := <-lost:
		return err
	}
}

func (c *Connector) markOffline(id string) {
	c.reg.Update(id, func(p *pulseprint.Printer) {
		p.Online = false
		p.Status = pulseprint.StatusOffline
		p.ConnectionState = "failed"
		p.LastUpdate = time.Now().UTC()
	})
}

// handleReport is the per-message pipeline: parse, accumulate, classify,
// broadcast the new snapshot. Reports for one printer arrive in order on
// its subscription callback; a malformed payload is logged and dropped.
func (c *Connector) handleReport(cfg pulseprint.PrinterConfig, payload []byte) {
	var delta map[string]any
	if err := json.Unmarshal(payload, &delta); err != nil {
		c.log.Errorw("telemetry_parse_failed", "printer", cfg.Name, "err", err)
		return
	}

	merged, ok := c.reg.MergeTelemetry(cfg.ID, delta)
	if !ok {
		return // removed while the report was in flight
	}

	c.reg.Update(cfg.ID, func(p *pulseprint.Printer) {
		if printData, ok := merged["print"].(map[string]any); ok {
			p.Temperatures = telemetry.UpdateTemperatures(printData, p.Temperatures)
			out := telemetry.Classify(printData, p.Temperatures, p.Status)
			p.Status = out.Status
			p.Print = out.Job
			p.Error = out.Err
		}
		p.LastUpdate = time.Now().UTC()
	})
}
