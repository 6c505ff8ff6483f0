package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"pulseprint"
	"pulseprint/internal/logger"
	"pulseprint/internal/registry"
	"pulseprint/internal/repository"
)

var (
	// ErrAlreadyRegistered means a printer with the same id is in the fleet.
	ErrAlreadyRegistered = errors.New("printer already registered")
	// ErrPrinterNotFound means the id does not match any registered printer.
	ErrPrinterNotFound = errors.New("printer not found")
	// ErrInvalidConfig means a required connection field was missing.
	ErrInvalidConfig = errors.New("invalid printer config: name, ip, access_code and serial are required")
)

// Fleet event types.
const (
	EventPrinterAdded   = "PRINTER_ADDED"
	EventPrinterRemoved = "PRINTER_REMOVED"
	EventCommand        = "COMMAND"
)

type FleetService struct {
	printers repository.PrinterRepo
	events   repository.EventRepo
	reg      *registry.Registry
	conns    ConnectionManager
	commands CommandSubmitter
	log      *logger.Logger
}

func NewFleetService(d Deps) *FleetService {
	return &FleetService{
		printers: d.Repos.Printers,
		events:   d.Repos.Events,
		reg:      d.Registry,
		conns:    d.Conns,
		commands: d.Commands,
		log:      d.Log,
	}
}

// Add validates and persists a printer definition, registers it in the live
// registry with a connecting snapshot, and starts its connection task.
func (s *FleetService) Add(ctx context.Context, cfg pulseprint.PrinterConfig) (pulseprint.PrinterConfig, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.IP = strings.TrimSpace(cfg.IP)
	cfg.AccessCode = strings.TrimSpace(cfg.AccessCode)
	cfg.Serial = strings.TrimSpace(cfg.Serial)
	if cfg.Name == "" || cfg.IP == "" || cfg.AccessCode == "" || cfg.Serial == "" {
		return pulseprint.PrinterConfig{}, ErrInvalidConfig
	}

	if cfg.ID = strings.TrimSpace(cfg.ID); cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if _, ok := s.reg.Get(cfg.ID); ok {
		return pulseprint.PrinterConfig{}, ErrAlreadyRegistered
	}

	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	if err := s.printers.Save(ctx, cfg); err != nil {
		return pulseprint.PrinterConfig{}, err
	}

	s.register(cfg)
	s.log.Infow("printer_added", "id", cfg.ID, "name", cfg.Name, "ip", cfg.IP)

	return cfg, s.events.Append(ctx, pulseprint.FleetEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  now,
		Type:        EventPrinterAdded,
		PrinterID:   cfg.ID,
		Description: "Printer " + cfg.Name + " registered",
		Metadata: map[string]any{
			"ip":     cfg.IP,
			"serial": cfg.Serial,
		},
	})
}

// Remove stops the printer's connection task, drops it from the registry,
// and deletes the persisted definition. Telemetry arriving after removal is
// discarded by the registry.
func (s *FleetService) Remove(ctx context.Context, id string) error {
	p, ok := s.reg.Get(id)
	if !ok {
		return ErrPrinterNotFound
	}

	s.conns.Stop(id)
	s.reg.Remove(id)
	if err := s.printers.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Infow("printer_removed", "id", id, "name", p.Name)

	return s.events.Append(ctx, pulseprint.FleetEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        EventPrinterRemoved,
		PrinterID:   id,
		Description: "Printer " + p.Name + " removed",
	})
}

// List returns live snapshots for every registered printer, ordered by id.
func (s *FleetService) List(ctx context.Context) []pulseprint.Printer {
	return s.reg.List()
}

// Get returns the live snapshot for one printer.
func (s *FleetService) Get(ctx context.Context, id string) (pulseprint.Printer, error) {
	p, ok := s.reg.Get(id)
	if !ok {
		return pulseprint.Printer{}, ErrPrinterNotFound
	}
	return *p, nil
}

// SendCommand enqueues a control action for delivery over the printer's
// session and logs it to the fleet event log.
func (s *FleetService) SendCommand(ctx context.Context, id, action string) error {
	if _, ok := s.reg.Get(id); !ok {
		return ErrPrinterNotFound
	}
	if err := s.commands.Submit(id, pulseprint.Command{Action: action}); err != nil {
		return err
	}
	s.log.Infow("command_submitted", "id", id, "action", action)

	return s.events.Append(ctx, pulseprint.FleetEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        EventCommand,
		PrinterID:   id,
		Description: "Command " + action + " dispatched",
		Metadata:    map[string]any{"action": action},
	})
}

// Restore loads persisted printer definitions at boot and starts a
// connection task for each.
func (s *FleetService) Restore(ctx context.Context) error {
	cfgs, err := s.printers.GetAll(ctx)
	if err != nil {
		return err
	}
	for _, cfg := range cfgs {
		s.register(cfg)
	}
	s.log.Infow("fleet_restored", "count", len(cfgs))
	return nil
}

// register seeds the live registry with a connecting snapshot and hands the
// config to the connection manager.
func (s *FleetService) register(cfg pulseprint.PrinterConfig) {
	s.reg.Add(&pulseprint.Printer{
		ID:              cfg.ID,
		Name:            cfg.Name,
		Model:           cfg.Model,
		IP:              cfg.IP,
		AccessCode:      cfg.AccessCode,
		Serial:          cfg.Serial,
		Status:          pulseprint.StatusConnecting,
		ConnectionState: "connecting",
		LastUpdate:      time.Now().UTC(),
	})
	s.conns.Start(cfg)
}
