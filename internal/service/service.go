package service

import (
	"context"

	"pulseprint"
	"pulseprint/internal/logger"
	"pulseprint/internal/registry"
	"pulseprint/internal/repository"
)

// Fleet manages the printer roster: registration, removal, live snapshots,
// and control command dispatch.
type Fleet interface {
	Add(ctx context.Context, cfg pulseprint.PrinterConfig) (pulseprint.PrinterConfig, error)
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) []pulseprint.Printer
	Get(ctx context.Context, id string) (pulseprint.Printer, error)
	SendCommand(ctx context.Context, id, action string) error
	Restore(ctx context.Context) error
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]pulseprint.FleetEvent, error)
}

// Preferences stores UI settings as a key/value table.
type Preferences interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	All(ctx context.Context) (map[string]string, error)
}

// ConnectionManager owns the per-printer transport lifecycle. Satisfied by
// *mqtt.Connector.
type ConnectionManager interface {
	Start(cfg pulseprint.PrinterConfig)
	Stop(id string)
}

// CommandSubmitter enqueues control commands for delivery. Satisfied by
// *mqtt.Dispatcher.
type CommandSubmitter interface {
	Submit(printerID string, cmd pulseprint.Command) error
}

//
// Root Service aggregates all sub-services.
//

type Service struct {
	Fleet
	EventLog
	Preferences
}

// Deps carries everything the services need; wired once in main().
type Deps struct {
	Repos    *repository.Repository
	Registry *registry.Registry
	Conns    ConnectionManager
	Commands CommandSubmitter
	Log      *logger.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		Fleet:       NewFleetService(d),
		EventLog:    NewEventLogService(d.Repos.Events),
		Preferences: NewPreferencesService(d.Repos.Prefs),
	}
}
