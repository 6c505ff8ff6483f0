package service

import (
	"context"
	"errors"
	"testing"

	"pulseprint"
	"pulseprint/internal/logger"
	"pulseprint/internal/registry"
	"pulseprint/internal/repository"
)

type fakePrinterRepo struct {
	saved   []pulseprint.PrinterConfig
	deleted []string
	stored  []pulseprint.PrinterConfig
	err     error
}

func (f *fakePrinterRepo) Save(ctx context.Context, cfg pulseprint.PrinterConfig) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, cfg)
	return nil
}

func (f *fakePrinterRepo) Delete(ctx context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakePrinterRepo) GetAll(ctx context.Context) ([]pulseprint.PrinterConfig, error) {
	return f.stored, f.err
}

type fakeConns struct {
	started []pulseprint.PrinterConfig
	stopped []string
}

func (f *fakeConns) Start(cfg pulseprint.PrinterConfig) { f.started = append(f.started, cfg) }
func (f *fakeConns) Stop(id string)                     { f.stopped = append(f.stopped, id) }

type fakeSubmitter struct {
	submitted []pulseprint.Command
	ids       []string
	err       error
}

func (f *fakeSubmitter) Submit(printerID string, cmd pulseprint.Command) error {
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, printerID)
	f.submitted = append(f.submitted, cmd)
	return nil
}

type fleetFixture struct {
	svc      *FleetService
	printers *fakePrinterRepo
	events   *fakeEventRepo
	conns    *fakeConns
	commands *fakeSubmitter
	reg      *registry.Registry
}

func newFleetFixture() *fleetFixture {
	f := &fleetFixture{
		printers: &fakePrinterRepo{},
		events:   &fakeEventRepo{},
		conns:    &fakeConns{},
		commands: &fakeSubmitter{},
		reg:      registry.New(),
	}
	f.svc = NewFleetService(Deps{
		Repos: &repository.Repository{
			Printers: f.printers,
			Events:   f.events,
		},
		Registry: f.reg,
		Conns:    f.conns,
		Commands: f.commands,
		Log:      logger.Get(logger.ErrorLevel),
	})
	return f
}

func validConfig() pulseprint.PrinterConfig {
	return pulseprint.PrinterConfig{
		Name:       "Workshop X1C",
		Model:      "X1 Carbon",
		IP:         "192.168.1.42",
		AccessCode: "12345678",
		Serial:     "01S00C123456789",
	}
}

func TestFleetService_Add_RegistersAndStartsConnection(t *testing.T) {
	f := newFleetFixture()

	got, err := f.svc.Add(context.Background(), validConfig())
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if got.ID == "" {
		t.Fatal("expected a generated id")
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatalf("expected stamped timestamps: %+v", got)
	}

	if len(f.printers.saved) != 1 || f.printers.saved[0].ID != got.ID {
		t.Fatalf("config not persisted: %+v", f.printers.saved)
	}
	if len(f.conns.started) != 1 || f.conns.started[0].ID != got.ID {
		t.Fatalf("connection task not started: %+v", f.conns.started)
	}

	p, ok := f.reg.Get(got.ID)
	if !ok {
		t.Fatal("printer missing from registry")
	}
	if p.Status != pulseprint.StatusConnecting || p.ConnectionState != "connecting" {
		t.Fatalf("expected connecting snapshot, got status=%q conn=%q", p.Status, p.ConnectionState)
	}

	if len(f.events.appended) != 1 || f.events.appended[0].Type != EventPrinterAdded {
		t.Fatalf("expected one PRINTER_ADDED event: %+v", f.events.appended)
	}
}

func TestFleetService_Add_MissingFields(t *testing.T) {
	f := newFleetFixture()

	cfg := validConfig()
	cfg.AccessCode = "   "
	if _, err := f.svc.Add(context.Background(), cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if len(f.printers.saved) != 0 || len(f.conns.started) != 0 {
		t.Fatal("invalid config must not persist or connect")
	}
}

func TestFleetService_Add_Duplicate(t *testing.T) {
	f := newFleetFixture()

	cfg := validConfig()
	cfg.ID = "p1"
	if _, err := f.svc.Add(context.Background(), cfg); err != nil {
		t.Fatalf("first Add() error = %v", err)
	}
	if _, err := f.svc.Add(context.Background(), cfg); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
	if len(f.conns.started) != 1 {
		t.Fatalf("duplicate must not start a second connection, started=%d", len(f.conns.started))
	}
}

func TestFleetService_Remove_StopsAndForgets(t *testing.T) {
	f := newFleetFixture()

	cfg := validConfig()
	cfg.ID = "p1"
	if _, err := f.svc.Add(context.Background(), cfg); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := f.svc.Remove(context.Background(), "p1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(f.conns.stopped) != 1 || f.conns.stopped[0] != "p1" {
		t.Fatalf("connection task not stopped: %+v", f.conns.stopped)
	}
	if _, ok := f.reg.Get("p1"); ok {
		t.Fatal("printer still in registry after removal")
	}
	if len(f.printers.deleted) != 1 || f.printers.deleted[0] != "p1" {
		t.Fatalf("persisted config not deleted: %+v", f.printers.deleted)
	}
	if got := f.events.appended[len(f.events.appended)-1]; got.Type != EventPrinterRemoved {
		t.Fatalf("expected PRINTER_REMOVED event, got %+v", got)
	}

	// Second removal is an error, not a crash.
	if err := f.svc.Remove(context.Background(), "p1"); !errors.Is(err, ErrPrinterNotFound) {
		t.Fatalf("expected ErrPrinterNotFound, got %v", err)
	}
}

func TestFleetService_SendCommand(t *testing.T) {
	f := newFleetFixture()

	cfg := validConfig()
	cfg.ID = "p1"
	if _, err := f.svc.Add(context.Background(), cfg); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := f.svc.SendCommand(context.Background(), "p1", pulseprint.ActionPause); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if len(f.commands.submitted) != 1 || f.commands.submitted[0].Action != pulseprint.ActionPause {
		t.Fatalf("command not submitted: %+v", f.commands.submitted)
	}
	if got := f.events.appended[len(f.events.appended)-1]; got.Type != EventCommand || got.PrinterID != "p1" {
		t.Fatalf("expected COMMAND event for p1, got %+v", got)
	}
}

func TestFleetService_SendCommand_UnknownPrinter(t *testing.T) {
	f := newFleetFixture()

	err := f.svc.SendCommand(context.Background(), "ghost", pulseprint.ActionPause)
	if !errors.Is(err, ErrPrinterNotFound) {
		t.Fatalf("expected ErrPrinterNotFound, got %v", err)
	}
	if len(f.commands.submitted) != 0 {
		t.Fatal("nothing should be submitted for an unknown printer")
	}
}

func TestFleetService_SendCommand_SubmitterErrorPropagates(t *testing.T) {
	f := newFleetFixture()

	cfg := validConfig()
	cfg.ID = "p1"
	if _, err := f.svc.Add(context.Background(), cfg); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	before := len(f.events.appended)

	f.commands.err = errors.New("unsupported action")
	err := f.svc.SendCommand(context.Background(), "p1", "reboot")
	if !errors.Is(err, f.commands.err) {
		t.Fatalf("expected submitter error, got %v", err)
	}
	if len(f.events.appended) != before {
		t.Fatal("no event should be logged for a rejected command")
	}
}

func TestFleetService_Restore(t *testing.T) {
	f := newFleetFixture()
	f.printers.stored = []pulseprint.PrinterConfig{
		{ID: "p1", Name: "A", IP: "10.0.0.1", AccessCode: "x", Serial: "SN1"},
		{ID: "p2", Name: "B", IP: "10.0.0.2", AccessCode: "y", Serial: "SN2"},
	}

	if err := f.svc.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(f.conns.started) != 2 {
		t.Fatalf("expected 2 connection tasks, got %d", len(f.conns.started))
	}
	list := f.svc.List(context.Background())
	if len(list) != 2 {
		t.Fatalf("expected 2 registered printers, got %d", len(list))
	}
	for _, p := range list {
		if p.Status != pulseprint.StatusConnecting {
			t.Fatalf("restored printer %s not in connecting state: %q", p.ID, p.Status)
		}
	}
}
