package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"pulseprint"
	"pulseprint/internal/registry"
	"pulseprint/internal/service"
)

// ---- Service Mocks ----

type mockFleet struct {
	addResp   pulseprint.PrinterConfig
	addErr    error
	removeErr error
	listResp  []pulseprint.Printer
	getResp   pulseprint.Printer
	getErr    error
	cmdErr    error

	lastAdded    pulseprint.PrinterConfig
	lastRemoved  string
	lastCmdID    string
	lastCmdAct   string
	addCalls     int
	removeCalls  int
	cmdCalls     int
	restoreCalls int
}

func (m *mockFleet) Add(ctx context.Context, cfg pulseprint.PrinterConfig) (pulseprint.PrinterConfig, error) {
	m.addCalls++
	m.lastAdded = cfg
	return m.addResp, m.addErr
}

func (m *mockFleet) Remove(ctx context.Context, id string) error {
	m.removeCalls++
	m.lastRemoved = id
	return m.removeErr
}

func (m *mockFleet) List(ctx context.Context) []pulseprint.Printer {
	return m.listResp
}

func (m *mockFleet) Get(ctx context.Context, id string) (pulseprint.Printer, error) {
	return m.getResp, m.getErr
}

func (m *mockFleet) SendCommand(ctx context.Context, id, action string) error {
	m.cmdCalls++
	m.lastCmdID = id
	m.lastCmdAct = action
	return m.cmdErr
}

func (m *mockFleet) Restore(ctx context.Context) error {
	m.restoreCalls++
	return nil
}

type mockEventLog struct {
	resp     []pulseprint.FleetEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]pulseprint.FleetEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

type mockPreferences struct {
	values map[string]string
	setErr error
	getErr error
	allErr error
}

func (m *mockPreferences) Set(ctx context.Context, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

func (m *mockPreferences) Get(ctx context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.values[key], nil
}

func (m *mockPreferences) All(ctx context.Context) (map[string]string, error) {
	return m.values, m.allErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service, reg *registry.Registry) *gin.Engine {
	if reg == nil {
		reg = registry.New()
	}
	h := NewHandler(s, reg, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
