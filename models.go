package pulseprint

import "time"

// Status is the classified operational state of a printer.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusPrinting   Status = "printing"
	StatusPaused     Status = "paused"
	StatusError      Status = "error"
	StatusOffline    Status = "offline"
	StatusConnecting Status = "connecting"
)

// Control actions accepted by the command dispatcher. This is the whole
// device command surface; anything else is rejected at submission.
const (
	ActionPause     = "pause"
	ActionResume    = "resume"
	ActionStop      = "stop"
	ActionGetStatus = "get_status"
)

// PrinterConfig identifies and authenticates one printer. Immutable after
// registration; ID is the stable key.
type PrinterConfig struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	IP         string    `json:"ip"`
	AccessCode string    `json:"access_code"`
	Serial     string    `json:"serial"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Temperatures is the most recent reading per sensor, in °C.
type Temperatures struct {
	Nozzle  int `json:"nozzle"`
	Bed     int `json:"bed"`
	Chamber int `json:"chamber"`
}

// PrintJob is the current job snapshot. It is recomputed wholesale from the
// accumulated telemetry on every relevant update, never merged in place.
type PrintJob struct {
	Progress           float64 `json:"progress"`       // percent, clamped to [0,100]
	TimeRemaining      int64   `json:"time_remaining"` // seconds
	EstimatedTotalTime *int64  `json:"estimated_total_time,omitempty"`
	FileName           string  `json:"file_name"`
	PrintType          string  `json:"print_type,omitempty"`
	LayerCurrent       int     `json:"layer_current"`
	LayerTotal         int     `json:"layer_total"`
	SpeedLevel         *int    `json:"speed_level,omitempty"`
	FanSpeed           *int    `json:"fan_speed,omitempty"`
	Stage              *int    `json:"stage,omitempty"`
	Lifecycle          string  `json:"lifecycle,omitempty"`
}

// FilamentInfo describes the loaded spool.
type FilamentInfo struct {
	Type      string  `json:"type"`
	Color     string  `json:"color"`
	Remaining float64 `json:"remaining"`
}

// PrinterError is present iff an error condition currently holds.
type PrinterError struct {
	PrintError int    `json:"print_error"`
	ErrorCode  int    `json:"error_code"`
	Stage      int    `json:"stage"`
	Lifecycle  string `json:"lifecycle"`
	GcodeState string `json:"gcode_state"`
	Message    string `json:"message"`
}

// Printer is the live snapshot for one registered printer. Status and
// ConnectionState are orthogonal: the former is the classified activity,
// the latter tags the transport session.
type Printer struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Model           string        `json:"model"`
	IP              string        `json:"ip"`
	AccessCode      string        `json:"access_code"`
	Serial          string        `json:"serial"`
	Status          Status        `json:"status"`
	Online          bool          `json:"online"`
	ConnectionState string        `json:"connection_state"`
	Temperatures    Temperatures  `json:"temperatures"`
	Print           *PrintJob     `json:"print,omitempty"`
	Filament        *FilamentInfo `json:"filament,omitempty"`
	Error           *PrinterError `json:"error,omitempty"`
	LastUpdate      time.Time     `json:"last_update"`
}

// Clone returns a deep copy that is safe to hand out of the registry lock.
func (p *Printer) Clone() *Printer {
	cp := *p
	if p.Print != nil {
		job := *p.Print
		job.EstimatedTotalTime = cloneInt64(p.Print.EstimatedTotalTime)
		job.SpeedLevel = cloneInt(p.Print.SpeedLevel)
		job.FanSpeed = cloneInt(p.Print.FanSpeed)
		job.Stage = cloneInt(p.Print.Stage)
		cp.Print = &job
	}
	if p.Filament != nil {
		f := *p.Filament
		cp.Filament = &f
	}
	if p.Error != nil {
		e := *p.Error
		cp.Error = &e
	}
	return &cp
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Command is a control action bound for a printer. Ephemeral: it lives only
// in the dispatch queue.
type Command struct {
	Action string `json:"action"` // pause | resume | stop | get_status
}

// FleetEvent is a single fleet log entry.
type FleetEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"` // PRINTER_ADDED | PRINTER_REMOVED | COMMAND
	PrinterID   string    `json:"printer_id,omitempty"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
