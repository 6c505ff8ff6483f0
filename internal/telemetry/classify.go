package telemetry

import (
	"fmt"
	"math"

	"pulseprint"
)

// Signals are the raw fields the classifier reads from the accumulated
// print subtree. Absent fields read as zero values; Has flags mark presence
// where the distinction matters.
type Signals struct {
	GcodeState    string
	HasGcodeState bool
	PrintReal     int64
	RemainingMin  int64
	Percent       float64
	LayerNum      int64
	TotalLayers   int64
	Stage         int64
	HasStage      bool
	PrintError    int64
	ErrorCode     int64
	FanGear       int64
	HasFanGear    bool
	JobName       string
	PrintType     string
	SpeedLevel    int64
	HasSpeedLevel bool
	Lifecycle     string
}

// ExtractSignals pulls the interpreted fields out of the print subtree.
func ExtractSignals(print map[string]any) Signals {
	var sig Signals
	if s, ok := asString(print["gcode_state"]); ok {
		sig.GcodeState, sig.HasGcodeState = s, true
	}
	sig.PrintReal, _ = asInt(print["print_real"])
	sig.RemainingMin, _ = asInt(print["mc_remaining_time"])
	sig.Percent, _ = asFloat(print["mc_percent"])
	sig.LayerNum, _ = asInt(print["layer_num"])
	sig.TotalLayers, _ = asInt(print["total_layer_num"])
	sig.Stage, sig.HasStage = asInt(print["stg_cur"])
	sig.PrintError, _ = asInt(print["print_error"])
	sig.ErrorCode, _ = asInt(print["mc_print_error_code"])
	sig.FanGear, sig.HasFanGear = asInt(print["fan_gear"])
	sig.JobName, _ = asString(print["subtask_name"])
	sig.PrintType, _ = asString(print["print_type"])
	sig.SpeedLevel, sig.HasSpeedLevel = asInt(print["spd_lvl"])
	sig.Lifecycle, _ = asString(print["lifecycle"])
	return sig
}

// indicators are the derived booleans the heuristic rules combine.
type indicators struct {
	activeJob    bool // remaining time left, or layers advancing short of 100%
	progress     bool // percent strictly between 0 and 100
	jobName      bool // non-empty, non-sentinel subtask name
	highTemps    bool // nozzle > 150°C or bed > 40°C
	fan          bool
	inPrintStage bool // stg_cur 1..3
}

func deriveIndicators(sig Signals, temps pulseprint.Temperatures) indicators {
	return indicators{
		activeJob:    sig.RemainingMin > 0 || (sig.LayerNum > 0 && sig.Percent < 100),
		progress:     sig.Percent > 0 && sig.Percent < 100,
		jobName:      sig.JobName != "" && sig.JobName != nameUnknown && sig.JobName != nameUndefined,
		highTemps:    temps.Nozzle > 150 || temps.Bed > 40,
		fan:          sig.FanGear > 0,
		inPrintStage: sig.Stage >= 1 && sig.Stage <= 3,
	}
}

// gcodeStatuses maps the device's coarse print-engine state strings to a
// status. IDLE and unmapped strings are handled separately: they defer to
// the indicator rules.
var gcodeStatuses = map[string]pulseprint.Status{
	"RUNNING":          pulseprint.StatusPrinting,
	"PRINTING":         pulseprint.StatusPrinting,
	"PREPARE":          pulseprint.StatusPrinting,
	"WORKING":          pulseprint.StatusPrinting,
	"SLICING":          pulseprint.StatusPrinting,
	"PRINTING_MONITOR": pulseprint.StatusPrinting,
	"PAUSE":            pulseprint.StatusPaused,
	"PAUSED":           pulseprint.StatusPaused,
	"FAILED":           pulseprint.StatusError,
	"ERROR":            pulseprint.StatusError,
	"FINISH":           pulseprint.StatusIdle,
	"FINISHED":         pulseprint.StatusIdle,
}

// indicatorRule is one row of the fallback ladder used when no usable
// gcode_state is present. Rules are evaluated top-down; first match wins.
type indicatorRule struct {
	name   string
	status pulseprint.Status
	when   func(sig Signals, ind indicators, temps pulseprint.Temperatures) bool
}

var indicatorRules = []indicatorRule{
	{"active job with progress or print stage", pulseprint.StatusPrinting,
		func(sig Signals, ind indicators, _ pulseprint.Temperatures) bool {
			return ind.activeJob && (ind.progress || ind.inPrintStage)
		}},
	{"paused print stage", pulseprint.StatusPaused,
		func(sig Signals, ind indicators, _ pulseprint.Temperatures) bool {
			return ind.inPrintStage && sig.Stage == 2
		}},
	{"errored print stage", pulseprint.StatusError,
		func(sig Signals, ind indicators, _ pulseprint.Temperatures) bool {
			return ind.inPrintStage && sig.Stage == 3
		}},
	{"high temps with active job and fan or job name", pulseprint.StatusPrinting,
		func(sig Signals, ind indicators, _ pulseprint.Temperatures) bool {
			return ind.highTemps && ind.activeJob && (ind.fan || ind.jobName)
		}},
	{"hot nozzle with fan and job name or progress", pulseprint.StatusPrinting,
		func(sig Signals, ind indicators, temps pulseprint.Temperatures) bool {
			return temps.Nozzle > 200 && ind.fan && (ind.jobName || ind.progress)
		}},
	{"job name with progress", pulseprint.StatusPrinting,
		func(sig Signals, ind indicators, _ pulseprint.Temperatures) bool {
			return ind.jobName && ind.progress
		}},
	{"remaining time with layers", pulseprint.StatusPrinting,
		func(sig Signals, ind indicators, _ pulseprint.Temperatures) bool {
			return sig.RemainingMin > 0 && sig.LayerNum > 0
		}},
	{"high temps with fan", pulseprint.StatusPrinting,
		func(sig Signals, ind indicators, _ pulseprint.Temperatures) bool {
			return ind.highTemps && ind.fan
		}},
}

func classifyFromIndicators(sig Signals, ind indicators, temps pulseprint.Temperatures) pulseprint.Status {
	for _, r := range indicatorRules {
		if r.when(sig, ind, temps) {
			return r.status
		}
	}
	return pulseprint.StatusIdle
}

// candidateStatus runs the decision ladder: device-reported error, then the
// print_real flag, then the gcode_state table, then the indicator rules.
func candidateStatus(sig Signals, ind indicators, temps pulseprint.Temperatures) pulseprint.Status {
	switch {
	case sig.PrintError > 0:
		return pulseprint.StatusError
	case sig.PrintReal == 1:
		return pulseprint.StatusPrinting
	case sig.HasGcodeState:
		if sig.GcodeState == "IDLE" {
			// The engine reports IDLE while a job is demonstrably active on
			// some firmwares; trust the stronger evidence.
			if ind.activeJob || ind.progress || (ind.highTemps && ind.fan) {
				return pulseprint.StatusPrinting
			}
			return pulseprint.StatusIdle
		}
		if st, ok := gcodeStatuses[sig.GcodeState]; ok {
			return st
		}
		return classifyFromIndicators(sig, ind, temps)
	default:
		return classifyFromIndicators(sig, ind, temps)
	}
}

// allowTransition is the hysteresis guard: a candidate status replaces the
// previous one only when the evidence supports the move. Transitions
// into or out of Error, Offline and Connecting always pass.
func allowTransition(prev, next pulseprint.Status, sig Signals, ind indicators) bool {
	if unconditional(prev) || unconditional(next) {
		return true
	}
	switch {
	case prev == pulseprint.StatusIdle && next == pulseprint.StatusPrinting:
		return ind.activeJob || ind.progress || sig.PrintReal == 1 || (ind.highTemps && ind.fan)
	case prev == pulseprint.StatusPrinting && next == pulseprint.StatusIdle:
		return sig.Percent >= 100 ||
			(sig.RemainingMin == 0 && sig.LayerNum == 0) ||
			(!ind.highTemps && !ind.fan && !ind.activeJob)
	}
	return true
}

func unconditional(s pulseprint.Status) bool {
	return s == pulseprint.StatusError || s == pulseprint.StatusOffline || s == pulseprint.StatusConnecting
}

// Outcome bundles the classifier result for one accumulated report.
type Outcome struct {
	Status pulseprint.Status
	Job    *pulseprint.PrintJob
	Err    *pulseprint.PrinterError
}

// Classify maps the accumulated print subtree, the current temperatures and
// the previous status to a new status plus derived job and error snapshots.
// It is pure and total: identical inputs yield identical outputs and no
// input can make it fail.
func Classify(print map[string]any, temps pulseprint.Temperatures, prev pulseprint.Status) Outcome {
	sig := ExtractSignals(print)
	ind := deriveIndicators(sig, temps)

	status := prev
	if next := candidateStatus(sig, ind, temps); allowTransition(prev, next, sig, ind) {
		status = next
	}

	out := Outcome{Status: status}
	if status == pulseprint.StatusPrinting || status == pulseprint.StatusPaused ||
		sig.RemainingMin > 0 || sig.LayerNum > 0 || sig.Percent > 0 || sig.PrintReal == 1 {
		out.Job = buildPrintJob(sig)
	}

	// A device-reported error trumps whatever the ladder decided.
	if sig.PrintError > 0 || sig.ErrorCode > 0 {
		out.Status = pulseprint.StatusError
		out.Err = buildPrinterError(sig)
	}
	return out
}

// UpdateTemperatures folds the temperature fields of the accumulated print
// subtree into the previous reading, leaving absent fields untouched.
func UpdateTemperatures(print map[string]any, prev pulseprint.Temperatures) pulseprint.Temperatures {
	next := prev
	if v, ok := asFloat(print["nozzle_temper"]); ok {
		next.Nozzle = int(math.Round(v))
	}
	if v, ok := asFloat(print["bed_temper"]); ok {
		next.Bed = int(math.Round(v))
	}
	if v, ok := asFloat(print["chamber_temper"]); ok {
		next.Chamber = int(math.Round(v))
	}
	return next
}

// buildPrintJob recomputes the job snapshot wholesale. Progress priority:
// the controller percent when in (0,100], the layer ratio when the percent
// is missing, and the time-derived estimate only ever raises the floor.
func buildPrintJob(sig Signals) *pulseprint.PrintJob {
	remainingSec := sig.RemainingMin * 60

	var estimated *int64
	if sig.Percent > 0 && sig.Percent < 100 && sig.RemainingMin > 0 {
		total := int64(math.Round(float64(remainingSec) / (1 - sig.Percent/100)))
		estimated = &total
	}

	progress := 0.0
	if sig.Percent > 0 && sig.Percent <= 100 {
		progress = sig.Percent
	}
	if sig.Percent == 0 && sig.LayerNum > 0 && sig.TotalLayers > 0 {
		progress = float64(sig.LayerNum) / float64(sig.TotalLayers) * 100
	}
	if estimated != nil && sig.Percent == 0 && *estimated > 0 {
		elapsed := *estimated - remainingSec
		if t := float64(elapsed) / float64(*estimated) * 100; t >= 0 && t <= 100 {
			progress = math.Max(progress, t)
		}
	}
	progress = math.Min(math.Max(progress, 0), 100)

	fileName := sig.JobName
	if fileName == "" || fileName == nameUndefined {
		fileName = nameUnknown
	}

	job := &pulseprint.PrintJob{
		Progress:           progress,
		TimeRemaining:      remainingSec,
		EstimatedTotalTime: estimated,
		FileName:           fileName,
		PrintType:          sig.PrintType,
		LayerCurrent:       int(sig.LayerNum),
		LayerTotal:         int(sig.TotalLayers),
		Lifecycle:          sig.Lifecycle,
	}
	if sig.HasSpeedLevel {
		v := int(sig.SpeedLevel)
		job.SpeedLevel = &v
	}
	if sig.HasFanGear {
		v := int(sig.FanGear)
		job.FanSpeed = &v
	}
	if sig.HasStage {
		v := int(sig.Stage)
		job.Stage = &v
	}
	return job
}

func buildPrinterError(sig Signals) *pulseprint.PrinterError {
	lifecycle := sig.Lifecycle
	if lifecycle == "" {
		lifecycle = nameUnknown
	}
	gcode := sig.GcodeState
	if !sig.HasGcodeState || gcode == "" {
		gcode = nameUnknown
	}
	return &pulseprint.PrinterError{
		PrintError: int(sig.PrintError),
		ErrorCode:  int(sig.ErrorCode),
		Stage:      int(sig.Stage),
		Lifecycle:  lifecycle,
		GcodeState: gcode,
		Message:    errorMessage(int(sig.PrintError), int(sig.ErrorCode)),
	}
}

// errorMessage resolves a human-readable message for a device error pair.
// Specific secondary codes take precedence over the coarse print_error
// class; unmatched pairs get a generic formatted message.
func errorMessage(printError, errorCode int) string {
	switch errorCode {
	case 1203:
		return "Filament runout detected"
	case 1204:
		return "Filament tangle detected"
	case 1205:
		return "Nozzle clog detected"
	}
	switch printError {
	case 1:
		return "Print error occurred"
	case 2:
		return "Bed adhesion failure"
	case 3:
		return "Temperature error"
	}
	return fmt.Sprintf("Error: print_error=%d, error_code=%d", printError, errorCode)
}
