// Package telemetry accumulates partial printer reports into per-device
// state trees and classifies that state into an operational status.
//
// Printers emit small deltas that omit unchanged fields and occasionally
// carry spurious zeros mid-print. The accumulator therefore keeps the union
// of everything ever observed and guards a handful of fields against bogus
// resets; every downstream computation reads the accumulated tree, never
// the raw delta.
package telemetry

// Sentinel job names the device emits when it has nothing useful to report.
const (
	nameUnknown   = "Unknown"
	nameUndefined = "undefined"
)

// RetentionRule reports whether an existing value should be kept in
// preference to the incoming one. Rules are evaluated before the generic
// merge for the key they are registered under, so new retained keys never
// touch the core recursion.
type RetentionRule func(existing, incoming any) bool

// DefaultRetention guards the fields the device is known to zero out in
// partial updates mid-print.
var DefaultRetention = map[string]RetentionRule{
	"subtask_name":      retainJobName,
	"mc_percent":        retainProgress,
	"mc_remaining_time": retainRemainingTime,
}

// Merge folds one telemetry delta into the accumulated tree using the
// default retention table.
func Merge(existing, incoming any) any {
	return MergeWith(existing, incoming, DefaultRetention)
}

// MergeWith recursively merges incoming into existing: object nodes union
// key-wise, any other pairing is replaced by the incoming value. Retention
// rules win over the generic recursion for their keys. Neither input is
// mutated; subtrees are shared where unchanged.
func MergeWith(existing, incoming any, retain map[string]RetentionRule) any {
	base, baseOK := existing.(map[string]any)
	update, updateOK := incoming.(map[string]any)
	if !baseOK || !updateOK {
		return incoming
	}

	merged := make(map[string]any, len(base)+len(update))
	for k, v := range base {
		merged[k] = v
	}
	for k, incomingVal := range update {
		existingVal, present := merged[k]
		if !present {
			merged[k] = incomingVal
			continue
		}
		if rule, ok := retain[k]; ok && rule(existingVal, incomingVal) {
			continue
		}
		merged[k] = MergeWith(existingVal, incomingVal, retain)
	}
	return merged
}

// retainJobName keeps a real job name when the delta carries an empty one.
func retainJobName(existing, incoming any) bool {
	in, ok := asString(incoming)
	if !ok || in != "" {
		return false
	}
	ex, ok := asString(existing)
	return ok && ex != "" && ex != nameUnknown && ex != nameUndefined
}

// retainProgress keeps in-flight progress when the delta reports zero. A
// finished print (>=100) may legitimately reset to zero.
func retainProgress(existing, incoming any) bool {
	in, ok := asFloat(incoming)
	if !ok || in != 0 {
		return false
	}
	ex, ok := asFloat(existing)
	return ok && ex > 0 && ex < 100
}

// retainRemainingTime keeps a positive remaining time when the delta
// reports zero.
func retainRemainingTime(existing, incoming any) bool {
	in, ok := asInt(incoming)
	if !ok || in != 0 {
		return false
	}
	ex, ok := asInt(existing)
	return ok && ex > 0
}
