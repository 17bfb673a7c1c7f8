// Package status defines the project lifecycle states and legal transitions.
package status

import "fmt"

// Status is a project lifecycle state.
type Status string

// Project status constants.
const (
	// Working means the project is being worked on: intake is still being
	// gathered, or a report generation attempt is in flight.
	Working Status = "working"
	// Complete means a report was generated successfully and is current.
	Complete Status = "complete"
	// Intervention means the system cannot proceed without further user
	// input, or the last generation attempt failed unrecoverably.
	Intervention Status = "intervention"
)

// Initial is the status assigned on project creation.
const Initial = Working

// IsValid checks if a status string is a known status.
func IsValid(s Status) bool {
	switch s {
	case Working, Complete, Intervention:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from one status to another is legal.
//
//	working -> working        generation already in flight; requests coalesce
//	working -> complete       attempt ran, intake complete, report produced
//	working -> intervention   attempt ran with missing fields, or generation failed
//	intervention -> working   intake changed or regenerate requested
//	complete -> working       regenerate requested or intake edited (stale report)
func CanTransition(from, to Status) bool {
	switch from {
	case Working:
		return to == Working || to == Complete || to == Intervention
	case Intervention:
		return to == Working
	case Complete:
		return to == Working
	default:
		return false
	}
}

// Validate returns an error describing an illegal transition, or nil.
func Validate(from, to Status) error {
	if !IsValid(from) {
		return fmt.Errorf("invalid source status %q", from)
	}
	if !IsValid(to) {
		return fmt.Errorf("invalid target status %q", to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	return nil
}
