// Package phase defines the fixed production lifecycle chain and its
// transition table.
package phase

import "fmt"

// Phase labels one of the ordered lifecycle stages a production passes through.
type Phase string

const (
	Prep     Phase = "prep"
	Staffing Phase = "staffing"
	PreShow  Phase = "pre_show"
	Active   Phase = "active"
	PostShow Phase = "post_show"
	Complete Phase = "complete"
	Archived Phase = "archived"
)

// Chain is the full lifecycle in order. Archived is terminal.
var Chain = []Phase{Prep, Staffing, PreShow, Active, PostShow, Complete, Archived}

// successors maps each phase to its single allowed successor. Adding a phase
// is a data change here, not a logic change in the engine.
var successors = map[Phase]Phase{
	Prep:     Staffing,
	Staffing: PreShow,
	PreShow:  Active,
	Active:   PostShow,
	PostShow: Complete,
	Complete: Archived,
}

// Trigger is the cause of a transition attempt.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerAutomatic Trigger = "automatic"
	TriggerScheduled Trigger = "scheduled"
)

// Valid reports whether p is one of the seven lifecycle phases.
func Valid(p Phase) bool {
	if p == Archived {
		return true
	}
	_, ok := successors[p]
	return ok
}

// Successor returns the single allowed next phase. ok is false for the
// terminal archived phase and for unknown values.
func Successor(p Phase) (Phase, bool) {
	next, ok := successors[p]
	return next, ok
}

// Parse converts a stored string into a Phase, rejecting unknown values.
func Parse(s string) (Phase, error) {
	p := Phase(s)
	if !Valid(p) {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}

// Before reports whether a comes strictly earlier than b in the chain.
// Unknown phases compare as not-before.
func Before(a, b Phase) bool {
	ai, bi := index(a), index(b)
	if ai < 0 || bi < 0 {
		return false
	}
	return ai < bi
}

func index(p Phase) int {
	for i, c := range Chain {
		if c == p {
			return i
		}
	}
	return -1
}
