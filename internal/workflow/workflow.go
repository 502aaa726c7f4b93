// Package workflow holds the card and subtask status machines. Manual status
// updates and timer-driven updates both go through the same transition table.
package workflow

import (
	"fmt"
	"strings"

	"taskflow/internal/domain"
)

// Trigger names what is asking for a status change.
type Trigger string

const (
	Manual     Trigger = "manual"
	TimerStart Trigger = "timer_start"
)

// Outcome is the result of evaluating a transition.
type Outcome int

const (
	// Apply writes the target status.
	Apply Outcome = iota
	// Keep leaves the current status untouched without failing the caller.
	Keep
	// Reject refuses the transition.
	Reject
)

func (o Outcome) String() string {
	switch o {
	case Apply:
		return "apply"
	case Keep:
		return "keep"
	default:
		return "reject"
	}
}

// Facts is what guards may inspect.
type Facts struct {
	Subtasks []domain.Subtask
}

// Guard vetoes an otherwise applicable transition by returning an error.
type Guard func(to string, f Facts) error

// Rule is one row of a transition table. Empty From matches any state and
// To "*" matches any target.
type Rule struct {
	Trigger Trigger
	From    []string
	To      string
	Outcome Outcome
	Guard   Guard
}

// Machine is a status machine for one entity kind.
type Machine struct {
	Kind   string
	States []string
	Rules  []Rule
}

// Decision is the evaluated transition.
type Decision struct {
	Outcome Outcome
	From    string
	To      string
}

// Changed reports whether applying the decision alters the stored status.
func (d Decision) Changed() bool {
	return d.Outcome == Apply && d.From != d.To
}

// UnknownStatusError is returned for targets outside the machine's states.
type UnknownStatusError struct {
	Kind   string
	Status string
	Valid  []string
}

func (e UnknownStatusError) Error() string {
	return fmt.Sprintf("invalid %s status %q (expected one of %s)", e.Kind, e.Status, strings.Join(e.Valid, ", "))
}

// TransitionError is returned when no rule allows the transition.
type TransitionError struct {
	Kind    string
	Trigger Trigger
	From    string
	To      string
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition %s -> %s (%s)", e.Kind, e.From, e.To, e.Trigger)
}

// UnfinishedSubtasksError blocks promoting a card while subtasks remain open.
type UnfinishedSubtasksError struct {
	Target     string
	Unfinished []domain.Subtask
	Total      int
}

func (e UnfinishedSubtasksError) Error() string {
	return fmt.Sprintf("cannot move card to %s: %d of %d subtasks not done", e.Target, len(e.Unfinished), e.Total)
}

// Completed is the number of subtasks already done.
func (e UnfinishedSubtasksError) Completed() int {
	return e.Total - len(e.Unfinished)
}

// Decide evaluates a transition request against the table. The first
// matching rule wins.
func (m Machine) Decide(trigger Trigger, from, to string, facts Facts) (Decision, error) {
	d := Decision{Outcome: Reject, From: from, To: to}
	if !domain.OneOf(to, m.States) {
		return d, UnknownStatusError{Kind: m.Kind, Status: to, Valid: m.States}
	}
	for _, r := range m.Rules {
		if r.Trigger != trigger || !r.matches(from, to) {
			continue
		}
		if r.Outcome == Apply && r.Guard != nil {
			if err := r.Guard(to, facts); err != nil {
				return d, err
			}
		}
		d.Outcome = r.Outcome
		if d.Outcome == Reject {
			return d, TransitionError{Kind: m.Kind, Trigger: trigger, From: from, To: to}
		}
		return d, nil
	}
	return d, TransitionError{Kind: m.Kind, Trigger: trigger, From: from, To: to}
}

func (r Rule) matches(from, to string) bool {
	if r.To != "*" && r.To != to {
		return false
	}
	if len(r.From) == 0 {
		return true
	}
	return domain.OneOf(from, r.From)
}

// SubtasksDone rejects the target unless every subtask is done. A card with
// no subtasks passes.
func SubtasksDone(to string, f Facts) error {
	var open []domain.Subtask
	for _, s := range f.Subtasks {
		if s.Status != domain.SubtaskDone {
			open = append(open, s)
		}
	}
	if len(open) == 0 {
		return nil
	}
	return UnfinishedSubtasksError{Target: to, Unfinished: open, Total: len(f.Subtasks)}
}

// Cards is the card status machine.
var Cards = Machine{
	Kind:   "card",
	States: domain.CardStatuses,
	Rules: []Rule{
		{Trigger: TimerStart, From: []string{domain.CardDone, domain.CardReview}, To: domain.CardInProgress, Outcome: Keep},
		{Trigger: TimerStart, To: domain.CardInProgress, Outcome: Apply},
		{Trigger: Manual, To: domain.CardReview, Outcome: Apply, Guard: SubtasksDone},
		{Trigger: Manual, To: domain.CardDone, Outcome: Apply, Guard: SubtasksDone},
		{Trigger: Manual, To: "*", Outcome: Apply},
	},
}

// Subtasks is the subtask status machine. Manual updates are unrestricted.
var Subtasks = Machine{
	Kind:   "subtask",
	States: domain.SubtaskStatuses,
	Rules: []Rule{
		{Trigger: TimerStart, From: []string{domain.SubtaskDone}, To: domain.SubtaskInProgress, Outcome: Keep},
		{Trigger: TimerStart, To: domain.SubtaskInProgress, Outcome: Apply},
		{Trigger: Manual, To: "*", Outcome: Apply},
	},
}
