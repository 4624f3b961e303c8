package models

import "fmt"

type Transition string

const (
	TransitionStart    Transition = "start"
	TransitionComplete Transition = "complete"
	TransitionCancel   Transition = "cancel"
	TransitionReopen   Transition = "reopen"
)

// Transitions lists the state machine edges in the order they are offered as links.
var Transitions = []Transition{TransitionStart, TransitionComplete, TransitionCancel, TransitionReopen}

var transitionRules = map[Transition]struct {
	from []Status
	to   Status
}{
	TransitionStart:    {from: []Status{StatusCreated}, to: StatusInProgress},
	TransitionComplete: {from: []Status{StatusInProgress}, to: StatusCompleted},
	TransitionCancel:   {from: []Status{StatusCreated, StatusInProgress}, to: StatusCancelled},
	TransitionReopen:   {from: []Status{StatusCompleted, StatusCancelled}, to: StatusCreated},
}

// Target returns the status a transition leads to.
func (t Transition) Target() Status {
	return transitionRules[t].to
}

// Allowed reports whether t may be applied to a task in status from.
func (t Transition) Allowed(from Status) bool {
	rule, ok := transitionRules[t]
	if !ok {
		return false
	}
	for _, s := range rule.from {
		if s == from {
			return true
		}
	}
	return false
}

// Apply returns the next status or an error naming the illegal move.
func (t Transition) Apply(from Status) (Status, error) {
	if _, ok := transitionRules[t]; !ok {
		return "", fmt.Errorf("unknown transition %q", t)
	}
	if !t.Allowed(from) {
		return "", fmt.Errorf("cannot %s a task in status %s", t, from)
	}
	return t.Target(), nil
}

// AllowedTransitions lists the transitions legal from status s.
func AllowedTransitions(s Status) []Transition {
	var out []Transition
	for _, t := range Transitions {
		if t.Allowed(s) {
			out = append(out, t)
		}
	}
	return out
}

// TransitionBetween finds the state machine edge from one status to another, if any.
func TransitionBetween(from, to Status) (Transition, bool) {
	for _, t := range Transitions {
		if t.Allowed(from) && t.Target() == to {
			return t, true
		}
	}
	return "", false
}
