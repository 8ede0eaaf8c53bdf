package workflows

import (
	"fmt"
	"slices"
)

// Transitions maps a status to the statuses it may move to.
// A status with an empty list is terminal.
type Transitions[S ~string] map[S][]S

// StateMachine enforces status transitions for one record kind
type StateMachine[S ~string] struct {
	name               string
	allowedTransitions Transitions[S]
}

// NewStateMachine creates a state machine over the given transitions
func NewStateMachine[S ~string](name string, t Transitions[S]) *StateMachine[S] {
	return &StateMachine[S]{name: name, allowedTransitions: t}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine[S]) CanTransition(from, to S) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	return slices.Contains(allowed, to)
}

// Transition returns an error naming both statuses when the move is not allowed
func (sm *StateMachine[S]) Transition(from, to S) error {
	if from == to {
		return nil
	}
	if !sm.CanTransition(from, to) {
		return &TransitionError{Kind: sm.name, From: string(from), To: string(to)}
	}
	return nil
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine[S]) GetAllowedTransitions(from S) []S {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []S{}
	}
	return slices.Clone(allowed)
}

// IsTerminal reports whether no transition leaves status
func (sm *StateMachine[S]) IsTerminal(status S) bool {
	allowed, exists := sm.allowedTransitions[status]
	return exists && len(allowed) == 0
}

// Known reports whether status is part of the machine
func (sm *StateMachine[S]) Known(status S) bool {
	_, exists := sm.allowedTransitions[status]
	return exists
}

// TransitionError rejects a status change
type TransitionError struct {
	Kind string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition from %s to %s", e.Kind, e.From, e.To)
}
