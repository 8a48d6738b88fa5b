package requests

import "fmt"

type State string

const (
	StatePending            State = "PENDING"
	StateApproved           State = "APPROVED"
	StateRejected           State = "REJECTED"
	StatePartiallyDelivered State = "PARTIALLY_DELIVERED"
	StateIncidentReported   State = "INCIDENT_REPORTED"
	StateIncidentAccepted   State = "INCIDENT_ACCEPTED"
	StateIncidentRejected   State = "INCIDENT_REJECTED"
	StateCompleted          State = "COMPLETED"
)

// transitions is the only place that decides which state changes are legal.
var transitions = map[State][]State{
	StatePending:            {StateApproved, StateRejected, StatePartiallyDelivered},
	StateApproved:           {StateIncidentReported, StateCompleted},
	StatePartiallyDelivered: {StateIncidentReported, StateCompleted},
	StateIncidentReported:   {StateIncidentAccepted, StateIncidentRejected},
}

var allStates = []State{
	StatePending, StateApproved, StateRejected, StatePartiallyDelivered,
	StateIncidentReported, StateIncidentAccepted, StateIncidentRejected, StateCompleted,
}

func States() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

func ParseState(s string) (State, error) {
	for _, st := range allStates {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown request state %q", s)
}

func (s State) Valid() bool {
	_, err := ParseState(string(s))
	return err == nil
}

func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal is true for states with no outgoing transition.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Delivered is true while goods handed out can still be returned or reported.
func (s State) Delivered() bool {
	return s == StateApproved || s == StatePartiallyDelivered
}

// Transition checks from -> to against the table.
func Transition(from, to State) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("transition %s -> %s is not allowed", from, to)
	}
	return nil
}
