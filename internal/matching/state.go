package matching

import "fmt"

// State is a step of a match run.
type State string

const (
	StateIdle       State = "idle"
	StateFiltering  State = "filtering"
	StateRanking    State = "ranking"
	StateExplaining State = "explaining"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// transitions lists the allowed next states. Failed is reachable from every non-terminal state.
var transitions = map[State][]State{
	StateIdle:       {StateFiltering},
	StateFiltering:  {StateRanking, StateDone},
	StateRanking:    {StateExplaining, StateDone},
	StateExplaining: {StateDone},
}

func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// machine records the states a run went through.
type machine struct {
	history []State
}

func newMachine() *machine {
	return &machine{history: []State{StateIdle}}
}

func (m *machine) current() State { return m.history[len(m.history)-1] }

func (m *machine) move(to State) error {
	from := m.current()
	if !canTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	m.history = append(m.history, to)
	return nil
}
