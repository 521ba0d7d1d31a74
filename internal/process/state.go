package process

// State represents the current state of a supervised process.
type State string

// Process states.
const (
	StateIdle       State = "idle"       // Constructed, or finished a single-shot invocation
	StateRunning    State = "running"    // Executing, or between continuous ticks
	StatePaused     State = "paused"     // Continuous mode suspended
	StateStopped    State = "stopped"    // Terminal
	StateOptimizing State = "optimizing" // Optimization pass in progress
	StateError      State = "error"      // Last invocation exhausted its retries
)

// transitions lists the legal target states for each state.
var transitions = map[State][]State{
	StateIdle:       {StateRunning, StatePaused, StateStopped},
	StateRunning:    {StateRunning, StateIdle, StateError, StateOptimizing, StatePaused, StateStopped},
	StateOptimizing: {StateIdle, StateRunning, StateError, StatePaused, StateStopped},
	StateError:      {StateRunning, StatePaused, StateStopped},
	StatePaused:     {StateRunning, StateStopped},
	StateStopped:    nil,
}

// CanTransition reports whether moving from s to target is legal.
func (s State) CanTransition(target State) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition can leave s.
func (s State) IsTerminal() bool {
	return s == StateStopped
}

// stateChange is a transition waiting to be reported to hooks.
type stateChange struct {
	from State
	to   State
	err  error
}

// stateMachine holds the authoritative state. It has no lock of its own;
// callers hold Process.mu.
type stateMachine struct {
	current State
}

func newStateMachine() stateMachine {
	return stateMachine{current: StateIdle}
}

// transition moves to target if legal and returns the change to report.
// Self-transitions are accepted but produce no change.
func (sm *stateMachine) transition(target State) (*stateChange, error) {
	from := sm.current
	if !from.CanTransition(target) {
		return nil, &TransitionError{From: from, To: target}
	}
	sm.current = target
	if from == target {
		return nil, nil
	}
	return &stateChange{from: from, to: target}, nil
}

// stop forces the terminal state from anywhere.
func (sm *stateMachine) stop() *stateChange {
	from := sm.current
	if from == StateStopped {
		return nil
	}
	sm.current = StateStopped
	return &stateChange{from: from, to: StateStopped}
}
