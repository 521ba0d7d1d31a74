package process

import (
	"errors"
	"testing"
)

var allStates = []State{StateIdle, StateRunning, StatePaused, StateStopped, StateOptimizing, StateError}

func TestCanTransition(t *testing.T) {
	allowed := map[State][]State{
		StateIdle:       {StateRunning, StatePaused, StateStopped},
		StateRunning:    {StateRunning, StateIdle, StateError, StateOptimizing, StatePaused, StateStopped},
		StateOptimizing: {StateIdle, StateRunning, StateError, StatePaused, StateStopped},
		StateError:      {StateRunning, StatePaused, StateStopped},
		StatePaused:     {StateRunning, StateStopped},
	}

	for _, from := range allStates {
		for _, to := range allStates {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStoppedIsTerminal(t *testing.T) {
	for _, s := range allStates {
		if got := s.IsTerminal(); got != (s == StateStopped) {
			t.Errorf("%s.IsTerminal() = %v", s, got)
		}
	}

	sm := newStateMachine()
	sm.stop()
	for _, to := range allStates {
		if _, err := sm.transition(to); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected stopped -> %s to be rejected, got %v", to, err)
		}
	}
	if sm.current != StateStopped {
		t.Errorf("expected state to remain stopped, got %s", sm.current)
	}
	if change := sm.stop(); change != nil {
		t.Errorf("expected second stop to report no change, got %+v", change)
	}
}

func TestStateMachineTransition(t *testing.T) {
	sm := newStateMachine()
	if sm.current != StateIdle {
		t.Fatalf("expected idle, got %s", sm.current)
	}

	change, err := sm.transition(StateRunning)
	if err != nil || change == nil || change.from != StateIdle || change.to != StateRunning {
		t.Fatalf("unexpected transition result: %+v, %v", change, err)
	}

	change, err = sm.transition(StateRunning)
	if err != nil || change != nil {
		t.Errorf("expected silent self-transition, got %+v, %v", change, err)
	}

	_, err = sm.transition(StateRunning)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sm.transition(StateIdle); err != nil {
		t.Fatal(err)
	}
	_, err = sm.transition(StateOptimizing)
	var te *TransitionError
	if !errors.As(err, &te) || te.From != StateIdle || te.To != StateOptimizing {
		t.Errorf("expected TransitionError idle -> optimizing, got %v", err)
	}
	if sm.current != StateIdle {
		t.Errorf("expected rejected transition to be a no-op, got %s", sm.current)
	}
}
