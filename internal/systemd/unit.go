package systemd

import (
	"context"
	"errors"
	"fmt"
)

// StateActive is the only ActiveState a UnitCheck accepts.
const StateActive = "active"

// ErrUnitInactive is wrapped by UnitStateError.
var ErrUnitInactive = errors.New("unit is not active")

// UnitStateError reports a unit that was reachable but not active.
type UnitStateError struct {
	Unit  string
	State string
}

func (e *UnitStateError) Error() string {
	return fmt.Sprintf("unit %s is %s", e.Unit, e.State)
}

func (e *UnitStateError) Unwrap() error {
	return ErrUnitInactive
}

// StateReader is the part of Manager a UnitCheck needs.
type StateReader interface {
	ActiveState(ctx context.Context, unit string) (string, error)
}

// UnitCheck is a process function that succeeds while a unit is active.
// Its value is the observed state.
type UnitCheck struct {
	reader StateReader
	unit   string
}

// NewUnitCheck returns a check of unit through reader.
func NewUnitCheck(reader StateReader, unit string) *UnitCheck {
	return &UnitCheck{reader: reader, unit: unit}
}

// Unit returns the checked unit name.
func (u *UnitCheck) Unit() string {
	return u.unit
}

// Run reads the unit state once.
func (u *UnitCheck) Run(ctx context.Context) (any, error) {
	state, err := u.reader.ActiveState(ctx, u.unit)
	if err != nil {
		return nil, fmt.Errorf("failed to read state of %s: %w", u.unit, err)
	}
	if state != StateActive {
		return state, &UnitStateError{Unit: u.unit, State: state}
	}
	return state, nil
}
