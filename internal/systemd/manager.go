// Package systemd reads unit state over D-Bus and turns it into a process
// function.
package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Bus selects the systemd instance to talk to.
type Bus string

const (
	// BusSystem is the system manager (PID 1).
	BusSystem Bus = "system"
	// BusUser is the calling user's manager.
	BusUser Bus = "user"
)

// Manager reads unit properties via D-Bus.
type Manager struct {
	conn *dbus.Conn
}

// NewManager connects to the selected bus.
func NewManager(ctx context.Context, bus Bus) (*Manager, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	switch bus {
	case BusUser:
		conn, err = dbus.NewUserConnectionContext(ctx)
	case BusSystem, "":
		conn, err = dbus.NewSystemConnectionContext(ctx)
	default:
		return nil, fmt.Errorf("unknown systemd bus %q", bus)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s bus: %w", bus, err)
	}
	return &Manager{conn: conn}, nil
}

// ActiveState retrieves the ActiveState property of a unit.
func (m *Manager) ActiveState(ctx context.Context, unit string) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return "", err
	}
	if state, ok := prop.Value.Value().(string); ok {
		return state, nil
	}
	return prop.Value.String(), nil
}

// Close cleanly closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
