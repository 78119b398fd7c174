//go:build linux

package service

import (
	"context"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
)

// DBusQuerier queries service status over the systemd D-Bus API
// instead of shelling out to systemctl. It needs a reachable system
// bus, so callers fall back to the command querier when the
// connection cannot be established.
type DBusQuerier struct {
	conn *dbus.Conn
}

// NewDBusQuerier connects to the system bus.
func NewDBusQuerier(ctx context.Context) (*DBusQuerier, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, newError(ErrCodeQueryFailed, "connecting to the system bus", err)
	}
	return &DBusQuerier{conn: conn}, nil
}

// Query reads the unit's ActiveState and LoadState properties and maps
// them onto a Status.
func (q *DBusQuerier) Query(ctx context.Context, name string) (Status, string, error) {
	unit := name + ".service"

	load, err := q.conn.GetUnitPropertyContext(ctx, unit, "LoadState")
	if err != nil {
		return StatusUnknown, "", newError(ErrCodeQueryFailed, "reading unit LoadState", err)
	}
	if strings.Contains(load.Value.String(), "not-found") {
		return StatusNotInstalled, load.Value.String(), nil
	}

	active, err := q.conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return StatusUnknown, "", newError(ErrCodeQueryFailed, "reading unit ActiveState", err)
	}
	raw := active.Value.String()
	return ClassifyStatus(raw), raw, nil
}

// StartType maps the unit's UnitFileState onto a start-type label.
func (q *DBusQuerier) StartType(ctx context.Context, name string) (string, error) {
	prop, err := q.conn.GetUnitPropertyContext(ctx, name+".service", "UnitFileState")
	if err != nil {
		return "", newError(ErrCodeQueryFailed, "reading unit file state", err)
	}
	out := strings.ToLower(prop.Value.String())
	switch {
	case strings.Contains(out, "enabled"):
		return "automatic", nil
	case strings.Contains(out, "masked"):
		return "disabled", nil
	case strings.Contains(out, "disabled"), strings.Contains(out, "static"):
		return "manual", nil
	default:
		return "", nil
	}
}

// Close releases the bus connection.
func (q *DBusQuerier) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}
