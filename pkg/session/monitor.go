package session

import "sync/atomic"

// Monitor keeps the session lifecycle counters. All counters are monotonic
// and safe for concurrent use. A nil or disabled monitor is a no-op, so
// callers never need to guard their increments.
type Monitor struct {
	enabled    bool
	created    atomic.Int64
	destroyed  atomic.Int64
	duplicated atomic.Int64
}

// NewMonitor creates a monitor; pass false to disable counting.
func NewMonitor(enabled bool) *Monitor {
	return &Monitor{enabled: enabled}
}

// SessionCreated counts a session's first metadata write.
func (m *Monitor) SessionCreated() {
	if m == nil || !m.enabled {
		return
	}
	m.created.Add(1)
}

// SessionDestroyed counts an invalidation.
func (m *Monitor) SessionDestroyed() {
	if m == nil || !m.enabled {
		return
	}
	m.destroyed.Add(1)
}

// DuplicatedLogin counts a login that superseded another session.
func (m *Monitor) DuplicatedLogin() {
	if m == nil || !m.enabled {
		return
	}
	m.duplicated.Add(1)
}

// MonitorStats is a point-in-time counter snapshot.
type MonitorStats struct {
	Created         int64
	Destroyed       int64
	DuplicatedLogin int64
}

// Stats returns the current counter values.
func (m *Monitor) Stats() MonitorStats {
	if m == nil {
		return MonitorStats{}
	}
	return MonitorStats{
		Created:         m.created.Load(),
		Destroyed:       m.destroyed.Load(),
		DuplicatedLogin: m.duplicated.Load(),
	}
}
