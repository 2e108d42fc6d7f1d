package session

import "time"

// SetClock overrides the manager's clock in tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }
