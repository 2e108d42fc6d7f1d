package security

import "time"

// SetClock replaces the guard's time source.
func (g *BruteForceGuard) SetClock(now func() time.Time) {
	g.mu.Lock()
	g.now = now
	g.mu.Unlock()
}

// Sweep runs one cleanup pass.
func (g *BruteForceGuard) Sweep() { g.sweep() }

// Tracked returns the number of tracked accounts.
func (g *BruteForceGuard) Tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.records)
}
