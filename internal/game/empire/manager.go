// Package empire provides the ownership subsystem: empires, claims, and
// cities, as consulted by placement eligibility checks.
package empire

import (
	"sync"
	"time"

	"github.com/emberforge/mud/internal/game/world"
)

// Empire is one player organization able to claim territory.
type Empire struct {
	// ID uniquely identifies the empire.
	ID int
	// Name is the display name.
	Name string
	// LastLogin is the most recent login of any member.
	LastLogin time.Time
}

// City is a founded city: a center tile and a radius of influence.
type City struct {
	// EmpireID is the founding empire.
	EmpireID int
	// Center is the city's central map tile.
	Center world.Coords
	// Radius is the city's reach in tiles.
	Radius int
}

// Manager tracks empires and their cities.
// All methods are safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	empires map[int]*Empire
	cities  []*City
}

// NewManager creates an empty empire Manager.
func NewManager() *Manager {
	return &Manager{empires: make(map[int]*Empire)}
}

// Register adds an empire, replacing any previous record with the same id.
func (m *Manager) Register(e *Empire) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.empires[e.ID] = e
}

// ByID returns the empire with the given id, or nil.
func (m *Manager) ByID(id int) *Empire {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.empires[id]
}

// AddCity records a founded city.
func (m *Manager) AddCity(c *City) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cities = append(m.cities, c)
}

// InCity reports whether the map position lies inside any city of the
// given empire. Chebyshev distance, matching claim reach.
func (m *Manager) InCity(empireID int, pos world.Coords) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.cities {
		if c.EmpireID != empireID {
			continue
		}
		dx := pos.X - c.Center.X
		if dx < 0 {
			dx = -dx
		}
		dy := pos.Y - c.Center.Y
		if dy < 0 {
			dy = -dy
		}
		if dx <= c.Radius && dy <= c.Radius {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the empire has been logged out longer than the
// given window. Unknown empires are treated as empty.
func (m *Manager) IsEmpty(empireID int, window time.Duration, now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.empires[empireID]
	if !ok {
		return true
	}
	return now.Sub(e.LastLogin) > window
}
