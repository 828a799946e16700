package adventure

import (
	"fmt"
	"sort"
	"sync"
)

// Store indexes adventures and room templates by vnum. Read-only after
// loading completes.
type Store struct {
	mu         sync.RWMutex
	adventures map[int]*Adventure
	templates  map[int]*RoomTemplate
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		adventures: make(map[int]*Adventure),
		templates:  make(map[int]*RoomTemplate),
	}
}

// AddAdventure registers an adventure blueprint.
//
// Postcondition: Returns an error on validation failure or duplicate vnum.
func (s *Store) AddAdventure(a *Adventure) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.adventures[a.Vnum]; exists {
		return fmt.Errorf("duplicate adventure vnum %d", a.Vnum)
	}
	s.adventures[a.Vnum] = a
	return nil
}

// AddRoomTemplate registers a room template.
//
// Postcondition: Returns an error on duplicate vnum.
func (s *Store) AddRoomTemplate(t *RoomTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.templates[t.Vnum]; exists {
		return fmt.Errorf("duplicate room template vnum %d", t.Vnum)
	}
	s.templates[t.Vnum] = t
	return nil
}

// Adventure returns the adventure with the given vnum, or nil.
func (s *Store) Adventure(vnum int) *Adventure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adventures[vnum]
}

// RoomTemplate returns the room template with the given vnum, or nil.
func (s *Store) RoomTemplate(vnum int) *RoomTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templates[vnum]
}

// Adventures returns all adventures in ascending vnum order.
//
// Postcondition: Returns a non-nil slice; may be empty.
func (s *Store) Adventures() []*Adventure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Adventure, 0, len(s.adventures))
	for _, a := range s.adventures {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vnum < out[j].Vnum })
	return out
}

// RoomTemplatesIn returns all room templates with start <= vnum <= end, in
// ascending vnum order. The first template in this order supplies an
// instance's start room.
func (s *Store) RoomTemplatesIn(start, end int) []*RoomTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*RoomTemplate
	for v, t := range s.templates {
		if v >= start && v <= end {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vnum < out[j].Vnum })
	return out
}
