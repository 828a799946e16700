// Package quest tracks instance-scoped quests so they can be expired when
// their instance is torn down.
package quest

import "sync"

// entry is one active quest tied to an instance.
type entry struct {
	playerUID  string
	questVnum  int
	instanceID int
}

// Tracker records active instance-scoped quests.
// All methods are safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	active []entry
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Start records a quest a player picked up inside an instance.
func (t *Tracker) Start(playerUID string, questVnum, instanceID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = append(t.active, entry{playerUID: playerUID, questVnum: questVnum, instanceID: instanceID})
}

// ActiveFor returns the quest vnums a player currently has active.
func (t *Tracker) ActiveFor(playerUID string) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []int
	for _, e := range t.active {
		if e.playerUID == playerUID {
			out = append(out, e.questVnum)
		}
	}
	return out
}

// ExpireInstance removes every quest tied to the given instance, returning
// how many were expired. Called by instance deletion.
func (t *Tracker) ExpireInstance(instanceID int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.active[:0]
	expired := 0
	for _, e := range t.active {
		if e.instanceID == instanceID {
			expired++
			continue
		}
		kept = append(kept, e)
	}
	t.active = kept
	return expired
}
