package entity

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/emberforge/mud/internal/game/world"
)

// Manager tracks all live entities by UID and by room.
// All methods are safe for concurrent use; snapshots returned by the
// enumeration methods are safe to iterate while entities are removed.
type Manager struct {
	mu sync.RWMutex

	mobProtos     map[int]*MobProto
	objectProtos  map[int]*ObjectProto
	vehicleProtos map[int]*VehicleProto

	mobs     map[string]*Mob
	objects  map[string]*Object
	vehicles map[string]*Vehicle
	players  map[string]*Player
}

// NewManager creates an empty entity Manager.
func NewManager() *Manager {
	return &Manager{
		mobProtos:     make(map[int]*MobProto),
		objectProtos:  make(map[int]*ObjectProto),
		vehicleProtos: make(map[int]*VehicleProto),
		mobs:          make(map[string]*Mob),
		objects:       make(map[string]*Object),
		vehicles:      make(map[string]*Vehicle),
		players:       make(map[string]*Player),
	}
}

// RegisterMobProto registers a mob prototype, replacing any previous one.
func (m *Manager) RegisterMobProto(p *MobProto) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mobProtos[p.Vnum] = p
}

// RegisterObjectProto registers an object prototype, replacing any previous one.
func (m *Manager) RegisterObjectProto(p *ObjectProto) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objectProtos[p.Vnum] = p
}

// RegisterVehicleProto registers a vehicle prototype, replacing any previous one.
func (m *Manager) RegisterVehicleProto(p *VehicleProto) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicleProtos[p.Vnum] = p
}

// MobProto returns the mob prototype for vnum, or nil.
func (m *Manager) MobProto(vnum int) *MobProto {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mobProtos[vnum]
}

// ObjectProto returns the object prototype for vnum, or nil.
func (m *Manager) ObjectProto(vnum int) *ObjectProto {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objectProtos[vnum]
}

// VehicleProto returns the vehicle prototype for vnum, or nil.
func (m *Manager) VehicleProto(vnum int) *VehicleProto {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vehicleProtos[vnum]
}

// SpawnMob creates a live mob from the prototype in roomID.
//
// Precondition: a prototype for vnum must be registered.
// Postcondition: Returns a mob with a fresh UID, untagged and unscaled.
func (m *Manager) SpawnMob(vnum int, roomID world.RoomID) (*Mob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	proto, ok := m.mobProtos[vnum]
	if !ok {
		return nil, fmt.Errorf("entity: no mob prototype %d", vnum)
	}
	mob := &Mob{
		UID:        uuid.New().String(),
		Vnum:       vnum,
		Name:       proto.Name,
		RoomID:     roomID,
		InstanceID: NoInstance,
	}
	m.mobs[mob.UID] = mob
	return mob, nil
}

// SpawnObject creates a live object from the prototype in roomID.
//
// Precondition: a prototype for vnum must be registered.
func (m *Manager) SpawnObject(vnum int, roomID world.RoomID) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	proto, ok := m.objectProtos[vnum]
	if !ok {
		return nil, fmt.Errorf("entity: no object prototype %d", vnum)
	}
	obj := &Object{
		UID:          uuid.New().String(),
		Vnum:         vnum,
		Name:         proto.Name,
		RoomID:       roomID,
		Portal:       proto.Portal,
		PortalTarget: world.RoomID(proto.PortalTarget),
	}
	m.objects[obj.UID] = obj
	return obj, nil
}

// SpawnVehicle creates a live vehicle from the prototype in roomID.
//
// Precondition: a prototype for vnum must be registered.
func (m *Manager) SpawnVehicle(vnum int, roomID world.RoomID) (*Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	proto, ok := m.vehicleProtos[vnum]
	if !ok {
		return nil, fmt.Errorf("entity: no vehicle prototype %d", vnum)
	}
	v := &Vehicle{
		UID:    uuid.New().String(),
		Vnum:   vnum,
		Name:   proto.Name,
		RoomID: roomID,
	}
	m.vehicles[v.UID] = v
	return v, nil
}

// AddPlayer registers a player character in a room.
func (m *Manager) AddPlayer(p *Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[p.UID] = p
}

// RemovePlayer unregisters a player character.
func (m *Manager) RemovePlayer(uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players, uid)
}

// MovePlayer relocates a player to roomID.
func (m *Manager) MovePlayer(uid string, roomID world.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[uid]
	if !ok {
		return fmt.Errorf("entity: player %q not found", uid)
	}
	p.RoomID = roomID
	return nil
}

// MoveMob relocates a mob to roomID.
func (m *Manager) MoveMob(uid string, roomID world.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mob, ok := m.mobs[uid]
	if !ok {
		return fmt.Errorf("entity: mob %q not found", uid)
	}
	mob.RoomID = roomID
	return nil
}

// ExtractMob removes a mob from the world. A mob mid-combat is not removed
// immediately; it is marked pending and removed by DrainPendingMobs once
// its fight ends.
//
// Postcondition: Returns true if the mob was removed now, false if deferred
// or unknown.
func (m *Manager) ExtractMob(uid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	mob, ok := m.mobs[uid]
	if !ok {
		return false
	}
	if mob.Fighting {
		mob.extractPending = true
		return false
	}
	delete(m.mobs, uid)
	return true
}

// DrainPendingMobs removes every mob whose deferred extraction is no
// longer blocked by combat.
//
// Postcondition: Returns the number of mobs removed.
func (m *Manager) DrainPendingMobs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for uid, mob := range m.mobs {
		if mob.extractPending && !mob.Fighting {
			delete(m.mobs, uid)
			n++
		}
	}
	return n
}

// ExtractObject removes an object from the world.
func (m *Manager) ExtractObject(uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, uid)
}

// ExtractVehicle removes a vehicle from the world.
func (m *Manager) ExtractVehicle(uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vehicles, uid)
}

// AllMobs returns a snapshot of every live mob.
func (m *Manager) AllMobs() []*Mob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Mob, 0, len(m.mobs))
	for _, mob := range m.mobs {
		out = append(out, mob)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// MobsInRoom returns a snapshot of live mobs in roomID.
func (m *Manager) MobsInRoom(roomID world.RoomID) []*Mob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Mob
	for _, mob := range m.mobs {
		if mob.RoomID == roomID {
			out = append(out, mob)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// ObjectsInRoom returns a snapshot of ground objects in roomID.
func (m *Manager) ObjectsInRoom(roomID world.RoomID) []*Object {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Object
	for _, obj := range m.objects {
		if obj.RoomID == roomID {
			out = append(out, obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// VehiclesInRoom returns a snapshot of vehicles parked in roomID.
func (m *Manager) VehiclesInRoom(roomID world.RoomID) []*Vehicle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Vehicle
	for _, v := range m.vehicles {
		if v.RoomID == roomID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// PlayersInRoom returns a snapshot of players in roomID.
func (m *Manager) PlayersInRoom(roomID world.RoomID) []*Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Player
	for _, p := range m.players {
		if p.RoomID == roomID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}
