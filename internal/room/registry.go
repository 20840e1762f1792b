// Package room tracks which connection belongs to which room and fans
// events out to room members.
package room

import (
	"errors"
	"sync"
)

// ErrAlreadyJoined is returned when a connection that already holds a
// participant record attempts a second join.
var ErrAlreadyJoined = errors.New("connection already joined a room")

// Conn is the narrow view of a transport connection the room layer needs.
// Implementations must be identity-comparable; the registry never performs
// I/O through it beyond Send.
type Conn interface {
	// Send queues a serialized event for delivery. It must not block: a
	// peer that cannot keep up is the transport's problem, not the room's.
	Send(payload []byte)
}

// Participant is one live connection registered in a room.
type Participant struct {
	Conn   Conn
	RoomID string
	Name   string
}

// Registry is the process-wide map of live participants, indexed by room so
// membership lookups cost O(members) rather than O(total connections).
// Rooms are derived: an entry exists only while at least one participant
// holds its id.
type Registry struct {
	mu     sync.RWMutex
	byConn map[Conn]*Participant
	rooms  map[string]map[Conn]*Participant
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[Conn]*Participant),
		rooms:  make(map[string]map[Conn]*Participant),
	}
}

// Join registers a participant record for conn. A connection may hold at
// most one record; a second join is rejected with ErrAlreadyJoined and
// leaves the registry untouched.
func (r *Registry) Join(conn Conn, roomID, name string) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[conn]; ok {
		return nil, ErrAlreadyJoined
	}

	p := &Participant{Conn: conn, RoomID: roomID, Name: name}
	r.byConn[conn] = p

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[Conn]*Participant)
		r.rooms[roomID] = members
	}
	members[conn] = p
	return p, nil
}

// Remove deletes and returns the participant record for a closing
// connection. It reports false for connections that never joined. When the
// last member leaves a room, the room index entry is deleted so long-lived
// processes do not accumulate empty rooms.
func (r *Registry) Remove(conn Conn) (*Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byConn[conn]
	if !ok {
		return nil, false
	}
	delete(r.byConn, conn)

	if members, ok := r.rooms[p.RoomID]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(r.rooms, p.RoomID)
		}
	}
	return p, true
}

// Lookup returns the participant record for conn, if any.
func (r *Registry) Lookup(conn Conn) (*Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byConn[conn]
	return p, ok
}

// Members returns a snapshot of the current participants of a room. The
// slice is owned by the caller; mutations after the call are not reflected.
// An unknown room yields an empty snapshot, not an error.
func (r *Registry) Members(roomID string) []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	snapshot := make([]*Participant, 0, len(members))
	for _, p := range members {
		snapshot = append(snapshot, p)
	}
	return snapshot
}

// Count returns the live cardinality of a room.
func (r *Registry) Count(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}
