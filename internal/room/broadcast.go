package room

import "log/slog"

// Broadcaster fans a serialized event out to the members of one room. It is
// a pure reader of the registry: the snapshot is taken under the registry
// lock, the sends happen outside it through each connection's non-blocking
// Send, so a slow peer never stalls the rest of the room.
type Broadcaster struct {
	registry *Registry
	logger   *slog.Logger
}

func NewBroadcaster(registry *Registry, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, logger: logger}
}

// Broadcast sends payload to every participant of roomID for which exclude
// is false. A nil exclude delivers to everyone. It returns the number of
// connections the payload was handed to. Broadcasting to an unknown or
// empty room is a no-op.
func (b *Broadcaster) Broadcast(roomID string, payload []byte, exclude func(*Participant) bool) int {
	sent := 0
	for _, p := range b.registry.Members(roomID) {
		if exclude != nil && exclude(p) {
			continue
		}
		p.Conn.Send(payload)
		sent++
	}
	b.logger.Debug("broadcast", "roomId", roomID, "recipients", sent)
	return sent
}

// ExcludeConn builds the usual echo-suppression predicate: the connection
// that produced an event does not receive its own copy. Exclusion is by
// connection identity, so two participants sharing a display name are
// still delivered to independently.
func ExcludeConn(conn Conn) func(*Participant) bool {
	return func(p *Participant) bool { return p.Conn == conn }
}
