package app

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/helio-dev/helio/internal/domain"
)

// Sender is the transport half the hub needs from a connection: a
// non-blocking enqueue of an outbound frame.
type Sender interface {
	TrySend(data []byte) error
}

type connEntry struct {
	Username string
	Room     domain.RoomID
	Sender   Sender
	Cancel   context.CancelFunc
}

// Registry tracks which connection belongs to which room and username, plus
// the process-wide online-user set. The online set is kept in sync
// synchronously on disconnect; it never names a detached connection.
type Registry struct {
	mu     sync.RWMutex
	conns  map[domain.ConnID]*connEntry
	online map[domain.UserID]domain.ConnID
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[domain.ConnID]*connEntry),
		online: make(map[domain.UserID]domain.ConnID),
	}
}

func (r *Registry) Bind(connID domain.ConnID, sender Sender, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = &connEntry{Sender: sender, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("conn", string(connID)).Msg("bound connection")
}

// SetPresence records the connection's username and room. Returns the
// username and room it had before, if any, so the caller can announce the
// departure under the name the old room knew.
func (r *Registry) SetPresence(connID domain.ConnID, username string, room domain.RoomID) (string, domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[connID]
	if !ok {
		return "", "", false
	}
	prevName := e.Username
	prevRoom := e.Room
	e.Username = username
	e.Room = room
	log.Info().Str("module", "app.registry").Str("conn", string(connID)).
		Str("username", username).Str("room", string(room)).Msg("presence updated")
	return prevName, prevRoom, prevRoom != "" && prevRoom != room
}

// Entry returns the last-known username and room for a connection.
func (r *Registry) Entry(connID domain.ConnID) (username string, room domain.RoomID, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, found := r.conns[connID]
	if !found {
		return "", "", false
	}
	return e.Username, e.Room, true
}

// MembersOfRoom snapshots the room's presence list.
func (r *Registry) MembersOfRoom(room domain.RoomID) []domain.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Member, 0, 4)
	for id, e := range r.conns {
		if e.Room == room {
			out = append(out, domain.Member{ConnID: id, Username: e.Username})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnID < out[j].ConnID })
	return out
}

// SendTo enqueues a frame for one connection. Unknown targets are a no-op.
func (r *Registry) SendTo(connID domain.ConnID, data []byte) bool {
	r.mu.RLock()
	e, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if err := e.Sender.TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "app.registry").Str("conn", string(connID)).Msg("send dropped")
	}
	return true
}

// BroadcastRoom enqueues a frame for every member of the room except one.
// The exclusive lock makes room delivery order equal arrival order at the
// router: no two broadcasts interleave their enqueues.
func (r *Registry) BroadcastRoom(room domain.RoomID, except domain.ConnID, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.conns {
		if e.Room != room || id == except {
			continue
		}
		if err := e.Sender.TrySend(data); err != nil {
			log.Warn().Err(err).Str("module", "app.registry").Str("conn", string(id)).Msg("broadcast dropped")
		}
	}
}

// BroadcastAll enqueues a frame for every attached connection, roomed or not.
func (r *Registry) BroadcastAll(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.conns {
		if err := e.Sender.TrySend(data); err != nil {
			log.Warn().Err(err).Str("module", "app.registry").Str("conn", string(id)).Msg("broadcast dropped")
		}
	}
}

func (r *Registry) SetOnline(userID domain.UserID, connID domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online[userID] = connID
	log.Info().Str("module", "app.registry").Str("user", string(userID)).Str("conn", string(connID)).Msg("user online")
}

// DropOnlineByConn removes the online entry owned by the connection, if any.
func (r *Registry) DropOnlineByConn(connID domain.ConnID) (domain.UserID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uid, cid := range r.online {
		if cid == connID {
			delete(r.online, uid)
			return uid, true
		}
	}
	return "", false
}

func (r *Registry) OnlineUserIDs() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.UserID, 0, len(r.online))
	for uid := range r.online {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Unbind(connID domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[connID]; ok && e.Cancel != nil {
		e.Cancel()
	}
	delete(r.conns, connID)
	log.Info().Str("module", "app.registry").Str("conn", string(connID)).Msg("unbound connection")
}
