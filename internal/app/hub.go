// Package app holds the session router and the room state it coordinates:
// presence, file replication, resynchronization, and signaling relay.
package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/helio-dev/helio/internal/domain"
	"github.com/helio-dev/helio/internal/protocol"
	"github.com/helio-dev/helio/internal/storage"
)

// Hub is the session router. It owns the presence registry and file store,
// dispatches inbound protocol messages, and fans resulting events out to the
// right subset of a room. All state is process-local; the persistence
// collaborator is written through asynchronously and never trusted over
// live memory.
type Hub struct {
	Registry *Registry
	Files    *FileStore
	Docs     DocSync
	Store    storage.RoomStore

	writer *storeWriter
}

func NewHub(store storage.RoomStore, docs DocSync) *Hub {
	if docs == nil {
		docs = NewMemoryDocSync()
	}
	return &Hub{
		Registry: NewRegistry(),
		Files:    NewFileStore(),
		Docs:     docs,
		Store:    store,
		writer:   newStoreWriter(),
	}
}

// send marshals and enqueues one message for one connection.
func (h *Hub) send(connID domain.ConnID, msgType string, payload any) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("type", msgType).Msg("encode")
		return
	}
	h.Registry.SendTo(connID, data)
}

// broadcast sends to every room member except one (the originator already
// applied the change optimistically and is never echoed its own event).
func (h *Hub) broadcast(room domain.RoomID, except domain.ConnID, msgType string, payload any) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("type", msgType).Msg("encode")
		return
	}
	h.Registry.BroadcastRoom(room, except, data)
}

func (h *Hub) broadcastAll(msgType string, payload any) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("type", msgType).Msg("encode")
		return
	}
	h.Registry.BroadcastAll(data)
}

// Attach registers a new connection with the router.
func (h *Hub) Attach(connID domain.ConnID, sender Sender, cancel context.CancelFunc) {
	h.Registry.Bind(connID, sender, cancel)
}

// Join puts the connection into a room, announces it to the existing
// members, and pushes the full resync snapshot to the joiner.
func (h *Hub) Join(connID domain.ConnID, p protocol.Join) {
	if p.RoomID == "" {
		log.Warn().Str("module", "app.hub").Str("conn", string(connID)).Msg("join without room id")
		return
	}
	if err := domain.ValidateUsername(p.Username); err != nil {
		log.Warn().Err(err).Str("module", "app.hub").Str("conn", string(connID)).Msg("join rejected")
		return
	}

	prevName, prevRoom, moved := h.Registry.SetPresence(connID, p.Username, p.RoomID)
	if moved {
		// A connection is in at most one room; joining elsewhere is a
		// departure from the old room, announced under the name the old
		// room last saw.
		h.broadcast(prevRoom, connID, protocol.TypeDisconnected, protocol.Disconnected{
			ConnID:   connID,
			Username: prevName,
		})
	}

	members := h.Registry.MembersOfRoom(p.RoomID)
	joined := protocol.Joined{
		Members:        members,
		JoinedUsername: p.Username,
		ConnID:         connID,
	}
	h.broadcast(p.RoomID, connID, protocol.TypeJoined, joined)
	// The joiner gets the same event once, as its join response.
	h.send(connID, protocol.TypeJoined, joined)

	log.Info().Str("module", "app.hub").Str("conn", string(connID)).
		Str("room", string(p.RoomID)).Str("username", p.Username).Msg("joined room")

	h.pushResync(connID, p.RoomID)
}

// UserOnline records the account in the process-wide online set and pushes
// the updated id list to every connection.
func (h *Hub) UserOnline(connID domain.ConnID, p protocol.UserOnline) {
	if p.UserID == "" {
		return
	}
	h.Registry.SetOnline(p.UserID, connID)
	h.broadcastAll(protocol.TypeOnlineUsersUpdate, protocol.OnlineUsersUpdate{
		UserIDs: h.Registry.OnlineUserIDs(),
	})
}

// Disconnect tears the connection down: one departure notification to its
// room, synchronous removal from presence and the online set. Persisted
// state is left to the write-through queue already in flight.
func (h *Hub) Disconnect(connID domain.ConnID) {
	username, room, ok := h.Registry.Entry(connID)
	if !ok {
		return
	}

	// Unbind first so the departed connection is out of the member set
	// before anyone is notified.
	h.Registry.Unbind(connID)

	if room != "" {
		h.broadcast(room, connID, protocol.TypeDisconnected, protocol.Disconnected{
			ConnID:   connID,
			Username: username,
		})
	}

	if _, changed := h.Registry.DropOnlineByConn(connID); changed {
		h.broadcastAll(protocol.TypeOnlineUsersUpdate, protocol.OnlineUsersUpdate{
			UserIDs: h.Registry.OnlineUserIDs(),
		})
	}

	log.Info().Str("module", "app.hub").Str("conn", string(connID)).Str("room", string(room)).Msg("disconnected")
}
