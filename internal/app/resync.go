package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/helio-dev/helio/internal/domain"
	"github.com/helio-dev/helio/internal/protocol"
	"github.com/helio-dev/helio/internal/storage"
)

const resyncFetchTimeout = 3 * time.Second

// pushResync delivers the three join-time snapshots to one connection:
// document updates, the file list, and the whiteboard. Each push always
// happens, even when the persistence collaborator is down — an empty
// snapshot unlocks the client, a missing one wedges it.
func (h *Hub) pushResync(connID domain.ConnID, room domain.RoomID) {
	for _, update := range h.Docs.Snapshot(room) {
		h.send(connID, protocol.TypeSyncUpdate, protocol.SyncUpdate{RoomID: room, Update: update})
	}

	files, loaded := h.Files.Files(room)
	board := h.Files.Whiteboard(room)
	if !loaded && h.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), resyncFetchTimeout)
		rec, err := h.Store.GetRoom(ctx, room)
		cancel()
		switch {
		case err == nil:
			h.Files.Seed(room, rec.Files, rec.Whiteboard)
			files, _ = h.Files.Files(room)
			board = h.Files.Whiteboard(room)
		case errors.Is(err, storage.ErrNotFound):
			// New room, nothing persisted yet.
		default:
			log.Error().Err(err).Str("module", "app.resync").Str("room", string(room)).Msg("room load failed, sending empty snapshot")
		}
	}

	h.send(connID, protocol.TypeSyncCode, protocol.SyncCode{Files: files})
	h.send(connID, protocol.TypeElementUpdate, protocol.ElementUpdate{Elements: board})
}

// SyncUpdate folds a replication update into the primitive and relays it to
// the rest of the room.
func (h *Hub) SyncUpdate(connID domain.ConnID, p protocol.SyncUpdate) {
	if p.RoomID == "" {
		return
	}
	h.Docs.Apply(p.RoomID, p.Update)
	h.broadcast(p.RoomID, connID, protocol.TypeSyncUpdate, p)
}

// SyncRequest forwards a member's request for a peer snapshot to everyone
// else in the room. Whoever answers first wins; nothing is deduplicated.
func (h *Hub) SyncRequest(connID domain.ConnID, p protocol.SyncRequest) {
	_, room, ok := h.Registry.Entry(connID)
	if !ok || room == "" {
		return
	}
	h.broadcast(room, connID, protocol.TypeSyncRequest, protocol.SyncRequest{ConnID: p.ConnID})
}

// SyncCode relays a peer-provided snapshot straight to the requesting
// connection, unfiltered. Concurrent responders all get through; the client
// applies idempotently.
func (h *Hub) SyncCode(connID domain.ConnID, p protocol.SyncCode) {
	if p.ConnID == "" {
		return
	}
	h.send(p.ConnID, protocol.TypeSyncCode, protocol.SyncCode{Files: p.Files})
}
