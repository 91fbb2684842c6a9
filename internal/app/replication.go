package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/helio-dev/helio/internal/domain"
	"github.com/helio-dev/helio/internal/protocol"
)

// persistFiles snapshots the room's file list and queues it for the
// persistence collaborator. Writes for one room run in order on a single
// queue; failures are logged and swallowed, the broadcast already happened.
func (h *Hub) persistFiles(room domain.RoomID) {
	if h.Store == nil {
		return
	}
	files, _ := h.Files.Files(room)
	h.writer.enqueue("files:"+string(room), func(ctx context.Context) {
		if err := h.Store.PutFiles(ctx, room, files); err != nil {
			log.Error().Err(err).Str("module", "app.files").Str("room", string(room)).Msg("file write-through failed")
		}
	})
}

func (h *Hub) persistWhiteboard(room domain.RoomID) {
	if h.Store == nil {
		return
	}
	board := h.Files.Whiteboard(room)
	h.writer.enqueue("board:"+string(room), func(ctx context.Context) {
		if err := h.Store.PutWhiteboard(ctx, room, board); err != nil {
			log.Error().Err(err).Str("module", "app.files").Str("room", string(room)).Msg("whiteboard write-through failed")
		}
	})
}

// FileCreated applies a create event: idempotent on duplicate ids, since a
// collision means both sides computed the same record.
func (h *Hub) FileCreated(connID domain.ConnID, p protocol.FileCreated) {
	if p.RoomID == "" || p.File.ID == "" {
		return
	}
	if !h.Files.Create(p.RoomID, p.File) {
		return
	}
	h.broadcast(p.RoomID, connID, protocol.TypeFileCreated, p)
	h.persistFiles(p.RoomID)
}

// FileUpdated overwrites the whole record, last writer wins.
func (h *Hub) FileUpdated(connID domain.ConnID, p protocol.FileUpdated) {
	if p.RoomID == "" || p.File.ID == "" {
		return
	}
	h.Files.Update(p.RoomID, p.File)
	h.broadcast(p.RoomID, connID, protocol.TypeFileUpdated, p)
	h.persistFiles(p.RoomID)
}

func (h *Hub) FileRenamed(connID domain.ConnID, p protocol.FileRenamed) {
	if p.RoomID == "" || p.FileID == "" {
		return
	}
	h.Files.Rename(p.RoomID, p.FileID, p.Name)
	h.broadcast(p.RoomID, connID, protocol.TypeFileRenamed, p)
	h.persistFiles(p.RoomID)
}

// FileDeleted removes the record; deleting a non-existent id is a no-op but
// still relayed, so peers holding the record converge.
func (h *Hub) FileDeleted(connID domain.ConnID, p protocol.FileDeleted) {
	if p.RoomID == "" || p.FileID == "" {
		return
	}
	h.Files.Delete(p.RoomID, p.FileID)
	h.broadcast(p.RoomID, connID, protocol.TypeFileDeleted, p)
	h.persistFiles(p.RoomID)
}

// CodeChange is the hot path: per-keystroke content replication for one
// file, broadcast then written through.
func (h *Hub) CodeChange(connID domain.ConnID, p protocol.CodeChange) {
	if p.RoomID == "" || p.FileID == "" {
		return
	}
	h.broadcast(p.RoomID, connID, protocol.TypeCodeChange, p)
	if h.Files.UpdateContent(p.RoomID, p.FileID, p.Code) {
		h.persistFiles(p.RoomID)
	}
}

// ElementUpdate replaces the room's whiteboard and relays it.
func (h *Hub) ElementUpdate(connID domain.ConnID, p protocol.ElementUpdate) {
	if p.RoomID == "" {
		return
	}
	h.Files.SetWhiteboard(p.RoomID, p.Elements)
	h.broadcast(p.RoomID, connID, protocol.TypeElementUpdate, p)
	h.persistWhiteboard(p.RoomID)
}

// CursorPosition is relayed to the room with the sender stamped on; no
// state is kept.
func (h *Hub) CursorPosition(connID domain.ConnID, p protocol.CursorPosition) {
	if p.RoomID == "" {
		return
	}
	p.ConnID = connID
	h.broadcast(p.RoomID, connID, protocol.TypeCursorPosition, p)
}

// SendMessage persists a chat line and delivers it to the whole room,
// sender included.
func (h *Hub) SendMessage(connID domain.ConnID, p protocol.SendMessage) {
	if p.RoomID == "" || p.Message == "" {
		return
	}
	msg := protocol.ReceiveMessage{Username: p.Username, Message: p.Message, Time: p.Time}
	h.broadcast(p.RoomID, "", protocol.TypeReceiveMessage, msg)

	if h.Store == nil {
		return
	}
	record := domain.ChatMessage{RoomID: p.RoomID, Username: p.Username, Message: p.Message, Time: p.Time}
	h.writer.enqueue("chat:"+string(p.RoomID), func(ctx context.Context) {
		if err := h.Store.AppendMessage(ctx, record); err != nil {
			log.Error().Err(err).Str("module", "app.chat").Str("room", string(p.RoomID)).Msg("message write-through failed")
		}
	})
}
