// Package storage is the persistence collaborator for room state. The rest
// of the server only sees the RoomStore interface; write-through failures are
// the caller's to log and swallow.
package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/helio-dev/helio/internal/domain"
)

// ErrNotFound is returned when a room has never been persisted.
var ErrNotFound = errors.New("storage: room not found")

// RoomRecord is the persisted view of a room.
type RoomRecord struct {
	RoomID     domain.RoomID
	Files      []domain.FileRecord
	Whiteboard json.RawMessage
}

type RoomStore interface {
	GetRoom(ctx context.Context, roomID domain.RoomID) (*RoomRecord, error)
	PutFiles(ctx context.Context, roomID domain.RoomID, files []domain.FileRecord) error
	PutWhiteboard(ctx context.Context, roomID domain.RoomID, elements json.RawMessage) error
	AppendMessage(ctx context.Context, msg domain.ChatMessage) error
	Messages(ctx context.Context, roomID domain.RoomID) ([]domain.ChatMessage, error)
	Ping(ctx context.Context) error
	Close() error
}
