package app

import (
	"sync"

	"github.com/helio-dev/helio/internal/domain"
)

// DocSync is the document replication primitive the router delegates
// content convergence to. Updates are opaque; the router only stores,
// replays, and relays them.
type DocSync interface {
	// Apply folds one update into the room's document state.
	Apply(roomID domain.RoomID, update []byte)
	// Snapshot returns the ordered updates a late joiner must replay to
	// reach the current document state.
	Snapshot(roomID domain.RoomID) [][]byte
}

// MemoryDocSync retains the per-room update log in memory. The CRDT fold
// itself happens client-side; replaying the log in order reproduces it.
type MemoryDocSync struct {
	mu   sync.Mutex
	logs map[domain.RoomID][][]byte
}

func NewMemoryDocSync() *MemoryDocSync {
	return &MemoryDocSync{logs: make(map[domain.RoomID][][]byte)}
}

func (d *MemoryDocSync) Apply(roomID domain.RoomID, update []byte) {
	if len(update) == 0 {
		return
	}
	cp := append([]byte(nil), update...)
	d.mu.Lock()
	d.logs[roomID] = append(d.logs[roomID], cp)
	d.mu.Unlock()
}

func (d *MemoryDocSync) Snapshot(roomID domain.RoomID) [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	log := d.logs[roomID]
	out := make([][]byte, len(log))
	copy(out, log)
	return out
}
