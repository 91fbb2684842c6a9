package app

import (
	"encoding/json"
	"sync"

	"github.com/helio-dev/helio/internal/domain"
)

type roomState struct {
	files  []domain.FileRecord
	board  json.RawMessage
	loaded bool
}

// FileStore is the authoritative-for-this-process view of each room's file
// list and whiteboard. Every mutation is last-writer-wins per record; the
// character-level content merge lives in the replication primitive, not
// here. Rooms are created implicitly and never deleted.
type FileStore struct {
	mu    sync.Mutex
	rooms map[domain.RoomID]*roomState
}

func NewFileStore() *FileStore {
	return &FileStore{rooms: make(map[domain.RoomID]*roomState)}
}

func (s *FileStore) room(id domain.RoomID) *roomState {
	st, ok := s.rooms[id]
	if !ok {
		st = &roomState{}
		s.rooms[id] = st
	}
	return st
}

// Create appends a new record. A duplicate id means both parties computed
// the same record, so it is a no-op, not an error.
func (s *FileStore) Create(roomID domain.RoomID, file domain.FileRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.room(roomID)
	st.loaded = true
	for _, f := range st.files {
		if f.ID == file.ID {
			return false
		}
	}
	st.files = append(st.files, file)
	return true
}

// Update overwrites every field of the matching record, upserting when the
// record is unknown (the creating event may still be in flight).
func (s *FileStore) Update(roomID domain.RoomID, file domain.FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.room(roomID)
	st.loaded = true
	for i, f := range st.files {
		if f.ID == file.ID {
			st.files[i] = file
			return
		}
	}
	st.files = append(st.files, file)
}

// UpdateContent overwrites only the content field. Unknown ids are dropped;
// content for a file this process has never seen has nothing to attach to.
func (s *FileStore) UpdateContent(roomID domain.RoomID, fileID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.room(roomID)
	for i := range st.files {
		if st.files[i].ID == fileID {
			st.files[i].Content = content
			return true
		}
	}
	return false
}

func (s *FileStore) Rename(roomID domain.RoomID, fileID, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.room(roomID)
	for i := range st.files {
		if st.files[i].ID == fileID {
			st.files[i].Name = name
			return true
		}
	}
	return false
}

// Delete removes the matching record. Deleting twice is a no-op.
func (s *FileStore) Delete(roomID domain.RoomID, fileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.room(roomID)
	for i, f := range st.files {
		if f.ID == fileID {
			st.files = append(st.files[:i], st.files[i+1:]...)
			return true
		}
	}
	return false
}

// Files snapshots the room's file list. loaded reports whether this process
// has any state for the room yet; when false the caller should consult the
// persistence collaborator.
func (s *FileStore) Files(roomID domain.RoomID) (files []domain.FileRecord, loaded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rooms[roomID]
	if !ok {
		return []domain.FileRecord{}, false
	}
	out := make([]domain.FileRecord, len(st.files))
	copy(out, st.files)
	return out, st.loaded
}

// Seed fills the room from persisted state, but only if nothing has been
// observed locally: live mutations always win over a late snapshot.
func (s *FileStore) Seed(roomID domain.RoomID, files []domain.FileRecord, board json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.room(roomID)
	if st.loaded {
		return
	}
	st.files = append([]domain.FileRecord(nil), files...)
	if len(st.board) == 0 {
		st.board = board
	}
	st.loaded = true
}

func (s *FileStore) SetWhiteboard(roomID domain.RoomID, elements json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.room(roomID)
	st.board = append(json.RawMessage(nil), elements...)
}

func (s *FileStore) Whiteboard(roomID domain.RoomID) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rooms[roomID]
	if !ok || len(st.board) == 0 {
		return json.RawMessage("[]")
	}
	return append(json.RawMessage(nil), st.board...)
}
