package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helio-dev/helio/internal/domain"
	"github.com/helio-dev/helio/internal/protocol"
	"github.com/helio-dev/helio/internal/storage"
)

type stubConn struct {
	mu   sync.Mutex
	msgs []protocol.Envelope
}

func (c *stubConn) TrySend(data []byte) error {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, env)
	return nil
}

func (c *stubConn) byType(msgType string) []protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.Envelope
	for _, m := range c.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func payload[T any](t *testing.T, env protocol.Envelope) T {
	t.Helper()
	var p T
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	return p
}

type stubStore struct {
	mu       sync.Mutex
	rooms    map[domain.RoomID]*storage.RoomRecord
	getErr   error
	putFiles int
	messages []domain.ChatMessage
}

func newStubStore() *stubStore {
	return &stubStore{rooms: make(map[domain.RoomID]*storage.RoomRecord)}
}

func (s *stubStore) GetRoom(_ context.Context, roomID domain.RoomID) (*storage.RoomRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.rooms[roomID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

func (s *stubStore) PutFiles(_ context.Context, roomID domain.RoomID, files []domain.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rooms[roomID]
	if !ok {
		rec = &storage.RoomRecord{RoomID: roomID}
		s.rooms[roomID] = rec
	}
	rec.Files = files
	s.putFiles++
	return nil
}

func (s *stubStore) PutWhiteboard(_ context.Context, roomID domain.RoomID, elements json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rooms[roomID]
	if !ok {
		rec = &storage.RoomRecord{RoomID: roomID}
		s.rooms[roomID] = rec
	}
	rec.Whiteboard = elements
	return nil
}

func (s *stubStore) AppendMessage(_ context.Context, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *stubStore) Messages(_ context.Context, roomID domain.RoomID) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatMessage(nil), s.messages...), nil
}

func (s *stubStore) Ping(context.Context) error { return nil }
func (s *stubStore) Close() error               { return nil }

func (s *stubStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putFiles
}

func join(h *Hub, id domain.ConnID, conn *stubConn, room domain.RoomID, name string) {
	h.Attach(id, conn, nil)
	h.Join(id, protocol.Join{RoomID: room, Username: name})
}

func TestJoinAnnouncesAndSnapshotsOnce(t *testing.T) {
	h := NewHub(nil, nil)
	a, b := &stubConn{}, &stubConn{}

	join(h, "A", a, "room", "ada")

	// The joiner gets the event exactly once, as its join response.
	joinedA := a.byType(protocol.TypeJoined)
	require.Len(t, joinedA, 1)
	resp := payload[protocol.Joined](t, joinedA[0])
	assert.Equal(t, "ada", resp.JoinedUsername)
	require.Len(t, resp.Members, 1)

	join(h, "B", b, "room", "grace")

	// Existing member hears about the newcomer with the full member list.
	joinedA = a.byType(protocol.TypeJoined)
	require.Len(t, joinedA, 2)
	note := payload[protocol.Joined](t, joinedA[1])
	assert.Equal(t, "grace", note.JoinedUsername)
	assert.Equal(t, domain.ConnID("B"), note.ConnID)
	assert.Len(t, note.Members, 2)

	// The newcomer is not echoed a second copy.
	require.Len(t, b.byType(protocol.TypeJoined), 1)

	// Every joiner always gets some snapshot, even for a fresh room.
	require.Len(t, b.byType(protocol.TypeSyncCode), 1)
	files := payload[protocol.SyncCode](t, b.byType(protocol.TypeSyncCode)[0])
	assert.NotNil(t, files.Files)
	assert.Empty(t, files.Files)
	require.Len(t, b.byType(protocol.TypeElementUpdate), 1)
}

func TestLateJoinerReceivesPersistedState(t *testing.T) {
	store := newStubStore()
	store.rooms["room"] = &storage.RoomRecord{
		RoomID: "room",
		Files: []domain.FileRecord{
			{ID: "f1", Name: "a.go"}, {ID: "f2", Name: "b.go"}, {ID: "f3", Name: "c.go"},
		},
		Whiteboard: json.RawMessage(`[{"kind":"arrow"}]`),
	}
	h := NewHub(store, nil)

	a, b, c := &stubConn{}, &stubConn{}, &stubConn{}
	join(h, "A", a, "room", "ada")
	join(h, "B", b, "room", "grace")
	join(h, "C", c, "room", "linus")

	joined := payload[protocol.Joined](t, c.byType(protocol.TypeJoined)[0])
	assert.Len(t, joined.Members, 3)

	snap := payload[protocol.SyncCode](t, c.byType(protocol.TypeSyncCode)[0])
	assert.Len(t, snap.Files, 3)

	board := payload[protocol.ElementUpdate](t, c.byType(protocol.TypeElementUpdate)[0])
	assert.JSONEq(t, `[{"kind":"arrow"}]`, string(board.Elements))
}

// The join snapshot must arrive even when the persistence collaborator is
// unreachable: empty, but present, so the client never hangs unsynced.
func TestLateJoinerGetsEmptySnapshotOnStoreFailure(t *testing.T) {
	store := newStubStore()
	store.getErr = errors.New("connection refused")
	h := NewHub(store, nil)

	a := &stubConn{}
	join(h, "A", a, "room", "ada")

	syncs := a.byType(protocol.TypeSyncCode)
	require.Len(t, syncs, 1)
	p := payload[protocol.SyncCode](t, syncs[0])
	assert.NotNil(t, p.Files)
	assert.Empty(t, p.Files)

	boards := a.byType(protocol.TypeElementUpdate)
	require.Len(t, boards, 1)
}

func TestDocSnapshotReplayedToLateJoiner(t *testing.T) {
	docs := NewMemoryDocSync()
	h := NewHub(nil, docs)

	a, b := &stubConn{}, &stubConn{}
	join(h, "A", a, "room", "ada")
	h.SyncUpdate("A", protocol.SyncUpdate{RoomID: "room", Update: []byte{1, 2}})
	h.SyncUpdate("A", protocol.SyncUpdate{RoomID: "room", Update: []byte{3}})

	join(h, "B", b, "room", "grace")

	updates := b.byType(protocol.TypeSyncUpdate)
	require.Len(t, updates, 2)
	first := payload[protocol.SyncUpdate](t, updates[0])
	assert.Equal(t, []byte{1, 2}, first.Update)
}

// Concurrent sync responders: both answers reach the target, nothing is
// deduplicated or reordered by the relay.
func TestSyncCodeRelayUnfiltered(t *testing.T) {
	h := NewHub(nil, nil)
	a, b, c := &stubConn{}, &stubConn{}, &stubConn{}
	join(h, "A", a, "room", "ada")
	join(h, "B", b, "room", "grace")
	join(h, "C", c, "room", "linus")

	h.SyncRequest("A", protocol.SyncRequest{ConnID: "A"})
	require.Len(t, b.byType(protocol.TypeSyncRequest), 1)
	require.Len(t, c.byType(protocol.TypeSyncRequest), 1)
	require.Empty(t, a.byType(protocol.TypeSyncRequest))

	h.SyncCode("B", protocol.SyncCode{ConnID: "A", Files: []domain.FileRecord{{ID: "from-b"}}})
	h.SyncCode("C", protocol.SyncCode{ConnID: "A", Files: []domain.FileRecord{{ID: "from-c"}}})

	responses := a.byType(protocol.TypeSyncCode)
	require.Len(t, responses, 3, "join snapshot plus both peer responses")
	assert.Equal(t, "from-b", payload[protocol.SyncCode](t, responses[1]).Files[0].ID)
	assert.Equal(t, "from-c", payload[protocol.SyncCode](t, responses[2]).Files[0].ID)
}

func TestDisconnectNotifiesRoomExactlyOnce(t *testing.T) {
	h := NewHub(nil, nil)
	a, b := &stubConn{}, &stubConn{}
	join(h, "A", a, "room", "ada")
	join(h, "B", b, "room", "grace")
	h.UserOnline("B", protocol.UserOnline{UserID: "user-grace"})

	h.Disconnect("B")

	gone := a.byType(protocol.TypeDisconnected)
	require.Len(t, gone, 1)
	p := payload[protocol.Disconnected](t, gone[0])
	assert.Equal(t, domain.ConnID("B"), p.ConnID)
	assert.Equal(t, "grace", p.Username)

	// Online set is cleared synchronously and re-broadcast.
	assert.Empty(t, h.Registry.OnlineUserIDs())
	updates := a.byType(protocol.TypeOnlineUsersUpdate)
	require.NotEmpty(t, updates)
	last := payload[protocol.OnlineUsersUpdate](t, updates[len(updates)-1])
	assert.Empty(t, last.UserIDs)
}

func TestJoinOtherRoomAnnouncesDeparture(t *testing.T) {
	h := NewHub(nil, nil)
	a, b := &stubConn{}, &stubConn{}
	join(h, "A", a, "room-a", "ada")
	join(h, "B", b, "room-a", "grace")

	h.Join("A", protocol.Join{RoomID: "room-b", Username: "ada-renamed"})

	gone := b.byType(protocol.TypeDisconnected)
	require.Len(t, gone, 1)
	p := payload[protocol.Disconnected](t, gone[0])
	assert.Equal(t, domain.ConnID("A"), p.ConnID)
	assert.Equal(t, "ada", p.Username, "departure carries the name the old room knew")
	assert.Len(t, h.Registry.MembersOfRoom("room-b"), 1)
}

func TestFileEventsBroadcastMinusSenderAndPersist(t *testing.T) {
	store := newStubStore()
	h := NewHub(store, nil)
	a, b, c := &stubConn{}, &stubConn{}, &stubConn{}
	join(h, "A", a, "room", "ada")
	join(h, "B", b, "room", "grace")
	join(h, "C", c, "room", "linus")

	file := domain.FileRecord{ID: "f1", Name: "main.go", Language: "go"}
	h.FileCreated("A", protocol.FileCreated{RoomID: "room", File: file})

	assert.Empty(t, a.byType(protocol.TypeFileCreated))
	require.Len(t, b.byType(protocol.TypeFileCreated), 1)
	require.Len(t, c.byType(protocol.TypeFileCreated), 1)

	// Duplicate create: both parties computed the same record, no re-broadcast.
	h.FileCreated("B", protocol.FileCreated{RoomID: "room", File: file})
	require.Len(t, c.byType(protocol.TypeFileCreated), 1)

	require.Eventually(t, func() bool { return store.writeCount() >= 1 },
		time.Second, 10*time.Millisecond, "write-through reaches the collaborator")
}

func TestCodeChangeHotPath(t *testing.T) {
	h := NewHub(nil, nil)
	a, b := &stubConn{}, &stubConn{}
	join(h, "A", a, "room", "ada")
	join(h, "B", b, "room", "grace")
	h.FileCreated("A", protocol.FileCreated{RoomID: "room", File: domain.FileRecord{ID: "f1"}})

	h.CodeChange("B", protocol.CodeChange{RoomID: "room", FileID: "f1", Code: "fmt.Println"})

	changes := a.byType(protocol.TypeCodeChange)
	require.Len(t, changes, 1)
	assert.Equal(t, "fmt.Println", payload[protocol.CodeChange](t, changes[0]).Code)
	assert.Empty(t, b.byType(protocol.TypeCodeChange))

	files, _ := h.Files.Files("room")
	assert.Equal(t, "fmt.Println", files[0].Content)
}

func TestOfferRelayRewritesSender(t *testing.T) {
	h := NewHub(nil, nil)
	a, b := &stubConn{}, &stubConn{}
	join(h, "A", a, "room", "ada")
	join(h, "B", b, "room", "grace")

	h.RelayOffer("A", protocol.RTCOffer{
		TargetConnID: "B",
		Offer:        webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"},
	})

	offers := b.byType(protocol.TypeRTCOffer)
	require.Len(t, offers, 1)
	p := payload[protocol.RTCOffer](t, offers[0])
	assert.Equal(t, domain.ConnID("A"), p.SenderConnID)
	assert.Empty(t, p.TargetConnID)
	assert.Equal(t, "v=0", p.Offer.SDP)
	assert.Empty(t, a.byType(protocol.TypeRTCOffer))

	// Unknown target is dropped without error.
	h.RelayAnswer("A", protocol.RTCAnswer{TargetConnID: "nobody"})
}

func TestICECandidateRelay(t *testing.T) {
	h := NewHub(nil, nil)
	a, b := &stubConn{}, &stubConn{}
	join(h, "A", a, "room", "ada")
	join(h, "B", b, "room", "grace")

	mid := "0"
	h.RelayICECandidate("B", protocol.RTCICECandidate{
		TargetConnID: "A",
		Candidate:    webrtc.ICECandidateInit{Candidate: "candidate:1", SDPMid: &mid},
	})

	got := a.byType(protocol.TypeRTCICECandidate)
	require.Len(t, got, 1)
	p := payload[protocol.RTCICECandidate](t, got[0])
	assert.Equal(t, domain.ConnID("B"), p.SenderConnID)
	assert.Equal(t, "candidate:1", p.Candidate.Candidate)
}

func TestUserOnlineBroadcastReachesRoomlessConnections(t *testing.T) {
	h := NewHub(nil, nil)
	a, lobby := &stubConn{}, &stubConn{}
	join(h, "A", a, "room", "ada")
	h.Attach("L", lobby, nil)

	h.UserOnline("A", protocol.UserOnline{UserID: "user-ada"})

	for _, conn := range []*stubConn{a, lobby} {
		updates := conn.byType(protocol.TypeOnlineUsersUpdate)
		require.Len(t, updates, 1)
		p := payload[protocol.OnlineUsersUpdate](t, updates[0])
		assert.Equal(t, []domain.UserID{"user-ada"}, p.UserIDs)
	}
}

func TestSendMessageReachesWholeRoomAndPersists(t *testing.T) {
	store := newStubStore()
	h := NewHub(store, nil)
	a, b := &stubConn{}, &stubConn{}
	join(h, "A", a, "room", "ada")
	join(h, "B", b, "room", "grace")

	h.SendMessage("A", protocol.SendMessage{RoomID: "room", Username: "ada", Message: "hi", Time: "10:00"})

	// Chat goes to everyone, sender included.
	require.Len(t, a.byType(protocol.TypeReceiveMessage), 1)
	require.Len(t, b.byType(protocol.TypeReceiveMessage), 1)

	require.Eventually(t, func() bool {
		msgs, _ := store.Messages(context.Background(), "room")
		return len(msgs) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMuteStatusBroadcast(t *testing.T) {
	h := NewHub(nil, nil)
	a, b := &stubConn{}, &stubConn{}
	join(h, "A", a, "room", "ada")
	join(h, "B", b, "room", "grace")

	h.MuteStatus("A", protocol.MuteStatus{RoomID: "room", MicMuted: true})

	got := b.byType(protocol.TypeMuteStatus)
	require.Len(t, got, 1)
	p := payload[protocol.MuteStatus](t, got[0])
	assert.True(t, p.MicMuted)
	assert.Equal(t, domain.ConnID("A"), p.SenderConnID)
	assert.Empty(t, a.byType(protocol.TypeMuteStatus))
}
