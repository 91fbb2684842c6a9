// Package protocol defines the wire messages exchanged over the room
// websocket. The set of types is closed: the dispatcher switches over these
// constants and drops anything else, so adding a message means adding a
// constant, a payload struct, and a handler arm.
package protocol

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"

	"github.com/helio-dev/helio/internal/domain"
)

// Message type tags. Names are shared verbatim with the client.
const (
	// Room / presence.
	TypeJoin              = "join"
	TypeJoined            = "joined"
	TypeDisconnected      = "disconnected"
	TypeUserOnline        = "user-online"
	TypeOnlineUsersUpdate = "online-users-update"

	// Replication and resync.
	TypeCodeChange  = "code-change"
	TypeSyncUpdate  = "sync-update"
	TypeSyncRequest = "sync-request"
	TypeSyncCode    = "sync-code"

	// File events.
	TypeFileCreated = "file-created"
	TypeFileUpdated = "file-updated"
	TypeFileRenamed = "file-renamed"
	TypeFileDeleted = "file-deleted"

	// Interaction.
	TypeElementUpdate  = "element-update"
	TypeCursorPosition = "cursor-position"
	TypeSendMessage    = "send-message"
	TypeReceiveMessage = "receive-message"

	// Peer-connection signaling.
	TypeRTCOffer        = "rtc-offer"
	TypeRTCAnswer       = "rtc-answer"
	TypeRTCICECandidate = "rtc-ice-candidate"
	TypeMuteStatus      = "mute-status-change"

	// Language tooling proxy.
	TypeLspStart        = "lsp-start"
	TypeLspInput        = "lsp-input"
	TypeLspNotification = "lsp-notification"
	TypeLspDebug        = "lsp-debug"
	TypeLspStop         = "lsp-stop"
)

// Envelope wraps every websocket frame in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals payload into a ready-to-send envelope.
func Encode(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

type Join struct {
	RoomID   domain.RoomID `json:"roomId"`
	Username string        `json:"username"`
}

type Joined struct {
	Members        []domain.Member `json:"members"`
	JoinedUsername string          `json:"joinedUsername"`
	ConnID         domain.ConnID   `json:"connectionId"`
}

type Disconnected struct {
	ConnID   domain.ConnID `json:"connectionId"`
	Username string        `json:"username"`
}

type UserOnline struct {
	UserID domain.UserID `json:"userId"`
}

type OnlineUsersUpdate struct {
	UserIDs []domain.UserID `json:"userIds"`
}

type CodeChange struct {
	RoomID domain.RoomID `json:"roomId"`
	FileID string        `json:"fileId"`
	Code   string        `json:"code"`
}

// SyncUpdate carries an opaque document-replication update. The server never
// inspects it; it folds the bytes into the replication primitive and relays.
type SyncUpdate struct {
	RoomID domain.RoomID `json:"roomId"`
	Update []byte        `json:"update"`
}

type SyncRequest struct {
	RoomID domain.RoomID `json:"roomId"`
	ConnID domain.ConnID `json:"connectionId"`
}

type SyncCode struct {
	ConnID domain.ConnID       `json:"connectionId,omitempty"`
	Files  []domain.FileRecord `json:"files"`
}

type FileCreated struct {
	RoomID domain.RoomID     `json:"roomId"`
	File   domain.FileRecord `json:"file"`
}

type FileUpdated struct {
	RoomID domain.RoomID     `json:"roomId"`
	File   domain.FileRecord `json:"file"`
}

type FileRenamed struct {
	RoomID domain.RoomID `json:"roomId"`
	FileID string        `json:"fileId"`
	Name   string        `json:"name"`
}

type FileDeleted struct {
	RoomID domain.RoomID `json:"roomId"`
	FileID string        `json:"fileId"`
}

// ElementUpdate replaces the room's whiteboard wholesale. Elements stay an
// opaque blob; the server stores and relays, nothing more.
type ElementUpdate struct {
	RoomID   domain.RoomID   `json:"roomId,omitempty"`
	Elements json.RawMessage `json:"boardElements"`
}

type CursorPosition struct {
	RoomID   domain.RoomID   `json:"roomId"`
	ConnID   domain.ConnID   `json:"connectionId,omitempty"`
	Username string          `json:"username,omitempty"`
	Position json.RawMessage `json:"position"`
}

type SendMessage struct {
	RoomID   domain.RoomID `json:"roomId"`
	Username string        `json:"username"`
	Message  string        `json:"message"`
	Time     string        `json:"time"`
}

type ReceiveMessage struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Time     string `json:"time"`
}

// RTCOffer et al. carry pion session descriptions so malformed SDP envelopes
// fail at decode instead of bouncing off the remote peer.
type RTCOffer struct {
	TargetConnID domain.ConnID             `json:"targetConnectionId,omitempty"`
	SenderConnID domain.ConnID             `json:"senderConnectionId,omitempty"`
	Offer        webrtc.SessionDescription `json:"offer"`
}

type RTCAnswer struct {
	TargetConnID domain.ConnID             `json:"targetConnectionId,omitempty"`
	SenderConnID domain.ConnID             `json:"senderConnectionId,omitempty"`
	Answer       webrtc.SessionDescription `json:"answer"`
}

type RTCICECandidate struct {
	TargetConnID domain.ConnID            `json:"targetConnectionId,omitempty"`
	SenderConnID domain.ConnID            `json:"senderConnectionId,omitempty"`
	Candidate    webrtc.ICECandidateInit `json:"candidate"`
}

type MuteStatus struct {
	RoomID       domain.RoomID `json:"roomId"`
	SenderConnID domain.ConnID `json:"senderConnectionId,omitempty"`
	MicMuted     bool          `json:"isMicMuted"`
	VideoMuted   bool          `json:"isVideoMuted"`
}

type LspStart struct {
	Language string `json:"language"`
	FileName string `json:"fileName"`
	Content  string `json:"content"`
}

// LspInput is a client-originated tooling request or notification. ID is the
// client's correlation id and is absent on notifications.
type LspInput struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type LspDebug struct {
	Message string `json:"message"`
}
