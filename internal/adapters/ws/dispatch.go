package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/helio-dev/helio/internal/protocol"
)

// dispatch decodes the envelope and routes it by type. The message set is
// closed; anything else is logged and dropped.
func (ctl *Controller) dispatch(c *wsConn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(c.id)).Msg("bad envelope")
		return
	}

	switch env.Type {
	case protocol.TypeJoin:
		var p protocol.Join
		if decode(c, env, &p) {
			ctl.Hub.Join(c.id, p)
		}
	case protocol.TypeUserOnline:
		var p protocol.UserOnline
		if decode(c, env, &p) {
			ctl.Hub.UserOnline(c.id, p)
		}

	case protocol.TypeCodeChange:
		var p protocol.CodeChange
		if decode(c, env, &p) {
			ctl.Hub.CodeChange(c.id, p)
		}
	case protocol.TypeSyncUpdate:
		var p protocol.SyncUpdate
		if decode(c, env, &p) {
			ctl.Hub.SyncUpdate(c.id, p)
		}
	case protocol.TypeSyncRequest:
		var p protocol.SyncRequest
		if decode(c, env, &p) {
			ctl.Hub.SyncRequest(c.id, p)
		}
	case protocol.TypeSyncCode:
		var p protocol.SyncCode
		if decode(c, env, &p) {
			ctl.Hub.SyncCode(c.id, p)
		}

	case protocol.TypeFileCreated:
		var p protocol.FileCreated
		if decode(c, env, &p) {
			ctl.Hub.FileCreated(c.id, p)
		}
	case protocol.TypeFileUpdated:
		var p protocol.FileUpdated
		if decode(c, env, &p) {
			ctl.Hub.FileUpdated(c.id, p)
		}
	case protocol.TypeFileRenamed:
		var p protocol.FileRenamed
		if decode(c, env, &p) {
			ctl.Hub.FileRenamed(c.id, p)
		}
	case protocol.TypeFileDeleted:
		var p protocol.FileDeleted
		if decode(c, env, &p) {
			ctl.Hub.FileDeleted(c.id, p)
		}

	case protocol.TypeElementUpdate:
		var p protocol.ElementUpdate
		if decode(c, env, &p) {
			ctl.Hub.ElementUpdate(c.id, p)
		}
	case protocol.TypeCursorPosition:
		var p protocol.CursorPosition
		if decode(c, env, &p) {
			ctl.Hub.CursorPosition(c.id, p)
		}
	case protocol.TypeSendMessage:
		var p protocol.SendMessage
		if decode(c, env, &p) {
			ctl.Hub.SendMessage(c.id, p)
		}

	case protocol.TypeRTCOffer:
		var p protocol.RTCOffer
		if decode(c, env, &p) {
			ctl.Hub.RelayOffer(c.id, p)
		}
	case protocol.TypeRTCAnswer:
		var p protocol.RTCAnswer
		if decode(c, env, &p) {
			ctl.Hub.RelayAnswer(c.id, p)
		}
	case protocol.TypeRTCICECandidate:
		var p protocol.RTCICECandidate
		if decode(c, env, &p) {
			ctl.Hub.RelayICECandidate(c.id, p)
		}
	case protocol.TypeMuteStatus:
		var p protocol.MuteStatus
		if decode(c, env, &p) {
			ctl.Hub.MuteStatus(c.id, p)
		}

	case protocol.TypeLspStart:
		var p protocol.LspStart
		if decode(c, env, &p) {
			ctl.Lsp.Start(c.id, c, p)
		}
	case protocol.TypeLspInput:
		var p protocol.LspInput
		if decode(c, env, &p) {
			ctl.Lsp.Input(c.id, c, p)
		}
	case protocol.TypeLspStop:
		ctl.Lsp.End(c.id)

	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown message type")
	}
}

func decode(c *wsConn, env protocol.Envelope, dst any) bool {
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(c.id)).Str("type", env.Type).Msg("bad payload")
		return false
	}
	return true
}
