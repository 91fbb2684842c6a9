package app

import (
	"github.com/rs/zerolog/log"

	"github.com/helio-dev/helio/internal/domain"
	"github.com/helio-dev/helio/internal/protocol"
)

// Signaling relay: offers, answers and ICE candidates are forwarded to the
// target connection stamped with the sender's id. The relay validates
// nothing and tracks no negotiation state; candidate buffering for
// out-of-order arrival is the receiving client's job.

func (h *Hub) RelayOffer(connID domain.ConnID, p protocol.RTCOffer) {
	target := p.TargetConnID
	p.TargetConnID = ""
	p.SenderConnID = connID
	h.relay(target, protocol.TypeRTCOffer, p)
}

func (h *Hub) RelayAnswer(connID domain.ConnID, p protocol.RTCAnswer) {
	target := p.TargetConnID
	p.TargetConnID = ""
	p.SenderConnID = connID
	h.relay(target, protocol.TypeRTCAnswer, p)
}

func (h *Hub) RelayICECandidate(connID domain.ConnID, p protocol.RTCICECandidate) {
	target := p.TargetConnID
	p.TargetConnID = ""
	p.SenderConnID = connID
	h.relay(target, protocol.TypeRTCICECandidate, p)
}

func (h *Hub) relay(target domain.ConnID, msgType string, payload any) {
	if target == "" {
		return
	}
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("type", msgType).Msg("encode")
		return
	}
	if !h.Registry.SendTo(target, data) {
		// Target already gone; the departure notification tears the peer
		// connection down on the other side.
		log.Debug().Str("module", "app.relay").Str("target", string(target)).Str("type", msgType).Msg("unknown relay target")
	}
}

// MuteStatus announces a member's mute flags to the rest of its room.
func (h *Hub) MuteStatus(connID domain.ConnID, p protocol.MuteStatus) {
	if p.RoomID == "" {
		return
	}
	p.SenderConnID = connID
	h.broadcast(p.RoomID, connID, protocol.TypeMuteStatus, p)
}
