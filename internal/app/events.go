package app

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gamelink/randomconnect/internal/core"
	"github.com/gamelink/randomconnect/internal/domain"
)

// Server -> client event types.
const (
	EventMatched     = "matched"
	EventSignal      = "signal"
	EventPartnerLeft = "partner-left"
	EventChat        = "chat"
)

// SignalKind is the WebRTC handshake message class being relayed.
type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

func (k SignalKind) Valid() bool {
	switch k {
	case SignalOffer, SignalAnswer, SignalCandidate:
		return true
	}
	return false
}

// LeaveReason explains a partner-left event to the remaining peer.
type LeaveReason string

const (
	ReasonLeft         LeaveReason = "left"
	ReasonDisconnected LeaveReason = "disconnected"
	ReasonTimeout      LeaveReason = "timeout"
)

type MatchedEvent struct {
	Type    string         `json:"type"`
	Room    domain.RoomID  `json:"room"`
	Game    domain.GameID  `json:"game"`
	Partner domain.Profile `json:"partner"`
}

type SignalEvent struct {
	Type    string          `json:"type"`
	Room    domain.RoomID   `json:"room"`
	From    domain.UserID   `json:"from"`
	Kind    SignalKind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type PartnerLeftEvent struct {
	Type   string        `json:"type"`
	Room   domain.RoomID `json:"room"`
	Reason LeaveReason   `json:"reason"`
}

type ChatEvent struct {
	Type   string        `json:"type"`
	Room   domain.RoomID `json:"room"`
	From   domain.UserID `json:"from"`
	Text   string        `json:"text"`
	SentAt time.Time     `json:"sentAt"`
}

// push marshals v and hands it to the connection without blocking.
func push(conn core.SignalConnection, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.events").Msg("event marshal")
		return err
	}
	return conn.TrySend(b)
}
