package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/gamelink/randomconnect/internal/app"
	"github.com/gamelink/randomconnect/internal/domain"
)

func (ctl *ConnectController) handleSignal(
	uid domain.UserID,
	conn *wsConn,
	data []byte,
) {
	type signalPayload struct {
		Type    string          `json:"type"`
		Room    string          `json:"room"`
		To      string          `json:"to"`
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
	var p signalPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad signal payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad-payload",
		})
		return
	}
	kind := app.SignalKind(p.Kind)
	if !kind.Valid() {
		log.Warn().Str("module", "signal").Str("kind", p.Kind).Msg("unknown signal kind")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad-payload",
		})
		return
	}

	err := ctl.Coord.Relay(domain.RoomID(p.Room), uid, domain.UserID(p.To), kind, p.Payload)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(uid)).Str("room", p.Room).Msg("relay rejected")
		ctl.sendError(conn, err)
	}
}

func (ctl *ConnectController) handleDisconnect(
	uid domain.UserID,
	conn *wsConn,
	data []byte,
) {
	type disconnectPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	var p disconnectPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad disconnect payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad-payload",
		})
		return
	}

	log.Info().Str("module", "signal").Str("user", string(uid)).Str("room", p.Room).Msg("disconnect room")
	if err := ctl.Coord.DisconnectRoom(domain.RoomID(p.Room), uid); err != nil {
		ctl.sendError(conn, err)
		return
	}
	ctl.sendJSON(conn, map[string]any{
		"type": "disconnected",
		"room": p.Room,
	})
}

func (ctl *ConnectController) handleChat(
	uid domain.UserID,
	conn *wsConn,
	data []byte,
) {
	type chatPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Text string `json:"text"`
	}
	var p chatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad chat payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad-payload",
		})
		return
	}

	if err := ctl.Coord.SendChat(domain.RoomID(p.Room), uid, p.Text); err != nil {
		ctl.sendError(conn, err)
	}
}
