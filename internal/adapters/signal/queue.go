package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/gamelink/randomconnect/internal/domain"
)

func (ctl *ConnectController) handleJoinQueue(
	uid domain.UserID,
	conn *wsConn,
	data []byte,
) {
	type joinPayload struct {
		Type  string `json:"type"`
		Game  string `json:"game"`
		Video bool   `json:"video"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join-queue payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad-payload",
		})
		return
	}

	log.Info().Str("module", "signal").Str("user", string(uid)).Str("game", p.Game).Msg("join-queue")
	if err := ctl.Coord.JoinQueue(uid, domain.GameID(p.Game), p.Video); err != nil {
		ctl.sendError(conn, err)
		return
	}
	// If a pair formed synchronously, the matched event is already in the
	// send queue and arrives before this ack.
	ctl.sendJSON(conn, map[string]any{
		"type": "queued",
		"game": p.Game,
	})
}

func (ctl *ConnectController) handleLeaveQueue(
	uid domain.UserID,
	conn *wsConn,
) {
	log.Info().Str("module", "signal").Str("user", string(uid)).Msg("leave-queue")
	if err := ctl.Coord.LeaveQueue(uid); err != nil {
		ctl.sendError(conn, err)
		return
	}
	ctl.sendJSON(conn, map[string]any{
		"type": "left-queue",
	})
}
