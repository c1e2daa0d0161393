package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gamelink/randomconnect/internal/domain"
)

func (ctl *ConnectController) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *ConnectController) readPump(ctx context.Context, uid domain.UserID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("user", string(uid)).Msg("readPump closing")
		c.Close()
		// Only the pump of the current handle may tear the user down;
		// a replaced connection's pump exiting must not end the new session.
		if ctl.Coord.Presence.Unbind(uid, c) {
			ctl.Coord.OnTransportClosed(uid)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("user", string(uid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("user", string(uid)).Msg("readPump read error")
				return
			}
			ctl.dispatch(uid, c, data)
		}
	}
}

func (ctl *ConnectController) dispatch(uid domain.UserID, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "join-queue":
		ctl.handleJoinQueue(uid, c, data)
	case "leave-queue":
		ctl.handleLeaveQueue(uid, c)
	case "signal":
		ctl.handleSignal(uid, c, data)
	case "disconnect":
		ctl.handleDisconnect(uid, c, data)
	case "chat":
		ctl.handleChat(uid, c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown message")
	}
}

func (ctl *ConnectController) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *ConnectController) sendError(c *wsConn, err error) {
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"error": errorCode(err),
	})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyInRoom):
		return "already-in-room"
	case errors.Is(err, domain.ErrNotInQueue):
		return "not-in-queue"
	case errors.Is(err, domain.ErrRoomNotFound):
		return "room-not-found"
	case errors.Is(err, domain.ErrRoomEnded):
		return "room-ended"
	case errors.Is(err, domain.ErrNotAParticipant):
		return "not-a-participant"
	case errors.Is(err, domain.ErrInvalidTarget):
		return "invalid-target"
	case errors.Is(err, domain.ErrGameIDEmpty), errors.Is(err, domain.ErrGameIDTooLong),
		errors.Is(err, domain.ErrEmptyMessage):
		return "bad-payload"
	}
	return "internal"
}
