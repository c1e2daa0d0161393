package app

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gamelink/randomconnect/internal/domain"
)

// Relay forwards a WebRTC handshake message from `from` to the other
// participant of the room. The recipient is always the opposite participant;
// `to` is only checked against that, never trusted. An unreachable recipient
// is treated as a disconnect: the room is torn down and Relay still returns
// nil, since from the sender's view the operation worked but the session
// ended.
func (c *Coordinator) Relay(roomID domain.RoomID, from, to domain.UserID, kind SignalKind, payload json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, ok := c.Rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if room.State == domain.RoomEnded {
		return domain.ErrRoomEnded
	}
	other, ok := room.Other(from)
	if !ok {
		return domain.ErrNotAParticipant
	}
	if to != other {
		return domain.ErrInvalidTarget
	}

	conn, online := c.Presence.Get(other)
	if !online {
		c.teardownLocked(roomID, other, ReasonDisconnected)
		return nil
	}
	ev := SignalEvent{Type: EventSignal, Room: roomID, From: from, Kind: kind, Payload: payload}
	if err := push(conn, ev); err != nil {
		log.Warn().Err(err).Str("module", "app.coordinator").Str("user", string(other)).Msg("signal dispatch failed")
		c.teardownLocked(roomID, other, ReasonDisconnected)
		return nil
	}
	if room.State == domain.RoomPending {
		c.Rooms.MarkActive(roomID)
	}
	return nil
}

// SendChat relays an in-session text message to the other participant.
// Messages are transient; nothing is persisted here.
func (c *Coordinator) SendChat(roomID domain.RoomID, from domain.UserID, text string) error {
	if text == "" {
		return domain.ErrEmptyMessage
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	room, ok := c.Rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if room.State == domain.RoomEnded {
		return domain.ErrRoomEnded
	}
	other, ok := room.Other(from)
	if !ok {
		return domain.ErrNotAParticipant
	}
	conn, online := c.Presence.Get(other)
	if !online {
		c.teardownLocked(roomID, other, ReasonDisconnected)
		return nil
	}
	ev := ChatEvent{Type: EventChat, Room: roomID, From: from, Text: text, SentAt: time.Now()}
	if err := push(conn, ev); err != nil {
		c.teardownLocked(roomID, other, ReasonDisconnected)
	}
	return nil
}
