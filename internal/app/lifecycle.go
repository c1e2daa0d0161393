package app

import (
	"github.com/rs/zerolog/log"

	"github.com/gamelink/randomconnect/internal/domain"
)

// DisconnectRoom handles an explicit leave by uid. Ending an already-ended
// room is a no-op, so both sides leaving at once stays safe.
func (c *Coordinator) DisconnectRoom(roomID domain.RoomID, uid domain.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	room, ok := c.Rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if !room.Has(uid) {
		return domain.ErrNotAParticipant
	}
	c.teardownLocked(roomID, uid, ReasonLeft)
	return nil
}

// OnTransportClosed runs when uid's signaling connection goes away without an
// explicit leave: clear any queue entry and end any live room.
func (c *Coordinator) OnTransportClosed(uid domain.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Queue.Remove(uid)
	if room, ok := c.Rooms.ByUser(uid); ok {
		c.teardownLocked(room.ID, uid, ReasonDisconnected)
	}
	log.Info().Str("module", "app.coordinator").Str("user", string(uid)).Msg("transport closed")
}

// teardownLocked ends the room and notifies the participant opposite leaver,
// if still reachable. Residual queue entries for either participant are
// cleared. Safe to call repeatedly; only the first call acts.
func (c *Coordinator) teardownLocked(roomID domain.RoomID, leaver domain.UserID, reason LeaveReason) {
	room, endedNow := c.Rooms.End(roomID)
	if !endedNow {
		return
	}
	for _, uid := range room.Participants {
		c.Queue.Remove(uid)
	}
	if other, ok := room.Other(leaver); ok {
		if conn, online := c.Presence.Get(other); online {
			if err := push(conn, PartnerLeftEvent{Type: EventPartnerLeft, Room: roomID, Reason: reason}); err != nil {
				log.Warn().Err(err).Str("module", "app.coordinator").Str("user", string(other)).Msg("partner-left dispatch failed")
			}
		}
	}
	log.Info().Str("module", "app.coordinator").Str("room", string(roomID)).Str("leaver", string(leaver)).Str("reason", string(reason)).Msg("room torn down")
}
