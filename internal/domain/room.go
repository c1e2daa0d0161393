package domain

import "time"

type RoomID string

// RoomState is the lifecycle of a pairing. Transitions only move forward:
// Pending -> Active -> Ended, with Ended terminal.
type RoomState int

const (
	RoomPending RoomState = iota
	RoomActive
	RoomEnded
)

func (s RoomState) String() string {
	switch s {
	case RoomPending:
		return "pending"
	case RoomActive:
		return "active"
	case RoomEnded:
		return "ended"
	}
	return "unknown"
}

// Room binds exactly two participants for one signaling + chat session.
// Participants are fixed for the room's lifetime.
type Room struct {
	ID           RoomID    `json:"id"`
	Game         GameID    `json:"game"`
	Participants [2]UserID `json:"participants"`
	State        RoomState `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	EndedAt      time.Time `json:"-"`
}

func NewRoom(id RoomID, game GameID, a, b UserID) *Room {
	return &Room{
		ID:           id,
		Game:         game,
		Participants: [2]UserID{a, b},
		State:        RoomPending,
		CreatedAt:    time.Now(),
	}
}

func (r *Room) Has(uid UserID) bool {
	return r.Participants[0] == uid || r.Participants[1] == uid
}

// Other returns the participant opposite to uid, false if uid is not a member.
func (r *Room) Other(uid UserID) (UserID, bool) {
	switch uid {
	case r.Participants[0]:
		return r.Participants[1], true
	case r.Participants[1]:
		return r.Participants[0], true
	}
	return "", false
}
