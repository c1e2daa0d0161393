package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gamelink/randomconnect/internal/domain"
)

// RoomIndex is the shared index of pairing rooms. byUser only tracks non-Ended
// rooms, which is what enforces the one-active-room-per-user invariant; ended
// rooms stay in byID for a while so late relays get ErrRoomEnded instead of
// ErrRoomNotFound.
type RoomIndex struct {
	mu     sync.RWMutex
	byID   map[domain.RoomID]*domain.Room
	byUser map[domain.UserID]domain.RoomID
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{
		byID:   make(map[domain.RoomID]*domain.Room),
		byUser: make(map[domain.UserID]domain.RoomID),
	}
}

func (x *RoomIndex) Create(game domain.GameID, a, b domain.UserID) *domain.Room {
	room := domain.NewRoom(domain.RoomID(uuid.NewString()), game, a, b)
	x.mu.Lock()
	defer x.mu.Unlock()
	x.byID[room.ID] = room
	x.byUser[a] = room.ID
	x.byUser[b] = room.ID
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Str("game", string(game)).Str("a", string(a)).Str("b", string(b)).Msg("room created")
	return room
}

func (x *RoomIndex) Get(id domain.RoomID) (*domain.Room, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	room, ok := x.byID[id]
	return room, ok
}

// ByUser returns the non-Ended room uid participates in, if any.
func (x *RoomIndex) ByUser(uid domain.UserID) (*domain.Room, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	id, ok := x.byUser[uid]
	if !ok {
		return nil, false
	}
	return x.byID[id], true
}

// MarkActive moves a Pending room to Active. No-op otherwise.
func (x *RoomIndex) MarkActive(id domain.RoomID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if room, ok := x.byID[id]; ok && room.State == domain.RoomPending {
		room.State = domain.RoomActive
	}
}

// End transitions the room to Ended and clears it from the active index.
// Reports whether this call performed the transition; a second End on the
// same room is a no-op returning false.
func (x *RoomIndex) End(id domain.RoomID) (*domain.Room, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	room, ok := x.byID[id]
	if !ok || room.State == domain.RoomEnded {
		return room, false
	}
	room.State = domain.RoomEnded
	room.EndedAt = time.Now()
	for _, uid := range room.Participants {
		if x.byUser[uid] == id {
			delete(x.byUser, uid)
		}
	}
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room ended")
	return room, true
}

// PruneEnded drops ended rooms older than cutoff. Returns how many were
// removed.
func (x *RoomIndex) PruneEnded(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	x.mu.Lock()
	defer x.mu.Unlock()
	n := 0
	for id, room := range x.byID {
		if room.State == domain.RoomEnded && room.EndedAt.Before(cutoff) {
			delete(x.byID, id)
			n++
		}
	}
	if n > 0 {
		log.Debug().Str("module", "app.rooms").Int("pruned", n).Msg("pruned ended rooms")
	}
	return n
}
