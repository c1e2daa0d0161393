package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gamelink/randomconnect/internal/domain"
)

// Coordinator owns all shared matchmaking state. Every operation that touches
// the queue or the room index runs under one mutex, so each enqueue,
// disconnect or relay is an atomic step against that state.
type Coordinator struct {
	Presence *Registry
	Queue    *MatchQueue
	Rooms    *RoomIndex
	Profiles ProfileSource

	mu sync.Mutex
}

func NewCoordinator(presence *Registry, profiles ProfileSource) *Coordinator {
	if profiles == nil {
		profiles = GuestProfiles{}
	}
	return &Coordinator{
		Presence: presence,
		Queue:    NewMatchQueue(),
		Rooms:    NewRoomIndex(),
		Profiles: profiles,
	}
}

// JoinQueue enqueues uid for game and immediately tries to form a pair.
// A user already in a live room is rejected; a user already waiting has their
// entry replaced, whatever game it was under.
func (c *Coordinator) JoinQueue(uid domain.UserID, game domain.GameID, videoEnabled bool) error {
	if err := domain.ValidGameID(game); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.Rooms.ByUser(uid); ok {
		return domain.ErrAlreadyInRoom
	}
	c.Queue.Enqueue(&domain.QueueEntry{
		User:         uid,
		Game:         game,
		VideoEnabled: videoEnabled,
		EnqueuedAt:   time.Now(),
	})
	c.matchLocked(game)
	return nil
}

// LeaveQueue removes uid's waiting entry.
func (c *Coordinator) LeaveQueue(uid domain.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.Queue.Remove(uid) {
		return domain.ErrNotInQueue
	}
	log.Info().Str("module", "app.coordinator").Str("user", string(uid)).Msg("left queue")
	return nil
}

// CurrentRoom returns a snapshot of the live room uid participates in.
func (c *Coordinator) CurrentRoom(uid domain.UserID) (domain.Room, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room, ok := c.Rooms.ByUser(uid)
	if !ok {
		return domain.Room{}, false
	}
	return *room, true
}

// matchLocked drains game's queue two entries at a time. A popped entry whose
// user has no live connection is dropped; its partner goes back to the front
// of the list so their wait position is preserved. The pair's room only
// survives if the matched notification reaches both sides.
func (c *Coordinator) matchLocked(game domain.GameID) {
	for {
		a, b, ok := c.Queue.DequeueOldestPair(game)
		if !ok {
			return
		}
		connA, okA := c.Presence.Get(a.User)
		connB, okB := c.Presence.Get(b.User)
		if !okA || !okB {
			if okA {
				c.Queue.PushFront(a)
			}
			if okB {
				c.Queue.PushFront(b)
			}
			log.Warn().Str("module", "app.coordinator").Str("game", string(game)).Msg("match aborted, peer offline")
			continue
		}

		room := c.Rooms.Create(game, a.User, b.User)
		if err := push(connA, c.matchedEvent(room, b)); err != nil {
			log.Error().Err(err).Str("module", "app.coordinator").Str("user", string(a.User)).Msg("matched dispatch failed")
			c.teardownLocked(room.ID, a.User, ReasonDisconnected)
			continue
		}
		if err := push(connB, c.matchedEvent(room, a)); err != nil {
			log.Error().Err(err).Str("module", "app.coordinator").Str("user", string(b.User)).Msg("matched dispatch failed")
			c.teardownLocked(room.ID, b.User, ReasonDisconnected)
			continue
		}
		log.Info().Str("module", "app.coordinator").Str("room", string(room.ID)).Str("game", string(game)).Msg("pair matched")
	}
}

// matchedEvent builds the notification for the participant opposite partner.
func (c *Coordinator) matchedEvent(room *domain.Room, partner *domain.QueueEntry) MatchedEvent {
	profile := c.Profiles.Profile(partner.User)
	profile.VideoEnabled = partner.VideoEnabled
	return MatchedEvent{
		Type:    EventMatched,
		Room:    room.ID,
		Game:    room.Game,
		Partner: profile,
	}
}
