package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gamelink/randomconnect/internal/domain"
)

// MatchQueue holds per-game FIFO waiting lists. A user has at most one entry
// across all games; enqueueing again replaces the previous entry wherever it
// was.
type MatchQueue struct {
	mu     sync.Mutex
	byGame map[domain.GameID][]*domain.QueueEntry
	gameOf map[domain.UserID]domain.GameID
}

func NewMatchQueue() *MatchQueue {
	return &MatchQueue{
		byGame: make(map[domain.GameID][]*domain.QueueEntry),
		gameOf: make(map[domain.UserID]domain.GameID),
	}
}

// Enqueue inserts e, replacing any prior entry for the same user under any
// game. Idempotent under retry.
func (q *MatchQueue) Enqueue(e *domain.QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(e.User)
	q.byGame[e.Game] = append(q.byGame[e.Game], e)
	q.gameOf[e.User] = e.Game
	log.Info().Str("module", "app.queue").Str("user", string(e.User)).Str("game", string(e.Game)).Bool("video", e.VideoEnabled).Msg("enqueued")
}

// DequeueOldestPair atomically removes and returns the two oldest entries for
// game. Returns false when fewer than two are waiting.
func (q *MatchQueue) DequeueOldestPair(game domain.GameID) (*domain.QueueEntry, *domain.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	waiting := q.byGame[game]
	if len(waiting) < 2 {
		return nil, nil, false
	}
	a, b := waiting[0], waiting[1]
	q.byGame[game] = waiting[2:]
	delete(q.gameOf, a.User)
	delete(q.gameOf, b.User)
	return a, b, true
}

// PushFront reinserts an entry at the head of its game's list, preserving the
// original position of a user whose match was aborted.
func (q *MatchQueue) PushFront(e *domain.QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(e.User)
	q.byGame[e.Game] = append([]*domain.QueueEntry{e}, q.byGame[e.Game]...)
	q.gameOf[e.User] = e.Game
}

// Remove drops any entry for uid. Reports whether one existed.
func (q *MatchQueue) Remove(uid domain.UserID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(uid)
}

func (q *MatchQueue) removeLocked(uid domain.UserID) bool {
	game, ok := q.gameOf[uid]
	if !ok {
		return false
	}
	waiting := q.byGame[game]
	for i, e := range waiting {
		if e.User == uid {
			q.byGame[game] = append(waiting[:i], waiting[i+1:]...)
			break
		}
	}
	delete(q.gameOf, uid)
	return true
}

func (q *MatchQueue) Len(game domain.GameID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byGame[game])
}

// GameOf reports which game's list uid is currently waiting in.
func (q *MatchQueue) GameOf(uid domain.UserID) (domain.GameID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	game, ok := q.gameOf[uid]
	return game, ok
}
