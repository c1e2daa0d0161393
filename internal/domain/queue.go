package domain

import "time"

// QueueEntry is a user's request to be matched, waiting in a per-game FIFO list.
// At most one entry exists per user across all games.
type QueueEntry struct {
	User         UserID
	Game         GameID
	VideoEnabled bool
	EnqueuedAt   time.Time
}
