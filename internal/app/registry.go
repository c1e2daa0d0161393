package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gamelink/randomconnect/internal/core"
	"github.com/gamelink/randomconnect/internal/domain"
)

type presenceEntry struct {
	Conn   core.SignalConnection
	Cancel context.CancelFunc
}

// Registry tracks which users currently hold a live signaling connection.
// At most one live handle per user; a reconnect replaces and closes the
// previous one.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.UserID]*presenceEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[domain.UserID]*presenceEntry)}
}

func (r *Registry) Bind(uid domain.UserID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	prev := r.entries[uid]
	r.entries[uid] = &presenceEntry{Conn: conn, Cancel: cancel}
	r.mu.Unlock()

	if prev != nil {
		if prev.Cancel != nil {
			prev.Cancel()
		}
		prev.Conn.Close()
		log.Info().Str("module", "app.registry").Str("user", string(uid)).Msg("replaced stale connection")
	}
	log.Info().Str("module", "app.registry").Str("user", string(uid)).Msg("bound connection")
}

// Unbind drops the entry only if conn is still the current handle, so a
// reconnect that already replaced it is not torn down by the old pump exiting.
func (r *Registry) Unbind(uid domain.UserID, conn core.SignalConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[uid]
	if !ok || e.Conn != conn {
		return false
	}
	delete(r.entries, uid)
	log.Info().Str("module", "app.registry").Str("user", string(uid)).Msg("unbound connection")
	return true
}

func (r *Registry) Get(uid domain.UserID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[uid]; ok {
		return e.Conn, true
	}
	return nil, false
}

func (r *Registry) Online(uid domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[uid]
	return ok
}

func (r *Registry) Cancel(uid domain.UserID) bool {
	r.mu.RLock()
	e, ok := r.entries[uid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("user", string(uid)).Msg("canceled connection")
	return true
}
