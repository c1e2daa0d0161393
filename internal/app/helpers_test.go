package app_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gamelink/randomconnect/internal/app"
	"github.com/gamelink/randomconnect/internal/core"
	"github.com/gamelink/randomconnect/internal/domain"
)

// fakeConn is an in-memory SignalConnection recording every pushed frame.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	fail   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.closed {
		return errors.New("send failed")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) eventsOfType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ev := range c.events(t) {
		if ev["type"] == typ {
			out = append(out, ev)
		}
	}
	return out
}

func newTestCoordinator() *app.Coordinator {
	return app.NewCoordinator(app.NewRegistry(), nil)
}

// connect binds a fresh fake connection for uid.
func connect(c *app.Coordinator, uid domain.UserID) *fakeConn {
	conn := &fakeConn{}
	c.Presence.Bind(uid, conn, nil)
	return conn
}

func matchPair(t *testing.T, c *app.Coordinator, game domain.GameID, a, b domain.UserID) (domain.RoomID, *fakeConn, *fakeConn) {
	t.Helper()
	connA := connect(c, a)
	connB := connect(c, b)
	require.NoError(t, c.JoinQueue(a, game, true))
	require.NoError(t, c.JoinQueue(b, game, false))
	matched := connA.eventsOfType(t, app.EventMatched)
	require.Len(t, matched, 1)
	room := domain.RoomID(matched[0]["room"].(string))
	return room, connA, connB
}
