package app_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamelink/randomconnect/internal/app"
	"github.com/gamelink/randomconnect/internal/domain"
)

func TestRoomIndexCreateAndLookup(t *testing.T) {
	x := app.NewRoomIndex()
	room := x.Create("valorant", "alice", "bob")

	got, ok := x.Get(room.ID)
	require.True(t, ok)
	assert.Equal(t, domain.RoomPending, got.State)

	byA, ok := x.ByUser("alice")
	require.True(t, ok)
	byB, ok2 := x.ByUser("bob")
	require.True(t, ok2)
	assert.Equal(t, room.ID, byA.ID)
	assert.Equal(t, room.ID, byB.ID)
}

func TestEndIsIdempotent(t *testing.T) {
	x := app.NewRoomIndex()
	room := x.Create("valorant", "alice", "bob")

	_, endedNow := x.End(room.ID)
	assert.True(t, endedNow)
	_, endedAgain := x.End(room.ID)
	assert.False(t, endedAgain, "second End must be a no-op")

	_, ok := x.ByUser("alice")
	assert.False(t, ok, "ended room must leave the active index")
	got, ok := x.Get(room.ID)
	require.True(t, ok, "ended room stays resolvable for a while")
	assert.Equal(t, domain.RoomEnded, got.State)
}

func TestEndUnknownRoom(t *testing.T) {
	x := app.NewRoomIndex()
	_, endedNow := x.End("nope")
	assert.False(t, endedNow)
}

func TestMarkActiveOnlyFromPending(t *testing.T) {
	x := app.NewRoomIndex()
	room := x.Create("valorant", "alice", "bob")

	x.MarkActive(room.ID)
	got, _ := x.Get(room.ID)
	assert.Equal(t, domain.RoomActive, got.State)

	x.End(room.ID)
	x.MarkActive(room.ID)
	got, _ = x.Get(room.ID)
	assert.Equal(t, domain.RoomEnded, got.State, "MarkActive must not resurrect an ended room")
}

func TestPruneEnded(t *testing.T) {
	x := app.NewRoomIndex()
	live := x.Create("valorant", "alice", "bob")
	dead := x.Create("bgmi", "carol", "dave")
	x.End(dead.ID)

	time.Sleep(5 * time.Millisecond)
	n := x.PruneEnded(time.Millisecond)
	assert.Equal(t, 1, n)

	_, ok := x.Get(dead.ID)
	assert.False(t, ok)
	_, ok = x.Get(live.ID)
	assert.True(t, ok)
}
