package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFirstConnectionGoesOnline(t *testing.T) {
	r := NewRegistry()
	c := NewClient("c1", nil)

	wentOnline, displaced := r.Register(c, "alice")
	require.True(t, wentOnline)
	assert.Empty(t, displaced)
	assert.True(t, r.IsOnline("alice"))
	assert.Equal(t, "alice", r.UserOf("c1"))

	// second connection of the same user does not flip anything
	wentOnline, _ = r.Register(NewClient("c2", nil), "alice")
	assert.False(t, wentOnline)
	assert.Equal(t, Metrics{Connections: 2, Users: 1, Rooms: 0}, r.Metrics())
}

func TestDeregisterLastConnectionGoesOffline(t *testing.T) {
	r := NewRegistry()
	r.Register(NewClient("c1", nil), "alice")
	r.Register(NewClient("c2", nil), "alice")
	r.JoinRoom("alice", "dating:1")

	userID, wentOffline := r.Deregister("c1")
	assert.Equal(t, "alice", userID)
	assert.False(t, wentOffline)
	assert.True(t, r.IsOnline("alice"))

	userID, wentOffline = r.Deregister("c2")
	assert.Equal(t, "alice", userID)
	assert.True(t, wentOffline)
	assert.False(t, r.IsOnline("alice"))
	// all rooms vacated, none left behind empty
	assert.Equal(t, Metrics{}, r.Metrics())
}

func TestDeregisterUnknownConnIsNoop(t *testing.T) {
	r := NewRegistry()
	userID, wentOffline := r.Deregister("ghost")
	assert.Empty(t, userID)
	assert.False(t, wentOffline)
}

func TestJoinRoomAlwaysIncludesPersonalRoom(t *testing.T) {
	r := NewRegistry()
	r.Register(NewClient("c1", nil), "alice")
	r.JoinRoom("alice", "dating:1")

	assert.ElementsMatch(t, []string{"alice"}, r.MembersOf("alice"))
	assert.ElementsMatch(t, []string{"alice"}, r.MembersOf("dating:1"))
}

func TestLeaveRoomNeverRemovesPersonalRoom(t *testing.T) {
	r := NewRegistry()
	r.Register(NewClient("c1", nil), "alice")
	r.JoinRoom("alice", "dating:1")

	r.LeaveRoom("alice", "dating:1")
	assert.Empty(t, r.MembersOf("dating:1"))

	r.LeaveRoom("alice", "alice")
	assert.ElementsMatch(t, []string{"alice"}, r.MembersOf("alice"))
	assert.True(t, r.IsOnline("alice"))
}

func TestRoomDeletedWhenLastMemberLeaves(t *testing.T) {
	r := NewRegistry()
	r.Register(NewClient("c1", nil), "alice")
	r.Register(NewClient("c2", nil), "bob")
	r.JoinRoom("alice", "dating:1")
	r.JoinRoom("bob", "dating:1")
	assert.Equal(t, 3, r.Metrics().Rooms) // dating:1 + two personal

	r.LeaveRoom("alice", "dating:1")
	assert.Equal(t, 3, r.Metrics().Rooms)
	r.LeaveRoom("bob", "dating:1")
	assert.Equal(t, 2, r.Metrics().Rooms)
}

func TestMembersOfFiltersOfflineUsers(t *testing.T) {
	r := NewRegistry()
	r.Register(NewClient("c1", nil), "alice")
	r.Register(NewClient("c2", nil), "bob")
	r.JoinRoom("alice", "dating:1")
	r.JoinRoom("bob", "dating:1")

	r.Deregister("c2")
	assert.ElementsMatch(t, []string{"alice"}, r.MembersOf("dating:1"))
}

func TestReRegisterMovesConnectionBetweenUsers(t *testing.T) {
	r := NewRegistry()
	c := NewClient("c1", nil)
	r.Register(c, "alice")
	wentOnline, displaced := r.Register(c, "bob")

	assert.True(t, wentOnline)
	assert.Equal(t, "alice", displaced)
	assert.False(t, r.IsOnline("alice"))
	assert.True(t, r.IsOnline("bob"))
	assert.Equal(t, Metrics{Connections: 1, Users: 1, Rooms: 0}, r.Metrics())
}

func TestReRegisterVacatesDisplacedUserRooms(t *testing.T) {
	r := NewRegistry()
	c := NewClient("c1", nil)
	r.Register(c, "alice")
	r.JoinRoom("alice", "dating:1")

	_, displaced := r.Register(c, "bob")
	assert.Equal(t, "alice", displaced)
	assert.Empty(t, r.MembersOf("dating:1"))
	assert.Empty(t, r.MembersOf("alice"))
	assert.Equal(t, Metrics{Connections: 1, Users: 1, Rooms: 0}, r.Metrics())
}

func TestReRegisterDoesNotDisplaceMultiConnUser(t *testing.T) {
	r := NewRegistry()
	c := NewClient("c1", nil)
	r.Register(c, "alice")
	r.Register(NewClient("c2", nil), "alice")
	r.JoinRoom("alice", "dating:1")

	_, displaced := r.Register(c, "bob")
	assert.Empty(t, displaced)
	assert.True(t, r.IsOnline("alice"))
	assert.ElementsMatch(t, []string{"alice"}, r.MembersOf("dating:1"))
}
