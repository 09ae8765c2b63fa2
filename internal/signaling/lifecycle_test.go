package signaling

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinAliceThenBob(t *testing.T) {
	l, _, _ := newTestLifecycle()
	alice, aliceRec := connect(l)
	bob, bobRec := connect(l)

	require.True(t, l.Join(alice, "room-1", "Alice"))
	require.True(t, l.Join(bob, "room-1", "Bob"))

	existing := bobRec.ofType(MessageTypeExistingUsers)
	require.Len(t, existing, 1)
	assert.Equal(t, []UserInfo{{UserID: alice, UserName: "Alice"}}, decode[[]UserInfo](t, existing[0]))

	joined := aliceRec.ofType(MessageTypeUserJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, UserInfo{UserID: bob, UserName: "Bob"}, decode[UserInfo](t, joined[0]))

	// Alice joined an empty room.
	aliceExisting := aliceRec.ofType(MessageTypeExistingUsers)
	require.Len(t, aliceExisting, 1)
	assert.Empty(t, decode[[]UserInfo](t, aliceExisting[0]))
	assert.Empty(t, bobRec.ofType(MessageTypeUserJoined))
}

func TestExistingUsersNeverListsSelf(t *testing.T) {
	l, _, _ := newTestLifecycle()
	ids := make([]ConnID, 5)
	recs := make([]*recorder, 5)
	for i := range ids {
		ids[i], recs[i] = connect(l)
		l.Join(ids[i], "r", fmt.Sprintf("user-%d", i))
	}

	for i, rec := range recs {
		existing := decode[[]UserInfo](t, rec.ofType(MessageTypeExistingUsers)[0])
		assert.Len(t, existing, i)
		for j, u := range existing {
			assert.NotEqual(t, ids[i], u.UserID)
			assert.Equal(t, ids[j], u.UserID, "join order")
		}
	}
}

func TestExistingUsersPlaceholderForStaleEntry(t *testing.T) {
	l, reg, dir := newTestLifecycle()
	ghost := ConnID("ghost")
	dir.Join("r", ghost)

	id, rec := connect(l)
	l.Join(id, "r", "Carol")

	existing := decode[[]UserInfo](t, rec.ofType(MessageTypeExistingUsers)[0])
	assert.Equal(t, []UserInfo{{UserID: ghost, UserName: UnknownUserName}}, existing)
	_, ok := reg.Get(ghost)
	assert.False(t, ok)
}

func TestDisconnectNotifiesRemainingOnce(t *testing.T) {
	l, reg, dir := newTestLifecycle()
	c1, _ := connect(l)
	c2, rec2 := connect(l)
	l.Join(c1, "r", "One")
	l.Join(c2, "r", "Two")

	l.Disconnect(c1)

	left := rec2.ofType(MessageTypeUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, UserInfo{UserID: c1, UserName: "One"}, decode[UserInfo](t, left[0]))
	assert.Equal(t, []ConnID{c2}, dir.Members("r"))
	_, ok := reg.Get(c1)
	assert.False(t, ok)

	// a second disconnect changes nothing
	l.Disconnect(c1)
	assert.Len(t, rec2.ofType(MessageTypeUserLeft), 1)
}

func TestDisconnectLastMemberDeletesRoom(t *testing.T) {
	l, reg, dir := newTestLifecycle()
	c1, rec1 := connect(l)
	l.Join(c1, "r", "Solo")
	rec1.reset()

	l.Disconnect(c1)

	assert.False(t, dir.Exists("r"))
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, rec1.msgs)
}

func TestDisconnectWithoutJoin(t *testing.T) {
	l, reg, dir := newTestLifecycle()
	c1, _ := connect(l)

	l.Disconnect(c1)
	l.Disconnect("never-connected")

	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, dir.Len())
	_, ok := l.Peer(c1)
	assert.False(t, ok)
}

func TestJoinAfterDisconnectIsIgnored(t *testing.T) {
	l, reg, dir := newTestLifecycle()
	c1, _ := connect(l)
	l.Disconnect(c1)

	assert.False(t, l.Join(c1, "r", "Late"))
	assert.Equal(t, 0, reg.Len())
	assert.False(t, dir.Exists("r"))
}

func TestRejoinLeavesPreviousRoom(t *testing.T) {
	l, reg, dir := newTestLifecycle()
	c1, _ := connect(l)
	c2, rec2 := connect(l)
	c3, rec3 := connect(l)
	l.Join(c1, "a", "Mover")
	l.Join(c2, "a", "Stayer")
	l.Join(c3, "b", "Host")

	l.Join(c1, "b", "Mover")

	left := rec2.ofType(MessageTypeUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, c1, decode[UserInfo](t, left[0]).UserID)

	joined := rec3.ofType(MessageTypeUserJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, c1, decode[UserInfo](t, joined[0]).UserID)

	assert.Equal(t, []ConnID{c2}, dir.Members("a"))
	assert.Equal(t, []ConnID{c3, c1}, dir.Members("b"))
	u, _ := reg.Get(c1)
	assert.Equal(t, "b", u.RoomID)
}

func TestRejoinSameRoom(t *testing.T) {
	l, _, dir := newTestLifecycle()
	c1, rec1 := connect(l)
	c2, rec2 := connect(l)
	l.Join(c1, "r", "One")
	l.Join(c2, "r", "Two")
	rec1.reset()

	l.Join(c2, "r", "Two again")

	assert.Len(t, rec1.ofType(MessageTypeUserLeft), 1)
	joined := rec1.ofType(MessageTypeUserJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, "Two again", decode[UserInfo](t, joined[0]).UserName)
	assert.Equal(t, []ConnID{c1, c2}, dir.Members("r"))

	existing := rec2.ofType(MessageTypeExistingUsers)
	require.Len(t, existing, 2)
	assert.Equal(t, []UserInfo{{UserID: c1, UserName: "One"}}, decode[[]UserInfo](t, existing[1]))
}

func TestRefusingSenderDoesNotAffectOthers(t *testing.T) {
	l, _, _ := newTestLifecycle()
	c1, rec1 := connect(l)
	c2, rec2 := connect(l)
	c3, _ := connect(l)
	rec1.refuse = true
	l.Join(c1, "r", "Slow")
	l.Join(c2, "r", "Fast")
	l.Join(c3, "r", "Third")

	assert.Len(t, rec2.ofType(MessageTypeUserJoined), 1)
}

// checkInvariants asserts that the registry and the directory describe the
// same membership.
func checkInvariants(t *testing.T, reg *Registry, dir *Directory) {
	t.Helper()

	reg.mu.RLock()
	dir.mu.RLock()
	defer reg.mu.RUnlock()
	defer dir.mu.RUnlock()

	seen := make(map[ConnID]string)
	for roomID, room := range dir.rooms {
		require.NotEmpty(t, room, "empty room %q kept", roomID)
		for id := range room {
			_, dup := seen[id]
			require.False(t, dup, "%s in two rooms", id)
			seen[id] = roomID
		}
	}
	require.Len(t, reg.users, len(seen))
	for id, u := range reg.users {
		require.Equal(t, seen[id], u.RoomID, "registry and directory disagree for %s", id)
	}
}

func TestRandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l, reg, dir := newTestLifecycle()
	rooms := []string{"r1", "r2", "r3"}

	var live []ConnID
	for step := 0; step < 2000; step++ {
		switch op := rng.Intn(10); {
		case op < 3 || len(live) == 0:
			id, _ := connect(l)
			live = append(live, id)
		case op < 7:
			id := live[rng.Intn(len(live))]
			l.Join(id, rooms[rng.Intn(len(rooms))], fmt.Sprintf("u%d", step))
		default:
			i := rng.Intn(len(live))
			l.Disconnect(live[i])
			live = append(live[:i], live[i+1:]...)
		}
		checkInvariants(t, reg, dir)
	}
}

func TestConcurrentJoinDisconnect(t *testing.T) {
	l, reg, dir := newTestLifecycle()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, _ := connect(l)
			l.Join(id, fmt.Sprintf("room-%d", i%3), "user")
			if i%2 == 0 {
				l.Disconnect(id)
			}
		}(i)
	}
	wg.Wait()

	checkInvariants(t, reg, dir)
	assert.Equal(t, 25, reg.Len())
	assert.Equal(t, Stats{Rooms: 3, Connections: 25, Users: 25}, l.Stats())
}
