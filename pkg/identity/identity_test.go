package identity_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestUserID_SuppliedVerbatim(t *testing.T) {
	local := memory.NewLocalStore()
	r := identity.NewResolver(local)

	assert.Equal(t, "alice", r.UserID("alice"))

	_, ok, _ := local.Get(identity.AnonymousUserKey)
	assert.False(t, ok, "a supplied id must not mint an anonymous one")
}

func TestUserID_AnonymousIsIdempotent(t *testing.T) {
	local := memory.NewLocalStore()

	first := identity.NewResolver(local).UserID("")
	second := identity.NewResolver(local).UserID("")

	assert.Equal(t, first, second)
	_, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.True(t, identity.IsGuest(first))
}

// slowLocal widens the gap between reading and writing a key.
type slowLocal struct {
	*memory.LocalStore
}

func (s slowLocal) Get(key string) (string, bool, error) {
	time.Sleep(5 * time.Millisecond)
	return s.LocalStore.Get(key)
}

func TestUserID_ConcurrentFirstUseMintsOnce(t *testing.T) {
	r := identity.NewResolver(slowLocal{memory.NewLocalStore()})

	ids := make([]string, 16)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = r.UserID("")
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, ids[0], r.UserID(""))
}

func TestSessionID_ConcurrentAutoMintsOnce(t *testing.T) {
	r := identity.NewResolver(slowLocal{memory.NewLocalStore()})

	ids := make([]string, 16)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = r.SessionID("default", "alice", domain.SessionAuto)
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestUserID_WriteFailureStillReturnsID(t *testing.T) {
	local := memory.NewLocalStore()
	local.FailWrites(errors.New("quota exceeded"))

	r := identity.NewResolver(local, identity.WithIDGenerator(sequence()))
	assert.Equal(t, "id-1", r.UserID(""))
	assert.Equal(t, "id-2", r.UserID(""), "nothing was persisted, so a new id is minted")
}

func TestIsGuest(t *testing.T) {
	cases := map[string]bool{
		uuid.NewString():                       true,
		"guest_42":                             true,
		"guest-42":                             true,
		"anon_x":                               true,
		"anon-x":                               true,
		"":                                     true,
		"alice":                                false,
		"user-123":                             false,
		"6ba7b810-9dad-11d1-80b4-00c04fd430c8": false, // v1
	}
	for id, want := range cases {
		assert.Equal(t, want, identity.IsGuest(id), "IsGuest(%q)", id)
	}
}

func TestSessionID(t *testing.T) {
	local := memory.NewLocalStore()
	r := identity.NewResolver(local, identity.WithIDGenerator(sequence()))

	t.Run("auto mints and records", func(t *testing.T) {
		id := r.SessionID("default", "alice", domain.SessionAuto)
		assert.Equal(t, "id-1", id)

		got, ok, _ := local.Get(identity.LastSessionKey("default", "alice"))
		require.True(t, ok)
		assert.Equal(t, "id-1", got)
	})

	t.Run("auto resumes pointer", func(t *testing.T) {
		assert.Equal(t, "id-1", r.SessionID("default", "alice", ""))
	})

	t.Run("new overwrites pointer", func(t *testing.T) {
		id := r.SessionID("default", "alice", domain.SessionNew)
		assert.Equal(t, "id-2", id)
		assert.Equal(t, "id-2", r.SessionID("default", "alice", domain.SessionAuto))
	})

	t.Run("explicit is used and recorded", func(t *testing.T) {
		id := r.SessionID("default", "alice", domain.SessionRequest("pinned"))
		assert.Equal(t, "pinned", id)
		assert.Equal(t, "pinned", r.SessionID("default", "alice", domain.SessionAuto))
	})

	t.Run("pointers are per scenario", func(t *testing.T) {
		id := r.SessionID("onboarding", "alice", domain.SessionAuto)
		assert.NotEqual(t, "pinned", id)
	})
}

func TestResolve(t *testing.T) {
	local := memory.NewLocalStore()
	r := identity.NewResolver(local, identity.WithIDGenerator(sequence()))

	id := r.Resolve("bob", "", domain.SessionAuto)
	assert.Equal(t, domain.Identity{UserID: "bob", ScenarioID: domain.DefaultScenario, SessionID: "id-1"}, id)
	assert.Equal(t, "default:bob:id-1", id.StateKey())

	anon := r.Resolve("", "survey", domain.SessionNew)
	assert.Equal(t, "id-2", anon.UserID)
	assert.Equal(t, "id-3", anon.SessionID)
}

func TestPeek_LeavesPointerAlone(t *testing.T) {
	local := memory.NewLocalStore()
	r := identity.NewResolver(local, identity.WithIDGenerator(sequence()))
	r.Point("default", "bob", "s-old")

	id := r.Peek("bob", "", domain.SessionNew)
	assert.Equal(t, domain.Identity{UserID: "bob", ScenarioID: domain.DefaultScenario, SessionID: "id-1"}, id)
	got, _, err := local.Get(identity.LastSessionKey("default", "bob"))
	require.NoError(t, err)
	assert.Equal(t, "s-old", got)

	assert.Equal(t, "s-old", r.Peek("bob", "", domain.SessionAuto).SessionID)
}

func TestPoint(t *testing.T) {
	local := memory.NewLocalStore()
	r := identity.NewResolver(local)
	r.Point("default", "carol", "s-9")
	assert.Equal(t, "s-9", r.SessionID("default", "carol", domain.SessionAuto))
}
