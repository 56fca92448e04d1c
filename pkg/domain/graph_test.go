package domain_test

import (
	"errors"
	"testing"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_NodeReturnsCopy(t *testing.T) {
	g := domain.NewGraph(domain.Node{ID: "start", Options: []string{"a", "b"}, Next: domain.Static("end")})

	n, ok := g.Node("start")
	require.True(t, ok)
	n.Options[0] = "mutated"

	again, _ := g.Node("start")
	assert.Equal(t, "a", again.Options[0])

	_, ok = g.Node("missing")
	assert.False(t, ok)
}

func TestGraph_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		g := domain.NewGraph(
			domain.Node{ID: "start", Next: domain.Static("q2")},
			domain.Node{ID: "q2", Next: domain.Computed("pick")},
			domain.Node{ID: "end", IsEnd: true},
		)
		assert.NoError(t, g.Validate())
	})

	t.Run("dangling target and missing start", func(t *testing.T) {
		g := domain.NewGraph(domain.Node{ID: "intro", Next: domain.Static("nowhere")})
		err := g.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNodeNotFound))
		assert.Contains(t, err.Error(), `start node "start"`)
		assert.Contains(t, err.Error(), `next "nowhere"`)
	})

	t.Run("dead end without isEnd", func(t *testing.T) {
		g := domain.NewGraph(domain.Node{ID: "start"})
		assert.ErrorContains(t, g.Validate(), "no next and not an end node")
	})
}

func TestParseSaveStrategy(t *testing.T) {
	s, err := domain.ParseSaveStrategy("")
	require.NoError(t, err)
	assert.Equal(t, domain.SaveAlways, s)

	s, err = domain.ParseSaveStrategy("On-End-Only")
	require.NoError(t, err)
	assert.Equal(t, domain.SaveOnEndOnly, s)

	_, err = domain.ParseSaveStrategy("sometimes")
	assert.ErrorIs(t, err, domain.ErrInvalidSaveStrategy)
}

func TestSessionRequest(t *testing.T) {
	assert.True(t, domain.SessionRequest("").IsAuto())
	assert.True(t, domain.SessionAuto.IsAuto())
	assert.True(t, domain.SessionNew.IsNew())

	id, ok := domain.SessionRequest("abc").Pinned()
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = domain.SessionNew.Pinned()
	assert.False(t, ok)
}

func TestIdentity_StateKey(t *testing.T) {
	id := domain.Identity{UserID: "u1", ScenarioID: "onboarding", SessionID: "s1"}
	assert.Equal(t, "onboarding:u1:s1", id.StateKey())
	assert.Equal(t, "onboarding:u1", id.UserKey())
}
