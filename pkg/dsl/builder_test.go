package dsl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/chatflow/pkg/adapters/yaml"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/dsl"
	"github.com/aretw0/chatflow/pkg/flowhash"
	"github.com/aretw0/chatflow/pkg/rules"
	"github.com/aretw0/chatflow/pkg/traversal"
)

func TestBuilder_SimpleFlow(t *testing.T) {
	b := dsl.New()

	b.Add("start").
		Question("Ready?").
		Buttons("yes", "no").
		Route(map[string]string{"yes": "name", "no": "bye"}, "")

	b.Add("name").
		Question("What is your name?").
		Go("bye")

	b.Add("bye").
		Question("Thanks!").
		End()

	g, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "start", g.StartNode())
	assert.Len(t, g.Nodes, 3)

	start, _ := g.Node("start")
	assert.Equal(t, domain.KindButton, start.Kind)
	assert.Equal(t, []string{"yes", "no"}, start.Options)

	name, _ := g.Node("name")
	assert.Equal(t, domain.KindInput, name.Kind)
	assert.Equal(t, domain.Static("bye"), name.Next)

	bye, _ := g.Node("bye")
	assert.True(t, bye.IsEnd)

	eng := traversal.New(g, rules.NewRegistry())
	next, err := eng.GetNextStep("start", "no")
	require.NoError(t, err)
	assert.Equal(t, "bye", next)
}

func TestBuilder_MatchesFlowFile(t *testing.T) {
	b := dsl.New().Start("welcome")
	b.Add("welcome").
		Question("Ready to start?").
		Buttons("yes", "no").
		Route(map[string]string{"no": "bye", "yes": "name"}, "")
	b.Add("name").Question("What is your name?").Go("age")
	b.Add("age").Question("How old are you?").Expr(`int(answer) >= 18 ? "bye" : "guardian"`)
	b.Add("guardian").Question("Please ask a guardian to continue.").Buttons("ok").Rule("back_to_start")
	b.Add("bye").Question("Thanks!").End()

	g, err := b.Build()
	require.NoError(t, err)

	fromFile, err := yaml.Load("../adapters/yaml/testdata/onboarding.yaml")
	require.NoError(t, err)

	assert.Equal(t, flowhash.Sum(fromFile), flowhash.Sum(g))
}

func TestBuilder_Errors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := dsl.New().Build()
		assert.Error(t, err)
	})

	t.Run("dangling target", func(t *testing.T) {
		b := dsl.New()
		b.Add("start").Question("?").Go("nowhere")
		_, err := b.Build()
		assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	})

	t.Run("empty expression", func(t *testing.T) {
		b := dsl.New()
		b.Add("start").Question("?").Expr(" ")
		_, err := b.Build()
		assert.Error(t, err)
	})

	t.Run("no next and not end", func(t *testing.T) {
		b := dsl.New()
		b.Add("start").Question("?")
		_, err := b.Build()
		assert.Error(t, err)
	})
}

func TestBuilder_AddReturnsExisting(t *testing.T) {
	b := dsl.New()
	first := b.Add("start")
	assert.Same(t, first, b.Add("start"))
}
