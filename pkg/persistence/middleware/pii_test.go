package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewRemoteStore()
	mw, err := middleware.NewPIIMiddleware([]string{"password", "ssn"})
	require.NoError(t, err)
	secure := mw(underlying)

	ctx := context.Background()
	state := domain.NewChatState("done")
	state.Answers["username"] = "jdoe"
	state.Answers["ask_password"] = "secret123"
	state.Answers["details"] = map[string]any{
		"address":    "123 St",
		"ssn_number": "999-99-9999",
	}
	state.Messages = []domain.ChatMessage{
		{NodeID: "username", Question: "Name?", Answer: "jdoe"},
		{NodeID: "ask_password", Question: "Password?", Answer: "secret123"},
	}

	require.NoError(t, secure.SaveState(ctx, "alice", state))

	stored, err := underlying.LoadState(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, "jdoe", stored.Answers["username"])
	assert.Equal(t, middleware.Mask, stored.Answers["ask_password"])
	details := stored.Answers["details"].(map[string]any)
	assert.Equal(t, "123 St", details["address"])
	assert.Equal(t, middleware.Mask, details["ssn_number"])
	assert.Equal(t, "jdoe", stored.Messages[0].Answer)
	assert.Equal(t, middleware.Mask, stored.Messages[1].Answer)

	// The caller's state is untouched.
	assert.Equal(t, "secret123", state.Answers["ask_password"])
	assert.Equal(t, "999-99-9999", state.Answers["details"].(map[string]any)["ssn_number"])
	assert.Equal(t, "secret123", state.Messages[1].Answer)
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}
