package instance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/challenge-oracle-client/api/clients"
	"github.com/ruteri/challenge-oracle-client/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		state    interfaces.InstanceState
		expected Decision
	}{
		{interfaces.StateCreated, NeedsEvidence},
		{interfaces.NormalizeState("pending_review"), NeedsEvidence},
		{interfaces.StateVerified, AutoVerified},
		{interfaces.StateCompleted, AutoVerified},
		{interfaces.StateFailed, TerminalFailure},
		{interfaces.StateExpired, TerminalFailure},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, Decide(tt.state))
		})
	}
}

func TestEnsureOpen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	oracle := new(clients.MockOracle)
	oracle.On("GetInstanceState", mock.Anything, "open").Return(interfaces.StateCreated, nil)
	oracle.On("GetInstanceState", mock.Anything, "verified").Return(interfaces.StateVerified, nil)
	oracle.On("GetInstanceState", mock.Anything, "failed").Return(interfaces.StateFailed, nil)
	oracle.On("GetInstanceState", mock.Anything, "expired").Return(interfaces.StateExpired, nil)

	m := NewManager(oracle, logger)

	state, err := m.EnsureOpen(ctx, "open")
	require.NoError(t, err)
	assert.Equal(t, interfaces.StateCreated, state)

	tests := []struct {
		id   string
		hint string
	}{
		{"verified", "already auto-verified, await attestation via notification channel"},
		{"failed", ""},
		{"expired", "create a new instance to retry"},
	}
	for _, tt := range tests {
		_, err := m.EnsureOpen(ctx, tt.id)
		require.ErrorIs(t, err, interfaces.ErrInstanceTerminal)
		var terr *interfaces.InstanceTerminalError
		require.True(t, errors.As(err, &terr))
		assert.Equal(t, tt.hint, terr.Hint)
	}
}

func TestCreate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	oracle := new(clients.MockOracle)
	inst := &interfaces.ChallengeInstance{ID: "inst-1", Nonce: "n", State: interfaces.StateCreated}
	oracle.On("CreateInstance", mock.Anything, interfaces.DID("did:test:abc"), "X").Return(inst, nil)
	oracle.On("CreateInstance", mock.Anything, interfaces.DID("did:test:no"), "X").
		Return(nil, &interfaces.OracleError{Kind: interfaces.KindBusinessRejection, Message: "quota exceeded"})

	m := NewManager(oracle, logger)

	got, err := m.Create(context.Background(), "did:test:abc", "X")
	require.NoError(t, err)
	assert.Equal(t, inst, got)

	_, err = m.Create(context.Background(), "did:test:no", "X")
	assert.ErrorIs(t, err, interfaces.ErrBusinessRejection)
	oracle.AssertNumberOfCalls(t, "CreateInstance", 2)
}
