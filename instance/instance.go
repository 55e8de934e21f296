// Package instance creates challenge instances and interprets their lifecycle state.
package instance

import (
	"context"
	"log/slog"

	"github.com/ruteri/challenge-oracle-client/interfaces"
)

// Decision is what the orchestrator does next for an instance state.
type Decision int

const (
	// NeedsEvidence: CREATED or any unknown non-terminal state.
	NeedsEvidence Decision = iota
	// AutoVerified: VERIFIED or COMPLETED. Evidence is skipped and the DID is polled.
	AutoVerified
	// TerminalFailure: FAILED or EXPIRED. The run stops without polling.
	TerminalFailure
)

func (d Decision) String() string {
	switch d {
	case NeedsEvidence:
		return "needs-evidence"
	case AutoVerified:
		return "auto-verified"
	case TerminalFailure:
		return "terminal-failure"
	default:
		return "unknown"
	}
}

// Decide maps an instance state to the next step.
func Decide(state interfaces.InstanceState) Decision {
	switch {
	case state.IsAutoVerified():
		return AutoVerified
	case state.IsTerminal():
		return TerminalFailure
	default:
		return NeedsEvidence
	}
}

// Manager creates and observes challenge instances. It never caches state.
type Manager struct {
	oracle interfaces.InstanceLifecycle
	log    *slog.Logger
}

func NewManager(oracle interfaces.InstanceLifecycle, log *slog.Logger) *Manager {
	return &Manager{
		oracle: oracle,
		log:    log,
	}
}

// Create opens an instance for did. Creation is never retried.
func (m *Manager) Create(ctx context.Context, did interfaces.DID, challengeSet string) (*interfaces.ChallengeInstance, error) {
	inst, err := m.oracle.CreateInstance(ctx, did, challengeSet)
	if err != nil {
		m.log.Warn("Challenge instance creation failed", "did", did, "challengeSet", challengeSet, "err", err)
		return nil, err
	}

	m.log.Info("Challenge instance created",
		"instanceID", inst.ID,
		"did", did,
		"state", inst.State,
		"decision", Decide(inst.State))
	return inst, nil
}

// State re-fetches the current state from the oracle.
func (m *Manager) State(ctx context.Context, instanceID string) (interfaces.InstanceState, error) {
	return m.oracle.GetInstanceState(ctx, instanceID)
}

// EnsureOpen re-fetches the state and fails with *interfaces.InstanceTerminalError
// if the instance can no longer accept evidence.
func (m *Manager) EnsureOpen(ctx context.Context, instanceID string) (interfaces.InstanceState, error) {
	state, err := m.State(ctx, instanceID)
	if err != nil {
		return "", err
	}
	if state.IsTerminal() {
		terr := interfaces.NewInstanceTerminalError(instanceID, state)
		m.log.Info("Refusing submission to terminal instance", "instanceID", instanceID, "state", state, "hint", terr.Hint)
		return state, terr
	}
	return state, nil
}
