package clients

import (
	"context"
	"encoding/json"

	"github.com/ruteri/challenge-oracle-client/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockOracle implements interfaces.Oracle for testing.
// The behavior is determined by how the mock is configured in tests.
type MockOracle struct {
	mock.Mock
}

var _ interfaces.Oracle = (*MockOracle)(nil)

func (m *MockOracle) GetChallengeSet(ctx context.Context, code string) (*interfaces.ChallengeSet, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.ChallengeSet), args.Error(1)
}

func (m *MockOracle) RegisterIdentity(ctx context.Context, did interfaces.DID, challengeSet string) error {
	args := m.Called(ctx, did, challengeSet)
	return args.Error(0)
}

func (m *MockOracle) CreateInstance(ctx context.Context, did interfaces.DID, challengeSet string) (*interfaces.ChallengeInstance, error) {
	args := m.Called(ctx, did, challengeSet)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.ChallengeInstance), args.Error(1)
}

func (m *MockOracle) GetInstanceState(ctx context.Context, instanceID string) (interfaces.InstanceState, error) {
	args := m.Called(ctx, instanceID)
	return args.Get(0).(interfaces.InstanceState), args.Error(1)
}

func (m *MockOracle) SubmitEvidence(ctx context.Context, instanceID string, item interfaces.EvidenceItem) (json.RawMessage, error) {
	args := m.Called(ctx, instanceID, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockOracle) SubmitEvidenceBatch(ctx context.Context, instanceID string, items []interfaces.EvidenceItem) (json.RawMessage, error) {
	args := m.Called(ctx, instanceID, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockOracle) GetAttestations(ctx context.Context, did interfaces.DID) ([]interfaces.Attestation, error) {
	args := m.Called(ctx, did)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interfaces.Attestation), args.Error(1)
}
