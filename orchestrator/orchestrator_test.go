package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ruteri/challenge-oracle-client/api/clients"
	"github.com/ruteri/challenge-oracle-client/challengeset"
	"github.com/ruteri/challenge-oracle-client/featureflag"
	"github.com/ruteri/challenge-oracle-client/interfaces"
	"github.com/ruteri/challenge-oracle-client/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testDID = interfaces.DID("did:test:abc")

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type autoAdvanceClock struct {
	*clock.Mock
}

func (c autoAdvanceClock) Timer(d time.Duration) *clock.Timer {
	t := c.Mock.Timer(d)
	c.Mock.Add(d)
	return t
}

type fixedMinter interfaces.DID

func (m fixedMinter) Mint() interfaces.DID {
	return interfaces.DID(m)
}

var setX = &interfaces.ChallengeSet{
	Code:                "X",
	Name:                "Test set",
	MandatoryChallenges: []string{"c1", "c2", "c3"},
	RequiredConfidence:  0.8,
}

func newTestOrchestrator(t *testing.T, cfg Config, deps Deps) *Orchestrator {
	t.Helper()
	if deps.Minter == nil {
		deps.Minter = fixedMinter(testDID)
	}
	if deps.Clock == nil {
		deps.Clock = autoAdvanceClock{clock.NewMock()}
	}
	o, err := New(cfg, deps, testLogger)
	require.NoError(t, err)
	return o
}

func instanceIn(state interfaces.InstanceState) *interfaces.ChallengeInstance {
	return &interfaces.ChallengeInstance{
		ID:               "inst-1",
		DID:              testDID,
		ChallengeSetCode: "X",
		Nonce:            "n1",
		State:            state,
	}
}

func TestRunChallengeFlow_EndToEnd(t *testing.T) {
	oracle := new(clients.MockOracle)
	oracle.On("GetChallengeSet", mock.Anything, "X").Return(setX, nil)
	oracle.On("RegisterIdentity", mock.Anything, testDID, "X").Return(nil)
	oracle.On("CreateInstance", mock.Anything, testDID, "X").Return(instanceIn(interfaces.StateCreated), nil)
	oracle.On("GetInstanceState", mock.Anything, "inst-1").Return(interfaces.StateCreated, nil)
	oracle.On("SubmitEvidenceBatch", mock.Anything, "inst-1", mock.MatchedBy(func(items []interfaces.EvidenceItem) bool {
		return len(items) == 2 && items[0].ChallengeID == "c1" && items[1].ChallengeID == "c2"
	})).Return(json.RawMessage(`{"accepted":2}`), nil)
	oracle.On("GetAttestations", mock.Anything, testDID).Return([]interfaces.Attestation{}, nil)

	o := newTestOrchestrator(t, Config{ChallengesToSubmit: SubmitFirstN, FirstN: 2}, Deps{Oracle: oracle})

	result := o.RunChallengeFlow(context.Background(), "X")

	assert.Equal(t, "X", result.ChallengeSet)
	assert.Equal(t, testDID, result.DID)
	assert.True(t, result.DIDRegistered)
	assert.True(t, result.InstanceCreated)
	assert.Equal(t, interfaces.StateCreated, result.InstanceState)
	assert.True(t, result.EvidenceSubmitted)
	assert.False(t, result.EvidenceSkipped)
	assert.False(t, result.AttestationFound)
	assert.Equal(t, 3, result.PollAttempts)
	assert.Equal(t, StageNotAttested, result.Stage)
	assert.Empty(t, result.Error)

	oracle.AssertExpectations(t)
	oracle.AssertNumberOfCalls(t, "GetAttestations", 3)
}

func TestRunChallengeFlow_ChallengeSetNotFound(t *testing.T) {
	oracle := new(clients.MockOracle)
	oracle.On("GetChallengeSet", mock.Anything, "MISSING").Return(nil, &interfaces.OracleError{Kind: interfaces.KindNotFound, Status: 404})

	o := newTestOrchestrator(t, Config{}, Deps{Oracle: oracle})

	result := o.RunChallengeFlow(context.Background(), "MISSING")
	assert.False(t, result.DIDRegistered)
	assert.False(t, result.InstanceCreated)
	assert.Equal(t, StageResolve, result.Stage)
	assert.NotEmpty(t, result.Error)

	oracle.AssertNotCalled(t, "RegisterIdentity", mock.Anything, mock.Anything, mock.Anything)
	oracle.AssertNotCalled(t, "SubmitEvidenceBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunChallengeFlow_CatalogFirst(t *testing.T) {
	catalog, err := challengeset.NewCatalog(*setX)
	require.NoError(t, err)

	oracle := new(clients.MockOracle)
	oracle.On("RegisterIdentity", mock.Anything, testDID, "X").Return(&interfaces.OracleError{
		Kind:    interfaces.KindBusinessRejection,
		Message: "DID already registered",
	})

	o := newTestOrchestrator(t, Config{}, Deps{Oracle: oracle, Catalog: catalog})

	result := o.RunChallengeFlow(context.Background(), "X")
	assert.False(t, result.DIDRegistered)
	assert.Equal(t, StageRegister, result.Stage)
	assert.Contains(t, result.Error, "DID already registered")

	oracle.AssertNotCalled(t, "GetChallengeSet", mock.Anything, mock.Anything)
	oracle.AssertNotCalled(t, "CreateInstance", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunChallengeFlow_AutoVerified(t *testing.T) {
	for _, state := range []interfaces.InstanceState{interfaces.StateVerified, interfaces.StateCompleted} {
		t.Run(state.String(), func(t *testing.T) {
			oracle := new(clients.MockOracle)
			oracle.On("GetChallengeSet", mock.Anything, "X").Return(setX, nil)
			oracle.On("RegisterIdentity", mock.Anything, testDID, "X").Return(nil)
			oracle.On("CreateInstance", mock.Anything, testDID, "X").Return(instanceIn(state), nil)
			oracle.On("GetAttestations", mock.Anything, testDID).Return([]interfaces.Attestation{json.RawMessage(`{"id":"att"}`)}, nil)

			o := newTestOrchestrator(t, Config{}, Deps{Oracle: oracle})

			result := o.RunChallengeFlow(context.Background(), "X")
			assert.True(t, result.EvidenceSubmitted)
			assert.True(t, result.EvidenceSkipped)
			assert.True(t, result.AttestationFound)
			assert.Equal(t, 1, result.PollAttempts)
			assert.Equal(t, StageAttested, result.Stage)

			oracle.AssertNotCalled(t, "GetInstanceState", mock.Anything, mock.Anything)
			oracle.AssertNotCalled(t, "SubmitEvidence", mock.Anything, mock.Anything, mock.Anything)
			oracle.AssertNotCalled(t, "SubmitEvidenceBatch", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRunChallengeFlow_TerminalFailure(t *testing.T) {
	tests := []struct {
		state interfaces.InstanceState
		hint  string
	}{
		{interfaces.StateExpired, "create a new instance to retry"},
		{interfaces.StateFailed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			oracle := new(clients.MockOracle)
			oracle.On("GetChallengeSet", mock.Anything, "X").Return(setX, nil)
			oracle.On("RegisterIdentity", mock.Anything, testDID, "X").Return(nil)
			oracle.On("CreateInstance", mock.Anything, testDID, "X").Return(instanceIn(tt.state), nil)

			o := newTestOrchestrator(t, Config{}, Deps{Oracle: oracle})

			result := o.RunChallengeFlow(context.Background(), "X")
			assert.True(t, result.InstanceCreated)
			assert.Equal(t, tt.state, result.InstanceState)
			assert.False(t, result.EvidenceSubmitted)
			assert.False(t, result.AttestationFound)
			assert.Equal(t, StageTerminal, result.Stage)
			assert.Equal(t, tt.hint, result.Hint)

			oracle.AssertNotCalled(t, "SubmitEvidenceBatch", mock.Anything, mock.Anything, mock.Anything)
			oracle.AssertNotCalled(t, "GetAttestations", mock.Anything, mock.Anything)
		})
	}
}

func TestRunChallengeFlow_SingleMode(t *testing.T) {
	oracle := new(clients.MockOracle)
	oracle.On("GetChallengeSet", mock.Anything, "X").Return(setX, nil)
	oracle.On("RegisterIdentity", mock.Anything, testDID, "X").Return(nil)
	oracle.On("CreateInstance", mock.Anything, testDID, "X").Return(instanceIn(interfaces.StateCreated), nil)
	oracle.On("GetInstanceState", mock.Anything, "inst-1").Return(interfaces.StateCreated, nil)
	oracle.On("SubmitEvidence", mock.Anything, "inst-1", mock.Anything).Return(json.RawMessage(`{}`), nil)
	oracle.On("GetAttestations", mock.Anything, testDID).Return([]interfaces.Attestation{json.RawMessage(`{}`)}, nil)

	o := newTestOrchestrator(t, Config{SubmissionMode: ModeSingle}, Deps{Oracle: oracle})

	result := o.RunChallengeFlow(context.Background(), "X")
	assert.True(t, result.EvidenceSubmitted)
	assert.True(t, result.AttestationFound)

	oracle.AssertNumberOfCalls(t, "SubmitEvidence", 3)
	oracle.AssertNumberOfCalls(t, "GetInstanceState", 3)
	oracle.AssertNotCalled(t, "SubmitEvidenceBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunChallengeFlow_SubmissionRejected(t *testing.T) {
	oracle := new(clients.MockOracle)
	oracle.On("GetChallengeSet", mock.Anything, "X").Return(setX, nil)
	oracle.On("RegisterIdentity", mock.Anything, testDID, "X").Return(nil)
	oracle.On("CreateInstance", mock.Anything, testDID, "X").Return(instanceIn(interfaces.StateCreated), nil)
	// the instance expired between creation and submission
	oracle.On("GetInstanceState", mock.Anything, "inst-1").Return(interfaces.StateExpired, nil)

	o := newTestOrchestrator(t, Config{}, Deps{Oracle: oracle})

	result := o.RunChallengeFlow(context.Background(), "X")
	assert.True(t, result.InstanceCreated)
	assert.False(t, result.EvidenceSubmitted)
	assert.Equal(t, StageSubmit, result.Stage)
	assert.Equal(t, "create a new instance to retry", result.Hint)

	oracle.AssertNotCalled(t, "SubmitEvidenceBatch", mock.Anything, mock.Anything, mock.Anything)
	oracle.AssertNotCalled(t, "GetAttestations", mock.Anything, mock.Anything)
}

func TestRunChallengeFlow_EmptyChallengeSet(t *testing.T) {
	empty := &interfaces.ChallengeSet{Code: "EMPTY", Name: "No checks"}

	oracle := new(clients.MockOracle)
	oracle.On("GetChallengeSet", mock.Anything, "EMPTY").Return(empty, nil)
	oracle.On("RegisterIdentity", mock.Anything, testDID, "EMPTY").Return(nil)
	oracle.On("CreateInstance", mock.Anything, testDID, "EMPTY").Return(instanceIn(interfaces.StateCreated), nil)

	o := newTestOrchestrator(t, Config{}, Deps{Oracle: oracle})

	result := o.RunChallengeFlow(context.Background(), "EMPTY")
	assert.True(t, result.InstanceCreated)
	assert.False(t, result.EvidenceSubmitted)
	assert.Equal(t, StageSubmit, result.Stage)
	assert.Contains(t, result.Error, ErrNoChallenges.Error())
	assert.NotContains(t, result.Error, "must not be empty")

	oracle.AssertNotCalled(t, "GetInstanceState", mock.Anything, mock.Anything)
	oracle.AssertNotCalled(t, "SubmitEvidenceBatch", mock.Anything, mock.Anything, mock.Anything)
	oracle.AssertNotCalled(t, "GetAttestations", mock.Anything, mock.Anything)
}

func TestRunChallengeFlow_Disabled(t *testing.T) {
	oracle := new(clients.MockOracle)
	o := newTestOrchestrator(t, Config{}, Deps{Oracle: oracle, Features: featureflag.Static(false)})

	result := o.RunChallengeFlow(context.Background(), "X")
	assert.Equal(t, StageDisabled, result.Stage)
	assert.Equal(t, interfaces.ErrServiceNotEnabled.Error(), result.Error)
	assert.Empty(t, oracle.Calls)
}

func TestRunAll_ContinuesAfterFailure(t *testing.T) {
	oracle := new(clients.MockOracle)
	oracle.On("GetChallengeSet", mock.Anything, "X").Return(setX, nil)
	oracle.On("GetChallengeSet", mock.Anything, "MISSING").Return(nil, &interfaces.OracleError{Kind: interfaces.KindNotFound, Status: 404})
	oracle.On("RegisterIdentity", mock.Anything, mock.Anything, "X").Return(nil)
	oracle.On("CreateInstance", mock.Anything, mock.Anything, "X").Return(instanceIn(interfaces.StateVerified), nil)
	oracle.On("GetAttestations", mock.Anything, mock.Anything).Return([]interfaces.Attestation{json.RawMessage(`{}`)}, nil)

	for _, concurrency := range []int{1, 3} {
		o, err := New(Config{Concurrency: concurrency}, Deps{
			Oracle: oracle,
			Clock:  autoAdvanceClock{clock.NewMock()},
		}, testLogger)
		require.NoError(t, err)

		results := o.RunAll(context.Background(), []string{"X", "MISSING", "X"})
		require.Len(t, results, 3)

		assert.True(t, results[0].AttestationFound)
		assert.Equal(t, StageResolve, results[1].Stage)
		assert.True(t, results[2].AttestationFound)

		// every run mints its own identity
		assert.NotEqual(t, results[0].DID, results[2].DID)
	}
}

func TestRunChallengeFlow_Archive(t *testing.T) {
	oracle := new(clients.MockOracle)
	oracle.On("GetChallengeSet", mock.Anything, "MISSING").Return(nil, &interfaces.OracleError{Kind: interfaces.KindNotFound, Status: 404})

	backend, err := storage.NewFileBackend(t.TempDir(), testLogger)
	require.NoError(t, err)
	archiver := storage.NewArchiver(backend, testLogger)

	o := newTestOrchestrator(t, Config{}, Deps{Oracle: oracle, Archive: archiver})
	result := o.RunChallengeFlow(context.Background(), "MISSING")
	require.NotEmpty(t, result.ReportID)

	id, err := interfaces.NewContentIDFromHex(result.ReportID)
	require.NoError(t, err)

	var stored TestResult
	require.NoError(t, archiver.Load(context.Background(), interfaces.FlowReportType, id, &stored))
	assert.Equal(t, StageResolve, stored.Stage)

	// a failing archive never fails the run
	broken := &storage.MockStorageBackend{BackendName: "broken"}
	broken.On("Store", mock.Anything, mock.Anything, interfaces.FlowReportType).Return(interfaces.ContentID{}, errors.New("disk full"))

	o = newTestOrchestrator(t, Config{}, Deps{Oracle: oracle, Archive: storage.NewArchiver(broken, testLogger)})
	result = o.RunChallengeFlow(context.Background(), "MISSING")
	assert.Empty(t, result.ReportID)
	assert.Equal(t, StageResolve, result.Stage)
}

func TestSubmitEvidenceBatch(t *testing.T) {
	oracle := new(clients.MockOracle)
	o := newTestOrchestrator(t, Config{}, Deps{Oracle: oracle})

	result, err := o.SubmitEvidenceBatch(context.Background(), "inst-1", nil)
	require.ErrorIs(t, err, interfaces.ErrValidation)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Empty(t, oracle.Calls)
}

func TestConfig(t *testing.T) {
	policy, n, err := ParsePolicy("first-2")
	require.NoError(t, err)
	assert.Equal(t, SubmitFirstN, policy)
	assert.Equal(t, 2, n)

	policy, _, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, SubmitAll, policy)

	_, _, err = ParsePolicy("some")
	assert.Error(t, err)

	assert.NoError(t, Config{}.Validate())
	assert.Error(t, Config{ChallengesToSubmit: SubmitFirstN}.Validate())
	assert.Error(t, Config{SubmissionMode: "stream"}.Validate())

	cfg := Config{ChallengesToSubmit: SubmitFirstN, FirstN: 2}
	assert.Equal(t, []string{"c1", "c2"}, cfg.Select([]string{"c1", "c2", "c3"}))
	assert.Equal(t, []string{"c1"}, cfg.Select([]string{"c1"}))
	assert.Equal(t, []string{"c1", "c2", "c3"}, Config{}.Select([]string{"c1", "c2", "c3"}))
}
