package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/challenge-oracle-client/api"
	"github.com/ruteri/challenge-oracle-client/api/clients"
	"github.com/ruteri/challenge-oracle-client/featureflag"
	"github.com/ruteri/challenge-oracle-client/interfaces"
	"github.com/ruteri/challenge-oracle-client/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mock.Mock
	enabled bool
}

func (m *mockRunner) Enabled(ctx context.Context) bool {
	return m.enabled
}

func (m *mockRunner) RunChallengeFlowWithDID(ctx context.Context, code string, did interfaces.DID) *orchestrator.TestResult {
	args := m.Called(ctx, code, did)
	return args.Get(0).(*orchestrator.TestResult)
}

func (m *mockRunner) SubmitEvidenceBatch(ctx context.Context, instanceID string, items []interfaces.EvidenceItem) (*interfaces.BatchResult, error) {
	args := m.Called(ctx, instanceID, items)
	return args.Get(0).(*interfaces.BatchResult), args.Error(1)
}

func newTestRouter(runner FlowRunner) http.Handler {
	r := chi.NewRouter()
	NewHandler(runner, 0, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterRoutes(r)
	return r
}

func TestHandleRunFlow(t *testing.T) {
	runner := &mockRunner{enabled: true}
	runner.On("RunChallengeFlowWithDID", mock.Anything, "X", interfaces.DID("did:test:abc")).Return(&orchestrator.TestResult{
		ChallengeSet:      "X",
		DID:               "did:test:abc",
		DIDRegistered:     true,
		InstanceCreated:   true,
		InstanceState:     interfaces.StateCreated,
		EvidenceSubmitted: true,
		Stage:             orchestrator.StageNotAttested,
	})
	runner.On("RunChallengeFlowWithDID", mock.Anything, "Y", interfaces.DID("")).Return(&orchestrator.TestResult{
		ChallengeSet: "Y",
		Stage:        orchestrator.StageResolve,
		Error:        "challenge set lookup: NotFound (status 404)",
	})

	router := newTestRouter(runner)

	req := httptest.NewRequest(http.MethodPost, "/api/flows/X", bytes.NewBufferString(`{"did":"did:test:abc"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var result orchestrator.TestResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.True(t, result.DIDRegistered)
	assert.True(t, result.EvidenceSubmitted)
	assert.False(t, result.AttestationFound)
	assert.Equal(t, interfaces.StateCreated, result.InstanceState)

	// no body mints a DID, failures are reported inside the result
	req = httptest.NewRequest(http.MethodPost, "/api/flows/Y", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.False(t, result.DIDRegistered)
	assert.NotEmpty(t, result.Error)

	req = httptest.NewRequest(http.MethodPost, "/api/flows/X", bytes.NewBufferString(`{"did":`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	runner.AssertExpectations(t)
}

func TestHandleSubmitBatch(t *testing.T) {
	item := interfaces.EvidenceItem{ChallengeID: "c1", Evidence: &interfaces.Evidence{Source: "https://evidence.local/challenges/c1"}}

	tests := []struct {
		name     string
		result   *interfaces.BatchResult
		err      error
		expected int
	}{
		{
			name:     "accepted",
			result:   &interfaces.BatchResult{Success: true, InstanceID: "inst-1", Submitted: 1},
			expected: http.StatusOK,
		},
		{
			name:     "validation",
			result:   &interfaces.BatchResult{InstanceID: "inst-1"},
			err:      &interfaces.ValidationError{Index: 0, Field: "evidence", Reason: "is required"},
			expected: http.StatusBadRequest,
		},
		{
			name:     "terminal instance",
			result:   &interfaces.BatchResult{InstanceID: "inst-1"},
			err:      interfaces.NewInstanceTerminalError("inst-1", interfaces.StateExpired),
			expected: http.StatusConflict,
		},
		{
			name:     "permission denied",
			result:   &interfaces.BatchResult{InstanceID: "inst-1"},
			err:      interfaces.ErrPermissionDenied,
			expected: http.StatusForbidden,
		},
		{
			name:     "upstream state conflict",
			result:   &interfaces.BatchResult{InstanceID: "inst-1"},
			err:      &interfaces.OracleError{Kind: interfaces.KindRequest, Status: 409, Hint: interfaces.StatusHint(409)},
			expected: http.StatusConflict,
		},
		{
			name:     "upstream failure",
			result:   &interfaces.BatchResult{InstanceID: "inst-1"},
			err:      &interfaces.OracleError{Kind: interfaces.KindUpstream, Status: 500},
			expected: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{enabled: true}
			runner.On("SubmitEvidenceBatch", mock.Anything, "inst-1", []interfaces.EvidenceItem{item}).Return(tt.result, tt.err)

			body, err := json.Marshal(api.SubmitEvidenceBatchRequest{ChallengeInstanceID: "inst-1", Responses: []interfaces.EvidenceItem{item}})
			require.NoError(t, err)

			rr := httptest.NewRecorder()
			newTestRouter(runner).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/challenge-evidence/batch", bytes.NewReader(body)))

			assert.Equal(t, tt.expected, rr.Code)
			var result interfaces.BatchResult
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
			assert.Equal(t, tt.result.Success, result.Success)
			runner.AssertExpectations(t)
		})
	}
}

func TestServiceNotEnabled(t *testing.T) {
	oracle := new(clients.MockOracle)
	o, err := orchestrator.New(orchestrator.Config{}, orchestrator.Deps{
		Oracle:   oracle,
		Features: featureflag.Static(false),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	router := newTestRouter(o)

	for _, path := range []string{"/api/flows/X", "/api/challenge-evidence/batch"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(`{}`)))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, path)
		var resp api.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "service not enabled", resp.Error)
	}

	assert.Empty(t, oracle.Calls)
}
