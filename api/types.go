package api

import (
	"encoding/json"
	"time"

	"github.com/ruteri/challenge-oracle-client/interfaces"
)

// Oracle endpoint paths, relative to the configured base URL.
const (
	ChallengeSetPath      = "/api/challenge-sets/%s"
	RegisterIdentityPath  = "/api/identities/register"
	ChallengeInstancePath = "/api/challenge-instances"
	InstanceStatePath     = "/api/challenge-instances/%s"
	ChallengeEvidencePath = "/api/challenge-evidence"
	AttestationsPath      = "/api/attestations/did/%s"
)

// RequestIDHeader correlates a gateway request with the oracle calls it triggers.
const RequestIDHeader = "X-Request-Id"

// Envelope is the common response wrapper of the mutating oracle endpoints.
// A missing success flag decodes as false and is treated as a rejection.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Reason returns the upstream explanation of a rejection.
func (e *Envelope) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// ChallengeSetResponse is returned by GET /api/challenge-sets/{code}.
type ChallengeSetResponse struct {
	Data *ChallengeSetData `json:"data"`
}

// ChallengeSetData describes a challenge set as served by the oracle.
type ChallengeSetData struct {
	Code                string   `json:"code,omitempty"`
	Name                string   `json:"name"`
	MandatoryChallenges []string `json:"mandatoryChallenges"`
	RequiredConfidence  float64  `json:"requiredConfidence,omitempty"`
}

// RegisterIdentityRequest is the body of POST /api/identities/register.
type RegisterIdentityRequest struct {
	DID                   interfaces.DID `json:"did"`
	RequestedChallengeSet string         `json:"requestedChallengeSet"`
}

// CreateInstanceRequest is the body of POST /api/challenge-instances.
type CreateInstanceRequest struct {
	DID          interfaces.DID `json:"did"`
	ChallengeSet string         `json:"challengeSet"`
}

// InstanceData is the data member of a successful instance creation.
type InstanceData struct {
	ID        string     `json:"id"`
	Nonce     string     `json:"nonce"`
	State     string     `json:"state"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// InstanceStateResponse is returned by GET /api/challenge-instances/{id}.
// The canonical shape is {"data":{"state":...}}; a top-level state is accepted
// for older oracle deployments.
type InstanceStateResponse struct {
	Data *struct {
		State string `json:"state"`
	} `json:"data,omitempty"`
	State string `json:"state,omitempty"`
}

// ResolvedState returns the state from whichever shape was present.
func (r *InstanceStateResponse) ResolvedState() (string, bool) {
	if r.Data != nil && r.Data.State != "" {
		return r.Data.State, true
	}
	if r.State != "" {
		return r.State, true
	}
	return "", false
}

// SubmitEvidenceRequest is the single item body of POST /api/challenge-evidence.
type SubmitEvidenceRequest struct {
	ChallengeInstanceID string               `json:"challengeInstanceId"`
	ChallengeID         string               `json:"challengeId"`
	Evidence            *interfaces.Evidence `json:"evidence"`
}

// SubmitEvidenceBatchRequest is the batch body of POST /api/challenge-evidence.
// It is also accepted as-is by the gateway batch endpoint.
type SubmitEvidenceBatchRequest struct {
	ChallengeInstanceID string                    `json:"challengeInstanceId"`
	Responses           []interfaces.EvidenceItem `json:"responses"`
}

// AttestationsResponse is returned by GET /api/attestations/did/{did}.
type AttestationsResponse struct {
	Data []interfaces.Attestation `json:"data"`
}

// ErrorResponse is written by the gateway for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

// RunFlowRequest is the optional body of POST /api/flows/{challenge_set}.
// An empty DID is minted by the gateway.
type RunFlowRequest struct {
	DID interfaces.DID `json:"did,omitempty"`
}
