package interfaces

import (
	"encoding/json"
	"strings"
	"time"
)

// DID is a decentralized identifier naming an identity subject. It is the
// oracle's correlation key for registrations, instances and attestations.
type DID string

// String returns the identifier as a string.
func (d DID) String() string {
	return string(d)
}

// Valid reports whether the identifier has the did:<method>:<id> shape.
func (d DID) Valid() bool {
	parts := strings.SplitN(string(d), ":", 3)
	return len(parts) == 3 && parts[0] == "did" && parts[1] != "" && parts[2] != ""
}

// ChallengeSet is a named bundle of mandatory verification checks.
// It is immutable for the duration of one orchestration run.
type ChallengeSet struct {
	// Code identifies the challenge set (e.g. "KYC_BASIC").
	Code string `json:"code" yaml:"code"`

	// Name is the human readable display name.
	Name string `json:"name" yaml:"name"`

	// MandatoryChallenges lists challenge codes in submission order.
	MandatoryChallenges []string `json:"mandatoryChallenges" yaml:"mandatoryChallenges"`

	// RequiredConfidence is the confidence threshold in [0,1].
	RequiredConfidence float64 `json:"requiredConfidence" yaml:"requiredConfidence"`
}

// InstanceState is the lifecycle state of a challenge instance as reported by the oracle.
type InstanceState string

const (
	StateCreated   InstanceState = "CREATED"
	StateVerified  InstanceState = "VERIFIED"
	StateCompleted InstanceState = "COMPLETED"
	StateFailed    InstanceState = "FAILED"
	StateExpired   InstanceState = "EXPIRED"
)

// NormalizeState maps an arbitrary oracle state string to an InstanceState.
// Unknown values are kept verbatim; they are non-terminal and therefore
// handled like CREATED.
func NormalizeState(raw string) InstanceState {
	return InstanceState(strings.ToUpper(strings.TrimSpace(raw)))
}

// IsTerminal reports whether the state can no longer accept evidence.
func (s InstanceState) IsTerminal() bool {
	switch s {
	case StateVerified, StateCompleted, StateFailed, StateExpired:
		return true
	default:
		return false
	}
}

// IsAutoVerified reports whether the oracle already verified the instance.
func (s InstanceState) IsAutoVerified() bool {
	return s == StateVerified || s == StateCompleted
}

// String returns the state name.
func (s InstanceState) String() string {
	return string(s)
}

// ChallengeInstance is a server-tracked attempt to satisfy a challenge set for one DID.
// The nonce and id are issued by the oracle and are opaque to the client.
type ChallengeInstance struct {
	ID               string        `json:"id"`
	DID              DID           `json:"did"`
	ChallengeSetCode string        `json:"challengeSet"`
	Nonce            string        `json:"nonce"`
	State            InstanceState `json:"state"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// Evidence is the proof payload submitted against one challenge.
type Evidence struct {
	Source                     string  `json:"source"`
	SourceDomainHash           string  `json:"sourceDomainHash"`
	ContentHash                string  `json:"contentHash"`
	SemanticFingerprint        string  `json:"semanticFingerprint"`
	SimilarityScore            float64 `json:"similarityScore"`
	ClaimedPublishDate         string  `json:"claimedPublishDate"`
	ServerTimestamp            string  `json:"serverTimestamp"`
	ArchiveEarliestCaptureDate string  `json:"archiveEarliestCaptureDate"`
}

// EvidenceItem pairs a challenge code with its evidence. Evidence is a pointer
// so that a missing payload can be told apart from a zero one.
type EvidenceItem struct {
	ChallengeID string    `json:"challengeId" validate:"required"`
	Evidence    *Evidence `json:"evidence" validate:"required"`
}

// Attestation is the oracle's verdict artifact. The client never interprets it.
type Attestation = json.RawMessage

// BatchResult is the serializable outcome of a batch evidence submission.
type BatchResult struct {
	Success    bool            `json:"success"`
	InstanceID string          `json:"instanceId"`
	Submitted  int             `json:"submitted"`
	Data       json.RawMessage `json:"data,omitempty"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	Hint       string          `json:"hint,omitempty"`
}

// Permission names a capability granted by the role registry.
type Permission string

// PermissionSubmitEvidence gates every evidence submission.
const PermissionSubmitEvidence Permission = "SUBMIT_EVIDENCE"
