package interfaces

import (
	"context"
	"encoding/json"
)

// ChallengeSetLookup fetches challenge-set metadata from the oracle.
type ChallengeSetLookup interface {
	GetChallengeSet(ctx context.Context, code string) (*ChallengeSet, error)
}

// IdentityRegistration registers a DID against a challenge set.
type IdentityRegistration interface {
	RegisterIdentity(ctx context.Context, did DID, challengeSet string) error
}

// InstanceLifecycle creates challenge instances and observes their state.
type InstanceLifecycle interface {
	CreateInstance(ctx context.Context, did DID, challengeSet string) (*ChallengeInstance, error)
	GetInstanceState(ctx context.Context, instanceID string) (InstanceState, error)
}

// EvidenceSink accepts evidence for a challenge instance.
type EvidenceSink interface {
	SubmitEvidence(ctx context.Context, instanceID string, item EvidenceItem) (json.RawMessage, error)
	SubmitEvidenceBatch(ctx context.Context, instanceID string, items []EvidenceItem) (json.RawMessage, error)
}

// AttestationLookup lists attestations issued for a DID.
type AttestationLookup interface {
	GetAttestations(ctx context.Context, did DID) ([]Attestation, error)
}

// Oracle is the complete remote attestation oracle surface consumed by the client.
type Oracle interface {
	ChallengeSetLookup
	IdentityRegistration
	InstanceLifecycle
	EvidenceSink
	AttestationLookup
}

// PermissionGate answers whether a caller holds a registry permission.
type PermissionGate interface {
	HasPermission(ctx context.Context, caller string, permission Permission) (bool, error)
}

// FeatureGate answers whether the challenge flow is enabled.
type FeatureGate interface {
	Enabled(ctx context.Context) bool
}

// IdentityLedger records minted DIDs so that an identifier is never reused.
type IdentityLedger interface {
	// Claim records did as used. It fails with ErrIdentityReused if it was claimed before.
	Claim(ctx context.Context, did DID) error

	// Seen reports whether did was claimed before.
	Seen(ctx context.Context, did DID) (bool, error)
}
