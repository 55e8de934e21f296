// Package interfaces defines the core interfaces and types for the challenge
// oracle client.
//
// This package provides the contracts between the orchestration stages and their
// remote collaborators without including implementation details. Stages depend on
// these interfaces rather than on the concrete HTTP client, which keeps them
// testable against mocks.
//
// # Oracle Interfaces
//
//   - ChallengeSetLookup, IdentityRegistration, InstanceLifecycle, EvidenceSink and
//     AttestationLookup: the five groups of oracle endpoints
//   - Oracle: the union of the above, implemented by clients.OracleClient
//
// # Gate Interfaces
//
//   - PermissionGate: role registry check performed before every evidence submission
//   - FeatureGate: the challenge flow feature flag
//   - IdentityLedger: records minted DIDs and refuses reuse
//
// # Storage Interfaces
//
//   - StorageBackend: content-addressed archive for run reports
//   - StorageBackendFactory: creates archive backends from URI strings
//
// # Type Definitions
//
//   - DID: decentralized identifier, the correlation key across all endpoints
//   - ChallengeSet: named bundle of mandatory challenges
//   - ChallengeInstance and InstanceState: server-tracked attempt and its lifecycle
//   - Evidence and EvidenceItem: proof payloads
//   - BatchResult: outcome of a batch submission
//
// # Error Types
//
// Sentinel errors classify every failure and are matched with errors.Is:
//
//   - ErrNotFound: expected negative outcome (unknown set, no attestation yet)
//   - ErrBusinessRejection: oracle answered 2xx with success=false
//   - ErrInstanceTerminal: local refusal to submit to a terminal instance
//   - ErrValidation: malformed request, detected before any network call
//   - ErrTransport and ErrUpstream: network failures and 5xx answers
//   - ErrServiceNotEnabled, ErrPermissionDenied, ErrIdentityReused: gate refusals
//
// The typed errors OracleError, InstanceTerminalError and ValidationError carry
// the details (status, hint, offending index) and unwrap to their sentinels.
package interfaces
