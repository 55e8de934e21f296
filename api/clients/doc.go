/*
Package clients provides the HTTP client for the remote attestation oracle.

# OracleClient

OracleClient implements interfaces.Oracle:

- GetChallengeSet - GET /api/challenge-sets/{code}, any non-2xx is NotFound
- RegisterIdentity - POST /api/identities/register
- CreateInstance - POST /api/challenge-instances
- GetInstanceState - GET /api/challenge-instances/{id}
- SubmitEvidence and SubmitEvidenceBatch - POST /api/challenge-evidence
- GetAttestations - GET /api/attestations/did/{did}

# Response Decoding

Responses are decoded exactly once. A call returns either data or an
*interfaces.OracleError whose Kind is one of NotFound, BusinessRejection,
TransportError, UpstreamError or RequestError. Non-2xx answers carry the HTTP
status and an advisory hint:

	400 format mismatch
	404 instance or definition not found
	409 state conflict
	422 validation failure
	500 upstream internal error, retry later

# Retries

Every request carries the client timeout. Transport failures are retried with a
constant backoff up to MaxRetries. GETs are additionally retried when the body
cannot be read or decoded. POSTs are retried only when no response was received,
so a request the oracle answered is never replayed. Business rejections and 5xx
answers are never retried.

# Example Usage

	client := clients.NewOracleClient("https://oracle.example.com", &clients.OracleClientOpts{
	    Timeout: 10 * time.Second,
	    Log:     logger,
	})

	set, err := client.GetChallengeSet(ctx, "KYC_BASIC")
	if errors.Is(err, interfaces.ErrNotFound) {
	    // unknown challenge set
	}

MockOracle is a testify mock of the same interface for use in tests.
*/
package clients
