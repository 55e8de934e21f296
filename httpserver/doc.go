/*
Package httpserver implements the challenge flow gateway: an HTTP surface over
the orchestrator for callers that cannot link the Go API.

# Endpoints

	POST /api/flows/{challenge_set}

Runs the complete challenge flow for the named set and returns the TestResult.
The optional body {"did": "did:method:id"} selects the identity; without it a
fresh DID is minted. A run that stops early is still answered with 200, the
failed stage and its error are part of the result.

	POST /api/challenge-evidence/batch

Submits {"challengeInstanceId": "...", "responses": [{"challengeId": "...", "evidence": {...}}]}
as one atomic batch and returns the BatchResult. Statuses:

  - 400 malformed body or invalid responses (the result names the offending index)
  - 403 caller lacks the SUBMIT_EVIDENCE permission
  - 409 instance is terminal, or the oracle reported a state conflict
  - 502 oracle unreachable or failing

Both endpoints answer 503 {"error":"service not enabled"} while the challenge
flow feature flag is off.

# Operations

  - GET /livez, /readyz: liveness and readiness
  - GET /drain, /undrain: toggle readiness for load balancer draining
  - /debug/pprof: profiling, when enabled
  - /metrics on the separate metrics listener

Every request is tagged with a request id, which is forwarded to the oracle
in the X-Request-Id header.
*/
package httpserver
