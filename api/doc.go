/*
Package api holds the wire contract between the challenge oracle client and the
remote attestation oracle, plus the configuration of the gateway HTTP server.

The package is organized into the following parts:

1. types.go - request and response bodies of the six oracle endpoints
2. server_config.go - HTTPServerConfig used by the gateway
3. clients - the HTTP client implementing interfaces.Oracle

# Oracle Endpoints

	GET  /api/challenge-sets/{code}          -> {data:{name, mandatoryChallenges[]}}
	POST /api/identities/register            {did, requestedChallengeSet} -> {success, message?}
	POST /api/challenge-instances            {did, challengeSet} -> {success, data:{id, nonce, state}, message?}
	GET  /api/challenge-instances/{id}       -> {data:{state}}
	POST /api/challenge-evidence             {challengeInstanceId, challengeId, evidence}
	                                         or {challengeInstanceId, responses:[...]} -> {success, data?, message?}
	GET  /api/attestations/did/{did}         -> {data: Attestation[]}

# Success Discipline

The mutating endpoints may answer 200 with success=false. Success is decided by
the flag, never by the HTTP status alone. The decoding happens once, in the
clients package, which turns every response into either data or a typed error
from the interfaces package.

# Instance State Shape

The canonical instance state response is {"data":{"state":"..."}}. Some oracle
deployments answer {"state":"..."}; InstanceStateResponse accepts both and
prefers the canonical member when both are present.
*/
package api
