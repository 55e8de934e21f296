// Package main (cmd/oracle-client) runs the challenge flow against an
// attestation oracle from the command line.
//
// Subcommands:
//
//   - run CHALLENGE_SET...: resolve, register a fresh DID, create an instance,
//     submit evidence and poll for an attestation, printing one result per set
//   - submit-batch --instance-id ID --file responses.json: submit prepared evidence
//   - poll --did DID: poll the attestation endpoint
//   - fingerprint INPUT...: print evidence fingerprints
//
// Every flag can also be set through the environment, and a .env file in the
// working directory is loaded at startup.
//
// Example smoke test submitting the first two challenges of a set:
//
//	ORACLE_BASE_URL=http://localhost:3000 oracle-client run --challenges first-2 KYC_BASIC
package main
