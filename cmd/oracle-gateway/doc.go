// Package main (cmd/oracle-gateway) serves the challenge flow gateway.
//
// The gateway exposes POST /api/flows/{challenge_set} and
// POST /api/challenge-evidence/batch on --listen-addr, Prometheus metrics on
// --metrics-addr and health endpoints for load balancers. See package
// httpserver for the API.
//
// On SIGINT or SIGTERM the server stops reporting ready, waits --drain-seconds
// and shuts down gracefully.
//
// Example:
//
//	ORACLE_BASE_URL=srv://_oracle._tcp.example.org \
//	IDENTITY_LEDGER_URI=bbolt:///var/lib/oracle-gateway/dids.db \
//	REPORT_ARCHIVE_URIS=file:///var/lib/oracle-gateway/reports \
//	oracle-gateway --listen-addr 0.0.0.0:8080
package main
