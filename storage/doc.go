// Package storage archives flow and batch reports as content-addressed JSON.
//
// A report is identified by the SHA-256 hash of its serialized bytes, so the
// same report stored in several backends has the same identifier everywhere.
// Flow reports and batch reports live in separate namespaces of each backend.
//
// # Backend URIs
//
// Backends are selected by URI:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//
//   - file:///var/lib/oracle-client/reports
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix/?region=eu-central-1&endpoint=minio:9000
//   - ipfs://localhost:5001/?timeout=30s
//
// Several URIs are combined by CreateMultiBackend into a MultiStorageBackend,
// which writes to every available backend and reads from the first one that
// has the content.
//
// # Archiving
//
// Archiver wraps a backend and stores any JSON-serializable report:
//
//	factory := storage.NewStorageBackendFactory(logger)
//	backend, err := factory.CreateMultiBackend(locations)
//	archiver := storage.NewArchiver(backend, logger)
//	id, err := archiver.Archive(ctx, interfaces.FlowReportType, result)
//
// Archiving is best effort from the caller's point of view: the orchestrator
// logs a failed archive and continues.
package storage
