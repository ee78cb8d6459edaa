// Package records provides the append-only local ledger of completed
// publish operations, backed by a pluggable keyed store.
//
// The ledger lives under the single well-known key "mintRecords" as a JSON
// array in append order. Append is read-modify-write and is not transactional
// against concurrent writers; last writer wins. Publishes are infrequent and
// user-initiated serially, so this is acceptable for a convenience cache;
// the mint itself is the durable source of truth.
//
// # Keyed store backends
//
// Backends are specified using URI format:
//
//   - file:///var/lib/creatorclaim/records/
//   - s3://bucket-name/prefix/?region=us-west-2
//
// NewKVStoreFromURI creates the matching backend.
package records
