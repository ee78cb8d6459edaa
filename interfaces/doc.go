// Package interfaces defines core interfaces and types for the certificate
// publishing system, separating interface definitions from implementations.
//
// The package provides interfaces for the key collaborators of the system:
//
// # Storage Interfaces
//
// StorageSession: A funded, signer-scoped session against the
// content-addressed storage network. Exposes price quoting, prepaid balance
// queries, funding, and tagged content upload.
//
// KVStore: A durable keyed store used by the mint record ledger across
// multiple backend types (file, S3).
//
// # Chain Interfaces
//
// NativeBalanceReader: Queries a wallet's spendable native balance.
//
// CertificateMinter: Mints the on-chain certificate token referencing an
// uploaded metadata document.
//
// TransactionSigner: The signer identity backing both storage funding and
// certificate minting.
//
// # Domain Types
//
//   - AssetMetadata: the metadata document serialized to the storage network
//   - UploadReceipt: content id plus the deterministic gateway URI
//   - FundingQuote: price and prepaid balance in atomic units
//   - PublishRecord: the local ledger entry for a completed publish
//   - RoyaltyEvent: a royalty payment notification from the event stream
//
// All failure modes surface as the sentinel errors declared in this package,
// wrapped with context at the call site and classified with errors.Is.
package interfaces
