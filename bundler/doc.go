// Package bundler implements the storage session against a bundler node
// fronting the content-addressed storage network.
//
// A Session is scoped to one signer identity and one payment token. It
// speaks the node's HTTP API:
//
//   - GET  /price/{token}/{bytes}              price quote in atomic units
//   - GET  /account/balance/{token}?address=   prepaid balance
//   - GET  /info                               node metadata, deposit address
//   - POST /account/balance/{token}            funding notification
//   - POST /tx/{token}                         tagged payload upload
//
// Funding moves native value from the signer's wallet to the node's deposit
// address via a chain transfer; the new prepaid balance only becomes
// observable after on-chain confirmation, so callers re-poll Balance after a
// confirmation wait. Uploaded content becomes fetchable from the public
// gateway at {gateway}/{content id}.
package bundler
