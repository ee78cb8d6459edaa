// Package signer provides the transaction signer identity used for storage
// funding and certificate minting.
//
// Two key sources are supported:
//
//   - file:///path/to/key.hex - a hex-encoded ECDSA private key on disk
//   - vault://host:port/mount/path?field=private_key - a key stored in a
//     HashiCorp Vault KV-v2 secret, read with the client's ambient token
//     (VAULT_TOKEN)
//
// FromURI selects the source; both produce a Local signer that derives
// chain-id aware transaction options.
package signer
