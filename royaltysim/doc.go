// Package royaltysim is a development stand-in for the royalty
// distribution service's event stream. It serves the same websocket
// protocol the production service speaks: clients connect with a wallet
// query parameter, register with a register_wallet frame, keep the
// connection alive with pings, and receive royalty_event frames filtered
// to their registered wallet.
//
// Events are synthetic, produced on a fixed interval for a randomly
// chosen registered wallet. The server exists so the stream client and
// the royaltywatch CLI can be exercised end to end without the real
// service.
package royaltysim
