// Package royaltystream implements the real-time royalty event feed
// client. The client maintains a websocket connection to the royalty
// distribution service for the currently selected wallet identity,
// registers the wallet for event filtering, keeps the connection alive
// with periodic pings, and collects incoming royalty events into a
// bounded newest-first feed.
//
// The connection is supervised: transport errors and server-side closes
// trigger reconnection with capped exponential backoff and jitter, and
// every successful reconnect re-registers the wallet. Changing the
// identity with SetWallet tears the connection down and clears the feed;
// an absent identity means no connection at all.
package royaltystream
