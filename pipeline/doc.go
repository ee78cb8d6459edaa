// Package pipeline drives one publish operation through its fixed stage
// sequence:
//
//	Idle → UploadingAsset → EnsuringAssetFunds → UploadingMetadataDoc →
//	EnsuringMetadataFunds → VerifyingMetadata → Minting → Persisting →
//	Complete
//
// with Failed reachable from any stage. Stages are strictly sequential;
// each depends on the previous stage's output (a content id, then a
// metadata URI, then a certificate address).
//
// # Funding sub-protocol
//
// Before each upload the pipeline quotes the price for the exact payload
// and compares it against the session's available prepaid balance (current
// balance minus reservations held by other runs). When the balance covers
// the price no funding happens at all. Otherwise the signer's native
// balance is checked first - a zero balance terminates the run without a
// single funding submission - then a funding transaction for exactly the
// quoted price is submitted, retried up to three attempts with exponential
// backoff (2s initial, doubling, no jitter). Confirmation is only
// observable by polling: the run waits a fixed confirmation delay (15s for
// the asset step, 10s for metadata) and re-reads the balance exactly once.
//
// # Reservations
//
// The prepaid balance is shared by every upload issued through the same
// session. A run reserves its quoted price with a single balance-owning
// goroutine before uploading and releases the reservation when the upload
// settles, so two overlapping runs cannot both spend the same balance.
//
// # Verification and persistence
//
// After the metadata upload the pipeline waits a short propagation delay
// and fetches the metadata URI. A non-2xx response is reported as a
// warning and does not abort the run unless gating is explicitly enabled:
// gateway propagation latency is common and should not block certificate
// issuance. Persisting the publish record is likewise best-effort; the
// mint is the durable source of truth.
//
// All timed behavior runs on an injected clock so tests control every
// delay.
package pipeline
