package interfaces

import "errors"

var (
	// ErrNetwork is returned for transient failures of pricing and balance
	// query calls against the storage network.
	ErrNetwork = errors.New("storage network unreachable")

	// ErrInsufficientSourceFunds is returned when a funding submission is
	// attempted while the signer's spendable native balance is zero. The
	// check happens proactively, before anything is sent.
	ErrInsufficientSourceFunds = errors.New("wallet has no spendable funds")

	// ErrNoWalletFunds is the pipeline-level form of the same condition:
	// funding would certainly fail, so the run terminates without a single
	// funding submission.
	ErrNoWalletFunds = errors.New("wallet native balance is zero")

	// ErrFundingSubmission is returned when submitting a funding
	// transaction fails. The pipeline retries submission up to three
	// attempts with exponential backoff before giving up.
	ErrFundingSubmission = errors.New("funding submission failed")

	// ErrFundingNotConfirmed is returned when the prepaid balance is still
	// below the quoted price after the fixed confirmation wait. The run
	// does not poll indefinitely; a stalled funding transaction terminates
	// the run.
	ErrFundingNotConfirmed = errors.New("funding transaction not confirmed")

	// ErrUpload is returned when the storage network rejects a payload or
	// the session is unfunded for the payload size.
	ErrUpload = errors.New("upload rejected")

	// ErrMetadataUnverified is returned only when verification gating is
	// enabled and the uploaded metadata document is not yet fetchable from
	// the public gateway. With gating disabled (the default) the same
	// condition is a warning.
	ErrMetadataUnverified = errors.New("metadata document not yet accessible")

	// ErrMint is returned when the chain mint fails. Mint failures are
	// terminal and never retried blindly.
	ErrMint = errors.New("certificate mint failed")

	// ErrPersistence is returned when the mint record store is unavailable
	// or over quota. On the otherwise-successful path it is downgraded to
	// a warning; the mint itself is the durable source of truth.
	ErrPersistence = errors.New("record store unavailable")

	// ErrStageTimeout is returned when a pipeline stage exceeds its
	// configured deadline.
	ErrStageTimeout = errors.New("stage deadline exceeded")

	// ErrPublishInFlight is returned when a publish is requested for a
	// wallet that already has a run in flight.
	ErrPublishInFlight = errors.New("publish already in flight for this wallet")

	// ErrKeyNotFound is returned when a keyed store has no value for the
	// requested key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStoreUnavailable is returned when a keyed store backend is not
	// accessible.
	ErrStoreUnavailable = errors.New("keyed store unavailable")

	// ErrInvalidStoreURI is returned when a keyed store URI is malformed
	// or names an unsupported scheme.
	ErrInvalidStoreURI = errors.New("invalid keyed store URI")
)
