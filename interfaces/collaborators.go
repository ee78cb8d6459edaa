package interfaces

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// FundingQuote pairs the price for a payload with the session's prepaid
// balance at quote time, both in atomic units. Recomputed before every
// upload; never cached across stages because price depends on payload size.
type FundingQuote struct {
	PriceAtomic   *big.Int
	BalanceAtomic *big.Int
}

// Covered reports whether the prepaid balance already covers the price.
func (q FundingQuote) Covered() bool {
	return q.BalanceAtomic.Cmp(q.PriceAtomic) >= 0
}

// StorageSession represents one authenticated, funded session against the
// content-addressed storage network, scoped to one signer identity.
type StorageSession interface {
	// QuotePrice returns the atomic-unit price for storing byteLength
	// bytes. Pure query with no side effect; wraps ErrNetwork when the
	// pricing endpoint is unreachable.
	QuotePrice(ctx context.Context, byteLength int) (*big.Int, error)

	// Balance returns the session's current prepaid balance in atomic
	// units.
	Balance(ctx context.Context) (*big.Int, error)

	// Fund moves amount atomic units from the signer's wallet into the
	// session's prepaid balance and returns the funding transaction id.
	// The effect is only observable on-chain after confirmation; callers
	// must re-poll Balance. Wraps ErrInsufficientSourceFunds when the
	// signer's native balance is zero, ErrFundingSubmission for any
	// submission-layer failure.
	Fund(ctx context.Context, amount *big.Int) (string, error)

	// Upload stores payload tagged with the supplied key/value metadata
	// and returns a receipt carrying the content id and gateway URI.
	// Wraps ErrUpload when the session is unfunded for the payload size
	// or the network rejects the payload.
	Upload(ctx context.Context, payload []byte, tags []UploadTag) (UploadReceipt, error)
}

// NativeBalanceReader queries a wallet's spendable native balance in base
// units.
type NativeBalanceReader interface {
	NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error)
}

// NativeTransferor submits a signed native value transfer and returns the
// transaction hash. Used by the storage session to move funds into the
// bundler node's deposit address.
type NativeTransferor interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int) (string, error)
}

// CertificateMinter mints the on-chain certificate token referencing a
// metadata document.
type CertificateMinter interface {
	// CreateCertificate mints a certificate with the given metadata URI,
	// display name and creator royalty in basis points, returning the
	// certificate's on-chain address.
	CreateCertificate(ctx context.Context, metadataURI, name string, royaltyBasisPoints uint16) (common.Address, error)
}

// TransactionSigner is the signer identity backing storage funding and
// certificate minting.
type TransactionSigner interface {
	// Address returns the signer's wallet address.
	Address() common.Address

	// TransactOpts returns transaction options bound to the signer's key
	// for the configured chain.
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

// KVStore provides durable keyed storage for small documents.
type KVStore interface {
	// Read returns the value stored under key, or ErrKeyNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write stores value under key, replacing any previous value.
	Write(ctx context.Context, key string, value []byte) error

	// Available checks if the backend is accessible.
	Available(ctx context.Context) bool

	// Name returns an identifier for logging.
	Name() string

	// LocationURI returns the URI identifying this backend.
	LocationURI() string
}
