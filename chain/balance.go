package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/creatorclaim/publisher/interfaces"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BalanceReader implements interfaces.NativeBalanceReader over a chain RPC
// client.
type BalanceReader struct {
	client ethereum.ChainStateReader
	log    *slog.Logger
}

// NewBalanceReader creates a native balance reader.
func NewBalanceReader(client ethereum.ChainStateReader, log *slog.Logger) *BalanceReader {
	return &BalanceReader{client: client, log: log}
}

// NativeBalance returns the wallet's spendable balance in base units at the
// latest block.
func (r *BalanceReader) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	balance, err := r.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("balance query for %s: %w", addr.Hex(), err)
	}

	r.log.Debug("Read native balance",
		slog.String("address", addr.Hex()),
		slog.String("balance", balance.String()))

	return balance, nil
}

// transferBackend is the subset of the RPC client needed to submit a native
// transfer.
type transferBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Transferor implements interfaces.NativeTransferor. It submits plain value
// transfers signed by the configured signer.
type Transferor struct {
	client transferBackend
	signer interfaces.TransactionSigner
	log    *slog.Logger
}

// NewTransferor creates a native value transferor for the signer identity.
func NewTransferor(client transferBackend, signer interfaces.TransactionSigner, log *slog.Logger) *Transferor {
	return &Transferor{client: client, signer: signer, log: log}
}

// Transfer sends amount base units to the destination address and returns
// the transaction hash. It does not wait for confirmation.
func (t *Transferor) Transfer(ctx context.Context, to common.Address, amount *big.Int) (string, error) {
	opts, err := t.signer.TransactOpts(ctx)
	if err != nil {
		return "", fmt.Errorf("transact opts: %w", err)
	}

	nonce, err := t.client.PendingNonceAt(ctx, opts.From)
	if err != nil {
		return "", fmt.Errorf("pending nonce: %w", err)
	}

	gasPrice, err := t.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    amount,
		Gas:      21000,
		GasPrice: gasPrice,
	})

	signed, err := opts.Signer(opts.From, tx)
	if err != nil {
		return "", fmt.Errorf("sign transfer: %w", err)
	}

	if err := t.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send transfer: %w", err)
	}

	t.log.Info("Submitted native transfer",
		slog.String("tx_hash", signed.Hash().Hex()),
		slog.String("to", to.Hex()),
		slog.String("amount", amount.String()))

	return signed.Hash().Hex(), nil
}
