package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Local is a transaction signer backed by an in-memory ECDSA key.
type Local struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewLocal creates a signer from a private key for the given chain.
func NewLocal(key *ecdsa.PrivateKey, chainID *big.Int) (*Local, error) {
	if chainID == nil {
		return nil, fmt.Errorf("chain id is required")
	}
	return &Local{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

// NewLocalFromHex creates a signer from a hex-encoded private key.
func NewLocalFromHex(hexKey string, chainID *big.Int) (*Local, error) {
	clean := strings.TrimSpace(strings.TrimPrefix(hexKey, "0x"))
	key, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	return NewLocal(key, chainID)
}

// NewLocalFromFile creates a signer from a hex key file on disk.
func NewLocalFromFile(path string, chainID *big.Int) (*Local, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return NewLocalFromHex(string(raw), chainID)
}

// Address returns the signer's wallet address.
func (s *Local) Address() common.Address {
	return s.address
}

// TransactOpts returns transaction options bound to the signer's key.
func (s *Local) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("keyed transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}
