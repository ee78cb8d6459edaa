package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/creatorclaim/publisher/interfaces"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// certificateFactoryABI is the interface of the CertificateFactory contract.
// createCertificate deploys a certificate token for the caller and emits
// CertificateCreated with its address.
const certificateFactoryABI = `[
	{"type":"function","name":"createCertificate","stateMutability":"nonpayable",
		"inputs":[
			{"name":"metadataUri","type":"string"},
			{"name":"name","type":"string"},
			{"name":"royaltyBasisPoints","type":"uint96"}],
		"outputs":[{"name":"certificate","type":"address"}]},
	{"type":"event","name":"CertificateCreated","anonymous":false,
		"inputs":[
			{"name":"certificate","type":"address","indexed":false},
			{"name":"creator","type":"address","indexed":true},
			{"name":"metadataUri","type":"string","indexed":false}]}
]`

// certificateCreatedEvent mirrors the CertificateCreated event arguments.
type certificateCreatedEvent struct {
	Certificate common.Address
	Creator     common.Address
	MetadataUri string
}

// Minter implements interfaces.CertificateMinter against the
// CertificateFactory contract.
type Minter struct {
	contract *bind.BoundContract
	abi      abi.ABI
	address  common.Address
	backend  bind.DeployBackend
	signer   interfaces.TransactionSigner
	log      *slog.Logger
}

// NewMinter creates a minter for the factory contract at the given address.
func NewMinter(client bind.ContractBackend, backend bind.DeployBackend, address common.Address, signer interfaces.TransactionSigner, log *slog.Logger) (*Minter, error) {
	parsed, err := abi.JSON(strings.NewReader(certificateFactoryABI))
	if err != nil {
		return nil, fmt.Errorf("parse factory ABI: %w", err)
	}

	return &Minter{
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		abi:      parsed,
		address:  address,
		backend:  backend,
		signer:   signer,
		log:      log,
	}, nil
}

// CreateCertificate mints a certificate referencing metadataURI, waits for
// the transaction to be mined and returns the certificate address decoded
// from the CertificateCreated event. Failures wrap ErrMint.
func (m *Minter) CreateCertificate(ctx context.Context, metadataURI, name string, royaltyBasisPoints uint16) (common.Address, error) {
	opts, err := m.signer.TransactOpts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: transact opts: %v", interfaces.ErrMint, err)
	}
	opts.Context = ctx

	tx, err := m.contract.Transact(opts, "createCertificate", metadataURI, name, new(big.Int).SetUint64(uint64(royaltyBasisPoints)))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", interfaces.ErrMint, err)
	}

	m.log.Info("Submitted mint transaction",
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.String("name", name),
		slog.String("metadata_uri", metadataURI))

	receipt, err := bind.WaitMined(ctx, m.backend, tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: waiting for receipt: %v", interfaces.ErrMint, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Address{}, fmt.Errorf("%w: transaction %s reverted", interfaces.ErrMint, tx.Hash().Hex())
	}

	certificate, err := m.certificateFromReceipt(receipt)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", interfaces.ErrMint, err)
	}

	m.log.Info("Certificate created",
		slog.String("certificate_address", certificate.Hex()),
		slog.String("tx_hash", tx.Hash().Hex()))

	return certificate, nil
}

// certificateFromReceipt finds the CertificateCreated event emitted by the
// factory and returns the certificate address.
func (m *Minter) certificateFromReceipt(receipt *types.Receipt) (common.Address, error) {
	eventID := m.abi.Events["CertificateCreated"].ID

	for _, entry := range receipt.Logs {
		if entry.Address != m.address || len(entry.Topics) == 0 || entry.Topics[0] != eventID {
			continue
		}

		var event certificateCreatedEvent
		if err := m.contract.UnpackLog(&event, "CertificateCreated", *entry); err != nil {
			return common.Address{}, fmt.Errorf("decode CertificateCreated: %w", err)
		}
		return event.Certificate, nil
	}

	return common.Address{}, fmt.Errorf("receipt has no CertificateCreated event")
}
