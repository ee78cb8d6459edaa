// Package chain implements the on-chain collaborators of the publishing
// pipeline using go-ethereum.
//
// BalanceReader answers native balance queries for the funding
// pre-checks. Transferor submits the signed native transfers that fund the
// storage session's prepaid balance. Minter drives the CertificateFactory
// contract: it sends the createCertificate transaction, waits for the
// receipt and decodes the certificate address from the CertificateCreated
// event.
//
// All three accept the narrow go-ethereum client interfaces rather than a
// concrete *ethclient.Client so they can be exercised against simulated or
// mock backends.
package chain
