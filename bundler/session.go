package bundler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/creatorclaim/publisher/interfaces"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultGatewayURL is the public gateway serving uploaded content.
const DefaultGatewayURL = "https://arweave.net"

// Config holds the parameters for a bundler session.
type Config struct {
	// NodeURL is the base URL of the bundler node, e.g.
	// https://node.bundler.example.
	NodeURL string

	// GatewayURL is the public gateway base URL. Defaults to
	// DefaultGatewayURL.
	GatewayURL string

	// Token is the payment token identifier, e.g. "ethereum".
	Token string

	// HTTPClient is used for all node requests. Defaults to a client with
	// a 60 second timeout, matching the node SDK's default.
	HTTPClient *http.Client
}

// Session implements interfaces.StorageSession against a bundler node.
type Session struct {
	nodeURL    string
	gatewayURL string
	token      string

	signer   interfaces.TransactionSigner
	balances interfaces.NativeBalanceReader
	transfer interfaces.NativeTransferor

	client *http.Client
	log    *slog.Logger
}

// NewSession creates a funded storage session scoped to the signer identity.
func NewSession(cfg Config, signer interfaces.TransactionSigner, balances interfaces.NativeBalanceReader, transfer interfaces.NativeTransferor, log *slog.Logger) (*Session, error) {
	if cfg.NodeURL == "" {
		return nil, fmt.Errorf("bundler node URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("payment token is required")
	}

	gateway := cfg.GatewayURL
	if gateway == "" {
		gateway = DefaultGatewayURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	return &Session{
		nodeURL:    strings.TrimRight(cfg.NodeURL, "/"),
		gatewayURL: strings.TrimRight(gateway, "/"),
		token:      cfg.Token,
		signer:     signer,
		balances:   balances,
		transfer:   transfer,
		client:     client,
		log:        log,
	}, nil
}

// QuotePrice returns the atomic-unit price for storing byteLength bytes.
func (s *Session) QuotePrice(ctx context.Context, byteLength int) (*big.Int, error) {
	endpoint := fmt.Sprintf("%s/price/%s/%d", s.nodeURL, s.token, byteLength)

	body, err := s.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: price quote: %v", interfaces.ErrNetwork, err)
	}

	price, ok := new(big.Int).SetString(strings.TrimSpace(string(body)), 10)
	if !ok {
		return nil, fmt.Errorf("%w: unparseable price %q", interfaces.ErrNetwork, string(body))
	}

	s.log.Debug("Quoted storage price",
		slog.Int("bytes", byteLength),
		slog.String("price_atomic", price.String()))

	return price, nil
}

// Balance returns the session's current prepaid balance in atomic units.
func (s *Session) Balance(ctx context.Context) (*big.Int, error) {
	endpoint := fmt.Sprintf("%s/account/balance/%s?address=%s",
		s.nodeURL, s.token, url.QueryEscape(s.signer.Address().Hex()))

	body, err := s.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: balance query: %v", interfaces.ErrNetwork, err)
	}

	var resp struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: unparseable balance response: %v", interfaces.ErrNetwork, err)
	}

	balance, ok := new(big.Int).SetString(resp.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("%w: unparseable balance %q", interfaces.ErrNetwork, resp.Balance)
	}

	return balance, nil
}

// Fund moves amount atomic units from the signer's wallet into the session's
// prepaid balance. The signer's native balance is checked proactively; a
// zero balance fails before anything is submitted.
func (s *Session) Fund(ctx context.Context, amount *big.Int) (string, error) {
	native, err := s.balances.NativeBalance(ctx, s.signer.Address())
	if err != nil {
		return "", fmt.Errorf("%w: native balance check: %v", interfaces.ErrFundingSubmission, err)
	}
	if native.Sign() == 0 {
		return "", fmt.Errorf("%w: %s", interfaces.ErrInsufficientSourceFunds, s.signer.Address().Hex())
	}

	deposit, err := s.depositAddress(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrFundingSubmission, err)
	}

	txID, err := s.transfer.Transfer(ctx, deposit, amount)
	if err != nil {
		return "", fmt.Errorf("%w: transfer: %v", interfaces.ErrFundingSubmission, err)
	}

	if err := s.notifyFunding(ctx, txID); err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrFundingSubmission, err)
	}

	s.log.Info("Submitted funding transaction",
		slog.String("tx_id", txID),
		slog.String("amount_atomic", amount.String()),
		slog.String("deposit_address", deposit.Hex()))

	return txID, nil
}

// Upload stores payload tagged with the supplied metadata and returns a
// receipt with the content id and gateway URI.
func (s *Session) Upload(ctx context.Context, payload []byte, tags []interfaces.UploadTag) (interfaces.UploadReceipt, error) {
	endpoint := fmt.Sprintf("%s/tx/%s", s.nodeURL, s.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return interfaces.UploadReceipt{}, fmt.Errorf("%w: %v", interfaces.ErrUpload, err)
	}

	req.Header.Set("Content-Type", "application/octet-stream")
	for _, tag := range tags {
		req.Header.Add("X-Tag-"+tag.Name, tag.Value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return interfaces.UploadReceipt{}, fmt.Errorf("%w: %v", interfaces.ErrUpload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPaymentRequired {
		return interfaces.UploadReceipt{}, fmt.Errorf("%w: session unfunded for %d bytes", interfaces.ErrUpload, len(payload))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return interfaces.UploadReceipt{}, fmt.Errorf("%w: node returned %d: %s", interfaces.ErrUpload, resp.StatusCode, string(body))
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return interfaces.UploadReceipt{}, fmt.Errorf("%w: unparseable upload response: %v", interfaces.ErrUpload, err)
	}
	if parsed.ID == "" {
		return interfaces.UploadReceipt{}, fmt.Errorf("%w: node returned empty content id", interfaces.ErrUpload)
	}

	receipt := interfaces.UploadReceipt{
		ContentID: parsed.ID,
		URI:       fmt.Sprintf("%s/%s", s.gatewayURL, parsed.ID),
	}

	s.log.Info("Uploaded payload",
		slog.String("content_id", receipt.ContentID),
		slog.Int("size", len(payload)))

	return receipt, nil
}

// depositAddress reads the node's deposit address for the session token.
func (s *Session) depositAddress(ctx context.Context) (common.Address, error) {
	body, err := s.get(ctx, s.nodeURL+"/info")
	if err != nil {
		return common.Address{}, fmt.Errorf("node info: %w", err)
	}

	var info struct {
		Addresses map[string]string `json:"addresses"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return common.Address{}, fmt.Errorf("unparseable node info: %w", err)
	}

	raw, ok := info.Addresses[s.token]
	if !ok {
		return common.Address{}, fmt.Errorf("node has no deposit address for token %s", s.token)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("node deposit address %q is not a valid address", raw)
	}
	return common.HexToAddress(raw), nil
}

// notifyFunding tells the node to look for the funding transaction.
func (s *Session) notifyFunding(ctx context.Context, txID string) error {
	endpoint := fmt.Sprintf("%s/account/balance/%s", s.nodeURL, s.token)

	payload, err := json.Marshal(map[string]string{"tx_id": txID})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("funding notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("funding notification returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (s *Session) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
