package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/creatorclaim/publisher/interfaces"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testWallet = common.HexToAddress("0x1111111111111111111111111111111111111111")

type fixedSigner struct {
	addr common.Address
}

func (s *fixedSigner) Address() common.Address { return s.addr }

func (s *fixedSigner) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{From: s.addr}, nil
}

type mockSession struct {
	mock.Mock
}

func (m *mockSession) QuotePrice(ctx context.Context, byteLength int) (*big.Int, error) {
	args := m.Called(ctx, byteLength)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *mockSession) Balance(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *mockSession) Fund(ctx context.Context, amount *big.Int) (string, error) {
	args := m.Called(ctx, amount)
	return args.String(0), args.Error(1)
}

func (m *mockSession) Upload(ctx context.Context, payload []byte, tags []interfaces.UploadTag) (interfaces.UploadReceipt, error) {
	args := m.Called(ctx, payload, tags)
	return args.Get(0).(interfaces.UploadReceipt), args.Error(1)
}

type mockBalances struct {
	mock.Mock
}

func (m *mockBalances) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	args := m.Called(ctx, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

type mockMinter struct {
	mock.Mock
}

func (m *mockMinter) CreateCertificate(ctx context.Context, metadataURI, name string, royaltyBasisPoints uint16) (common.Address, error) {
	args := m.Called(ctx, metadataURI, name, royaltyBasisPoints)
	return args.Get(0).(common.Address), args.Error(1)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Append(ctx context.Context, record interfaces.PublishRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

type harness struct {
	session  *mockSession
	balances *mockBalances
	minter   *mockMinter
	store    *mockRecorder
	clk      *clock.Mock
	pub      *Publisher

	mu      sync.Mutex
	updates []StatusUpdate
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		session:  new(mockSession),
		balances: new(mockBalances),
		minter:   new(mockMinter),
		store:    new(mockRecorder),
		clk:      clock.NewMock(),
	}
	cfg.Clock = h.clk
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.pub = NewPublisher(cfg, h.session, h.balances, h.minter, h.store, &fixedSigner{addr: testWallet}, log)
	t.Cleanup(h.pub.Close)
	return h
}

func (h *harness) observe(u StatusUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, u)
}

// publish runs Publish in a goroutine while driving the mock clock so all
// fixed waits elapse.
func (h *harness) publish(req Request) (*Result, error) {
	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := h.pub.Publish(context.Background(), req, h.observe)
		done <- outcome{res, err}
	}()

	for {
		select {
		case o := <-done:
			return o.res, o.err
		default:
			h.clk.Add(500 * time.Millisecond)
			time.Sleep(time.Millisecond)
		}
	}
}

func (h *harness) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.updates))
	for i, u := range h.updates {
		out[i] = u.Message
	}
	return out
}

func (h *harness) hasMessageContaining(substr string) bool {
	for _, msg := range h.messages() {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func metadataServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`{"name":"x"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func baseRequest() Request {
	return Request{
		Asset:       []byte("fake-png-bytes"),
		ContentType: "image/png",
		Title:       "Sunset Over Mountains",
		Description: "Golden hour",
		Attributes:  []interfaces.AssetAttribute{{TraitType: "Licence Template", Value: "0x01"}},
	}
}

// Covered balance means zero funding submissions.
func TestPublish_SufficientBalanceSkipsFunding(t *testing.T) {
	srv := metadataServer(t, http.StatusOK)
	h := newHarness(t, Config{})
	req := baseRequest()

	h.session.On("QuotePrice", mock.Anything, len(req.Asset)).Return(big.NewInt(100), nil).Once()
	h.session.On("Balance", mock.Anything).Return(big.NewInt(100), nil)
	h.session.On("Upload", mock.Anything, req.Asset, mock.Anything).
		Return(interfaces.UploadReceipt{ContentID: "asset1", URI: srv.URL + "/asset1"}, nil).Once()
	h.session.On("QuotePrice", mock.Anything, mock.Anything).Return(big.NewInt(10), nil).Once()
	h.session.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Return(interfaces.UploadReceipt{ContentID: "meta1", URI: srv.URL + "/meta1"}, nil).Once()

	cert := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	h.minter.On("CreateCertificate", mock.Anything, srv.URL+"/meta1", req.Title, uint16(0)).Return(cert, nil)
	h.store.On("Append", mock.Anything, mock.Anything).Return(nil)

	res, err := h.publish(req)
	require.NoError(t, err)
	assert.Equal(t, cert, res.CertificateAddress)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, srv.URL+"/meta1", res.Record.MetadataURI)

	h.session.AssertNotCalled(t, "Fund", mock.Anything, mock.Anything)
	h.balances.AssertNotCalled(t, "NativeBalance", mock.Anything, mock.Anything)
}

// Empty wallet fails terminally without a single funding submission.
func TestPublish_NoWalletFunds(t *testing.T) {
	h := newHarness(t, Config{})
	req := baseRequest()

	h.session.On("QuotePrice", mock.Anything, len(req.Asset)).Return(big.NewInt(500), nil)
	h.session.On("Balance", mock.Anything).Return(big.NewInt(0), nil)
	h.balances.On("NativeBalance", mock.Anything, testWallet).Return(big.NewInt(0), nil)

	res, err := h.publish(req)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, interfaces.ErrNoWalletFunds)

	h.session.AssertNotCalled(t, "Fund", mock.Anything, mock.Anything)
	h.session.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)

	h.mu.Lock()
	last := h.updates[len(h.updates)-1]
	h.mu.Unlock()
	assert.Equal(t, StageFailed, last.Stage)
	assert.Equal(t, SeverityError, last.Severity)
}

// Successful funding on the first attempt proceeds to upload after the
// confirmation wait and one re-poll.
func TestPublish_FundAndConfirm(t *testing.T) {
	srv := metadataServer(t, http.StatusOK)
	h := newHarness(t, Config{})
	req := baseRequest()

	h.session.On("QuotePrice", mock.Anything, len(req.Asset)).Return(big.NewInt(500), nil).Once()
	// Pre-funding poll, then the post-confirmation re-poll.
	h.session.On("Balance", mock.Anything).Return(big.NewInt(0), nil).Once()
	h.session.On("Balance", mock.Anything).Return(big.NewInt(500), nil)
	h.balances.On("NativeBalance", mock.Anything, testWallet).Return(big.NewInt(1_000_000_000), nil)
	h.session.On("Fund", mock.Anything, big.NewInt(500)).Return("0xfund", nil).Once()

	h.session.On("Upload", mock.Anything, req.Asset, mock.Anything).
		Return(interfaces.UploadReceipt{ContentID: "asset1", URI: srv.URL + "/asset1"}, nil).Once()
	h.session.On("QuotePrice", mock.Anything, mock.Anything).Return(big.NewInt(10), nil).Once()
	h.session.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Return(interfaces.UploadReceipt{ContentID: "meta1", URI: srv.URL + "/meta1"}, nil).Once()

	cert := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	h.minter.On("CreateCertificate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(cert, nil)
	h.store.On("Append", mock.Anything, mock.Anything).Return(nil)

	res, err := h.publish(req)
	require.NoError(t, err)
	assert.Equal(t, cert, res.CertificateAddress)

	h.session.AssertNumberOfCalls(t, "Fund", 1)
	assert.True(t, h.hasMessageContaining("waiting 15s for confirmation"))
	assert.True(t, h.hasMessageContaining("Funding confirmed"))
}

// Submission failures are retried with 2s then 4s backoff, three attempts
// total, then the run fails.
func TestPublish_FundingRetryBackoff(t *testing.T) {
	h := newHarness(t, Config{})
	req := baseRequest()

	h.session.On("QuotePrice", mock.Anything, len(req.Asset)).Return(big.NewInt(500), nil)
	h.session.On("Balance", mock.Anything).Return(big.NewInt(0), nil)
	h.balances.On("NativeBalance", mock.Anything, testWallet).Return(big.NewInt(1_000_000_000), nil)
	h.session.On("Fund", mock.Anything, big.NewInt(500)).
		Return("", fmt.Errorf("%w: node 503", interfaces.ErrFundingSubmission))

	res, err := h.publish(req)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, interfaces.ErrFundingSubmission)

	h.session.AssertNumberOfCalls(t, "Fund", 3)
	assert.True(t, h.hasMessageContaining("retrying in 2s"))
	assert.True(t, h.hasMessageContaining("retrying in 4s"))
	assert.False(t, h.hasMessageContaining("retrying in 8s"))
}

// A funding transaction that never confirms fails after exactly one
// re-poll.
func TestPublish_FundingNotConfirmed(t *testing.T) {
	h := newHarness(t, Config{})
	req := baseRequest()

	h.session.On("QuotePrice", mock.Anything, len(req.Asset)).Return(big.NewInt(500), nil)
	h.session.On("Balance", mock.Anything).Return(big.NewInt(0), nil)
	h.balances.On("NativeBalance", mock.Anything, testWallet).Return(big.NewInt(1_000_000_000), nil)
	h.session.On("Fund", mock.Anything, big.NewInt(500)).Return("0xfund", nil).Once()

	res, err := h.publish(req)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, interfaces.ErrFundingNotConfirmed)

	// Exactly two balance reads: pre-funding and the single re-poll.
	h.session.AssertNumberOfCalls(t, "Balance", 2)
}

// An unreachable metadata document is a warning, not a failure; the mint
// still happens.
func TestPublish_VerificationFailureDoesNotGate(t *testing.T) {
	srv := metadataServer(t, http.StatusNotFound)
	h := newHarness(t, Config{})
	req := baseRequest()

	h.session.On("QuotePrice", mock.Anything, mock.Anything).Return(big.NewInt(10), nil)
	h.session.On("Balance", mock.Anything).Return(big.NewInt(1000), nil)
	h.session.On("Upload", mock.Anything, req.Asset, mock.Anything).
		Return(interfaces.UploadReceipt{ContentID: "asset1", URI: srv.URL + "/asset1"}, nil).Once()
	h.session.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Return(interfaces.UploadReceipt{ContentID: "meta1", URI: srv.URL + "/meta1"}, nil).Once()

	cert := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	h.minter.On("CreateCertificate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(cert, nil)
	h.store.On("Append", mock.Anything, mock.Anything).Return(nil)

	res, err := h.publish(req)
	require.NoError(t, err)
	assert.Equal(t, cert, res.CertificateAddress)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "not yet accessible")

	h.minter.AssertNumberOfCalls(t, "CreateCertificate", 1)
}

func TestPublish_VerificationGateEnabled(t *testing.T) {
	srv := metadataServer(t, http.StatusNotFound)
	h := newHarness(t, Config{GateOnVerification: true})
	req := baseRequest()

	h.session.On("QuotePrice", mock.Anything, mock.Anything).Return(big.NewInt(10), nil)
	h.session.On("Balance", mock.Anything).Return(big.NewInt(1000), nil)
	h.session.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Return(interfaces.UploadReceipt{ContentID: "x", URI: srv.URL + "/x"}, nil)

	res, err := h.publish(req)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, interfaces.ErrMetadataUnverified)
	h.minter.AssertNotCalled(t, "CreateCertificate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// A failed record write after a successful mint still completes the run,
// with a warning carrying the certificate address in the result.
func TestPublish_PersistFailureIsNonFatal(t *testing.T) {
	srv := metadataServer(t, http.StatusOK)
	h := newHarness(t, Config{})
	req := baseRequest()

	h.session.On("QuotePrice", mock.Anything, mock.Anything).Return(big.NewInt(10), nil)
	h.session.On("Balance", mock.Anything).Return(big.NewInt(1000), nil)
	h.session.On("Upload", mock.Anything, req.Asset, mock.Anything).
		Return(interfaces.UploadReceipt{ContentID: "asset1", URI: srv.URL + "/asset1"}, nil).Once()
	h.session.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Return(interfaces.UploadReceipt{ContentID: "meta1", URI: srv.URL + "/meta1"}, nil).Once()

	cert := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	h.minter.On("CreateCertificate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(cert, nil)
	h.store.On("Append", mock.Anything, mock.Anything).
		Return(fmt.Errorf("%w: disk full", interfaces.ErrPersistence))

	res, err := h.publish(req)
	require.NoError(t, err)
	assert.Equal(t, cert, res.CertificateAddress)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[len(res.Warnings)-1], "Failed to save publish record")

	h.mu.Lock()
	last := h.updates[len(h.updates)-1]
	h.mu.Unlock()
	assert.Equal(t, StageComplete, last.Stage)
}

// Mint failures are terminal and never persisted.
func TestPublish_MintFailure(t *testing.T) {
	srv := metadataServer(t, http.StatusOK)
	h := newHarness(t, Config{})
	req := baseRequest()

	h.session.On("QuotePrice", mock.Anything, mock.Anything).Return(big.NewInt(10), nil)
	h.session.On("Balance", mock.Anything).Return(big.NewInt(1000), nil)
	h.session.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Return(interfaces.UploadReceipt{ContentID: "x", URI: srv.URL + "/x"}, nil)
	h.minter.On("CreateCertificate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(common.Address{}, fmt.Errorf("%w: signature rejected", interfaces.ErrMint))

	res, err := h.publish(req)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, interfaces.ErrMint)
	h.minter.AssertNumberOfCalls(t, "CreateCertificate", 1)
	h.store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

// A second publish for the same wallet fails fast while one is in flight.
func TestPublish_SingleFlightPerWallet(t *testing.T) {
	h := newHarness(t, Config{})
	req := baseRequest()

	started := make(chan struct{})
	release := make(chan struct{})
	h.session.On("QuotePrice", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
		}).
		Return(nil, errors.New("aborted"))

	go h.pub.Publish(context.Background(), req, nil) //nolint:errcheck

	<-started
	_, err := h.pub.Publish(context.Background(), req, nil)
	assert.ErrorIs(t, err, interfaces.ErrPublishInFlight)
	close(release)
}

// slowSession stalls the price quote until its context expires.
type slowSession struct {
	mockSession
}

func (s *slowSession) QuotePrice(ctx context.Context, byteLength int) (*big.Int, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPublish_StageTimeout(t *testing.T) {
	session := new(slowSession)
	balances := new(mockBalances)
	minter := new(mockMinter)
	store := new(mockRecorder)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	pub := NewPublisher(Config{StageTimeout: 20 * time.Millisecond},
		session, balances, minter, store, &fixedSigner{addr: testWallet}, log)
	defer pub.Close()

	_, err := pub.Publish(context.Background(), baseRequest(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrStageTimeout)
}

// Status updates precede the stage's network operation: the first update of
// a run is the cost estimate announcement, before any session call.
func TestPublish_StatusPrecedesWork(t *testing.T) {
	h := newHarness(t, Config{})
	req := baseRequest()

	var firstUpdateSeen bool
	h.session.On("QuotePrice", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			h.mu.Lock()
			firstUpdateSeen = len(h.updates) > 0
			h.mu.Unlock()
		}).
		Return(nil, errors.New("stop here"))

	_, err := h.publish(req)
	require.Error(t, err)
	assert.True(t, firstUpdateSeen, "status update must be emitted before the network call")
}
