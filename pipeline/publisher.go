package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/creatorclaim/publisher/interfaces"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// recordAppender is the slice of the record store the pipeline needs.
type recordAppender interface {
	Append(ctx context.Context, record interfaces.PublishRecord) error
}

// Config holds the pipeline's timing and policy knobs. The zero value is
// usable; unset fields take the defaults below.
type Config struct {
	// AssetConfirmationWait is the fixed delay before re-polling the
	// balance after funding for the asset upload. Default 15s.
	AssetConfirmationWait time.Duration

	// MetadataConfirmationWait is the same delay for the metadata funding
	// step. Shorter because metadata payloads are small and typically
	// already covered. Default 10s.
	MetadataConfirmationWait time.Duration

	// PropagationWait is the delay before fetching the metadata URI for
	// verification. Default 2s.
	PropagationWait time.Duration

	// StageTimeout bounds each stage's network operation. Default 60s.
	StageTimeout time.Duration

	// FundingAttempts caps funding submissions per ensure-funds step.
	// Default 3.
	FundingAttempts int

	// FundingBackoffInitial is the first retry delay; subsequent delays
	// double, with no jitter. Default 2s.
	FundingBackoffInitial time.Duration

	// GateOnVerification aborts the run when the metadata document is not
	// fetchable after the propagation wait. Off by default: propagation
	// latency is common and should not block certificate issuance.
	GateOnVerification bool

	// Clock drives every delay. Defaults to the wall clock; tests inject
	// a mock.
	Clock clock.Clock

	// HTTPClient performs the metadata verification fetch.
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.AssetConfirmationWait == 0 {
		c.AssetConfirmationWait = 15 * time.Second
	}
	if c.MetadataConfirmationWait == 0 {
		c.MetadataConfirmationWait = 10 * time.Second
	}
	if c.PropagationWait == 0 {
		c.PropagationWait = 2 * time.Second
	}
	if c.StageTimeout == 0 {
		c.StageTimeout = 60 * time.Second
	}
	if c.FundingAttempts == 0 {
		c.FundingAttempts = 3
	}
	if c.FundingBackoffInitial == 0 {
		c.FundingBackoffInitial = 2 * time.Second
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// Request describes one asset to publish.
type Request struct {
	Asset              []byte
	ContentType        string
	Title              string
	Description        string
	Attributes         []interfaces.AssetAttribute
	RoyaltyBasisPoints uint16
}

// Publisher drives publish runs. Safe for concurrent use; runs for distinct
// wallets may overlap, a second run for the same wallet fails fast with
// ErrPublishInFlight.
type Publisher struct {
	session  interfaces.StorageSession
	balances interfaces.NativeBalanceReader
	minter   interfaces.CertificateMinter
	store    recordAppender
	signer   interfaces.TransactionSigner

	cfg      Config
	clock    clock.Clock
	fetch    *http.Client
	log      *slog.Logger
	reserved *reservations

	mu       sync.Mutex
	inflight map[common.Address]struct{}
}

// NewPublisher creates a pipeline over the given collaborators.
func NewPublisher(cfg Config, session interfaces.StorageSession, balances interfaces.NativeBalanceReader, minter interfaces.CertificateMinter, store recordAppender, signer interfaces.TransactionSigner, log *slog.Logger) *Publisher {
	cfg = cfg.withDefaults()
	return &Publisher{
		session:  session,
		balances: balances,
		minter:   minter,
		store:    store,
		signer:   signer,
		cfg:      cfg,
		clock:    cfg.Clock,
		fetch:    cfg.HTTPClient,
		log:      log,
		reserved: newReservations(),
		inflight: make(map[common.Address]struct{}),
	}
}

// Close releases the publisher's background resources.
func (p *Publisher) Close() {
	p.reserved.Close()
}

// Publish runs the full pipeline for one asset. It returns once the run
// reaches a terminal state; there is no mid-run cancellation beyond the
// context. Status updates are delivered to observe as the run progresses.
func (p *Publisher) Publish(ctx context.Context, req Request, observe Observer) (*Result, error) {
	wallet := p.signer.Address()
	if !p.acquire(wallet) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrPublishInFlight, wallet.Hex())
	}
	defer p.releaseWallet(wallet)

	runID := uuid.NewString()
	run := &run{
		id:      runID,
		observe: observe,
		log:     p.log.With(slog.String("run_id", runID), slog.String("wallet", wallet.Hex())),
	}

	result, err := p.publish(ctx, run, req)
	if err != nil {
		run.report(StageFailed, SeverityError, fmt.Sprintf("Publishing failed: %v", err))
		return nil, err
	}
	return result, nil
}

func (p *Publisher) publish(ctx context.Context, run *run, req Request) (*Result, error) {
	wallet := p.signer.Address()
	defer p.reserved.Release(run.id)

	// Asset upload
	run.report(StageUploadingAsset, SeverityInfo,
		fmt.Sprintf("Estimating upload cost for %d bytes...", len(req.Asset)))
	price, err := p.quote(ctx, len(req.Asset))
	if err != nil {
		return nil, err
	}

	if err := p.ensureFunds(ctx, run, StageEnsuringAssetFunds, price, p.cfg.AssetConfirmationWait); err != nil {
		return nil, err
	}

	run.report(StageUploadingAsset, SeverityInfo,
		fmt.Sprintf("Uploading asset (%d bytes)...", len(req.Asset)))
	assetReceipt, err := p.upload(ctx, run.id, req.Asset, []interfaces.UploadTag{
		{Name: interfaces.TagContentType, Value: req.ContentType},
		{Name: interfaces.TagAppName, Value: interfaces.AppName},
		{Name: interfaces.TagUploader, Value: wallet.Hex()},
	})
	if err != nil {
		return nil, err
	}
	run.report(StageUploadingAsset, SeverityInfo,
		fmt.Sprintf("Asset uploaded, content id %s", assetReceipt.ContentID))

	// Metadata upload
	metadata := interfaces.AssetMetadata{
		Name:        req.Title,
		Description: req.Description,
		Image:       assetReceipt.URI,
		Attributes:  req.Attributes,
	}
	doc, err := metadata.Encode()
	if err != nil {
		return nil, err
	}

	run.report(StageUploadingMetadataDoc, SeverityInfo, "Estimating metadata upload cost...")
	metaPrice, err := p.quote(ctx, len(doc))
	if err != nil {
		return nil, err
	}

	if err := p.ensureFunds(ctx, run, StageEnsuringMetadataFunds, metaPrice, p.cfg.MetadataConfirmationWait); err != nil {
		return nil, err
	}

	run.report(StageUploadingMetadataDoc, SeverityInfo, "Uploading metadata document...")
	metaReceipt, err := p.upload(ctx, run.id, doc, []interfaces.UploadTag{
		{Name: interfaces.TagContentType, Value: "application/json"},
		{Name: interfaces.TagAppName, Value: interfaces.AppName},
		{Name: interfaces.TagVersion, Value: interfaces.MetadataDocVersion},
		{Name: interfaces.TagTitle, Value: req.Title},
		{Name: interfaces.TagUploader, Value: wallet.Hex()},
	})
	if err != nil {
		return nil, err
	}
	run.report(StageUploadingMetadataDoc, SeverityInfo,
		fmt.Sprintf("Metadata uploaded, content id %s", metaReceipt.ContentID))

	// Verification gate
	run.report(StageVerifyingMetadata, SeverityInfo,
		fmt.Sprintf("Verifying metadata accessibility at %s...", metaReceipt.URI))
	if err := p.waitClock(ctx, p.cfg.PropagationWait); err != nil {
		return nil, err
	}
	if err := p.verifyMetadata(ctx, metaReceipt.URI); err != nil {
		if p.cfg.GateOnVerification {
			return nil, err
		}
		run.report(StageVerifyingMetadata, SeverityWarning,
			fmt.Sprintf("Metadata not yet accessible (%v), proceeding with mint", err))
	}

	// Mint
	run.report(StageMinting, SeverityInfo, "Creating certificate on chain...")
	certificate, err := p.mint(ctx, metaReceipt.URI, req.Title, req.RoyaltyBasisPoints)
	if err != nil {
		return nil, err
	}
	run.report(StageMinting, SeverityInfo,
		fmt.Sprintf("Certificate successfully minted at %s", certificate.Hex()))

	// Persist, best-effort
	record := interfaces.PublishRecord{
		Title:              req.Title,
		ImageURI:           assetReceipt.URI,
		MetadataURI:        metaReceipt.URI,
		CertificateAddress: certificate.Hex(),
		Timestamp:          p.clock.Now().UTC(),
	}
	run.report(StagePersisting, SeverityInfo, "Saving publish record...")
	if err := p.store.Append(ctx, record); err != nil {
		run.report(StagePersisting, SeverityWarning,
			fmt.Sprintf("Failed to save publish record: %v", err))
	}

	run.report(StageComplete, SeverityInfo,
		fmt.Sprintf("Publish complete, certificate %s", certificate.Hex()))

	return &Result{
		RunID:              run.id,
		CertificateAddress: certificate,
		AssetReceipt:       assetReceipt,
		MetadataReceipt:    metaReceipt,
		Record:             record,
		Warnings:           run.warnings,
	}, nil
}

// ensureFunds runs the funding sub-protocol for one upload whose price is
// known. On success the run holds a reservation for exactly price.
func (p *Publisher) ensureFunds(ctx context.Context, run *run, stage Stage, price *big.Int, confirmWait time.Duration) error {
	run.report(stage, SeverityInfo, "Checking prepaid balance...")
	available, err := p.availableBalance(ctx, run.id)
	if err != nil {
		return err
	}

	quote := interfaces.FundingQuote{PriceAtomic: price, BalanceAtomic: available}
	if quote.Covered() {
		run.report(stage, SeverityInfo, "Sufficient balance, skipping funding")
		p.reserved.Reserve(run.id, price)
		return nil
	}

	// Funding would certainly fail from an empty wallet; bail before
	// submitting anything.
	native, err := p.nativeBalance(ctx)
	if err != nil {
		return err
	}
	if native.Sign() == 0 {
		return fmt.Errorf("%w: fund wallet %s before publishing", interfaces.ErrNoWalletFunds, p.signer.Address().Hex())
	}

	run.report(stage, SeverityInfo,
		fmt.Sprintf("Funding storage session with %s atomic units...", price.String()))
	if err := p.fundWithRetry(ctx, run, stage, price); err != nil {
		return err
	}

	run.report(stage, SeverityInfo,
		fmt.Sprintf("Funding transaction sent, waiting %s for confirmation...", confirmWait))
	if err := p.waitClock(ctx, confirmWait); err != nil {
		return err
	}

	// Single re-poll; a stalled funding transaction fails the run rather
	// than hanging it.
	available, err = p.availableBalance(ctx, run.id)
	if err != nil {
		return err
	}
	quote.BalanceAtomic = available
	if !quote.Covered() {
		return fmt.Errorf("%w: balance %s still below price %s after %s",
			interfaces.ErrFundingNotConfirmed, available.String(), price.String(), confirmWait)
	}

	run.report(stage, SeverityInfo, "Funding confirmed, proceeding with upload")
	p.reserved.Reserve(run.id, price)
	return nil
}

// fundWithRetry submits the funding transaction with bounded exponential
// backoff between attempts.
func (p *Publisher) fundWithRetry(ctx context.Context, run *run, stage Stage, price *big.Int) error {
	intervals := newFundingBackoff(p.cfg.FundingBackoffInitial)

	var lastErr error
	for attempt := 1; attempt <= p.cfg.FundingAttempts; attempt++ {
		sctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
		_, err := p.session.Fund(sctx, price)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, interfaces.ErrInsufficientSourceFunds) {
			return fmt.Errorf("%w: %v", interfaces.ErrNoWalletFunds, err)
		}
		lastErr = err

		if attempt == p.cfg.FundingAttempts {
			break
		}
		wait := intervals.NextBackOff()
		run.report(stage, SeverityWarning,
			fmt.Sprintf("Funding attempt %d failed, retrying in %s...", attempt, wait))
		if err := p.waitClock(ctx, wait); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: %d attempts exhausted: %v", interfaces.ErrFundingSubmission, p.cfg.FundingAttempts, lastErr)
}

// availableBalance is the prepaid balance minus reservations held by other
// runs.
func (p *Publisher) availableBalance(ctx context.Context, runID string) (*big.Int, error) {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	balance, err := p.session.Balance(sctx)
	if err != nil {
		return nil, p.timeoutErr(sctx, err)
	}

	available := new(big.Int).Sub(balance, p.reserved.OutstandingExcept(runID))
	if available.Sign() < 0 {
		available.SetInt64(0)
	}
	return available, nil
}

func (p *Publisher) nativeBalance(ctx context.Context) (*big.Int, error) {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	native, err := p.balances.NativeBalance(sctx, p.signer.Address())
	if err != nil {
		return nil, p.timeoutErr(sctx, err)
	}
	return native, nil
}

func (p *Publisher) quote(ctx context.Context, byteLength int) (*big.Int, error) {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	price, err := p.session.QuotePrice(sctx, byteLength)
	if err != nil {
		return nil, p.timeoutErr(sctx, err)
	}
	return price, nil
}

// upload performs the tagged upload and releases the run's reservation once
// the call settles, success or failure.
func (p *Publisher) upload(ctx context.Context, runID string, payload []byte, tags []interfaces.UploadTag) (interfaces.UploadReceipt, error) {
	defer p.reserved.Release(runID)

	sctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	receipt, err := p.session.Upload(sctx, payload, tags)
	if err != nil {
		return interfaces.UploadReceipt{}, p.timeoutErr(sctx, err)
	}
	return receipt, nil
}

func (p *Publisher) verifyMetadata(ctx context.Context, uri string) error {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(sctx, http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrMetadataUnverified, err)
	}

	resp, err := p.fetch.Do(req)
	if err != nil {
		if errors.Is(sctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: metadata fetch: %v", interfaces.ErrStageTimeout, err)
		}
		return fmt.Errorf("%w: %v", interfaces.ErrMetadataUnverified, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: gateway returned %d", interfaces.ErrMetadataUnverified, resp.StatusCode)
	}
	return nil
}

func (p *Publisher) mint(ctx context.Context, metadataURI, name string, royaltyBasisPoints uint16) (common.Address, error) {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	certificate, err := p.minter.CreateCertificate(sctx, metadataURI, name, royaltyBasisPoints)
	if err != nil {
		return common.Address{}, p.timeoutErr(sctx, err)
	}
	return certificate, nil
}

// waitClock sleeps on the injected clock, honoring cancellation.
func (p *Publisher) waitClock(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := p.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// timeoutErr reclassifies failures caused by the stage deadline.
func (p *Publisher) timeoutErr(sctx context.Context, err error) error {
	if err != nil && errors.Is(sctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", interfaces.ErrStageTimeout, err)
	}
	return err
}

func (p *Publisher) acquire(wallet common.Address) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[wallet]; busy {
		return false
	}
	p.inflight[wallet] = struct{}{}
	return true
}

func (p *Publisher) releaseWallet(wallet common.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, wallet)
}

// run is the per-submission transient state. Owned exclusively by the
// invocation that created it.
type run struct {
	id       string
	stage    Stage
	status   string
	warnings []string
	observe  Observer
	log      *slog.Logger
}

// report moves the run to stage and publishes the status, collecting
// warnings for the terminal result.
func (r *run) report(stage Stage, severity Severity, message string) {
	r.stage = stage
	r.status = message
	if severity == SeverityWarning {
		r.warnings = append(r.warnings, message)
	}

	switch severity {
	case SeverityWarning:
		r.log.Warn(message, slog.String("stage", stage.String()))
	case SeverityError:
		r.log.Error(message, slog.String("stage", stage.String()))
	default:
		r.log.Info(message, slog.String("stage", stage.String()))
	}

	if r.observe != nil {
		r.observe(StatusUpdate{
			RunID:    r.id,
			Stage:    stage,
			Severity: severity,
			Message:  message,
		})
	}
}
