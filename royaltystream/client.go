package royaltystream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/creatorclaim/publisher/interfaces"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
)

const (
	// DefaultPingInterval is the keep-alive cadence the royalty service
	// expects.
	DefaultPingInterval = 30 * time.Second

	// DefaultFeedCap bounds the in-memory event feed; the service remains
	// the authoritative history.
	DefaultFeedCap = 200

	// DefaultReconnectMaxInterval caps the supervised reconnect backoff.
	DefaultReconnectMaxInterval = 30 * time.Second
)

// envelope is the wire frame for every service message.
type envelope struct {
	Type    string                   `json:"type"`
	Message string                   `json:"message,omitempty"`
	Event   *interfaces.RoyaltyEvent `json:"event,omitempty"`
}

// registration is sent once per connection, immediately after dialing.
type registration struct {
	Type          string `json:"type"`
	WalletAddress string `json:"walletAddress"`
}

// Config holds the stream client settings. Zero values take the defaults
// above.
type Config struct {
	// Endpoint is the websocket URL of the royalty service, e.g.
	// ws://localhost:3001.
	Endpoint string

	PingInterval         time.Duration
	FeedCap              int
	ReconnectMaxInterval time.Duration

	// Clock drives the ping and reconnect timers. Defaults to the wall
	// clock; tests inject a mock.
	Clock clock.Clock

	Dialer *websocket.Dialer

	// OnEvent, when set, is invoked for every royalty event after it has
	// been added to the feed. Called from the reader goroutine.
	OnEvent func(interfaces.RoyaltyEvent)
}

func (c Config) withDefaults() Config {
	if c.PingInterval == 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.FeedCap == 0 {
		c.FeedCap = DefaultFeedCap
	}
	if c.ReconnectMaxInterval == 0 {
		c.ReconnectMaxInterval = DefaultReconnectMaxInterval
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	return c
}

// Client is the supervised royalty stream consumer. Safe for concurrent
// use.
type Client struct {
	cfg       Config
	clock     clock.Clock
	log       *slog.Logger
	connected *atomic.Bool

	// transitionMu serializes identity transitions end to end, so a
	// teardown always completes before the next identity's supervisor
	// starts.
	transitionMu sync.Mutex

	mu     sync.Mutex
	wallet string
	feed   []interfaces.RoyaltyEvent
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a stream client. No connection is made until a wallet
// identity is set.
func NewClient(cfg Config, log *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:       cfg,
		clock:     cfg.Clock,
		log:       log,
		connected: atomic.NewBool(false),
	}
}

// SetWallet switches the client to a new wallet identity. The current
// connection is closed and the feed cleared; a non-empty wallet starts a
// new supervised connection, an empty one leaves the client idle.
func (c *Client) SetWallet(wallet string) {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	c.mu.Lock()
	if wallet == c.wallet {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.cancel = nil
	c.wallet = wallet
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		c.wg.Wait()
	}
	c.connected.Store(false)

	// Clear only after the old reader has fully stopped; events it was
	// still handling must not survive into the new identity's view.
	c.mu.Lock()
	c.feed = nil
	c.mu.Unlock()

	if wallet == "" {
		return
	}

	ctx, newCancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = newCancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.supervise(ctx, wallet)
}

// Close disconnects and clears the feed.
func (c *Client) Close() {
	c.SetWallet("")
}

// Connected reports whether a websocket connection is currently open.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Events returns a snapshot of the feed, newest first.
func (c *Client) Events() []interfaces.RoyaltyEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interfaces.RoyaltyEvent, len(c.feed))
	copy(out, c.feed)
	return out
}

// supervise owns the connection for one wallet identity: dial, serve,
// and reconnect with backoff until the identity changes.
func (c *Client) supervise(ctx context.Context, wallet string) {
	defer c.wg.Done()

	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = c.cfg.ReconnectMaxInterval
	policy.MaxElapsedTime = 0

	log := c.log.With(slog.String("wallet", wallet))

	for {
		conn, err := c.dial(ctx, wallet)
		if err == nil {
			policy.Reset()
			c.connected.Store(true)
			log.Info("Royalty stream connected")
			c.serve(ctx, conn, log)
			c.connected.Store(false)
		} else if ctx.Err() == nil {
			log.Warn("Royalty stream dial failed", slog.String("err", err.Error()))
		}

		if ctx.Err() != nil {
			return
		}

		wait := policy.NextBackOff()
		log.Info("Reconnecting to royalty stream", slog.Duration("in", wait))
		if !c.sleep(ctx, wait) {
			return
		}
	}
}

// dial opens the websocket and registers the wallet for event filtering.
func (c *Client) dial(ctx context.Context, wallet string) (*websocket.Conn, error) {
	endpoint, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid stream endpoint: %w", err)
	}
	query := endpoint.Query()
	query.Set("wallet", wallet)
	endpoint.RawQuery = query.Encode()

	conn, resp, err := c.cfg.Dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	if err := conn.WriteJSON(registration{Type: "register_wallet", WalletAddress: wallet}); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// serve runs the reader and keep-alive loops until the connection drops
// or the identity is torn down.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn, log *slog.Logger) {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)

	// Unblock the reader when the identity goes away.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go c.keepAlive(conn, done, log)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("Royalty stream read failed", slog.String("err", err.Error()))
			}
			return
		}
		c.handle(payload, log)
	}
}

func (c *Client) keepAlive(conn *websocket.Conn, done <-chan struct{}, log *slog.Logger) {
	ticker := c.clock.Ticker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteJSON(envelope{Type: "ping"}); err != nil {
				log.Debug("Keep-alive ping failed", slog.String("err", err.Error()))
				return
			}
		case <-done:
			return
		}
	}
}

func (c *Client) handle(payload []byte, log *slog.Logger) {
	var msg envelope
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Warn("Malformed stream message", slog.String("err", err.Error()))
		return
	}

	switch msg.Type {
	case "royalty_event":
		if msg.Event == nil {
			log.Warn("Royalty event frame without event payload")
			return
		}
		c.append(*msg.Event)
		log.Info("Royalty event received",
			slog.String("id", msg.Event.ID),
			slog.String("certificate", msg.Event.CertificateID))
		if c.cfg.OnEvent != nil {
			c.cfg.OnEvent(*msg.Event)
		}
	case "connection":
		log.Info("Stream connection message", slog.String("message", msg.Message))
	default:
		log.Debug("Ignoring stream message", slog.String("type", msg.Type))
	}
}

// append prepends the event and evicts the oldest past the cap.
func (c *Client) append(event interfaces.RoyaltyEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feed = append([]interfaces.RoyaltyEvent{event}, c.feed...)
	if len(c.feed) > c.cfg.FeedCap {
		c.feed = c.feed[:c.cfg.FeedCap]
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	timer := c.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
