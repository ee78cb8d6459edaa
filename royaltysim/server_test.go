package royaltysim

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, string, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	srv := New(&Config{
		EventInterval: time.Second,
		Log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:         clk,
	})
	go srv.gen.run()
	t.Cleanup(srv.gen.shutdown)

	ts := httptest.NewServer(srv.getRouter())
	t.Cleanup(ts.Close)
	return srv, ts.URL, clk
}

func dialStream(t *testing.T, baseURL, wallet string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/?wallet=" + wallet
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) eventEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame eventEnvelope
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestServer_ConnectionGreeting(t *testing.T) {
	_, baseURL, _ := newTestServer(t)
	conn := dialStream(t, baseURL, "0xabc")

	greeting := readFrame(t, conn)
	assert.Equal(t, "connection", greeting.Type)
	assert.Equal(t, "Connected to royalty event stream", greeting.Message)
}

func TestServer_EventsDeliveredToRegisteredWallet(t *testing.T) {
	_, baseURL, clk := newTestServer(t)
	conn := dialStream(t, baseURL, "0xabc")
	readFrame(t, conn) // greeting

	require.NoError(t, conn.WriteJSON(clientFrame{Type: "register_wallet", WalletAddress: "0xabc"}))

	// Give the server a moment to process the registration, then fire
	// generator ticks until a frame arrives.
	deadline := time.Now().Add(5 * time.Second)
	frames := make(chan eventEnvelope, 1)
	go func() {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var frame eventEnvelope
		if err := conn.ReadJSON(&frame); err == nil {
			frames <- frame
		}
	}()

	for {
		select {
		case frame := <-frames:
			assert.Equal(t, "royalty_event", frame.Type)
			require.NotNil(t, frame.Event)
			assert.Equal(t, "0xabc", frame.Event.RecipientWallet)
			assert.NotEmpty(t, frame.Event.ID)
			assert.NotEmpty(t, frame.Event.Source)
			assert.Greater(t, frame.Event.Amount, 0.0)
			return
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("no royalty event delivered")
		}
		clk.Add(time.Second)
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_PingFramesIgnored(t *testing.T) {
	_, baseURL, _ := newTestServer(t)
	conn := dialStream(t, baseURL, "0xabc")
	readFrame(t, conn)

	// Pings must not break the connection.
	require.NoError(t, conn.WriteJSON(clientFrame{Type: "ping"}))
	require.NoError(t, conn.WriteJSON(clientFrame{Type: "register_wallet", WalletAddress: "0xabc"}))
	require.NoError(t, conn.WriteJSON(clientFrame{Type: "ping"}))
}

func TestServer_HealthEndpoints(t *testing.T) {
	srv, baseURL, _ := newTestServer(t)

	resp, err := http.Get(baseURL + "/livez")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(baseURL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(baseURL + "/drain")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, srv.isReady.Load())

	resp, err = http.Get(baseURL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(baseURL + "/undrain")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, srv.isReady.Load())
}

func TestHub_PickWalletSkipsUnregistered(t *testing.T) {
	h := newHub(slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Empty(t, h.pickWallet())

	s := h.add(nil, "")
	assert.Empty(t, h.pickWallet(), "sessions without a registered wallet are not eligible")

	h.register(s, "0xabc")
	assert.Equal(t, "0xabc", h.pickWallet())

	h.remove(s)
	assert.Empty(t, h.pickWallet())
}
