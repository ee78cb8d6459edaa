package royaltysim

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
)

// DefaultEventInterval is how often the generator tries to emit an event.
const DefaultEventInterval = 10 * time.Second

type Config struct {
	ListenAddr    string
	EventInterval time.Duration
	Log           *slog.Logger

	// Clock drives the generator; tests inject a mock.
	Clock clock.Clock

	DrainDuration            time.Duration
	GracefulShutdownDuration time.Duration
}

type Server struct {
	cfg     *Config
	isReady atomic.Bool
	log     *slog.Logger
	clock   clock.Clock

	srv      *http.Server
	hub      *hub
	gen      *generator
	upgrader websocket.Upgrader
}

func New(cfg *Config) *Server {
	if cfg.EventInterval == 0 {
		cfg.EventInterval = DefaultEventInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	srv := &Server{
		cfg:   cfg,
		log:   cfg.Log,
		clock: cfg.Clock,
		hub:   newHub(cfg.Log),
		upgrader: websocket.Upgrader{
			// Development tool; browsers on any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	srv.gen = newGenerator(srv.hub, cfg.Clock, cfg.EventInterval, cfg.Log)
	srv.isReady.Store(true)

	srv.srv = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.getRouter(),
	}
	return srv
}

func (srv *Server) getRouter() http.Handler {
	mux := chi.NewRouter()

	mux.Get("/", srv.handleStream)

	mux.With(srv.httpLogger).Get("/livez", srv.handleLivenessCheck)
	mux.With(srv.httpLogger).Get("/readyz", srv.handleReadinessCheck)
	mux.With(srv.httpLogger).Get("/drain", srv.handleDrain)
	mux.With(srv.httpLogger).Get("/undrain", srv.handleUndrain)

	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

// handleStream upgrades the connection and serves the event stream
// protocol until the subscriber goes away.
func (srv *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Warn("Websocket upgrade failed", slog.String("err", err.Error()))
		return
	}

	wallet := r.URL.Query().Get("wallet")
	sess := srv.hub.add(conn, wallet)
	defer func() {
		srv.hub.remove(sess)
		conn.Close()
	}()

	srv.log.Info("Stream subscriber connected", slog.String("wallet", wallet))
	if err := sess.send(eventEnvelope{Type: "connection", Message: "Connected to royalty event stream"}); err != nil {
		return
	}

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			srv.log.Info("Stream subscriber disconnected", slog.String("wallet", wallet))
			return
		}

		switch frame.Type {
		case "register_wallet":
			srv.hub.register(sess, frame.WalletAddress)
			srv.log.Info("Wallet registered for events", slog.String("wallet", frame.WalletAddress))
		case "ping":
			// Keep-alive, nothing to do.
		default:
			srv.log.Debug("Ignoring subscriber frame", slog.String("type", frame.Type))
		}
	}
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"alive"}`))
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Swap(false) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"already draining"}`))
		return
	}

	srv.log.Info("Server marked as not ready")

	go func() {
		time.Sleep(srv.cfg.DrainDuration)
		srv.log.Info("Drain period completed")
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"draining"}`))
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if srv.isReady.Swap(true) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"already ready"}`))
		return
	}

	srv.log.Info("Server marked as ready")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (srv *Server) RunInBackground() {
	go srv.gen.run()

	go func() {
		srv.log.Info("Starting royalty event server", slog.String("listenAddress", srv.cfg.ListenAddr))
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", slog.String("err", err.Error()))
		}
	}()
}

func (srv *Server) Shutdown() {
	srv.gen.shutdown()
	srv.hub.closeAll()

	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", slog.String("err", err.Error()))
	} else {
		srv.log.Info("HTTP server gracefully stopped")
	}
}
