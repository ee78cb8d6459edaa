package royaltysim

import (
	"log/slog"
	"math/rand"
	"sync"

	"github.com/creatorclaim/publisher/interfaces"
	"github.com/gorilla/websocket"
)

// eventEnvelope is the wire frame sent to stream subscribers.
type eventEnvelope struct {
	Type    string                   `json:"type"`
	Message string                   `json:"message,omitempty"`
	Event   *interfaces.RoyaltyEvent `json:"event,omitempty"`
}

// clientFrame is what subscribers send us.
type clientFrame struct {
	Type          string `json:"type"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

// session is one connected subscriber. The write lock serializes frames
// from the generator and the handler.
type session struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	wallet  string // guarded by hub.mu
}

func (s *session) send(frame eventEnvelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(frame)
}

// hub tracks connected sessions and their registered wallets.
type hub struct {
	log *slog.Logger

	mu       sync.Mutex
	sessions map[*session]struct{}
}

func newHub(log *slog.Logger) *hub {
	return &hub{
		log:      log,
		sessions: make(map[*session]struct{}),
	}
}

func (h *hub) add(conn *websocket.Conn, wallet string) *session {
	s := &session{conn: conn, wallet: wallet}
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *hub) remove(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}

func (h *hub) register(s *session, wallet string) {
	h.mu.Lock()
	s.wallet = wallet
	h.mu.Unlock()
}

// pickWallet returns a random registered wallet, or "" when nobody is
// connected.
func (h *hub) pickWallet() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	wallets := make([]string, 0, len(h.sessions))
	for s := range h.sessions {
		if s.wallet != "" {
			wallets = append(wallets, s.wallet)
		}
	}
	if len(wallets) == 0 {
		return ""
	}
	return wallets[rand.Intn(len(wallets))]
}

// deliver sends the event to every session registered for its recipient.
func (h *hub) deliver(event interfaces.RoyaltyEvent) {
	h.mu.Lock()
	recipients := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		if s.wallet == event.RecipientWallet {
			recipients = append(recipients, s)
		}
	}
	h.mu.Unlock()

	frame := eventEnvelope{Type: "royalty_event", Event: &event}
	for _, s := range recipients {
		if err := s.send(frame); err != nil {
			h.log.Debug("Event delivery failed", slog.String("err", err.Error()))
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.sessions {
		s.conn.Close()
	}
}
