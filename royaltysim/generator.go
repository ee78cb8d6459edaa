package royaltysim

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/creatorclaim/publisher/interfaces"
	"github.com/google/uuid"
)

var eventSources = []string{
	"Marketplace Sale",
	"Secondary Sale",
	"Streaming Platform",
	"Print License",
	"Gallery Exhibition",
}

var certificateTitles = []string{
	"Sunset Over Mountains",
	"Neon City Nights",
	"Abstract Flow #7",
	"Portrait of a Stranger",
	"Tidal Patterns",
}

// generator emits a synthetic royalty event for a random registered
// wallet on every tick.
type generator struct {
	hub      *hub
	clock    clock.Clock
	interval time.Duration
	log      *slog.Logger

	stop chan struct{}
	done chan struct{}
}

func newGenerator(hub *hub, clk clock.Clock, interval time.Duration, log *slog.Logger) *generator {
	return &generator{
		hub:      hub,
		clock:    clk,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (g *generator) run() {
	defer close(g.done)

	ticker := g.clock.Ticker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.emit()
		case <-g.stop:
			return
		}
	}
}

func (g *generator) emit() {
	wallet := g.hub.pickWallet()
	if wallet == "" {
		return
	}

	event := synthesizeEvent(wallet, g.clock.Now())
	g.log.Info("Emitting royalty event",
		slog.String("id", event.ID),
		slog.String("wallet", wallet),
		slog.String("source", event.Source))
	g.hub.deliver(event)
}

func (g *generator) shutdown() {
	close(g.stop)
	<-g.done
}

func synthesizeEvent(wallet string, now time.Time) interfaces.RoyaltyEvent {
	return interfaces.RoyaltyEvent{
		ID:               uuid.NewString(),
		Timestamp:        now.UTC().Format(time.RFC3339),
		Amount:           0.001 + rand.Float64()*0.099,
		Source:           eventSources[rand.Intn(len(eventSources))],
		CertificateID:    fmt.Sprintf("0x%032x", rand.Uint64()),
		CertificateTitle: certificateTitles[rand.Intn(len(certificateTitles))],
		RecipientWallet:  wallet,
	}
}
