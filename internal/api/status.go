package api

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/reedfamily/gamewatch/internal/source"
	"github.com/reedfamily/gamewatch/internal/state"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SampleSource is the slice of the monitor the handlers read from.
type SampleSource interface {
	Latest() *source.PerformanceSample
	Subscribe() chan *source.PerformanceSample
	Unsubscribe(ch chan *source.PerformanceSample)
}

type StatusHandler struct {
	samples SampleSource
	store   *state.Store
}

func NewStatusHandler(samples SampleSource, store *state.Store) *StatusHandler {
	return &StatusHandler{samples: samples, store: store}
}

// Latest returns the most recent performance sample.
func (h *StatusHandler) Latest(w http.ResponseWriter, r *http.Request) {
	s := h.samples.Latest()
	if s == nil {
		writeError(w, http.StatusNotFound, "no sample available yet")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Config returns a redacted view of the bot's bindings. Credentials are
// reported only as present/absent.
func (h *StatusHandler) Config(w http.ResponseWriter, r *http.Request) {
	cfg := h.store.Get()
	writeJSON(w, http.StatusOK, map[string]any{
		"fps_channel":          cfg.FPSChannel,
		"bans_channel":         cfg.BansChannel,
		"owner_set":            cfg.OwnerID != "",
		"admin_role":           cfg.AdminRole,
		"service_name":         cfg.ServiceName,
		"posted_bans":          len(cfg.PostedBans),
		"battlemetrics_set":    cfg.BattlemetricsToken != "" && cfg.BattlemetricsServerID != "",
		"battlemetrics_server": cfg.BattlemetricsServerID,
	})
}

// Live pushes samples via WebSocket every time the monitor produces one.
func (h *StatusHandler) Live(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("api: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := h.samples.Subscribe()
	defer h.samples.Unsubscribe(ch)

	// Send latest immediately if available
	if latest := h.samples.Latest(); latest != nil {
		if err := conn.WriteJSON(latest); err != nil {
			return
		}
	}

	// Read from client to detect disconnect
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(s); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
