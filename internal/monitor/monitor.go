package monitor

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reedfamily/gamewatch/internal/notify"
	"github.com/reedfamily/gamewatch/internal/source"
	"github.com/reedfamily/gamewatch/internal/state"
)

// Notifier is the dispatch surface the monitor writes through.
// notify.Dispatcher is the production implementation.
type Notifier interface {
	PostBan(rec source.BanRecord, channelID string) error
	PostOrEditStatus(s *source.PerformanceSample, channelID, prevID string) (string, error)
	UpdatePresence(players, maxPlayers int) error
}

// Monitor runs the three periodic reconciliation tasks: metrics refresh,
// ban sync, and presence refresh. Each task skips a tick entirely when its
// previous tick is still running, so a slow source never piles up work.
type Monitor struct {
	store      *state.Store
	perf       source.PerformanceReader
	bans       source.BanReader
	notify     Notifier
	interval   time.Duration
	maxPlayers int

	metricsRunning  atomic.Bool
	banRunning      atomic.Bool
	presenceRunning atomic.Bool

	// Ban sync stops entirely after a credential rejection until the
	// credentials are reconfigured.
	banDisabled atomic.Bool

	banMu   sync.Mutex
	banWait time.Duration

	mu        sync.RWMutex
	latest    *source.PerformanceSample
	listeners []chan *source.PerformanceSample

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(store *state.Store, perf source.PerformanceReader, bans source.BanReader, n Notifier, interval time.Duration, maxPlayers int) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Monitor{
		store:      store,
		perf:       perf,
		bans:       bans,
		notify:     n,
		interval:   interval,
		maxPlayers: maxPlayers,
		banWait:    interval,
	}
}

func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(3)

	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		// Run immediately on start
		m.metricsTick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.metricsTick(ctx)
			}
		}
	}()

	go func() {
		defer m.wg.Done()
		m.banSyncTick(ctx)
		for {
			// The wait is re-read each round; rate limiting stretches it.
			m.banMu.Lock()
			wait := m.banWait
			m.banMu.Unlock()

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				m.banSyncTick(ctx)
			}
		}
	}()

	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.presenceTick(ctx)
			}
		}
	}()

	log.Printf("monitor: started (interval %s)", m.interval)
}

// Stop cancels the task loops and waits up to grace for any in-flight tick
// to finish its current commit.
func (m *Monitor) Stop(grace time.Duration) {
	if m.cancel != nil {
		m.cancel()
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		log.Printf("monitor: shutdown grace period expired with ticks still running")
	}
}

// metricsTick reads one performance sample and renders it into the status
// message. Adapter failures skip the tick; nothing stale is ever invented.
func (m *Monitor) metricsTick(ctx context.Context) {
	if !m.metricsRunning.CompareAndSwap(false, true) {
		log.Printf("monitor: metrics tick still running, skipping")
		return
	}
	defer m.metricsRunning.Store(false)

	cfg := m.store.Get()

	sample, err := m.perf.ReadPerformance(ctx)
	if err != nil {
		log.Printf("monitor: metrics: %v", err)
		return
	}
	m.setLatest(sample)

	newID, err := m.notify.PostOrEditStatus(sample, cfg.FPSChannel, cfg.LastMessageID)
	if err != nil {
		if !errors.Is(err, notify.ErrChannelUnset) {
			log.Printf("monitor: status dispatch: %v", err)
		}
		return
	}

	if newID != cfg.LastMessageID {
		if _, err := m.store.Mutate(func(c *state.Config) { c.LastMessageID = newID }); err != nil {
			log.Printf("monitor: commit status message id: %v", err)
		}
	}
}

// banSyncTick reconciles the remote ban list against the posted-ban set.
// New bans are dispatched then recorded one at a time, in source order, so
// a crash mid-batch can duplicate an announcement but never drop one.
func (m *Monitor) banSyncTick(ctx context.Context) {
	if !m.banRunning.CompareAndSwap(false, true) {
		log.Printf("monitor: ban sync tick still running, skipping")
		return
	}
	defer m.banRunning.Store(false)

	if m.banDisabled.Load() {
		return
	}

	cfg := m.store.Get()
	if cfg.BattlemetricsToken == "" || cfg.BattlemetricsServerID == "" {
		// Not configured yet; stay quiet until /set-battlemetrics.
		return
	}

	records, err := m.bans.ReadBans(ctx, cfg.BattlemetricsToken, cfg.BattlemetricsServerID)
	switch {
	case errors.Is(err, source.ErrAuth):
		m.banDisabled.Store(true)
		log.Printf("monitor: ban sync disabled, credentials rejected: %v", err)
		return
	case errors.Is(err, source.ErrRateLimited):
		m.extendBanWait()
		return
	case err != nil:
		log.Printf("monitor: ban sync: %v", err)
		return
	}
	m.resetBanWait()

	for _, rec := range records {
		if cfg.HasPostedBan(rec.ID) {
			continue
		}
		if err := m.notify.PostBan(rec, cfg.BansChannel); err != nil {
			if !errors.Is(err, notify.ErrChannelUnset) {
				log.Printf("monitor: ban dispatch %s: %v", rec.ID, err)
			}
			// Stop the batch: the failed record and everything after it
			// are retried next tick, in order.
			return
		}
		_, err := m.store.Mutate(func(c *state.Config) {
			if !c.HasPostedBan(rec.ID) {
				c.PostedBans = append(c.PostedBans, rec.ID)
			}
		})
		if err != nil {
			log.Printf("monitor: commit posted ban %s: %v", rec.ID, err)
			return
		}
	}
}

// presenceTick pushes the player count from the most recent sample. It
// never queries the source itself; a missing sample leaves presence unset.
func (m *Monitor) presenceTick(ctx context.Context) {
	if !m.presenceRunning.CompareAndSwap(false, true) {
		return
	}
	defer m.presenceRunning.Store(false)

	latest := m.Latest()
	if latest == nil {
		return
	}
	if err := m.notify.UpdatePresence(latest.Players, m.maxPlayers); err != nil {
		log.Printf("monitor: presence: %v", err)
	}
}

// ResetBanSource re-arms ban sync after credentials change and clears any
// rate-limit backoff.
func (m *Monitor) ResetBanSource() {
	m.banDisabled.Store(false)
	m.resetBanWait()
}

func (m *Monitor) extendBanWait() {
	m.banMu.Lock()
	defer m.banMu.Unlock()
	m.banWait *= 2
	if limit := 16 * m.interval; m.banWait > limit {
		m.banWait = limit
	}
	log.Printf("monitor: ban source rate limited, next sync in %s", m.banWait)
}

func (m *Monitor) resetBanWait() {
	m.banMu.Lock()
	defer m.banMu.Unlock()
	m.banWait = m.interval
}

func (m *Monitor) setLatest(s *source.PerformanceSample) {
	m.mu.Lock()
	m.latest = s
	listeners := make([]chan *source.PerformanceSample, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- s:
		default:
			// Drop if listener is slow
		}
	}
}

// Latest returns the most recent successfully read sample, or nil.
func (m *Monitor) Latest() *source.PerformanceSample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Subscribe returns a channel receiving each new sample.
func (m *Monitor) Subscribe() chan *source.PerformanceSample {
	ch := make(chan *source.PerformanceSample, 1)
	m.mu.Lock()
	m.listeners = append(m.listeners, ch)
	m.mu.Unlock()
	return ch
}

func (m *Monitor) Unsubscribe(ch chan *source.PerformanceSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.listeners {
		if l == ch {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}
