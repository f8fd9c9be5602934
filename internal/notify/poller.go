// Package notify polls the notification list and tracks the "new notifications" indicator.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/vidfeed/internal/catalog"
	"github.com/stwalsh4118/vidfeed/internal/logger"
)

const (
	// DefaultPollInterval is how often the list is refreshed, in the foreground or not
	DefaultPollInterval = 30 * time.Second
	// DefaultRecentLimit is how many notifications the bell dropdown shows
	DefaultRecentLimit = 5

	breakerThreshold = 3
	breakerReset     = 2 * time.Minute
)

// ErrPollerStopped is returned when starting a stopped poller
var ErrPollerStopped = errors.New("notification poller is stopped")

// Source lists notifications from the store
type Source interface {
	ListNotifications(ctx context.Context) ([]catalog.Notification, error)
}

// Store persists the count the viewer last acknowledged
type Store interface {
	LastSeenNotificationCount(ctx context.Context) (int, error)
	SetLastSeenNotificationCount(ctx context.Context, count int) error
}

// Options configures a Poller
type Options struct {
	Interval    time.Duration
	RecentLimit int
	Retry       catalog.RetryConfig
}

// Snapshot is the poller state handed to the renderer
type Snapshot struct {
	Count      int                    `json:"count"`
	HasNew     bool                   `json:"has_new"`
	Recent     []catalog.Notification `json:"recent"`
	Loaded     bool                   `json:"loaded"`
	Error      string                 `json:"error,omitempty"`
	LastPolled *time.Time             `json:"last_polled,omitempty"`
}

// Poller refreshes the notification list on a fixed interval.
//
// "New" is decided by count only: once a non-empty list has been seen, a later
// list with more entries than the acknowledged count raises the indicator. A
// deletion followed by an addition leaves the count unchanged and is not flagged.
type Poller struct {
	source  Source
	store   Store
	opts    Options
	breaker *catalog.CircuitBreaker
	log     zerolog.Logger

	ticker   *time.Ticker
	stopChan chan struct{}
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc

	mu         sync.RWMutex
	started    bool
	stopped    bool
	items      []catalog.Notification
	loaded     bool
	lastSeen   int
	hasNew     bool
	lastErr    error
	lastPolled time.Time
}

// NewPoller creates a poller. store may be nil, in which case the acknowledged count lives in memory only.
func NewPoller(source Source, store Store, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = DefaultRecentLimit
	}
	if opts.Retry.Multiplier <= 0 {
		opts.Retry = catalog.DefaultRetryConfig
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		source:   source,
		store:    store,
		opts:     opts,
		breaker:  catalog.NewCircuitBreaker(breakerThreshold, breakerReset),
		log:      logger.Component("notify"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start restores the acknowledged count, polls once, then keeps polling in the background
func (p *Poller) Start() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPollerStopped
	}
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	p.ticker = time.NewTicker(p.opts.Interval)
	p.mu.Unlock()

	p.restore(p.ctx)

	go p.run()

	p.log.Info().
		Dur("interval", p.opts.Interval).
		Int("last_seen", p.LastSeen()).
		Msg("Notification poller started")
	return nil
}

// Stop ends background polling and waits for an in-flight poll to finish
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	p.cancel()
	close(p.stopChan)

	if started {
		<-p.done
		p.ticker.Stop()
	}
	p.log.Info().Msg("Notification poller stopped")
}

func (p *Poller) run() {
	defer close(p.done)

	p.pollAndLog()
	for {
		select {
		case <-p.stopChan:
			return
		case <-p.ticker.C:
			p.pollAndLog()
		}
	}
}

func (p *Poller) pollAndLog() {
	if err := p.Poll(p.ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.log.Warn().Err(err).Msg("Notification poll failed")
	}
}

// Poll fetches the list once, with quiet retries for transient failures. A failed
// poll keeps the previous list.
func (p *Poller) Poll(ctx context.Context) error {
	var items []catalog.Notification
	err := p.breaker.Call(func() error {
		var err error
		items, err = catalog.RetryDo(ctx, p.opts.Retry, func() ([]catalog.Notification, error) {
			return p.source.ListNotifications(ctx)
		})
		return err
	})

	p.mu.Lock()
	p.lastPolled = time.Now().UTC()
	if err != nil {
		p.lastErr = err
		p.mu.Unlock()
		return err
	}
	p.lastErr = nil
	p.items = items
	p.loaded = true
	seeded := p.applyCountLocked(len(items))
	p.mu.Unlock()

	if seeded {
		p.persist(len(items))
	}
	return nil
}

// applyCountLocked updates the indicator for a freshly loaded count (must hold lock).
// It returns true when count became the first acknowledged count and needs storing.
func (p *Poller) applyCountLocked(count int) bool {
	if count == 0 {
		return false
	}
	if p.lastSeen > 0 && count > p.lastSeen && !p.hasNew {
		p.hasNew = true
		p.log.Info().
			Int("count", count).
			Int("last_seen", p.lastSeen).
			Msg("New notifications available")
	}
	if p.lastSeen == 0 {
		p.lastSeen = count
		return true
	}
	return false
}

// MarkSeen acknowledges the current list, clearing the indicator
func (p *Poller) MarkSeen(ctx context.Context) error {
	p.mu.Lock()
	p.hasNew = false
	count := len(p.items)
	p.lastSeen = count
	p.mu.Unlock()

	if p.store == nil {
		return nil
	}
	return p.store.SetLastSeenNotificationCount(ctx, count)
}

// Snapshot returns the current state
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{
		Count:  len(p.items),
		Recent: p.recentLocked(),
		Loaded: p.loaded,
	}
	// The indicator is only shown alongside at least one notification.
	s.HasNew = p.hasNew && len(s.Recent) > 0
	if p.lastErr != nil {
		s.Error = p.lastErr.Error()
	}
	if !p.lastPolled.IsZero() {
		polled := p.lastPolled
		s.LastPolled = &polled
	}
	return s
}

// Recent returns the newest notifications, at most RecentLimit of them
func (p *Poller) Recent() []catalog.Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.recentLocked()
}

// All returns the whole list from the last successful poll
func (p *Poller) All() []catalog.Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]catalog.Notification{}, p.items...)
}

// HasNew reports whether the indicator is raised
func (p *Poller) HasNew() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hasNew
}

// LastSeen returns the acknowledged count
func (p *Poller) LastSeen() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSeen
}

func (p *Poller) recentLocked() []catalog.Notification {
	n := len(p.items)
	if n > p.opts.RecentLimit {
		n = p.opts.RecentLimit
	}
	return append([]catalog.Notification{}, p.items[:n]...)
}

// restore loads the acknowledged count from the store
func (p *Poller) restore(ctx context.Context) {
	if p.store == nil {
		return
	}
	count, err := p.store.LastSeenNotificationCount(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to restore last seen notification count")
		return
	}
	p.mu.Lock()
	p.lastSeen = count
	p.mu.Unlock()
}

// persist stores the acknowledged count, logging failures
func (p *Poller) persist(count int) {
	if p.store == nil {
		return
	}
	if err := p.store.SetLastSeenNotificationCount(p.ctx, count); err != nil {
		p.log.Warn().Err(err).Int("count", count).Msg("Failed to persist last seen notification count")
	}
}
