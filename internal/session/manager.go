package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/vidfeed/internal/catalog"
	"github.com/stwalsh4118/vidfeed/internal/debounce"
	"github.com/stwalsh4118/vidfeed/internal/feed"
	"github.com/stwalsh4118/vidfeed/internal/logger"
	"github.com/stwalsh4118/vidfeed/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	defaultIdleTimeout     = 30 * time.Minute
	defaultCleanupInterval = time.Minute
	mountLoadTimeout       = 10 * time.Second
)

// Session manager errors
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrManagerStopped    = errors.New("session manager is stopped")
	ErrUnsupportedLocale = errors.New("unsupported locale")
)

// IsNotFound checks if the error is a session not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// Catalog is the store access a session needs at mount
type Catalog interface {
	feed.Fetcher
	ListCategories(ctx context.Context) ([]catalog.Category, error)
}

// BannerLoader refreshes the shared banner carousel
type BannerLoader interface {
	Refresh(ctx context.Context) error
}

// FilterStore remembers the last applied filter between sessions
type FilterStore interface {
	Get(ctx context.Context) (*models.ViewerState, error)
	SaveFilter(ctx context.Context, search string, categories []string) error
}

// Config configures a Manager
type Config struct {
	PageSize              int
	SearchDebounce        time.Duration
	URLSyncDebounce       time.Duration
	ScrollThreshold       int
	ScrollEventsPerSecond float64
	IdleTimeout           time.Duration
	CleanupInterval       time.Duration
	Locales               []string
}

// CreateOptions describes a new session
type CreateOptions struct {
	Locale string `json:"locale"`

	// Location is the renderer's current route; defaults to the locale home route
	Location string `json:"location"`

	// Restore starts from the filter saved by the previous session
	Restore bool `json:"restore"`
}

// Manager keys sessions by id and reaps the ones the renderer abandoned
type Manager struct {
	catalog Catalog
	banners BannerLoader
	store   FilterStore
	cfg     Config
	log     zerolog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	stopped  bool

	cleanupTicker *time.Ticker
	stopChan      chan struct{}
	cleanupDone   chan struct{}
}

// NewManager creates a session manager. banners and store may be nil.
func NewManager(cat Catalog, banners BannerLoader, store FilterStore, cfg Config) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
	if len(cfg.Locales) == 0 {
		cfg.Locales = models.SupportedLocales
	}
	return &Manager{
		catalog:     cat,
		banners:     banners,
		store:       store,
		cfg:         cfg,
		log:         logger.Component("session"),
		sessions:    make(map[uuid.UUID]*Session),
		stopChan:    make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Start begins reaping idle sessions
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrManagerStopped
	}
	if m.cleanupTicker != nil {
		return nil
	}
	m.cleanupTicker = time.NewTicker(m.cfg.CleanupInterval)
	go m.runCleanupLoop()

	m.log.Info().
		Dur("idle_timeout", m.cfg.IdleTimeout).
		Dur("cleanup_interval", m.cfg.CleanupInterval).
		Msg("Session manager started")
	return nil
}

// Stop closes every session and stops the cleanup loop
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[uuid.UUID]*Session)
	ticker := m.cleanupTicker
	m.mu.Unlock()

	close(m.stopChan)
	if ticker != nil {
		<-m.cleanupDone
		ticker.Stop()
	}

	for _, s := range sessions {
		s.Close()
	}
	m.log.Info().Int("closed_sessions", len(sessions)).Msg("Session manager stopped")
}

// Create mounts a new session: loads categories and banners concurrently, then
// starts the first feed fetch. Load failures are reported on the session, not returned.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Session, error) {
	if opts.Locale == "" {
		opts.Locale = models.LocaleEnglish
	}
	if !m.supportsLocale(opts.Locale) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLocale, opts.Locale)
	}

	home := "/" + opts.Locale
	nav := newMemoryNavigator(home)
	if opts.Location != "" {
		if err := nav.set(opts.Location); err != nil {
			return nil, fmt.Errorf("invalid location %q: %w", opts.Location, err)
		}
	}

	feedOpts := feed.Options{
		PageSize:       m.cfg.PageSize,
		SearchDebounce: m.cfg.SearchDebounce,
	}
	if opts.Restore {
		m.restoreFilter(ctx, &feedOpts)
	}

	id := uuid.New()
	log := m.log.With().Str("session_id", id.String()).Logger()
	controller := feed.NewController(m.catalog, feedOpts)
	s := &Session{
		ID:         id,
		Locale:     opts.Locale,
		CreatedAt:  time.Now().UTC(),
		controller: controller,
		trigger:    feed.NewTrigger(controller, m.cfg.ScrollThreshold, m.cfg.ScrollEventsPerSecond),
		header:     feed.NewURLSync(nav, opts.Locale, m.cfg.URLSyncDebounce),
		nav:        nav,
		saveTimer:  debounce.New(),
		store:      m.store,
		log:        log,
		lastActive: time.Now(),
	}
	nav.pushed = func(target string) {
		log.Debug().Str("location", target).Msg("Header search pushed to route")
	}
	s.header.SyncFromLocation()

	if err := m.mount(ctx, s); err != nil {
		log.Warn().Err(err).Msg("Session mounted without categories")
	}

	if err := controller.Start(); err != nil {
		s.Close()
		return nil, err
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		s.Close()
		return nil, ErrManagerStopped
	}
	m.sessions[id] = s
	total := len(m.sessions)
	m.mu.Unlock()

	log.Info().
		Str("locale", s.Locale).
		Int("categories", len(s.categories)).
		Int("active_sessions", total).
		Msg("Session created")
	return s, nil
}

// mount loads the one-time data of a new session in parallel. A category failure
// cancels the banner refresh and is returned; it is also kept on the session.
func (m *Manager) mount(ctx context.Context, s *Session) error {
	ctx, cancel := context.WithTimeout(ctx, mountLoadTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		categories, err := m.catalog.ListCategories(gctx)
		s.mu.Lock()
		s.categories, s.categoriesErr = categories, err
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("failed to load categories: %w", err)
		}
		return nil
	})
	if m.banners != nil {
		// Banner failures stay in the carousel and must not cancel the categories load.
		g.Go(func() error {
			if err := m.banners.Refresh(gctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn().Err(err).Msg("Failed to refresh banners")
			}
			return nil
		})
	}
	return g.Wait()
}

// restoreFilter seeds the feed options from the saved viewer state
func (m *Manager) restoreFilter(ctx context.Context, opts *feed.Options) {
	if m.store == nil {
		return
	}
	state, err := m.store.Get(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("Failed to restore feed filter")
		return
	}
	opts.InitialSearch = state.LastSearch
	opts.InitialCategories = state.LastCategories
}

func (m *Manager) supportsLocale(locale string) bool {
	for _, l := range m.cfg.Locales {
		if l == locale {
			return true
		}
	}
	return false
}

// Get returns the session for id
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close removes and closes the session for id
func (m *Manager) Close(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	s.log.Info().Msg("Session closed")
	return nil
}

// Count returns the number of open sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// runCleanupLoop runs periodic reaping of idle sessions
func (m *Manager) runCleanupLoop() {
	defer close(m.cleanupDone)

	for {
		select {
		case <-m.stopChan:
			return
		case <-m.cleanupTicker.C:
			m.reapIdle(time.Now())
		}
	}
}

// reapIdle closes sessions untouched for longer than the idle timeout
func (m *Manager) reapIdle(now time.Time) int {
	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if now.Sub(s.LastActive()) > m.cfg.IdleTimeout {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
		s.log.Info().Msg("Idle session reaped")
	}
	return len(idle)
}
