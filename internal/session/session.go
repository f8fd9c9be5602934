// Package session owns the per-viewer feed state: one feed controller, its scroll
// trigger and the header URL sync for each connected renderer.
package session

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/vidfeed/internal/catalog"
	"github.com/stwalsh4118/vidfeed/internal/debounce"
	"github.com/stwalsh4118/vidfeed/internal/feed"
)

// filterSaveDelay is the quiet period before the filter is written to the viewer state
const filterSaveDelay = time.Second

// View is the session state handed to the renderer
type View struct {
	ID              uuid.UUID          `json:"id"`
	Locale          string             `json:"locale"`
	Location        string             `json:"location"`
	HeaderSearch    string             `json:"header_search"`
	Feed            feed.View          `json:"feed"`
	Categories      []catalog.Category `json:"categories"`
	CategoriesError string             `json:"categories_error,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	LastActive      time.Time          `json:"last_active"`
}

// Session is one viewer's feed
type Session struct {
	ID        uuid.UUID
	Locale    string
	CreatedAt time.Time

	controller *feed.Controller
	trigger    *feed.Trigger
	header     *feed.URLSync
	nav        *memoryNavigator
	saveTimer  *debounce.Timer
	store      FilterStore
	log        zerolog.Logger

	mu            sync.RWMutex
	categories    []catalog.Category
	categoriesErr error
	lastActive    time.Time
	closed        bool
}

// Controller returns the session's feed controller
func (s *Session) Controller() *feed.Controller {
	return s.controller
}

// View returns the current session state
func (s *Session) View() View {
	s.mu.RLock()
	v := View{
		ID:         s.ID,
		Locale:     s.Locale,
		Categories: append([]catalog.Category{}, s.categories...),
		CreatedAt:  s.CreatedAt,
		LastActive: s.lastActive,
	}
	if s.categoriesErr != nil {
		v.CategoriesError = s.categoriesErr.Error()
	}
	s.mu.RUnlock()

	v.Location = s.nav.String()
	v.HeaderSearch = s.header.SearchText()
	v.Feed = s.controller.View()
	return v
}

// SetSearch echoes the feed search text and debounces the query change
func (s *Session) SetSearch(text string) {
	s.touch()
	s.controller.SetSearchText(text)
	s.scheduleSave()
}

// ToggleCategory flips one category filter
func (s *Session) ToggleCategory(id string) {
	s.touch()
	s.controller.ToggleCategory(id)
	s.scheduleSave()
}

// FetchNextPage asks for the next page; false means the controller refused
func (s *Session) FetchNextPage() bool {
	s.touch()
	return s.controller.FetchNextPage()
}

// Retry re-issues the failed request
func (s *Session) Retry() bool {
	s.touch()
	return s.controller.Retry()
}

// Scroll reports the distance from the end of the list to the scroll trigger
func (s *Session) Scroll(distanceFromEnd int) bool {
	s.touch()
	return s.trigger.Observe(distanceFromEnd)
}

// SetHeaderSearch updates the header search box
func (s *Session) SetHeaderSearch(text string) {
	s.touch()
	s.header.SetSearchText(text)
}

// Navigate records a route change made by the renderer
func (s *Session) Navigate(target string) error {
	s.touch()
	if err := s.nav.set(target); err != nil {
		return err
	}
	s.header.SyncFromLocation()
	return nil
}

// LastActive returns when the renderer last touched the session
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// Close cancels pending timers and in-flight requests and saves the filter
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.saveTimer.Stop()
	s.header.Stop()
	s.controller.Close()
	s.saveFilter()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) scheduleSave() {
	if s.store == nil {
		return
	}
	s.saveTimer.Schedule(filterSaveDelay, s.saveFilter)
}

// saveFilter writes the applied filter, not the half-typed search text
func (s *Session) saveFilter() {
	if s.store == nil {
		return
	}
	key := s.controller.Key()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.SaveFilter(ctx, key.Search(), key.CategoryIDs()); err != nil {
		s.log.Warn().Err(err).Str("session_id", s.ID.String()).Msg("Failed to save feed filter")
	}
}

// memoryNavigator is the server-side mirror of the renderer's route
type memoryNavigator struct {
	mu     sync.RWMutex
	loc    feed.Location
	pushed func(target string)
}

func newMemoryNavigator(path string) *memoryNavigator {
	return &memoryNavigator{loc: feed.Location{Path: path, Query: url.Values{}}}
}

// Location implements feed.Navigator
func (n *memoryNavigator) Location() feed.Location {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return feed.Location{Path: n.loc.Path, Query: cloneValues(n.loc.Query)}
}

// Push implements feed.Navigator
func (n *memoryNavigator) Push(target string) {
	if err := n.set(target); err != nil {
		return
	}
	if n.pushed != nil {
		n.pushed(target)
	}
}

func (n *memoryNavigator) set(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.loc = feed.Location{Path: u.Path, Query: u.Query()}
	n.mu.Unlock()
	return nil
}

func (n *memoryNavigator) String() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if encoded := n.loc.Query.Encode(); encoded != "" {
		return n.loc.Path + "?" + encoded
	}
	return n.loc.Path
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
