package feed

import (
	"net/url"
	"sync"
	"time"

	"github.com/stwalsh4118/vidfeed/internal/debounce"
)

// DefaultURLSyncDebounce is the quiet period before header search text is pushed into the URL
const DefaultURLSyncDebounce = 300 * time.Millisecond

const searchParam = "search"

// Location is the renderer's current route
type Location struct {
	Path  string
	Query url.Values
}

// Navigator reads and replaces the renderer's route
type Navigator interface {
	Location() Location
	Push(target string)
}

// URLSync mirrors the header search box into the home route's search parameter.
// It has its own debounce timer, independent of the feed's search debounce.
type URLSync struct {
	nav    Navigator
	home   string
	update *debounce.Value[string]

	mu   sync.Mutex
	text string
}

// NewURLSync creates a sync for the given locale's home route ("/<locale>")
func NewURLSync(nav Navigator, locale string, delay time.Duration) *URLSync {
	if delay <= 0 {
		delay = DefaultURLSyncDebounce
	}
	s := &URLSync{
		nav:  nav,
		home: "/" + locale,
	}
	s.update = debounce.NewValue(delay, s.push)
	return s
}

// SetSearchText updates the header text now and the URL after the debounce window
func (s *URLSync) SetSearchText(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()

	s.update.Set(text)
}

// SyncFromLocation adopts the route's search parameter as the header text
func (s *URLSync) SyncFromLocation() {
	query := s.nav.Location().Query.Get(searchParam)

	s.mu.Lock()
	defer s.mu.Unlock()
	if query != s.text {
		s.text = query
	}
}

// SearchText returns the header text
func (s *URLSync) SearchText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Stop drops any pending push
func (s *URLSync) Stop() {
	s.update.Stop()
}

// push writes text into the search parameter when the renderer is on the home route
func (s *URLSync) push(text string) {
	loc := s.nav.Location()
	if loc.Path != s.home {
		return
	}
	if loc.Query.Get(searchParam) == text {
		return
	}

	params := url.Values{}
	for k, v := range loc.Query {
		params[k] = append([]string(nil), v...)
	}
	if text != "" {
		params.Set(searchParam, text)
	} else {
		params.Del(searchParam)
	}

	target := s.home
	if encoded := params.Encode(); encoded != "" {
		target += "?" + encoded
	}
	s.nav.Push(target)
}
