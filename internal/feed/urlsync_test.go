package feed

import (
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNavigator struct {
	mu     sync.Mutex
	loc    Location
	pushes []string
}

func newFakeNavigator(path, rawQuery string) *fakeNavigator {
	q, _ := url.ParseQuery(rawQuery)
	return &fakeNavigator{loc: Location{Path: path, Query: q}}
}

func (n *fakeNavigator) Location() Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loc
}

func (n *fakeNavigator) Push(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, target)
	if u, err := url.Parse(target); err == nil {
		n.loc = Location{Path: u.Path, Query: u.Query()}
	}
}

func (n *fakeNavigator) pushed() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.pushes...)
}

func TestURLSync_PushesDebouncedText(t *testing.T) {
	nav := newFakeNavigator("/en", "")
	s := NewURLSync(nav, "en", testDebounce)
	defer s.Stop()

	s.SetSearchText("c")
	s.SetSearchText("ca")
	s.SetSearchText("cat")
	assert.Equal(t, "cat", s.SearchText())

	require.Eventually(t, func() bool { return len(nav.pushed()) == 1 }, time.Second, 2*time.Millisecond)
	time.Sleep(2 * testDebounce)
	assert.Equal(t, []string{"/en?search=cat"}, nav.pushed())
}

func TestURLSync_KeepsOtherParams(t *testing.T) {
	nav := newFakeNavigator("/ar", "tab=new&search=old")
	s := NewURLSync(nav, "ar", testDebounce)
	defer s.Stop()

	s.SetSearchText("new")
	require.Eventually(t, func() bool { return len(nav.pushed()) == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, "/ar?search=new&tab=new", nav.pushed()[0])
}

func TestURLSync_ClearingRemovesParam(t *testing.T) {
	nav := newFakeNavigator("/en", "search=cat")
	s := NewURLSync(nav, "en", testDebounce)
	defer s.Stop()

	s.SetSearchText("")
	require.Eventually(t, func() bool { return len(nav.pushed()) == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, "/en", nav.pushed()[0])
}

func TestURLSync_NoPush(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		query string
		text  string
	}{
		{"off the home route", "/en/videos/12", "", "cat"},
		{"other locale", "/ar", "", "cat"},
		{"already in sync", "/en", "search=cat", "cat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := newFakeNavigator(tt.path, tt.query)
			s := NewURLSync(nav, "en", testDebounce)
			defer s.Stop()

			s.SetSearchText(tt.text)
			time.Sleep(3 * testDebounce)
			assert.Empty(t, nav.pushed())
		})
	}
}

func TestURLSync_SyncFromLocation(t *testing.T) {
	nav := newFakeNavigator("/en", "search=dogs")
	s := NewURLSync(nav, "en", testDebounce)
	defer s.Stop()

	s.SyncFromLocation()
	assert.Equal(t, "dogs", s.SearchText())
	assert.Empty(t, nav.pushed())
}

func TestURLSync_StopDropsPending(t *testing.T) {
	nav := newFakeNavigator("/en", "")
	s := NewURLSync(nav, "en", testDebounce)

	s.SetSearchText("cat")
	s.Stop()

	time.Sleep(3 * testDebounce)
	assert.Empty(t, nav.pushed())
}
