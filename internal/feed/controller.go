package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/vidfeed/internal/catalog"
	"github.com/stwalsh4118/vidfeed/internal/debounce"
	"github.com/stwalsh4118/vidfeed/internal/logger"
)

// DefaultSearchDebounce is the quiet period before typed search text becomes part of the query
const DefaultSearchDebounce = 300 * time.Millisecond

// ErrControllerClosed is returned by operations on a closed controller
var ErrControllerClosed = errors.New("feed controller is closed")

// Fetcher loads one page of videos from the store
type Fetcher interface {
	ListVideos(ctx context.Context, q catalog.VideoQuery) (*catalog.VideosResponse, error)
}

// Options configures a Controller
type Options struct {
	PageSize       int
	SearchDebounce time.Duration

	// Initial filter, e.g. restored from a previous visit or a URL parameter.
	// The restored search text is used as both the typed and the debounced text.
	InitialSearch     string
	InitialCategories []string
}

// Controller owns the filter state and the pagination state machine of one feed view.
//
// Every change of the resolved QueryKey clears the accumulated pages and starts a
// first-page fetch. Responses are applied only while their key is still current,
// and at most one request is in flight per key.
type Controller struct {
	fetcher  Fetcher
	pageSize int
	search   *debounce.Value[string]
	log      zerolog.Logger

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool

	filter     FilterState
	key        QueryKey
	generation uint64
	pages      []Page
	status     Status
	err        error
	inFlight   bool
	cancel     context.CancelFunc
	requests   int
}

// NewController creates an idle controller. Call Start to load the first page.
func NewController(fetcher Fetcher, opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = DefaultSearchDebounce
	}

	ctx, stop := context.WithCancel(context.Background())
	c := &Controller{
		fetcher:  fetcher,
		pageSize: opts.PageSize,
		log:      logger.Component("feed"),
		ctx:      ctx,
		stop:     stop,
		status:   StatusIdle,
		filter: FilterState{
			SearchText:          opts.InitialSearch,
			DebouncedSearchText: opts.InitialSearch,
		},
	}
	for _, id := range opts.InitialCategories {
		if !containsID(c.filter.SelectedCategoryIDs, id) {
			c.filter.SelectedCategoryIDs = append(c.filter.SelectedCategoryIDs, id)
		}
	}
	c.key = Resolve(c.filter)
	c.search = debounce.NewValue(opts.SearchDebounce, c.applyDebouncedSearch)
	return c
}

// Start issues the first-page fetch for the current key. It is a no-op unless the controller is idle.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrControllerClosed
	}
	if c.status != StatusIdle {
		return nil
	}
	c.startFetchLocked("", StatusLoading)
	return nil
}

// SetSearchText records the typed text immediately and debounces its effect on the query
func (c *Controller) SetSearchText(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.filter.SearchText = text
	c.mu.Unlock()

	c.search.Set(text)
}

// applyDebouncedSearch is the debounce expiry callback
func (c *Controller) applyDebouncedSearch(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.filter.DebouncedSearchText = text
	c.rekeyLocked()
}

// ToggleCategory selects id when absent and deselects it otherwise. Takes effect immediately.
func (c *Controller) ToggleCategory(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.filter.toggle(id)
	c.rekeyLocked()
}

// FetchNextPage requests the page after the last accumulated one. It returns false
// without issuing a request when the feed is exhausted, a request is already in
// flight, or the current key has not loaded successfully yet.
func (c *Controller) FetchNextPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.inFlight || len(c.pages) == 0 {
		return false
	}
	if c.status != StatusSuccess && c.status != StatusError {
		return false
	}
	last := c.pages[len(c.pages)-1]
	if !last.HasNext() {
		return false
	}
	c.startFetchLocked(last.NextCursor, StatusLoadingMore)
	return true
}

// Retry re-issues the request that failed: the first page when nothing has loaded
// for the current key, otherwise the next page.
func (c *Controller) Retry() bool {
	c.mu.Lock()
	if c.closed || c.inFlight || c.status != StatusError {
		c.mu.Unlock()
		return false
	}
	if len(c.pages) == 0 {
		c.startFetchLocked("", StatusLoading)
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()
	return c.FetchNextPage()
}

// Close cancels the pending debounce and in-flight request and waits for fetch goroutines
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.inFlight = false
	c.mu.Unlock()

	c.search.Stop()
	c.stop()
	c.wg.Wait()
}

// rekeyLocked resets pagination when the filter resolves to a new key (must hold lock)
func (c *Controller) rekeyLocked() {
	next := Resolve(c.filter)
	if next == c.key {
		return
	}

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.key = next
	c.generation++
	c.pages = nil
	c.err = nil
	c.inFlight = false

	c.log.Debug().
		Str("key", next.String()).
		Uint64("generation", c.generation).
		Msg("Feed query changed, resetting pages")

	c.startFetchLocked("", StatusLoading)
}

// startFetchLocked issues a request for the current key (must hold lock)
func (c *Controller) startFetchLocked(cursor string, status Status) {
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancel = cancel
	c.inFlight = true
	c.status = status
	c.requests++

	generation := c.generation
	query := c.key.Query(cursor, c.pageSize)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		resp, err := c.fetcher.ListVideos(ctx, query)
		c.complete(generation, cursor, resp, err)
	}()
}

// complete applies a finished request if it still belongs to the current key
func (c *Controller) complete(generation uint64, cursor string, resp *catalog.VideosResponse, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || generation != c.generation {
		c.log.Debug().
			Uint64("generation", generation).
			Uint64("current_generation", c.generation).
			Msg("Dropping stale feed response")
		return
	}

	c.inFlight = false
	c.cancel = nil

	if err == nil && resp == nil {
		err = errors.New("empty response from store")
	}
	if err != nil {
		c.status = StatusError
		c.err = err
		c.log.Warn().
			Err(err).
			Str("key", c.key.String()).
			Str("cursor", cursor).
			Int("pages", len(c.pages)).
			Msg("Feed fetch failed")
		return
	}

	c.pages = append(c.pages, pageFromResponse(resp))
	c.status = StatusSuccess
	c.err = nil
}

// View returns the derived projection of the current state
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]catalog.Video, 0, len(c.pages)*c.pageSize)
	for _, p := range c.pages {
		items = append(items, p.Items...)
	}

	filter := c.filter.clone()
	v := View{
		Filter:             filter,
		SearchText:         filter.SearchText,
		Search:             filter.DebouncedSearchText,
		CategoryIDs:        filter.SelectedCategoryIDs,
		Status:             c.status,
		Items:              items,
		PageCount:          len(c.pages),
		HasNextPage:        c.hasNextPageLocked(),
		IsLoading:          c.status == StatusLoading,
		IsFetchingNextPage: c.status == StatusLoadingMore,
		IsError:            c.status == StatusError,
	}
	if c.err != nil {
		v.Error = c.err.Error()
	}
	return v
}

// Filter returns a copy of the current filter state
func (c *Controller) Filter() FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.clone()
}

// Key returns the current query key
func (c *Controller) Key() QueryKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

// Status returns the current pagination status
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the cause of the last failure, if the controller is in the error state
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// HasNextPage reports whether the last accumulated page has a next cursor
func (c *Controller) HasNextPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasNextPageLocked()
}

// IsFetchingNextPage reports whether a subsequent page is in flight
func (c *Controller) IsFetchingNextPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == StatusLoadingMore
}

// PageCount returns the number of pages accumulated for the current key
func (c *Controller) PageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages)
}

// Requests returns how many store requests the controller has issued
func (c *Controller) Requests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests
}

// hasNextPageLocked must hold lock
func (c *Controller) hasNextPageLocked() bool {
	if len(c.pages) == 0 {
		return false
	}
	return c.pages[len(c.pages)-1].HasNext()
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
