package feed

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/vidfeed/internal/catalog"
)

const testDebounce = 40 * time.Millisecond

type fetchResult struct {
	resp *catalog.VideosResponse
	err  error
}

type fetchCall struct {
	query  catalog.VideoQuery
	result chan fetchResult
}

func (c *fetchCall) respond(resp *catalog.VideosResponse) {
	c.result <- fetchResult{resp: resp}
}

func (c *fetchCall) fail(err error) {
	c.result <- fetchResult{err: err}
}

// fakeFetcher records every request and blocks until the test answers it
type fakeFetcher struct {
	ignoreCancel bool

	mu    sync.Mutex
	calls []*fetchCall
}

func (f *fakeFetcher) ListVideos(ctx context.Context, q catalog.VideoQuery) (*catalog.VideosResponse, error) {
	call := &fetchCall{query: q, result: make(chan fetchResult, 1)}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.ignoreCancel {
		r := <-call.result
		return r.resp, r.err
	}
	select {
	case r := <-call.result:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) call(t *testing.T, i int) *fetchCall {
	t.Helper()
	require.Eventually(t, func() bool { return f.count() > i }, time.Second, 2*time.Millisecond,
		"expected request #%d", i)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func videos(ids ...int) []catalog.Video {
	out := make([]catalog.Video, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog.Video{ID: id, Title: "video " + strconv.Itoa(id)})
	}
	return out
}

func page(cursor string, ids ...int) *catalog.VideosResponse {
	resp := &catalog.VideosResponse{Videos: videos(ids...), HasMore: cursor != ""}
	if cursor != "" {
		resp.NextCursor = &cursor
	}
	return resp
}

func itemIDs(v View) []int {
	ids := make([]int, 0, len(v.Items))
	for _, item := range v.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func newTestController(t *testing.T, f *fakeFetcher, opts Options) *Controller {
	t.Helper()
	if opts.SearchDebounce == 0 {
		opts.SearchDebounce = testDebounce
	}
	c := NewController(f, opts)
	t.Cleanup(c.Close)
	return c
}

func waitStatus(t *testing.T, c *Controller, want Status) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Status() == want }, time.Second, 2*time.Millisecond,
		"status never became %s (is %s)", want, c.Status())
}

func TestController_StartLoadsFirstPage(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestController(t, f, Options{})

	assert.Equal(t, StatusIdle, c.Status())
	require.NoError(t, c.Start())

	v := c.View()
	assert.True(t, v.IsLoading)
	assert.False(t, v.IsFetchingNextPage)

	call := f.call(t, 0)
	assert.Equal(t, catalog.VideoQuery{Limit: DefaultPageSize}, call.query)
	call.respond(page("c1", 1, 2))

	waitStatus(t, c, StatusSuccess)
	v = c.View()
	assert.Equal(t, []int{1, 2}, itemIDs(v))
	assert.True(t, v.HasNextPage)
	assert.False(t, v.IsLoading)

	// Start is a no-op once the controller has left Idle.
	require.NoError(t, c.Start())
	assert.Equal(t, 1, f.count())
}

func TestController_SearchDebounceIssuesOneFetch(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestController(t, f, Options{})
	require.NoError(t, c.Start())
	f.call(t, 0).respond(page("", 1))
	waitStatus(t, c, StatusSuccess)

	c.SetSearchText("cat")
	time.Sleep(testDebounce / 4)
	c.SetSearchText("cats")

	// Echoed immediately, applied to the query only after the window.
	filter := c.Filter()
	assert.Equal(t, "cats", filter.SearchText)
	assert.Equal(t, "", filter.DebouncedSearchText)

	call := f.call(t, 1)
	assert.Equal(t, "cats", call.query.Search)
	assert.Empty(t, call.query.Cursor)

	time.Sleep(3 * testDebounce)
	assert.Equal(t, 2, f.count())
	assert.Equal(t, "cats", c.Filter().DebouncedSearchText)
}

func TestController_SearchSettlingOnSameKeyDoesNotFetch(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestController(t, f, Options{})
	require.NoError(t, c.Start())
	f.call(t, 0).respond(page("", 1))
	waitStatus(t, c, StatusSuccess)

	c.SetSearchText("c")
	c.SetSearchText("")

	time.Sleep(3 * testDebounce)
	assert.Equal(t, 1, f.count())
	assert.Equal(t, StatusSuccess, c.Status())
}

func TestController_ToggleCategoryResetsPages(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestController(t, f, Options{InitialCategories: []string{"a"}})
	require.NoError(t, c.Start())

	first := f.call(t, 0)
	assert.Equal(t, []string{"a"}, first.query.CategoryIDs)
	first.respond(page("c1", 1, 2))
	waitStatus(t, c, StatusSuccess)
	require.Equal(t, 1, c.PageCount())

	c.ToggleCategory("b")

	// Synchronous reset before the new response arrives.
	v := c.View()
	assert.Empty(t, v.Items)
	assert.Equal(t, 0, v.PageCount)
	assert.True(t, v.IsLoading)
	assert.False(t, v.HasNextPage)

	call := f.call(t, 1)
	assert.Equal(t, []string{"a", "b"}, call.query.CategoryIDs)
	assert.Equal(t, "a,b", call.query.Values().Get("category_ids"))
	assert.Empty(t, call.query.Cursor)
	assert.Equal(t, DefaultPageSize, call.query.Limit)
}

func TestController_StaleResponseIsDropped(t *testing.T) {
	f := &fakeFetcher{ignoreCancel: true}
	c := newTestController(t, f, Options{})
	require.NoError(t, c.Start())
	stale := f.call(t, 0)

	c.ToggleCategory("x")
	current := f.call(t, 1)

	stale.respond(page("c1", 1, 2, 3))
	time.Sleep(20 * time.Millisecond)

	v := c.View()
	assert.Equal(t, StatusLoading, v.Status)
	assert.Empty(t, v.Items)

	current.respond(page("", 9))
	waitStatus(t, c, StatusSuccess)
	assert.Equal(t, []int{9}, itemIDs(c.View()))
	assert.False(t, c.HasNextPage())
}

func TestController_StaleErrorIsDropped(t *testing.T) {
	f := &fakeFetcher{ignoreCancel: true}
	c := newTestController(t, f, Options{})
	require.NoError(t, c.Start())
	stale := f.call(t, 0)

	c.ToggleCategory("x")
	current := f.call(t, 1)

	stale.fail(errors.New("boom"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StatusLoading, c.Status())
	assert.NoError(t, c.Err())

	current.respond(page("", 1))
	waitStatus(t, c, StatusSuccess)
}

func TestController_FetchNextPageSingleFlight(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestController(t, f, Options{})
	require.NoError(t, c.Start())
	f.call(t, 0).respond(page("c1", 1, 2))
	waitStatus(t, c, StatusSuccess)

	assert.True(t, c.FetchNextPage())
	assert.False(t, c.FetchNextPage())
	assert.True(t, c.IsFetchingNextPage())

	next := f.call(t, 1)
	assert.Equal(t, "c1", next.query.Cursor)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 2, f.count())

	next.respond(page("", 3, 4))
	waitStatus(t, c, StatusSuccess)

	v := c.View()
	assert.Equal(t, []int{1, 2, 3, 4}, itemIDs(v))
	assert.Equal(t, 2, v.PageCount)
	assert.False(t, v.HasNextPage)
}

func TestController_FetchNextPageWithoutCursorIsNoop(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestController(t, f, Options{})
	require.NoError(t, c.Start())
	f.call(t, 0).respond(page("", 1, 2))
	waitStatus(t, c, StatusSuccess)

	before := c.View()
	assert.False(t, c.FetchNextPage())

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, f.count())
	assert.Equal(t, before, c.View())
}

func TestController_FetchNextPageGuards(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestController(t, f, Options{})

	assert.False(t, c.FetchNextPage(), "idle controller has no pages")

	require.NoError(t, c.Start())
	f.call(t, 0)
	assert.False(t, c.FetchNextPage(), "first page still loading")
	assert.Equal(t, 1, c.Requests())
}

func TestController_NextPageFailurePreservesPages(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestController(t, f, Options{})
	require.NoError(t, c.Start())
	f.call(t, 0).respond(page("c1", 1, 2))
	waitStatus(t, c, StatusSuccess)

	require.True(t, c.FetchNextPage())
	f.call(t, 1).fail(errors.New("network down"))
	waitStatus(t, c, StatusError)

	v := c.View()
	assert.True(t, v.IsError)
	assert.Equal(t, "network down", v.Error)
	assert.Equal(t, []int{1, 2}, itemIDs(v))
	assert.True(t, v.HasNextPage)

	// User-initiated retry repeats the failed cursor.
	require.True(t, c.Retry())
	retry := f.call(t, 2)
	assert.Equal(t, "c1", retry.query.Cursor)
	retry.respond(page("", 3))
	waitStatus(t, c, StatusSuccess)
	assert.Equal(t, []int{1, 2, 3}, itemIDs(c.View()))
	assert.NoError(t, c.Err())
}

func TestController_FirstPageFailureRetry(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestController(t, f, Options{InitialSearch: "dogs"})
	require.NoError(t, c.Start())
	assert.Equal(t, "dogs", f.call(t, 0).query.Search)
	f.call(t, 0).fail(errors.New("timeout"))
	waitStatus(t, c, StatusError)

	assert.False(t, c.FetchNextPage())
	require.True(t, c.Retry())
	assert.False(t, c.Retry(), "retry is single-flight too")

	call := f.call(t, 1)
	assert.Equal(t, "dogs", call.query.Search)
	assert.Empty(t, call.query.Cursor)
	call.respond(page("", 1))
	waitStatus(t, c, StatusSuccess)
}

func TestController_RetryOnlyFromError(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestController(t, f, Options{})
	require.NoError(t, c.Start())
	f.call(t, 0).respond(page("c1", 1))
	waitStatus(t, c, StatusSuccess)

	assert.False(t, c.Retry())
	assert.Equal(t, 1, f.count())
}

func TestController_ToggleParity(t *testing.T) {
	tests := []struct {
		name    string
		toggles []string
		want    []string
	}{
		{"single", []string{"a"}, []string{"a"}},
		{"toggle off", []string{"a", "a"}, nil},
		{"odd counts survive", []string{"a", "b", "c", "a"}, []string{"b", "c"}},
		{"three toggles", []string{"a", "a", "a"}, []string{"a"}},
		{"even toggles drop", []string{"a", "b", "a"}, []string{"b"}},
		{"reinsert goes last", []string{"a", "b", "a", "a"}, []string{"b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{}
			c := newTestController(t, f, Options{})
			for _, id := range tt.toggles {
				c.ToggleCategory(id)
			}
			got := c.Filter().SelectedCategoryIDs
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestController_CloseCancelsPendingSearch(t *testing.T) {
	f := &fakeFetcher{}
	c := NewController(f, Options{SearchDebounce: testDebounce})
	require.NoError(t, c.Start())
	f.call(t, 0).respond(page("", 1))
	waitStatus(t, c, StatusSuccess)

	c.SetSearchText("late")
	c.Close()

	time.Sleep(3 * testDebounce)
	assert.Equal(t, 1, f.count())
	assert.Equal(t, "", c.Filter().DebouncedSearchText)
	assert.ErrorIs(t, c.Start(), ErrControllerClosed)
	assert.False(t, c.FetchNextPage())
}

func TestController_CloseAbandonsInFlight(t *testing.T) {
	f := &fakeFetcher{}
	c := NewController(f, Options{})
	require.NoError(t, c.Start())
	f.call(t, 0)

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
	assert.Equal(t, StatusLoading, c.Status())
}
