package feed

import (
	"sync"

	"golang.org/x/time/rate"
)

// DefaultScrollThreshold is the remaining distance below which the next page is requested
const DefaultScrollThreshold = 500

// Pager is the part of the Controller the scroll trigger drives
type Pager interface {
	HasNextPage() bool
	IsFetchingNextPage() bool
	PageCount() int
	FetchNextPage() bool
	Key() QueryKey
}

// Trigger turns viewport position reports into next-page requests.
//
// It fires at most once per crossing of the threshold. It re-arms when the
// viewport moves back above the threshold, when new pages have been appended
// since it last fired, or when the query key has changed since it fired. The controller's single-flight guard remains the
// authoritative de-duplication; the trigger only avoids redundant calls.
type Trigger struct {
	pager     Pager
	threshold int
	limiter   *rate.Limiter

	mu            sync.Mutex
	armed         bool
	pagesAtFiring int
	keyAtFiring   QueryKey
}

// NewTrigger creates a trigger. eventsPerSecond <= 0 disables throttling of position reports.
func NewTrigger(pager Pager, threshold int, eventsPerSecond float64) *Trigger {
	if threshold <= 0 {
		threshold = DefaultScrollThreshold
	}
	t := &Trigger{
		pager:     pager,
		threshold: threshold,
		armed:     true,
	}
	if eventsPerSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(eventsPerSecond), 1)
	}
	return t
}

// Observe reports the distance between the viewport bottom and the end of the
// scrollable region. It returns true when it caused a next-page request.
func (t *Trigger) Observe(distanceFromEnd int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if distanceFromEnd >= t.threshold {
		t.armed = true
		return false
	}

	if !t.armed && (t.pager.PageCount() != t.pagesAtFiring || t.pager.Key() != t.keyAtFiring) {
		t.armed = true
	}
	if !t.armed {
		return false
	}
	if t.limiter != nil && !t.limiter.Allow() {
		return false
	}
	if !t.pager.HasNextPage() || t.pager.IsFetchingNextPage() {
		return false
	}

	pages, key := t.pager.PageCount(), t.pager.Key()
	if !t.pager.FetchNextPage() {
		return false
	}
	t.armed = false
	t.pagesAtFiring = pages
	t.keyAtFiring = key
	return true
}
