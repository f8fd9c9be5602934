// Package feed implements the searchable, filterable, cursor-paginated video feed.
package feed

import (
	"strings"

	"github.com/stwalsh4118/vidfeed/internal/catalog"
)

// DefaultPageSize is the fixed number of videos requested per page
const DefaultPageSize = 20

// keySeparator joins category ids inside a QueryKey. It cannot appear in an id
// coming from the store, so joined keys never collide.
const keySeparator = "\x1f"

// FilterState is the user-controlled filter input
type FilterState struct {
	SearchText          string
	DebouncedSearchText string
	SelectedCategoryIDs []string
}

// clone returns a deep copy safe to hand out of the controller
func (f FilterState) clone() FilterState {
	out := f
	out.SelectedCategoryIDs = append([]string(nil), f.SelectedCategoryIDs...)
	return out
}

// toggle inserts id when absent and removes it otherwise. Selection keeps insertion order.
func (f *FilterState) toggle(id string) {
	for i, existing := range f.SelectedCategoryIDs {
		if existing == id {
			f.SelectedCategoryIDs = append(f.SelectedCategoryIDs[:i:i], f.SelectedCategoryIDs[i+1:]...)
			return
		}
	}
	f.SelectedCategoryIDs = append(f.SelectedCategoryIDs, id)
}

// QueryKey identifies one logical feed query. Category order is part of the key.
type QueryKey struct {
	search     string
	categories string
}

// Resolve derives the canonical key for a filter state
func Resolve(f FilterState) QueryKey {
	return QueryKey{
		search:     f.DebouncedSearchText,
		categories: strings.Join(f.SelectedCategoryIDs, keySeparator),
	}
}

// Search returns the debounced search text the key was built from
func (k QueryKey) Search() string {
	return k.search
}

// CategoryIDs returns the selected category ids in selection order
func (k QueryKey) CategoryIDs() []string {
	if k.categories == "" {
		return nil
	}
	return strings.Split(k.categories, keySeparator)
}

// String renders the key for logs
func (k QueryKey) String() string {
	return "search=" + k.search + " categories=" + strings.Join(k.CategoryIDs(), ",")
}

// Query builds the store request for the page at cursor ("" for the first page)
func (k QueryKey) Query(cursor string, pageSize int) catalog.VideoQuery {
	return catalog.VideoQuery{
		Search:      k.search,
		CategoryIDs: k.CategoryIDs(),
		Cursor:      cursor,
		Limit:       pageSize,
	}
}
