package feed

import "github.com/stwalsh4118/vidfeed/internal/catalog"

// Status is the pagination state of the current query
type Status string

// Feed status constants
const (
	StatusIdle        Status = "idle"         // nothing requested yet
	StatusLoading     Status = "loading"      // first page of the current key in flight
	StatusLoadingMore Status = "loading_more" // a subsequent page in flight
	StatusSuccess     Status = "success"      // last request succeeded
	StatusError       Status = "error"        // last request failed
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// Page is one page of results. An empty NextCursor marks the final page.
type Page struct {
	Items      []catalog.Video
	NextCursor string
}

// HasNext reports whether another page follows this one
func (p Page) HasNext() bool {
	return p.NextCursor != ""
}

// pageFromResponse converts a store response into a Page
func pageFromResponse(resp *catalog.VideosResponse) Page {
	page := Page{Items: resp.Videos}
	if resp.NextCursor != nil {
		page.NextCursor = *resp.NextCursor
	}
	return page
}

// View is the read-only projection handed to rendering
type View struct {
	Filter             FilterState     `json:"-"`
	SearchText         string          `json:"search_text"`
	Search             string          `json:"search"`
	CategoryIDs        []string        `json:"category_ids"`
	Status             Status          `json:"status"`
	Items              []catalog.Video `json:"items"`
	PageCount          int             `json:"page_count"`
	HasNextPage        bool            `json:"has_next_page"`
	IsLoading          bool            `json:"is_loading"`
	IsFetchingNextPage bool            `json:"is_fetching_next_page"`
	IsError            bool            `json:"is_error"`
	Error              string          `json:"error,omitempty"`
}
