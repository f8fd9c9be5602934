// Package catalog is the client for the external video, category, banner and
// notification store.
package catalog

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Category is a video category as served by GET /categories
type Category struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Description *string        `json:"description,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Count       *CategoryCount `json:"_count,omitempty"`
}

// CategoryCount carries aggregate counts attached to a category
type CategoryCount struct {
	Videos int `json:"videos"`
}

// VideoCategory links a video to one of its categories
type VideoCategory struct {
	ID         int      `json:"id"`
	VideoID    int      `json:"videoId"`
	CategoryID string   `json:"categoryId"`
	Category   Category `json:"category"`
}

// Video is one feed entry. VideoLink is the embed source handed to the player.
type Video struct {
	ID          int             `json:"id"`
	Title       string          `json:"title"`
	VideoLink   string          `json:"video_link"`
	Description *string         `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Categories  []VideoCategory `json:"categories,omitempty"`
}

// CategoryIDs returns the ids of the categories the video belongs to
func (v Video) CategoryIDs() []string {
	ids := make([]string, 0, len(v.Categories))
	for _, c := range v.Categories {
		ids = append(ids, c.CategoryID)
	}
	return ids
}

// VideosResponse is one page of GET /videos. A nil NextCursor marks the final page.
type VideosResponse struct {
	Videos     []Video `json:"videos"`
	NextCursor *string `json:"nextCursor"`
	HasMore    bool    `json:"hasMore"`
}

// VideoQuery holds the GET /videos request parameters
type VideoQuery struct {
	Search      string
	CategoryIDs []string
	Cursor      string
	Limit       int
}

// Values encodes the query, omitting empty parameters
func (q VideoQuery) Values() url.Values {
	params := url.Values{}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if len(q.CategoryIDs) > 0 {
		params.Set("category_ids", strings.Join(q.CategoryIDs, ","))
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return params
}

// Banner is an image banner shown in the home carousel
type Banner struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	ImageURL  string    `json:"image_url"`
	LinkURL   *string   `json:"link_url,omitempty"`
	IsActive  bool      `json:"is_active"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Notification is an announcement shown behind the notification bell
type Notification struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}
