package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxErrorBody = 4 << 10

// Client talks to the store's REST API
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient creates a client rooted at baseURL (e.g. "http://localhost:5000/api")
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// ListVideos fetches one page of the video feed
func (c *Client) ListVideos(ctx context.Context, q VideoQuery) (*VideosResponse, error) {
	var resp VideosResponse
	if err := c.get(ctx, "list videos", "/videos", q.Values(), &resp); err != nil {
		return nil, err
	}
	if resp.Videos == nil {
		resp.Videos = []Video{}
	}
	return &resp, nil
}

// ListCategories fetches every category; the listing is not paginated
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.get(ctx, "list categories", "/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// ListBanners fetches banners, optionally restricted to active ones
func (c *Client) ListBanners(ctx context.Context, activeOnly bool) ([]Banner, error) {
	params := url.Values{}
	if activeOnly {
		params.Set("active_only", "true")
	}
	var banners []Banner
	if err := c.get(ctx, "list banners", "/banners", params, &banners); err != nil {
		return nil, err
	}
	return banners, nil
}

// ListNotifications fetches all notifications, newest first
func (c *Client) ListNotifications(ctx context.Context) ([]Notification, error) {
	var notifications []Notification
	if err := c.get(ctx, "list notifications", "/notifications", nil, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// GetNotification fetches a single notification
func (c *Client) GetNotification(ctx context.Context, id int) (*Notification, error) {
	var n Notification
	if err := c.get(ctx, "get notification", "/notifications/"+strconv.Itoa(id), nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// get performs a GET request and decodes a JSON body into out
func (c *Client) get(ctx context.Context, op, path string, params url.Values, out interface{}) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &APIError{Op: op, Message: "failed to build request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Op: op, Message: "request failed", Cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: "not found", Cause: ErrNotFound}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Op: op, Message: "failed to decode response", Cause: err}
	}
	return nil
}
