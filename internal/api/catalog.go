package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/vidfeed/internal/banner"
	"github.com/stwalsh4118/vidfeed/internal/catalog"
	"github.com/stwalsh4118/vidfeed/internal/logger"
	"github.com/stwalsh4118/vidfeed/internal/notify"
)

// catalogReader is the read access to the content store used by CatalogHandler
type catalogReader interface {
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	GetNotification(ctx context.Context, id int) (*catalog.Notification, error)
}

type bannerCarousel interface {
	Current() banner.Slide
	Next() banner.Slide
	Previous() banner.Slide
	Refresh(ctx context.Context) error
}

type notificationPoller interface {
	Snapshot() notify.Snapshot
	All() []catalog.Notification
	Poll(ctx context.Context) error
	MarkSeen(ctx context.Context) error
}

// CategoryListResponse represents the category filter options
type CategoryListResponse struct {
	Categories []catalog.Category `json:"categories"`
}

// NotificationListResponse represents the full notification list
type NotificationListResponse struct {
	Notifications []catalog.Notification `json:"notifications"`
	Count         int                    `json:"count"`
}

// CatalogHandler serves the shared content outside the feed
type CatalogHandler struct {
	store         catalogReader
	banners       bannerCarousel
	notifications notificationPoller
}

// NewCatalogHandler creates a new catalog handler instance
func NewCatalogHandler(store *catalog.Client, carousel *banner.Carousel, poller *notify.Poller) *CatalogHandler {
	return &CatalogHandler{
		store:         store,
		banners:       carousel,
		notifications: poller,
	}
}

// ListCategories handles GET /api/categories
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	categories, err := h.store.ListCategories(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list categories")
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "store_unavailable",
			Message: "Failed to load categories",
		})
		return
	}
	if categories == nil {
		categories = []catalog.Category{}
	}
	c.JSON(http.StatusOK, CategoryListResponse{Categories: categories})
}

// CurrentBanner handles GET /api/banners
func (h *CatalogHandler) CurrentBanner(c *gin.Context) {
	if c.Query("refresh") == "true" {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()
		if err := h.banners.Refresh(ctx); err != nil {
			logger.Log.Warn().Err(err).Msg("Banner refresh failed; serving previous banners")
		}
	}
	c.JSON(http.StatusOK, h.banners.Current())
}

// NextBanner handles POST /api/banners/next
func (h *CatalogHandler) NextBanner(c *gin.Context) {
	c.JSON(http.StatusOK, h.banners.Next())
}

// PreviousBanner handles POST /api/banners/previous
func (h *CatalogHandler) PreviousBanner(c *gin.Context) {
	c.JSON(http.StatusOK, h.banners.Previous())
}

// GetNotifications handles GET /api/notifications. ?all=true returns the whole
// list instead of the bell snapshot; ?refresh=true polls before answering.
func (h *CatalogHandler) GetNotifications(c *gin.Context) {
	if c.Query("refresh") == "true" {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()
		if err := h.notifications.Poll(ctx); err != nil {
			logger.Log.Warn().Err(err).Msg("Notification refresh failed")
		}
	}

	if c.Query("all") == "true" {
		all := h.notifications.All()
		c.JSON(http.StatusOK, NotificationListResponse{Notifications: all, Count: len(all)})
		return
	}
	c.JSON(http.StatusOK, h.notifications.Snapshot())
}

// MarkNotificationsSeen handles POST /api/notifications/seen
func (h *CatalogHandler) MarkNotificationsSeen(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.notifications.MarkSeen(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to persist seen notification count")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "save_failed",
			Message: "Failed to mark notifications as seen",
		})
		return
	}
	c.JSON(http.StatusOK, h.notifications.Snapshot())
}

// GetNotification handles GET /api/notifications/:id
func (h *CatalogHandler) GetNotification(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Notification ID must be a positive integer",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	n, err := h.store.GetNotification(ctx, id)
	if err != nil {
		if catalog.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Notification not found",
			})
			return
		}
		logger.Log.Error().Err(err).Int("notification_id", id).Msg("Failed to get notification")
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "store_unavailable",
			Message: "Failed to load notification",
		})
		return
	}
	c.JSON(http.StatusOK, n)
}

// SetupCatalogRoutes registers category, banner and notification routes
func SetupCatalogRoutes(apiGroup *gin.RouterGroup, store *catalog.Client, carousel *banner.Carousel, poller *notify.Poller) {
	handler := NewCatalogHandler(store, carousel, poller)
	registerCatalogRoutes(apiGroup, handler)
}

func registerCatalogRoutes(apiGroup *gin.RouterGroup, handler *CatalogHandler) {
	apiGroup.GET("/categories", handler.ListCategories)

	banners := apiGroup.Group("/banners")
	banners.GET("", handler.CurrentBanner)
	banners.POST("/next", handler.NextBanner)
	banners.POST("/previous", handler.PreviousBanner)

	notifications := apiGroup.Group("/notifications")
	notifications.GET("", handler.GetNotifications)
	notifications.POST("/seen", handler.MarkNotificationsSeen)
	notifications.GET("/:id", handler.GetNotification)
}
