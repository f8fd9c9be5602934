package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stwalsh4118/vidfeed/internal/models"
)

// ViewerStateRepository handles database operations for the viewer state.
// Viewer state is a singleton table with only one row.
type ViewerStateRepository struct {
	db *DB
}

// NewViewerStateRepository creates a new viewer state repository
func NewViewerStateRepository(db *DB) *ViewerStateRepository {
	return &ViewerStateRepository{db: db}
}

// Get retrieves the viewer state (creates with defaults if not exists)
func (r *ViewerStateRepository) Get(ctx context.Context) (*models.ViewerState, error) {
	var state models.ViewerState
	result := r.db.WithContext(ctx).Where("id = ?", models.ViewerStateID).First(&state)

	if result.Error != nil {
		if errors.Is(MapGormError(result.Error), ErrNotFound) {
			defaults := models.DefaultViewerState()
			if err := r.db.WithContext(ctx).Create(defaults).Error; err != nil {
				return nil, fmt.Errorf("failed to create default viewer state: %w", MapGormError(err))
			}
			return defaults, nil
		}
		return nil, MapGormError(result.Error)
	}

	if state.LastCategories == nil {
		state.LastCategories = []string{}
	}
	return &state, nil
}

// Save writes every column of the singleton row
func (r *ViewerStateRepository) Save(ctx context.Context, state *models.ViewerState) error {
	state.ID = models.ViewerStateID
	state.UpdatedAt = time.Now().UTC()
	if state.LastCategories == nil {
		state.LastCategories = []string{}
	}

	if err := r.db.WithContext(ctx).Save(state).Error; err != nil {
		return fmt.Errorf("failed to save viewer state: %w", MapGormError(err))
	}
	return nil
}

// LastSeenNotificationCount returns the notification count the viewer last acknowledged
func (r *ViewerStateRepository) LastSeenNotificationCount(ctx context.Context) (int, error) {
	state, err := r.Get(ctx)
	if err != nil {
		return 0, err
	}
	return state.LastSeenNotificationCount, nil
}

// SetLastSeenNotificationCount stores the acknowledged notification count
func (r *ViewerStateRepository) SetLastSeenNotificationCount(ctx context.Context, count int) error {
	if count < 0 {
		return fmt.Errorf("%w: negative notification count %d", ErrInvalidInput, count)
	}
	return r.update(ctx, func(s *models.ViewerState) {
		s.LastSeenNotificationCount = count
	})
}

// SaveFilter stores the last feed filter so the next session starts from it
func (r *ViewerStateRepository) SaveFilter(ctx context.Context, search string, categories []string) error {
	return r.update(ctx, func(s *models.ViewerState) {
		s.LastSearch = search
		s.LastCategories = append([]string{}, categories...)
	})
}

// SetLocale stores the locale of the last home route visited
func (r *ViewerStateRepository) SetLocale(ctx context.Context, locale string) error {
	if !models.IsSupportedLocale(locale) {
		return fmt.Errorf("%w: unsupported locale %q", ErrInvalidInput, locale)
	}
	return r.update(ctx, func(s *models.ViewerState) {
		s.Locale = locale
	})
}

// update applies fn to the current row inside a transaction
func (r *ViewerStateRepository) update(ctx context.Context, fn func(*models.ViewerState)) error {
	return r.db.WithTransaction(ctx, func(tx *DB) error {
		repo := NewViewerStateRepository(tx)
		state, err := repo.Get(ctx)
		if err != nil {
			return err
		}
		fn(state)
		return repo.Save(ctx, state)
	})
}
