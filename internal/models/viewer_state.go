package models

import (
	"time"
)

// ViewerStateID is the primary key of the singleton viewer_state row
const ViewerStateID = 1

// ViewerState is what the client remembers between runs
type ViewerState struct {
	ID                        int       `json:"id" gorm:"type:integer;primaryKey;default:1;column:id"`
	LastSeenNotificationCount int       `json:"last_seen_notification_count" gorm:"type:integer;not null;default:0;column:last_seen_notification_count"`
	LastSearch                string    `json:"last_search" gorm:"type:text;not null;default:'';column:last_search"`
	LastCategories            []string  `json:"last_categories" gorm:"type:text;serializer:json;column:last_categories"`
	Locale                    string    `json:"locale" gorm:"type:text;not null;default:en;column:locale"`
	UpdatedAt                 time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// TableName overrides the pluralized default
func (ViewerState) TableName() string {
	return "viewer_state"
}

// DefaultViewerState returns the state of a first run
func DefaultViewerState() *ViewerState {
	return &ViewerState{
		ID:             ViewerStateID,
		LastCategories: []string{},
		Locale:         LocaleEnglish,
		UpdatedAt:      time.Now().UTC(),
	}
}
