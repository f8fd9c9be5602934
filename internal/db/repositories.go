package db

// Repositories provides access to all database repositories
type Repositories struct {
	ViewerState *ViewerStateRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		ViewerState: NewViewerStateRepository(db),
	}
}
