// Package uploads persists the offline upload queue and the failed-uploads
// inbox. Each list is one JSON array stored under its own key of the local
// key-value store.
package uploads

import (
	"context"

	"github.com/snaptrack/snaptrack/internal/client/models"
)

// State is the full persisted queue state.
type State struct {
	Queue  []models.QueuedUpload
	Failed []models.FailedUpload
}

type Repository interface {
	// Load returns both lists; absent keys read as empty lists.
	Load(ctx context.Context) (*State, error)

	// Update reads the current state, lets fn mutate it and writes both lists
	// back atomically. Nothing is written when fn returns an error.
	Update(ctx context.Context, fn func(s *State) error) error
}
