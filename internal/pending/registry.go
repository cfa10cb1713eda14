package pending

import (
	"sync"

	"calbot/internal/models"
)

// Registry maps an outbound preview message id to its parsed event.
// Entries are single-shot: Take removes on read, so a confirmation can
// only ever be consumed once.
type Registry struct {
	mu     sync.Mutex
	events map[int]*models.Event
}

func NewRegistry() *Registry {
	return &Registry{events: make(map[int]*models.Event)}
}

// Put registers the event behind a sent preview message.
func (r *Registry) Put(previewID int, event *models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[previewID] = event
}

// Take returns the event registered under previewID and removes it.
func (r *Registry) Take(previewID int) (*models.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[previewID]
	if ok {
		delete(r.events, previewID)
	}
	return event, ok
}

// Len reports the number of outstanding confirmations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
