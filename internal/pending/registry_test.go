package pending

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calbot/internal/models"
)

func TestTakeIsSingleShot(t *testing.T) {
	r := NewRegistry()
	r.Put(42, &models.Event{Title: "Dentist"})
	require.Equal(t, 1, r.Len())

	event, ok := r.Take(42)
	require.True(t, ok)
	assert.Equal(t, "Dentist", event.Title)
	assert.Equal(t, 0, r.Len())

	_, ok = r.Take(42)
	assert.False(t, ok)
}

func TestTakeUnknownID(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Take(7)
	assert.False(t, ok)
}

func TestEntriesKeyedByPreviewID(t *testing.T) {
	r := NewRegistry()
	r.Put(1, &models.Event{Title: "First"})
	r.Put(2, &models.Event{Title: "Second"})

	event, ok := r.Take(2)
	require.True(t, ok)
	assert.Equal(t, "Second", event.Title)
	assert.Equal(t, 1, r.Len())
}
