package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calbot/internal/models"
)

func TestEventWindow(t *testing.T) {
	event := &models.Event{
		StartTime: "2024-03-15T15:00:00",
		EndTime:   "2024-03-15T17:30:00",
	}

	start, end, err := eventWindow(event, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 15, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 15, 17, 30, 0, 0, time.UTC), end)
}

func TestEventWindowDefaultsToOneHour(t *testing.T) {
	event := &models.Event{StartTime: "2024-03-15T15:00:00"}

	start, end, err := eventWindow(event, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, end.Sub(start))
}

func TestEventWindowInvalidStart(t *testing.T) {
	_, _, err := eventWindow(&models.Event{StartTime: "tomorrow-ish"}, time.UTC)
	assert.Error(t, err)
}

func TestEventWindowInvalidEnd(t *testing.T) {
	event := &models.Event{
		StartTime: "2024-03-15T15:00:00",
		EndTime:   "late",
	}
	_, _, err := eventWindow(event, time.UTC)
	assert.Error(t, err)
}
