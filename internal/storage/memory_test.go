package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calbot/internal/models"
)

func TestCredentialsRoundTrip(t *testing.T) {
	s := NewMemoryStorage()

	assert.False(t, s.HasCredentials(1))
	creds, err := s.GetCredentials(1)
	require.NoError(t, err)
	assert.Nil(t, creds)

	saved := &models.Credentials{
		URL:          "https://caldav.fastmail.com/dav/",
		Username:     "user@fastmail.com",
		Password:     "secret",
		CalendarName: "main",
	}
	require.NoError(t, s.SaveCredentials(1, saved))

	assert.True(t, s.HasCredentials(1))
	creds, err = s.GetCredentials(1)
	require.NoError(t, err)
	assert.Equal(t, saved, creds)
}

func TestSaveCredentialsOverwrites(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.SaveCredentials(1, &models.Credentials{CalendarName: "old"}))
	require.NoError(t, s.SaveCredentials(1, &models.Credentials{CalendarName: "new"}))

	creds, err := s.GetCredentials(1)
	require.NoError(t, err)
	assert.Equal(t, "new", creds.CalendarName)
}

func TestAddUsageAccumulates(t *testing.T) {
	s := NewMemoryStorage()

	stats, err := s.GetStats(1)
	require.NoError(t, err)
	assert.Nil(t, stats)

	require.NoError(t, s.AddUsage(1, 100))
	require.NoError(t, s.AddUsage(1, 50))

	stats, err = s.GetStats(1)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.RequestCount)
	assert.Equal(t, 150, stats.TotalTokens)
	assert.False(t, stats.LastRequest.IsZero())
}

func TestUsersAreIsolated(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.SaveCredentials(1, &models.Credentials{CalendarName: "main"}))

	assert.False(t, s.HasCredentials(2))
	require.NoError(t, s.AddUsage(2, 10))

	stats, err := s.GetStats(1)
	require.NoError(t, err)
	assert.Nil(t, stats)
}
