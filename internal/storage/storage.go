package storage

import "calbot/internal/models"

// Storage persists per-user calendar credentials and usage counters.
// Get methods return (nil, nil) when no record exists.
type Storage interface {
	GetCredentials(userID int64) (*models.Credentials, error)
	HasCredentials(userID int64) bool
	SaveCredentials(userID int64, creds *models.Credentials) error

	GetStats(userID int64) (*models.Stats, error)
	AddUsage(userID int64, tokensUsed int) error

	Close() error
}
