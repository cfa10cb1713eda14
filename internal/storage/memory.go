package storage

import (
	"sync"
	"time"

	"calbot/internal/models"
)

// MemoryStorage keeps everything in process memory. Useful for local
// runs and tests; credentials do not survive a restart.
type MemoryStorage struct {
	mu          sync.RWMutex
	credentials map[int64]*models.Credentials
	stats       map[int64]*models.Stats
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		credentials: make(map[int64]*models.Credentials),
		stats:       make(map[int64]*models.Stats),
	}
}

func (s *MemoryStorage) GetCredentials(userID int64) (*models.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds, ok := s.credentials[userID]
	if !ok {
		return nil, nil
	}
	copied := *creds
	return &copied, nil
}

func (s *MemoryStorage) HasCredentials(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.credentials[userID]
	return ok
}

func (s *MemoryStorage) SaveCredentials(userID int64, creds *models.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *creds
	s.credentials[userID] = &copied
	return nil
}

func (s *MemoryStorage) GetStats(userID int64) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.stats[userID]
	if !ok {
		return nil, nil
	}
	copied := *stats
	return &copied, nil
}

func (s *MemoryStorage) AddUsage(userID int64, tokensUsed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.stats[userID]
	if !ok {
		stats = &models.Stats{}
		s.stats[userID] = stats
	}
	stats.RequestCount++
	stats.TotalTokens += tokensUsed
	stats.LastRequest = time.Now()
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
