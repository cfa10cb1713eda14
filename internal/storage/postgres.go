package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"calbot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) GetCredentials(userID int64) (*models.Credentials, error) {
	query := `
		SELECT url, username, password, calendar_name
		FROM caldav_credentials
		WHERE user_id = $1`

	creds := &models.Credentials{}
	err := s.db.QueryRow(query, userID).Scan(
		&creds.URL,
		&creds.Username,
		&creds.Password,
		&creds.CalendarName,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying credentials: %v", err)
	}

	return creds, nil
}

func (s *PostgresStorage) HasCredentials(userID int64) bool {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM caldav_credentials WHERE user_id = $1)`
	if err := s.db.QueryRow(query, userID).Scan(&exists); err != nil {
		s.logger.Error("error checking credentials existence",
			zap.Error(err),
			zap.Int64("user_id", userID))
		return false
	}
	return exists
}

func (s *PostgresStorage) SaveCredentials(userID int64, creds *models.Credentials) error {
	query := `
		INSERT INTO caldav_credentials (user_id, url, username, password, calendar_name, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			url = EXCLUDED.url,
			username = EXCLUDED.username,
			password = EXCLUDED.password,
			calendar_name = EXCLUDED.calendar_name,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.Exec(query, userID, creds.URL, creds.Username, creds.Password, creds.CalendarName, time.Now())
	if err != nil {
		return fmt.Errorf("error saving credentials: %v", err)
	}

	return nil
}

func (s *PostgresStorage) GetStats(userID int64) (*models.Stats, error) {
	query := `
		SELECT requests_count, total_tokens, COALESCE(last_request, to_timestamp(0))
		FROM usage_stats
		WHERE user_id = $1`

	stats := &models.Stats{}
	err := s.db.QueryRow(query, userID).Scan(
		&stats.RequestCount,
		&stats.TotalTokens,
		&stats.LastRequest,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying stats: %v", err)
	}

	return stats, nil
}

func (s *PostgresStorage) AddUsage(userID int64, tokensUsed int) error {
	query := `
		INSERT INTO usage_stats (user_id, requests_count, total_tokens, last_request)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			requests_count = usage_stats.requests_count + 1,
			total_tokens = usage_stats.total_tokens + EXCLUDED.total_tokens,
			last_request = EXCLUDED.last_request`

	_, err := s.db.Exec(query, userID, tokensUsed, time.Now())
	if err != nil {
		return fmt.Errorf("error updating usage stats: %v", err)
	}

	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
