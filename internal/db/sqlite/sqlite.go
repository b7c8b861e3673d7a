package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AI2HU/compscout/internal/db"
	"github.com/AI2HU/compscout/internal/models"
	"github.com/AI2HU/compscout/internal/shared"
)

// SQLite implements db.ResultStore on a single SQLite file
type SQLite struct {
	db     *sql.DB
	config *db.Config
}

// New creates a new SQLite store instance
func New(config *db.Config) (*SQLite, error) {
	if config == nil || strings.TrimSpace(config.URI) == "" {
		return nil, fmt.Errorf("sqlite uri is required")
	}
	return &SQLite{
		config: config,
	}, nil
}

// Connect opens the database and applies migrations
func (s *SQLite) Connect(ctx context.Context) error {
	dbPath, err := resolvePath(s.config.URI)
	if err != nil {
		return err
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database at path '%s': %w", dbPath, err)
	}
	// One writer keeps in-memory databases shared and avoids SQLITE_BUSY
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping SQLite database at path '%s': %w", dbPath, err)
	}

	if err := db.RunMigrations(conn); err != nil {
		conn.Close()
		return err
	}

	s.db = conn
	return nil
}

func resolvePath(uri string) (string, error) {
	if uri == ":memory:" || strings.HasPrefix(uri, "file:") {
		return uri, nil
	}

	dbPath := uri
	if strings.HasPrefix(dbPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	} else if !filepath.IsAbs(dbPath) {
		absPath, err := filepath.Abs(dbPath)
		if err != nil {
			return "", fmt.Errorf("failed to resolve absolute path: %w", err)
		}
		dbPath = absPath
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return dbPath, nil
}

// Disconnect closes the SQLite connection
func (s *SQLite) Disconnect(ctx context.Context) error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection
func (s *SQLite) Ping(ctx context.Context) error {
	if s.db == nil {
		return db.ErrNotConnected
	}
	return s.db.PingContext(ctx)
}

// SchemaVersion returns the applied migration version
func (s *SQLite) SchemaVersion() (uint, bool, error) {
	if s.db == nil {
		return 0, false, db.ErrNotConnected
	}
	return db.MigrationVersion(s.db)
}

// SaveDiscovery inserts or replaces a discovery run
func (s *SQLite) SaveDiscovery(ctx context.Context, result *models.DiscoveryResult) error {
	if s.db == nil {
		return db.ErrNotConnected
	}
	if result == nil || result.ID == "" {
		return fmt.Errorf("discovery id is required")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode discovery %s: %w", result.ID, err)
	}

	query := `
		INSERT OR REPLACE INTO discoveries
			(id, domain, business_type, competitor_count, failed_analyses, payload, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		result.ID,
		shared.NormalizeDomain(result.Domain),
		result.BusinessType,
		len(result.Competitors),
		result.Stats.FailedAnalyses,
		string(payload),
		result.StartedAt.UTC(),
		result.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save discovery %s: %w", result.ID, err)
	}
	return nil
}

// GetDiscovery loads one discovery run by id
func (s *SQLite) GetDiscovery(ctx context.Context, id string) (*models.DiscoveryResult, error) {
	if s.db == nil {
		return nil, db.ErrNotConnected
	}

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM discoveries WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", db.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return decode(payload)
}

// ListDiscoveries returns the latest runs, newest first. An empty domain
// lists every domain.
func (s *SQLite) ListDiscoveries(ctx context.Context, domain string, limit int) ([]*models.DiscoveryResult, error) {
	if s.db == nil {
		return nil, db.ErrNotConnected
	}

	query := `SELECT payload FROM discoveries`
	args := []interface{}{}
	if domain != "" {
		query += " WHERE domain = ?"
		args = append(args, shared.NormalizeDomain(domain))
	}
	query += " ORDER BY completed_at DESC LIMIT ?"
	args = append(args, db.Limit(limit))

	return s.query(ctx, query, args...)
}

// TopCompetitors tallies competitors over every stored run of domain, or of
// all domains when domain is empty
func (s *SQLite) TopCompetitors(ctx context.Context, domain string, limit int) ([]db.CompetitorCount, error) {
	if s.db == nil {
		return nil, db.ErrNotConnected
	}
	query := `SELECT payload FROM discoveries ORDER BY completed_at`
	var args []interface{}
	if domain != "" {
		query = `SELECT payload FROM discoveries WHERE domain = ? ORDER BY completed_at`
		args = append(args, shared.NormalizeDomain(domain))
	}
	results, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return db.TallyCompetitors(results, limit), nil
}

func (s *SQLite) query(ctx context.Context, query string, args ...interface{}) ([]*models.DiscoveryResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []*models.DiscoveryResult{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		result, err := decode(payload)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func decode(payload string) (*models.DiscoveryResult, error) {
	var result models.DiscoveryResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to decode stored discovery: %w", err)
	}
	return &result, nil
}
