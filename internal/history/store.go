// Package history persists finished verifications to a local SQLite
// database so past verdicts can be reviewed.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/veriscore/veriscore/internal/model"
)

// Record is one stored verification.
type Record struct {
	RequestID   string                 `json:"request_id"`
	Claim       string                 `json:"claim"`
	Fingerprint string                 `json:"fingerprint"`
	Domain      model.ClaimDomain      `json:"domain"`
	Tier        string                 `json:"tier"`
	Result      *model.ConsensusResult `json:"result"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Store persists verification records.
type Store interface {
	Save(rec Record) error
	Recent(limit int) ([]Record, error)
	Close() error
}

// SQLiteStore backs Store with a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the history database at path. It
// creates the schema if it does not exist.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS verifications (
			request_id TEXT PRIMARY KEY,
			claim TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			domain TEXT NOT NULL,
			tier TEXT NOT NULL,
			result TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_verifications_fingerprint ON verifications(fingerprint)`,
		`CREATE INDEX IF NOT EXISTS idx_verifications_created_at ON verifications(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save stores one finished verification.
func (s *SQLiteStore) Save(rec Record) error {
	payload, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO verifications
			(request_id, claim, fingerprint, domain, tier, result, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Claim, rec.Fingerprint, string(rec.Domain), rec.Tier,
		string(payload), rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting verification: %w", err)
	}
	return nil
}

// Recent returns the latest records, newest first.
func (s *SQLiteStore) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT request_id, claim, fingerprint, domain, tier, result, created_at
			FROM verifications ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying verifications: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var domain, payload, createdAt string
		if err := rows.Scan(&rec.RequestID, &rec.Claim, &rec.Fingerprint, &domain, &rec.Tier, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning verification: %w", err)
		}
		rec.Domain = model.ClaimDomain(domain)
		if err := json.Unmarshal([]byte(payload), &rec.Result); err != nil {
			return nil, fmt.Errorf("unmarshaling result: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
