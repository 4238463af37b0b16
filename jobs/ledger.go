package jobs

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Ledger records job lifecycle state in a SQLite database, so orchestrator
// state survives a process restart.
type Ledger struct {
	db *sql.DB
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	chunk      INTEGER NOT NULL,
	attempts   INTEGER NOT NULL,
	status     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// OpenLedger opens (creating if needed) the ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open job ledger: %v", err)
	}
	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize job ledger: %v", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordSubmitted inserts a new job row in submitted state.
func (l *Ledger) RecordSubmitted(id string, chunk int) error {
	now := time.Now()
	_, err := l.db.Exec(
		`INSERT INTO jobs (id, chunk, attempts, status, created_at, updated_at) VALUES (?, ?, 0, ?, ?, ?)`,
		id, chunk, string(StatusSubmitted), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to record job %s: %v", id, err)
	}
	return nil
}

// RecordStatus updates a job's status and attempt count.
func (l *Ledger) RecordStatus(id string, status Status, attempts int) error {
	res, err := l.db.Exec(
		`UPDATE jobs SET status = ?, attempts = ?, updated_at = ? WHERE id = ?`,
		string(status), attempts, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %v", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s is not in the ledger", id)
	}
	return nil
}

// LedgerEntry is one recorded job.
type LedgerEntry struct {
	ID        string
	Chunk     int
	Attempts  int
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Jobs lists all recorded jobs in chunk order.
func (l *Ledger) Jobs() ([]LedgerEntry, error) {
	rows, err := l.db.Query(`SELECT id, chunk, attempts, status, created_at, updated_at FROM jobs ORDER BY chunk`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %v", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var status string
		if err := rows.Scan(&e.ID, &e.Chunk, &e.Attempts, &status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %v", err)
		}
		e.Status = Status(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %v", err)
	}
	return entries, nil
}
