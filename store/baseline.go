// Package store persists accepted diagnostics so later runs can report only
// new findings.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/stackcheck/pkg/stackcheck"
)

var log = commonlog.GetLogger("stackcheck.store")

// ErrClosed is returned by operations on a closed Baseline.
var ErrClosed = errors.New("baseline is closed")

// Baseline is a SQLite-backed set of known diagnostics, keyed by file,
// method signature, instruction text and message. Line numbers are not part
// of the key so unrelated edits above a finding do not resurrect it.
type Baseline struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open opens (creating if needed) the baseline database at dbPath.
func Open(dbPath string) (*Baseline, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating baseline directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS findings (
		file        TEXT NOT NULL,
		method      TEXT NOT NULL,
		instruction TEXT NOT NULL,
		message     TEXT NOT NULL,
		PRIMARY KEY (file, method, instruction, message)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened baseline %s", dbPath)
	return &Baseline{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (b *Baseline) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// Record replaces the stored findings for file/method with diags.
func (b *Baseline) Record(file, method string, diags []stackcheck.Diagnostic) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return ErrClosed
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM findings WHERE file = ? AND method = ?", file, method); err != nil {
		return fmt.Errorf("clearing findings: %w", err)
	}
	for _, d := range diags {
		_, err := tx.Exec(
			"INSERT OR IGNORE INTO findings (file, method, instruction, message) VALUES (?, ?, ?, ?)",
			file, method, strings.TrimSpace(d.Instruction), d.Message,
		)
		if err != nil {
			return fmt.Errorf("saving finding: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing findings: %w", err)
	}

	log.Infof("recorded %d findings for %s %s", len(diags), file, method)
	return nil
}

// Filter returns the diagnostics of file/method that are not in the baseline,
// in their original order.
func (b *Baseline) Filter(file, method string, diags []stackcheck.Diagnostic) ([]stackcheck.Diagnostic, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil, ErrClosed
	}

	known, err := b.known(file, method)
	if err != nil {
		return nil, err
	}

	var fresh []stackcheck.Diagnostic
	for _, d := range diags {
		if !known[key(d.Instruction, d.Message)] {
			fresh = append(fresh, d)
		}
	}
	if n := len(diags) - len(fresh); n > 0 {
		log.Debugf("suppressed %d baseline findings in %s %s", n, file, method)
	}
	return fresh, nil
}

// Count returns the number of findings stored for file/method.
func (b *Baseline) Count(file, method string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return 0, ErrClosed
	}

	var n int
	err := b.db.QueryRow("SELECT COUNT(*) FROM findings WHERE file = ? AND method = ?", file, method).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting findings: %w", err)
	}
	return n, nil
}

func (b *Baseline) known(file, method string) (map[string]bool, error) {
	rows, err := b.db.Query("SELECT instruction, message FROM findings WHERE file = ? AND method = ?", file, method)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var instruction, message string
		if err := rows.Scan(&instruction, &message); err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		known[key(instruction, message)] = true
	}
	return known, rows.Err()
}

func key(instruction, message string) string {
	return strings.TrimSpace(instruction) + "\x00" + message
}
